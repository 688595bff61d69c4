// Package errs defines the error kinds surfaced by the query engine core.
// Callers classify failures with errors.Is against the sentinels below;
// HTTPStatus maps a classified error to a response code at the route layer.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound: engine, document, or query absent.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation: bad locator scheme, empty prompt, duplicate engine name.
	ErrValidation = errors.New("validation failed")
	// ErrPayloadTooLarge: prompt exceeds the maximum payload size.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNoDocumentsIndexed: a source locator resolved to zero documents.
	ErrNoDocumentsIndexed = errors.New("no documents indexed")
	// ErrUnsupportedFormat: document extension not recognized. Treated as a
	// per-document skip during ingestion, never fatal to a build.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrInternal: backend, storage, or generation failure.
	ErrInternal = errors.New("internal error")
)

// Wrap annotates a sentinel with context while keeping it matchable
// via errors.Is.
func Wrap(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

// HTTPStatus maps an error to the status code the route layer returns.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNoDocumentsIndexed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
