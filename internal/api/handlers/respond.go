package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/queryforge/queryforge/internal/core/errs"
)

// writeJSON writes the success envelope used by every endpoint.
func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": status < 400,
		"message": message,
		"data":    data,
	})
}

// writeError maps a service error onto its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := errs.HTTPStatus(err)
	if status >= 500 {
		log.Printf("api: internal error: %v", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": err.Error(),
	})
}
