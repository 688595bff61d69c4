package ingestion_engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/core/errs"
)

// Locator schemes the build API accepts. A scheme being recognized does not
// guarantee a fetcher is registered for it; bq:// and shpt:// sources need
// backends that are not wired in this deployment.
var recognizedSchemes = []string{"s3://", "http://", "https://", "bq://", "shpt://"}

// RecognizedLocator reports whether the locator carries a known scheme.
func RecognizedLocator(locator string) bool {
	for _, s := range recognizedSchemes {
		if strings.HasPrefix(locator, s) {
			return true
		}
	}
	return false
}

func locatorScheme(locator string) string {
	if i := strings.Index(locator, "://"); i > 0 {
		return locator[:i]
	}
	return ""
}

// SourceFetcher resolves a source locator into local document handles,
// downloading into the caller-owned scratch directory. The caller is
// responsible for cleaning up the scratch directory after the build.
type SourceFetcher interface {
	Fetch(ctx context.Context, locator, scratchDir string) ([]DataSourceFile, error)
}

// FetcherSet dispatches a locator to the fetcher registered for its scheme
// and enforces the non-empty result contract.
type FetcherSet struct {
	fetchers map[string]SourceFetcher
}

// NewFetcherSet registers the bucket fetcher for s3:// locators and the
// HTTP fetcher for http(s):// locators.
func NewFetcherSet(obj core.ObjectClient) *FetcherSet {
	bucket := &BucketFetcher{obj: obj}
	web := &HTTPFetcher{client: &http.Client{Timeout: 2 * time.Minute}}
	return &FetcherSet{fetchers: map[string]SourceFetcher{
		"s3":    bucket,
		"http":  web,
		"https": web,
	}}
}

// Register adds or replaces the fetcher for a scheme.
func (s *FetcherSet) Register(scheme string, f SourceFetcher) {
	s.fetchers[scheme] = f
}

// Fetch resolves the locator. An empty resolved set is an error: ingestion
// must never silently produce an empty engine.
func (s *FetcherSet) Fetch(ctx context.Context, locator, scratchDir string) ([]DataSourceFile, error) {
	scheme := locatorScheme(locator)
	f, ok := s.fetchers[scheme]
	if !ok {
		return nil, errs.Wrap(errs.ErrValidation, "no fetcher configured for scheme %q", scheme)
	}
	files, err := f.Fetch(ctx, locator, scratchDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errs.Wrap(errs.ErrNoDocumentsIndexed, "no documents can be indexed at url %s", locator)
	}
	return files, nil
}

// BucketFetcher enumerates every object under an s3://bucket/prefix locator
// and downloads each one, flattening nested paths into the scratch
// directory by filename.
type BucketFetcher struct {
	obj core.ObjectClient
}

func (b *BucketFetcher) Fetch(ctx context.Context, locator, scratchDir string) ([]DataSourceFile, error) {
	rest := strings.TrimPrefix(locator, "s3://")
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return nil, errs.Wrap(errs.ErrValidation, "invalid bucket locator %q", locator)
	}

	log.Printf("fetcher: downloading %s from bucket %s", locator, bucket)

	objects, err := b.obj.ListObjects(ctx, bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}

	files := make([]DataSourceFile, 0, len(objects))
	for _, o := range objects {
		localPath := filepath.Join(scratchDir, filepath.Base(o.Name))
		if err := b.obj.Download(ctx, bucket, o.Name, localPath); err != nil {
			return nil, fmt.Errorf("download %s: %w", o.Name, err)
		}
		files = append(files, DataSourceFile{
			DocName:    o.Name,
			SrcURL:     o.PublicURL,
			LocalPath:  localPath,
			RemotePath: o.CanonicalPath,
		})
	}
	return files, nil
}

// HTTPFetcher downloads a single document from a generic http(s) URL.
type HTTPFetcher struct {
	client *http.Client
}

func (h *HTTPFetcher) Fetch(ctx context.Context, locator, scratchDir string) ([]DataSourceFile, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, errs.Wrap(errs.ErrValidation, "invalid url %q", locator)
	}

	name := filepath.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "index.html"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", locator, resp.StatusCode)
	}

	localPath := filepath.Join(scratchDir, name)
	f, err := os.Create(localPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		return nil, fmt.Errorf("save %s: %w", locator, err)
	}

	return []DataSourceFile{{
		DocName:    name,
		SrcURL:     locator,
		LocalPath:  localPath,
		RemotePath: locator,
	}}, nil
}
