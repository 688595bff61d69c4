package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/core/errs"
)

type mockObjectClient struct {
	objects map[string][]core.ObjectInfo // bucket -> objects
	content map[string]string            // key -> body
}

func (m *mockObjectClient) ListObjects(ctx context.Context, bucket, prefix string) ([]core.ObjectInfo, error) {
	return m.objects[bucket], nil
}

func (m *mockObjectClient) Download(ctx context.Context, bucket, key, localPath string) error {
	body, ok := m.content[key]
	if !ok {
		return fmt.Errorf("no such key %s", key)
	}
	return os.WriteFile(localPath, []byte(body), 0o600)
}

func TestRecognizedLocator(t *testing.T) {
	for locator, want := range map[string]bool{
		"s3://bucket/prefix":      true,
		"https://example.com/doc": true,
		"http://example.com":      true,
		"bq://project.dataset":    true,
		"shpt://site/library":     true,
		"gs://bucket/prefix":      false,
		"file:///etc/passwd":      false,
		"plain-string":            false,
	} {
		if got := RecognizedLocator(locator); got != want {
			t.Errorf("RecognizedLocator(%q) = %v, want %v", locator, got, want)
		}
	}
}

func TestFetchUnregisteredSchemeIsValidationError(t *testing.T) {
	set := NewFetcherSet(&mockObjectClient{})

	_, err := set.Fetch(context.Background(), "bq://project.dataset.table", t.TempDir())
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestFetchEmptyBucketIsNoDocumentsIndexed(t *testing.T) {
	set := NewFetcherSet(&mockObjectClient{})

	_, err := set.Fetch(context.Background(), "s3://empty-bucket/docs", t.TempDir())
	if !errors.Is(err, errs.ErrNoDocumentsIndexed) {
		t.Errorf("err = %v, want ErrNoDocumentsIndexed", err)
	}
}

func TestBucketFetcherFlattensNestedKeys(t *testing.T) {
	obj := &mockObjectClient{
		objects: map[string][]core.ObjectInfo{
			"corpus": {
				{Name: "reports/2024/annual.txt", PublicURL: "https://corpus.s3.us-east-1.amazonaws.com/reports/2024/annual.txt", CanonicalPath: "s3://corpus/reports/2024/annual.txt"},
				{Name: "faq.html", PublicURL: "https://corpus.s3.us-east-1.amazonaws.com/faq.html", CanonicalPath: "s3://corpus/faq.html"},
			},
		},
		content: map[string]string{
			"reports/2024/annual.txt": "Annual report body.",
			"faq.html":                "<p>FAQ body.</p>",
		},
	}
	set := NewFetcherSet(obj)
	scratch := t.TempDir()

	files, err := set.Fetch(context.Background(), "s3://corpus/", scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	if files[0].LocalPath != filepath.Join(scratch, "annual.txt") {
		t.Errorf("nested key not flattened: %s", files[0].LocalPath)
	}
	if files[0].RemotePath != "s3://corpus/reports/2024/annual.txt" {
		t.Errorf("RemotePath = %s", files[0].RemotePath)
	}
	data, err := os.ReadFile(files[0].LocalPath)
	if err != nil || string(data) != "Annual report body." {
		t.Errorf("downloaded content = %q, err = %v", data, err)
	}
}

func TestHTTPFetcherDownloadsSingleDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Page body.</body></html>")
	}))
	defer srv.Close()

	set := NewFetcherSet(&mockObjectClient{})
	scratch := t.TempDir()

	files, err := set.Fetch(context.Background(), srv.URL+"/docs/page.html", scratch)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	if files[0].DocName != "page.html" {
		t.Errorf("DocName = %s, want page.html", files[0].DocName)
	}
	if _, err := os.Stat(files[0].LocalPath); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}
}

func TestHTTPFetcherRootPathFallsBackToIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Home.</body></html>")
	}))
	defer srv.Close()

	set := NewFetcherSet(&mockObjectClient{})

	files, err := set.Fetch(context.Background(), srv.URL, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if files[0].DocName != "index.html" {
		t.Errorf("DocName = %s, want index.html", files[0].DocName)
	}
}

func TestHTTPFetcherNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	set := NewFetcherSet(&mockObjectClient{})

	_, err := set.Fetch(context.Background(), srv.URL+"/missing.html", t.TempDir())
	if err == nil {
		t.Error("expected error for 404 source")
	}
}
