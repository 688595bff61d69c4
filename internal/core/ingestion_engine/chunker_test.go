package ingestion_engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func stubRead(units []string, err error) readDocFunc {
	return func(docName, localPath string) ([]string, error) {
		return units, err
	}
}

func TestChunkDocumentProducesNonEmptyChunks(t *testing.T) {
	c := NewChunker(1, NewGenericNormalizer())
	c.read = stubRead([]string{"One. Two. Three. Four."}, nil)

	chunks := c.ChunkDocument("doc.txt", "s3://b/doc.txt", "/tmp/doc.txt")
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	for i, ch := range chunks {
		if strings.TrimSpace(ch.Text) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
	if len(c.DocsNotProcessed()) != 0 {
		t.Errorf("unexpected unprocessed docs: %v", c.DocsNotProcessed())
	}
}

// Adjacent chunks must share sentences: the window around sentence i and the
// window around sentence i+1 overlap in min(2*padding, n-1) sentences.
func TestChunkDocumentAdjacentOverlap(t *testing.T) {
	const padding = 1
	for _, n := range []int{3, 5, 8} {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&sb, "Sentence number %d here. ", i)
		}
		c := NewChunker(padding, NewGenericNormalizer())
		c.read = stubRead([]string{sb.String()}, nil)

		chunks := c.ChunkDocument("doc.txt", "u", "p")
		if len(chunks) != n {
			t.Fatalf("n=%d: got %d chunks", n, len(chunks))
		}
		wantOverlap := 2 * padding
		if n-1 < wantOverlap {
			wantOverlap = n - 1
		}
		for i := 0; i+1 < len(chunks); i++ {
			shared := sharedSentences(chunks[i].Sentences, chunks[i+1].Sentences)
			if shared < wantOverlap {
				t.Errorf("n=%d: chunks %d,%d share %d sentences, want >= %d",
					n, i, i+1, shared, wantOverlap)
			}
		}
	}
}

func sharedSentences(a, b []string) int {
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	count := 0
	for _, s := range b {
		if seen[s] {
			count++
		}
	}
	return count
}

func TestChunkDocumentIdempotent(t *testing.T) {
	units := []string{"Alpha rises. Beta falls. Gamma waits."}
	first := NewChunker(1, NewGenericNormalizer())
	first.read = stubRead(units, nil)
	second := NewChunker(1, NewGenericNormalizer())
	second.read = stubRead(units, nil)

	a := first.ChunkDocument("d.txt", "u", "p")
	b := second.ChunkDocument("d.txt", "u", "p")
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same input produced different chunks:\n%v\n%v", a, b)
	}
}

func TestChunkDocumentReadErrorRecordedNotFatal(t *testing.T) {
	c := NewChunker(1, NewGenericNormalizer())
	c.read = stubRead(nil, errors.New("corrupt file"))

	chunks := c.ChunkDocument("bad.pdf", "s3://b/bad.pdf", "/tmp/bad.pdf")
	if chunks != nil {
		t.Errorf("got %d chunks from unreadable doc, want none", len(chunks))
	}
	if got := c.DocsNotProcessed(); len(got) != 1 || got[0] != "s3://b/bad.pdf" {
		t.Errorf("DocsNotProcessed = %v, want the failed doc URL", got)
	}
}

func TestChunkDocumentVacuousContentRecorded(t *testing.T) {
	c := NewChunker(1, NewGenericNormalizer())
	c.read = stubRead([]string{"   ", "\n\n", ""}, nil)

	chunks := c.ChunkDocument("empty.txt", "s3://b/empty.txt", "/tmp/empty.txt")
	if len(chunks) != 0 {
		t.Errorf("got %d chunks from vacuous doc, want 0", len(chunks))
	}
	if got := c.DocsNotProcessed(); len(got) != 1 || got[0] != "s3://b/empty.txt" {
		t.Errorf("DocsNotProcessed = %v, want the vacuous doc URL", got)
	}
}

func TestChunkDocumentDeduplicatesIdenticalWindows(t *testing.T) {
	// Two sentences with padding 1 put the full document in both windows;
	// only one chunk survives.
	c := NewChunker(1, NewGenericNormalizer())
	c.read = stubRead([]string{"First sentence. Second sentence."}, nil)

	chunks := c.ChunkDocument("d.txt", "u", "p")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 after dedup", len(chunks))
	}
	if chunks[0].Text != "First sentence. Second sentence." {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
}

func TestChunkDocumentSingleSentence(t *testing.T) {
	c := NewChunker(1, NewGenericNormalizer())
	c.read = stubRead([]string{"Only one sentence here."}, nil)

	chunks := c.ChunkDocument("d.txt", "u", "p")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "Only one sentence here." {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
}
