package ingestion_engine

import (
	"log"
	"strings"
)

// DocChunk is one chunk produced from a document, with the sentences that
// make up its window.
type DocChunk struct {
	Text      string
	Sentences []string
}

// readDocFunc reads a document into ordered text units. Swappable in tests.
type readDocFunc func(docName, localPath string) ([]string, error)

// Chunker converts a document's raw text units into a flat, deduplicated,
// non-empty list of overlapping sentence-window chunks.
//
// Each chunk spans the sentences within padding distance P before and after
// a center sentence, clipped to document bounds, so adjacent chunks share
// 2*P sentences of overlap. Documents that cannot be read, or whose content
// is vacuous, are recorded in docsNotProcessed and contribute zero chunks
// without failing the build.
type Chunker struct {
	padding int
	norm    Normalizer
	read    readDocFunc

	docsNotProcessed []string
}

func NewChunker(padding int, norm Normalizer) *Chunker {
	if padding <= 0 {
		padding = 1
	}
	if norm == nil {
		norm = NewGenericNormalizer()
	}
	return &Chunker{padding: padding, norm: norm, read: ReadDoc}
}

// ChunkDocument reads, normalizes, and windows one document. The returned
// slice is never nil-on-success; it is empty only when the document yielded
// no sentences (in which case the document is recorded as unprocessed).
func (c *Chunker) ChunkDocument(docName, docURL, localPath string) []DocChunk {
	log.Printf("chunker: generating index data for %s", docName)

	units, err := c.read(docName, localPath)
	if err != nil {
		log.Printf("chunker: error reading doc %s: %v", docName, err)
		c.docsNotProcessed = append(c.docsNotProcessed, docURL)
		return nil
	}
	if len(units) == 0 {
		log.Printf("chunker: no content read from %s", docName)
		c.docsNotProcessed = append(c.docsNotProcessed, docURL)
		return nil
	}

	cleaned := make([]string, len(units))
	for i, u := range units {
		cleaned[i] = c.norm.CleanText(u)
	}
	// Combine all units into one blob so a page holding only title text
	// merges with neighboring content instead of becoming a micro-chunk.
	blob := strings.Join(cleaned, "\n")

	sentences := c.norm.SentenceList(blob)
	chunks := c.windowSentences(sentences)

	if len(chunks) == 0 {
		log.Printf("chunker: all extracted pages from %s are empty", docName)
		c.docsNotProcessed = append(c.docsNotProcessed, docURL)
	}
	return chunks
}

// windowSentences yields one chunk candidate per sentence position, in
// sentence order, dropping candidates that are blank after trimming or
// textually identical to an earlier chunk (repeated boilerplate collapses
// into one chunk).
func (c *Chunker) windowSentences(sentences []string) []DocChunk {
	chunks := make([]DocChunk, 0, len(sentences))
	seen := make(map[string]bool, len(sentences))
	for i := range sentences {
		start := i - c.padding
		if start < 0 {
			start = 0
		}
		end := i + c.padding + 1
		if end > len(sentences) {
			end = len(sentences)
		}
		window := sentences[start:end]
		text := strings.TrimSpace(strings.Join(window, " "))
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		chunks = append(chunks, DocChunk{
			Text:      text,
			Sentences: append([]string(nil), window...),
		})
	}
	return chunks
}

// DocsNotProcessed lists the source URLs of documents that contributed zero
// chunks, due to read failure or vacuous content.
func (c *Chunker) DocsNotProcessed() []string {
	return c.docsNotProcessed
}
