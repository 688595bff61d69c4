package ingestion_engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/core/errs"
	"github.com/queryforge/queryforge/internal/models"
)

// Pipeline runs one engine build end to end:
// fetch sources, read and chunk each document, embed and persist the chunks,
// then mark the engine queryable.
//
// Per-document read/parse failures are downgraded to an unprocessed entry;
// fetch resolving to nothing and any persistence failure are fatal. The
// scratch directory is owned by the build and removed on every path.
type Pipeline struct {
	db       core.DbClient
	fetcher  *FetcherSet
	embedder core.EmbeddingProvider
	cfg      IngestConfig
}

func NewPipeline(db core.DbClient, fetcher *FetcherSet, embedder core.EmbeddingProvider, cfg IngestConfig) *Pipeline {
	cfg.defaults()
	return &Pipeline{db: db, fetcher: fetcher, embedder: embedder, cfg: cfg}
}

// BuildEngine executes a build for an engine row already persisted in
// "building" status. On any fatal error the engine is marked failed and
// never exposed as queryable.
func (p *Pipeline) BuildEngine(ctx context.Context, engine *models.QueryEngine) (*BuildReport, error) {
	scratchDir, err := os.MkdirTemp("", "qf-build-*")
	if err != nil {
		return p.fail(ctx, engine, fmt.Errorf("scratch dir: %w", err))
	}
	defer os.RemoveAll(scratchDir)

	// pending -> fetching
	files, err := p.fetcher.Fetch(ctx, engine.DocURL, scratchDir)
	if err != nil {
		return p.fail(ctx, engine, err)
	}
	log.Printf("pipeline: engine %s resolved %d documents", engine.Name, len(files))

	// fetching -> reading_and_chunking. Documents chunk in parallel; chunk
	// indices are assigned contiguously per engine in document-arrival order
	// once every document has settled.
	report := &BuildReport{State: StateChunking, DocumentCount: len(files)}
	chunked := make([][]DocChunk, len(files))
	unprocessed := make([][]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			chunker := NewChunker(p.cfg.SentencePadding, normalizerFor(f.DocName))
			chunked[i] = chunker.ChunkDocument(f.DocName, f.SrcURL, f.LocalPath)
			unprocessed[i] = chunker.DocsNotProcessed()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return p.fail(ctx, engine, err)
	}

	type docBuild struct {
		file   DataSourceFile
		chunks []DocChunk
		start  int
	}
	builds := make([]docBuild, 0, len(files))
	nextIndex := 0
	for i, f := range files {
		report.DocsUnprocessed = append(report.DocsUnprocessed, unprocessed[i]...)
		builds = append(builds, docBuild{file: f, chunks: chunked[i], start: nextIndex})
		nextIndex += len(chunked[i])
	}

	if nextIndex == 0 {
		return p.fail(ctx, engine,
			errs.Wrap(errs.ErrNoDocumentsIndexed, "engine %s: no document produced chunks", engine.Name))
	}

	// reading_and_chunking -> persisting. Unprocessed documents are
	// persisted too, so operators can audit failures.
	report.State = StatePersisting
	for _, b := range builds {
		doc := &models.QueryDocument{
			ID:         uuid.NewString(),
			EngineID:   engine.ID,
			DocURL:     b.file.SrcURL,
			IndexFile:  b.file.RemotePath,
			IndexStart: b.start,
			IndexEnd:   b.start + len(b.chunks),
			CreatedAt:  time.Now(),
		}
		if err := p.db.CreateQueryDocument(ctx, doc); err != nil {
			return p.fail(ctx, engine, fmt.Errorf("persist document %s: %w", b.file.DocName, err))
		}
		if err := p.persistChunks(ctx, engine.ID, doc.ID, b.start, b.chunks); err != nil {
			return p.fail(ctx, engine, err)
		}
		report.ChunkCount += len(b.chunks)
	}

	// persisting -> complete
	if err := p.db.UpdateQueryEngineStatus(ctx, engine.ID, models.EngineStatusActive); err != nil {
		return p.fail(ctx, engine, fmt.Errorf("finalize engine: %w", err))
	}
	report.State = StateComplete
	log.Printf("pipeline: engine %s complete: %d chunks from %d documents (%d unprocessed)",
		engine.Name, report.ChunkCount, report.DocumentCount, len(report.DocsUnprocessed))
	return report, nil
}

// persistChunks embeds chunk texts in bounded batches and inserts the rows.
func (p *Pipeline) persistChunks(ctx context.Context, engineID, docID string, startIndex int, chunks []DocChunk) error {
	for off := 0; off < len(chunks); off += p.cfg.EmbedBatchSize {
		end := off + p.cfg.EmbedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[off:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = batch[i].Text
		}
		vecs, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embed size mismatch: got %d want %d", len(vecs), len(batch))
		}

		rows := make([]models.QueryDocumentChunk, len(batch))
		for i := range batch {
			rows[i] = models.QueryDocumentChunk{
				ID:         uuid.NewString(),
				EngineID:   engineID,
				DocumentID: docID,
				Index:      startIndex + off + i,
				Text:       batch[i].Text,
				CleanText:  batch[i].Text,
				Sentences:  batch[i].Sentences,
				Embedding:  vecs[i],
				CreatedAt:  time.Now(),
			}
		}
		if err := p.db.InsertQueryChunks(ctx, rows); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, engine *models.QueryEngine, err error) (*BuildReport, error) {
	log.Printf("pipeline: engine %s build failed: %v", engine.Name, err)
	_ = p.db.UpdateQueryEngineStatus(ctx, engine.ID, models.EngineStatusFailed)
	return &BuildReport{State: StateFailed}, err
}

// normalizerFor picks the normalizer capability by source kind.
func normalizerFor(docName string) Normalizer {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(docName), ".")) {
	case "html", "htm":
		return NewMarkupNormalizer()
	case "csv":
		return NewTabularNormalizer()
	default:
		return NewGenericNormalizer()
	}
}
