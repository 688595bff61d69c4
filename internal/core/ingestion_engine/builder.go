package ingestion_engine

import (
	"context"
	"log"

	"github.com/queryforge/queryforge/internal/core"
)

// BuildRunner executes engine builds out-of-band. The build request returns
// immediately; workers drain the queue one build at a time. Builds for
// unrelated engines may run concurrently, never two for the same engine
// (creation enforces unique names before a job is enqueued).
type BuildRunner struct {
	db       core.DbClient
	pipeline *Pipeline
	jobs     chan string
}

// NewBuildRunner constructs the runner with a bounded job queue (64).
func NewBuildRunner(db core.DbClient, pipeline *Pipeline) *BuildRunner {
	return &BuildRunner{db: db, pipeline: pipeline, jobs: make(chan string, 64)}
}

// Start launches numWorkers goroutines reading from the jobs channel.
func (r *BuildRunner) Start(ctx context.Context, numWorkers int) {
	for w := 1; w <= numWorkers; w++ {
		go func(w int) {
			for {
				select {
				case <-ctx.Done():
					log.Printf("builder: worker %d shutting down", w)
					return
				case engineID := <-r.jobs:
					log.Printf("builder: worker %d building engine %s", w, engineID)
					if err := r.processOne(ctx, engineID); err != nil {
						log.Printf("builder: engine %s build error: %v", engineID, err)
					}
				}
			}
		}(w)
	}
}

// Enqueue schedules an engine build. Blocks if the queue is full.
func (r *BuildRunner) Enqueue(engineID string) {
	r.jobs <- engineID
}

func (r *BuildRunner) processOne(ctx context.Context, engineID string) error {
	engine, err := r.db.GetQueryEngineByID(ctx, engineID)
	if err != nil {
		return err
	}
	if engine == nil {
		log.Printf("builder: engine %s deleted before build started, skipping", engineID)
		return nil
	}

	report, err := r.pipeline.BuildEngine(ctx, engine)
	if err != nil {
		return err
	}
	if len(report.DocsUnprocessed) > 0 {
		log.Printf("builder: engine %s completed with %d unprocessed documents: %v",
			engine.Name, len(report.DocsUnprocessed), report.DocsUnprocessed)
	}
	return nil
}
