package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/queryforge/queryforge/internal/config"
	"github.com/queryforge/queryforge/internal/core"
	db "github.com/queryforge/queryforge/internal/core/database"
	"github.com/queryforge/queryforge/internal/core/ingestion_engine"
	"github.com/queryforge/queryforge/internal/core/llm"
	"github.com/queryforge/queryforge/internal/core/query_engine"
	objectclient "github.com/queryforge/queryforge/internal/core/object-client"
	"github.com/queryforge/queryforge/internal/services"
)

// App owns every long-lived collaborator: database, object store, AI
// providers, the build runner, and the HTTP server.
type App struct {
	DBClient core.DbClient
	Runner   *ingestion_engine.BuildRunner
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the LLM provider: %w", err)
	}

	fetchers := ingestion_engine.NewFetcherSet(objClient)
	pipeline := ingestion_engine.NewPipeline(dbClient, fetchers, embedder, ingestion_engine.IngestConfig{
		SentencePadding: cfg.SentencePadding,
		EmbedBatchSize:  cfg.EmbedBatchSize,
	})
	runner := ingestion_engine.NewBuildRunner(dbClient, pipeline)
	runner.Start(ctx, cfg.BuildWorkers)

	orch := query_engine.NewOrchestrator(dbClient, embedder, llmProvider, cfg.MaxPromptBytes, cfg.RetrievalTopK)
	querySvc := services.NewQueryService(dbClient, orch, runner)

	server := NewServer(cfg, dbClient, querySvc)

	return &App{DBClient: dbClient, Runner: runner, Server: server}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
