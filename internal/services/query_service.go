package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/core/errs"
	"github.com/queryforge/queryforge/internal/core/ingestion_engine"
	"github.com/queryforge/queryforge/internal/core/query_engine"
	"github.com/queryforge/queryforge/internal/models"
)

// BuildScheduler accepts engine build jobs; satisfied by
// ingestion_engine.BuildRunner.
type BuildScheduler interface {
	Enqueue(engineID string)
}

// QueryService exposes the engine-build and query operations to the route
// layer, owning UserQuery persistence so every turn is recorded exactly once.
type QueryService struct {
	db     core.DbClient
	orch   *query_engine.Orchestrator
	runner BuildScheduler
}

func NewQueryService(db core.DbClient, orch *query_engine.Orchestrator, runner BuildScheduler) *QueryService {
	return &QueryService{db: db, orch: orch, runner: runner}
}

// BuildRequest carries the configuration for a new engine build.
type BuildRequest struct {
	Name          string            `json:"query_engine"`
	DocURL        string            `json:"doc_url"`
	EngineType    string            `json:"query_engine_type"`
	LLMType       string            `json:"llm_type"`
	EmbeddingType string            `json:"embedding_type"`
	VectorStore   string            `json:"vector_store"`
	Description   string            `json:"description"`
	IsPublic      bool              `json:"is_public"`
	Params        map[string]string `json:"params"`
}

// BuildEngine validates the request, records the engine in "building"
// status, and schedules the build job. The engine id is returned
// immediately; ingestion runs out-of-band.
func (s *QueryService) BuildEngine(ctx context.Context, userID string, req BuildRequest) (*models.QueryEngine, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errs.Wrap(errs.ErrValidation, "missing or invalid payload parameters: query_engine")
	}
	if req.EngineType == "" {
		req.EngineType = models.EngineTypeVectorSearch
	}
	if req.EngineType != models.EngineTypeIntegratedSearch {
		if req.DocURL == "" {
			return nil, errs.Wrap(errs.ErrValidation, "missing or invalid payload parameters: doc_url")
		}
		if !ingestion_engine.RecognizedLocator(req.DocURL) {
			return nil, errs.Wrap(errs.ErrValidation,
				"doc_url must start with s3://, http://, https://, bq:// or shpt://")
		}
		if strings.HasSuffix(req.DocURL, ".pdf") {
			return nil, errs.Wrap(errs.ErrValidation,
				"doc_url must point to a bucket/folder or website, not a document")
		}
	}

	// Advisory uniqueness check; the partial unique index on name backs it
	// up if two creations race.
	existing, err := s.db.FindQueryEngineByName(ctx, req.Name)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternal, "find engine: %v", err)
	}
	if existing != nil {
		return nil, errs.Wrap(errs.ErrValidation, "query engine already exists: %s", req.Name)
	}

	engine := &models.QueryEngine{
		ID:            uuid.NewString(),
		Name:          req.Name,
		EngineType:    req.EngineType,
		Description:   req.Description,
		LLMType:       req.LLMType,
		EmbeddingType: req.EmbeddingType,
		VectorStore:   req.VectorStore,
		CreatedBy:     userID,
		IsPublic:      req.IsPublic,
		DocURL:        req.DocURL,
		Params:        req.Params,
		Status:        models.EngineStatusBuilding,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	// Integrated-search engines federate other engines through their params;
	// there is no corpus to ingest, so they are queryable immediately.
	if engine.EngineType == models.EngineTypeIntegratedSearch {
		engine.Status = models.EngineStatusActive
	}

	if err := s.db.CreateQueryEngine(ctx, engine); err != nil {
		return nil, errs.Wrap(errs.ErrInternal, "create engine: %v", err)
	}

	if engine.EngineType == models.EngineTypeIntegratedSearch {
		log.Printf("service: created integrated-search engine %s (%s), no build needed", engine.Name, engine.ID)
		return engine, nil
	}

	s.runner.Enqueue(engine.ID)
	log.Printf("service: scheduled build for engine %s (%s)", engine.Name, engine.ID)
	return engine, nil
}

// Query runs a first-turn query against an engine and records the new
// conversation thread.
func (s *QueryService) Query(ctx context.Context, userID, engineID, prompt, llmOverride string) (*models.UserQuery, *models.QueryResult, []models.QueryReference, error) {
	engine, err := s.db.GetQueryEngineByID(ctx, engineID)
	if err != nil {
		return nil, nil, nil, errs.Wrap(errs.ErrInternal, "find engine: %v", err)
	}
	if engine == nil {
		return nil, nil, nil, errs.Wrap(errs.ErrNotFound, "engine %s not found", engineID)
	}

	result, refs, err := s.orch.Generate(ctx, userID, prompt, engine, llmOverride, nil)
	if err != nil {
		return nil, nil, nil, err
	}

	userQuery := &models.UserQuery{
		ID:        uuid.NewString(),
		UserID:    userID,
		EngineID:  engine.ID,
		Prompt:    prompt,
		Response:  result.Response,
		History:   turnPair(prompt, result.Response, refs),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := s.db.CreateUserQuery(ctx, userQuery); err != nil {
		return nil, nil, nil, errs.Wrap(errs.ErrInternal, "save user query: %v", err)
	}
	return userQuery, result, refs, nil
}

// ContinueQuery runs a follow-up turn on a prior conversation. Prior history
// is passed to the orchestrator as grounding context and the new turn pair
// is appended without touching earlier entries.
func (s *QueryService) ContinueQuery(ctx context.Context, queryID, prompt, llmOverride string) (*models.UserQuery, *models.QueryResult, []models.QueryReference, error) {
	userQuery, err := s.db.GetUserQueryByID(ctx, queryID)
	if err != nil {
		return nil, nil, nil, errs.Wrap(errs.ErrInternal, "find query: %v", err)
	}
	if userQuery == nil {
		return nil, nil, nil, errs.Wrap(errs.ErrNotFound, "query %s not found", queryID)
	}

	engine, err := s.db.GetQueryEngineByID(ctx, userQuery.EngineID)
	if err != nil {
		return nil, nil, nil, errs.Wrap(errs.ErrInternal, "find engine: %v", err)
	}
	if engine == nil {
		return nil, nil, nil, errs.Wrap(errs.ErrNotFound, "engine %s not found", userQuery.EngineID)
	}

	result, refs, err := s.orch.Generate(ctx, userQuery.UserID, prompt, engine, llmOverride, userQuery)
	if err != nil {
		return nil, nil, nil, err
	}

	pair := turnPair(prompt, result.Response, refs)
	if err := s.db.AppendUserQueryHistory(ctx, userQuery.ID, pair, result.Response); err != nil {
		return nil, nil, nil, errs.Wrap(errs.ErrInternal, "update history: %v", err)
	}
	userQuery.History = append(userQuery.History, pair...)
	userQuery.Response = result.Response
	return userQuery, result, refs, nil
}

// turnPair builds the human/AI history entries for one turn.
func turnPair(prompt, response string, refs []models.QueryReference) []models.HistoryEntry {
	return []models.HistoryEntry{
		{HumanQuestion: prompt},
		{AIResponse: response, AIReferences: refs},
	}
}

func (s *QueryService) ListEngines(ctx context.Context) ([]models.QueryEngine, error) {
	return s.db.ListQueryEngines(ctx)
}

// EngineURLs returns the source URLs of every document indexed by an engine.
func (s *QueryService) EngineURLs(ctx context.Context, engineID string) ([]string, error) {
	engine, err := s.db.GetQueryEngineByID(ctx, engineID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternal, "find engine: %v", err)
	}
	if engine == nil {
		return nil, errs.Wrap(errs.ErrNotFound, "engine %s not found", engineID)
	}
	docs, err := s.db.ListQueryDocumentsByEngine(ctx, engineID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternal, "list documents: %v", err)
	}
	urls := make([]string, len(docs))
	for i, d := range docs {
		urls[i] = d.DocURL
	}
	return urls, nil
}

// supportedVectorStores lists the retrieval backends builds can target.
var supportedVectorStores = []string{"pgvector"}

// SupportedVectorStores returns the vector-store identifiers accepted in a
// build request.
func (s *QueryService) SupportedVectorStores() []string {
	out := make([]string, len(supportedVectorStores))
	copy(out, supportedVectorStores)
	return out
}

// UpdateEngine changes an engine's description and parameter map.
func (s *QueryService) UpdateEngine(ctx context.Context, engineID, description string, params map[string]string) error {
	engine, err := s.db.GetQueryEngineByID(ctx, engineID)
	if err != nil {
		return errs.Wrap(errs.ErrInternal, "find engine: %v", err)
	}
	if engine == nil {
		return errs.Wrap(errs.ErrNotFound, "engine %s not found", engineID)
	}
	if err := s.db.UpdateQueryEngine(ctx, engineID, description, params); err != nil {
		return errs.Wrap(errs.ErrInternal, "update engine: %v", err)
	}
	return nil
}

// DeleteEngine soft-deletes by default; a hard delete cascades to the
// engine's documents and chunks.
func (s *QueryService) DeleteEngine(ctx context.Context, engineID string, hardDelete bool) error {
	engine, err := s.db.GetQueryEngineByID(ctx, engineID)
	if err != nil {
		return errs.Wrap(errs.ErrInternal, "find engine: %v", err)
	}
	if engine == nil {
		return errs.Wrap(errs.ErrNotFound, "engine %s not found", engineID)
	}
	if hardDelete {
		err = s.db.HardDeleteQueryEngine(ctx, engineID)
	} else {
		err = s.db.SoftDeleteQueryEngine(ctx, engineID)
	}
	if err != nil {
		return errs.Wrap(errs.ErrInternal, "delete engine: %v", err)
	}
	log.Printf("service: deleted engine %s (hard=%v)", engine.Name, hardDelete)
	return nil
}

func (s *QueryService) GetQuery(ctx context.Context, queryID string) (*models.UserQuery, error) {
	userQuery, err := s.db.GetUserQueryByID(ctx, queryID)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInternal, "find query: %v", err)
	}
	if userQuery == nil {
		return nil, errs.Wrap(errs.ErrNotFound, "query %s not found", queryID)
	}
	return userQuery, nil
}

func (s *QueryService) ListUserQueries(ctx context.Context, userID string, skip, limit int) ([]models.UserQuery, error) {
	if skip < 0 {
		return nil, errs.Wrap(errs.ErrValidation, "invalid value passed to skip query parameter")
	}
	if limit < 1 {
		return nil, errs.Wrap(errs.ErrValidation, "invalid value passed to limit query parameter")
	}
	return s.db.ListUserQueriesByUser(ctx, userID, skip, limit)
}

// UpdateQueryTitle is the only mutable field of a conversation besides its
// history.
func (s *QueryService) UpdateQueryTitle(ctx context.Context, queryID, title string) error {
	userQuery, err := s.db.GetUserQueryByID(ctx, queryID)
	if err != nil {
		return errs.Wrap(errs.ErrInternal, "find query: %v", err)
	}
	if userQuery == nil {
		return errs.Wrap(errs.ErrNotFound, "query %s not found", queryID)
	}
	if err := s.db.UpdateUserQueryTitle(ctx, queryID, title); err != nil {
		return errs.Wrap(errs.ErrInternal, "update query: %v", err)
	}
	return nil
}

func (s *QueryService) DeleteQuery(ctx context.Context, queryID string, hardDelete bool) error {
	userQuery, err := s.db.GetUserQueryByID(ctx, queryID)
	if err != nil {
		return errs.Wrap(errs.ErrInternal, "find query: %v", err)
	}
	if userQuery == nil {
		return errs.Wrap(errs.ErrNotFound, "query %s not found", queryID)
	}
	if hardDelete {
		err = s.db.HardDeleteUserQuery(ctx, queryID)
	} else {
		err = s.db.SoftDeleteUserQuery(ctx, queryID)
	}
	if err != nil {
		return errs.Wrap(errs.ErrInternal, "delete query: %v", err)
	}
	return nil
}
