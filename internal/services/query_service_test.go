package services

import (
	"context"
	"errors"
	"testing"

	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/core/errs"
	"github.com/queryforge/queryforge/internal/core/query_engine"
	"github.com/queryforge/queryforge/internal/models"
)

type serviceDB struct {
	core.DbClient

	engines map[string]*models.QueryEngine
	queries map[string]*models.UserQuery

	appended []models.HistoryEntry

	updatedEngine      string
	updatedDescription string
}

func newServiceDB() *serviceDB {
	return &serviceDB{
		engines: make(map[string]*models.QueryEngine),
		queries: make(map[string]*models.UserQuery),
	}
}

func (m *serviceDB) CreateQueryEngine(ctx context.Context, engine *models.QueryEngine) error {
	m.engines[engine.ID] = engine
	return nil
}

func (m *serviceDB) GetQueryEngineByID(ctx context.Context, id string) (*models.QueryEngine, error) {
	return m.engines[id], nil
}

func (m *serviceDB) FindQueryEngineByName(ctx context.Context, name string) (*models.QueryEngine, error) {
	for _, e := range m.engines {
		if e.Name == name {
			return e, nil
		}
	}
	return nil, nil
}

func (m *serviceDB) UpdateQueryEngine(ctx context.Context, id, description string, params map[string]string) error {
	m.updatedEngine = id
	m.updatedDescription = description
	return nil
}

func (m *serviceDB) SearchEngineChunks(ctx context.Context, engineID string, queryVec []float32, limit int) ([]models.RetrievedChunk, error) {
	return []models.RetrievedChunk{{
		QueryDocumentChunk: models.QueryDocumentChunk{ID: "ch-1", DocumentID: "doc-1", Text: "Grounding text."},
		DocURL:             "https://corpus/a.txt",
	}}, nil
}

func (m *serviceDB) CreateQueryReferences(ctx context.Context, refs []models.QueryReference) error {
	return nil
}

func (m *serviceDB) CreateQueryResult(ctx context.Context, result *models.QueryResult) error {
	return nil
}

func (m *serviceDB) CreateUserQuery(ctx context.Context, query *models.UserQuery) error {
	m.queries[query.ID] = query
	return nil
}

func (m *serviceDB) GetUserQueryByID(ctx context.Context, id string) (*models.UserQuery, error) {
	return m.queries[id], nil
}

func (m *serviceDB) AppendUserQueryHistory(ctx context.Context, id string, entries []models.HistoryEntry, response string) error {
	q, ok := m.queries[id]
	if !ok {
		return errors.New("no such query")
	}
	m.appended = append(m.appended, entries...)
	q.History = append(q.History, entries...)
	q.Response = response
	return nil
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type stubLLM struct{ answer string }

func (s stubLLM) Generate(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	return s.answer, nil
}

type recordingScheduler struct {
	enqueued []string
}

func (r *recordingScheduler) Enqueue(engineID string) {
	r.enqueued = append(r.enqueued, engineID)
}

func newTestService(db *serviceDB, answer string) (*QueryService, *recordingScheduler) {
	orch := query_engine.NewOrchestrator(db, stubEmbedder{}, stubLLM{answer: answer}, 1024, 5)
	sched := &recordingScheduler{}
	return NewQueryService(db, orch, sched), sched
}

func TestBuildEngineRejectsUnknownScheme(t *testing.T) {
	svc, _ := newTestService(newServiceDB(), "")

	_, err := svc.BuildEngine(context.Background(), "u1", BuildRequest{
		Name:   "docs",
		DocURL: "ftp://host/docs",
	})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestBuildEngineRejectsDocumentLocator(t *testing.T) {
	svc, _ := newTestService(newServiceDB(), "")

	_, err := svc.BuildEngine(context.Background(), "u1", BuildRequest{
		Name:   "docs",
		DocURL: "s3://bucket/reports/annual.pdf",
	})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestBuildEngineRejectsDuplicateName(t *testing.T) {
	db := newServiceDB()
	db.engines["existing"] = &models.QueryEngine{ID: "existing", Name: "docs"}
	svc, _ := newTestService(db, "")

	_, err := svc.BuildEngine(context.Background(), "u1", BuildRequest{
		Name:   "docs",
		DocURL: "s3://bucket/docs",
	})
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestBuildEngineCreatesBuildingEngine(t *testing.T) {
	db := newServiceDB()
	svc, sched := newTestService(db, "")

	engine, err := svc.BuildEngine(context.Background(), "u1", BuildRequest{
		Name:   "docs",
		DocURL: "s3://bucket/docs",
	})
	if err != nil {
		t.Fatal(err)
	}
	if engine.Status != models.EngineStatusBuilding {
		t.Errorf("status = %s, want building", engine.Status)
	}
	if engine.CreatedBy != "u1" {
		t.Errorf("created_by = %s, want u1", engine.CreatedBy)
	}
	if engine.EngineType != models.EngineTypeVectorSearch {
		t.Errorf("engine_type = %s, want default vector search", engine.EngineType)
	}
	if _, ok := db.engines[engine.ID]; !ok {
		t.Error("engine row not persisted")
	}
	if len(sched.enqueued) != 1 || sched.enqueued[0] != engine.ID {
		t.Errorf("enqueued = %v, want one job for the new engine", sched.enqueued)
	}
}

// Integrated-search engines have no corpus; they must come up queryable
// without ever entering the ingestion pipeline.
func TestBuildEngineIntegratedSearchActiveWithoutBuild(t *testing.T) {
	db := newServiceDB()
	svc, sched := newTestService(db, "")

	engine, err := svc.BuildEngine(context.Background(), "u1", BuildRequest{
		Name:       "federated",
		EngineType: models.EngineTypeIntegratedSearch,
	})
	if err != nil {
		t.Fatal(err)
	}
	if engine.Status != models.EngineStatusActive {
		t.Errorf("status = %s, want active at creation", engine.Status)
	}
	if persisted := db.engines[engine.ID]; persisted == nil || persisted.Status != models.EngineStatusActive {
		t.Error("persisted engine is not active")
	}
	if len(sched.enqueued) != 0 {
		t.Errorf("enqueued = %v, want no build job", sched.enqueued)
	}
}

func TestUpdateEngine(t *testing.T) {
	db := newServiceDB()
	db.engines["eng-1"] = &models.QueryEngine{ID: "eng-1", Name: "docs"}
	svc, _ := newTestService(db, "")

	err := svc.UpdateEngine(context.Background(), "eng-1", "new description", map[string]string{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	if db.updatedEngine != "eng-1" || db.updatedDescription != "new description" {
		t.Errorf("update recorded = (%s, %s)", db.updatedEngine, db.updatedDescription)
	}

	if err := svc.UpdateEngine(context.Background(), "missing", "d", nil); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSupportedVectorStores(t *testing.T) {
	svc, _ := newTestService(newServiceDB(), "")

	stores := svc.SupportedVectorStores()
	if len(stores) == 0 {
		t.Fatal("no vector stores reported")
	}
	if stores[0] != "pgvector" {
		t.Errorf("stores = %v, want pgvector listed", stores)
	}
}

func TestQueryUnknownEngineIsNotFound(t *testing.T) {
	svc, _ := newTestService(newServiceDB(), "")

	_, _, _, err := svc.Query(context.Background(), "u1", "missing", "Question?", "")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestQueryRecordsConversationPair(t *testing.T) {
	db := newServiceDB()
	db.engines["eng-1"] = &models.QueryEngine{ID: "eng-1", Name: "docs", Status: models.EngineStatusActive}
	svc, _ := newTestService(db, "First answer.")

	userQuery, result, refs, err := svc.Query(context.Background(), "u1", "eng-1", "Question one?", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.Response != "First answer." {
		t.Errorf("response = %q", result.Response)
	}
	if len(refs) != 1 {
		t.Errorf("got %d refs, want 1", len(refs))
	}
	if len(userQuery.History) != 2 {
		t.Fatalf("history has %d entries, want 2", len(userQuery.History))
	}
	if !userQuery.History[0].IsHuman() || userQuery.History[0].HumanQuestion != "Question one?" {
		t.Errorf("first entry = %+v, want the human turn", userQuery.History[0])
	}
	if !userQuery.History[1].IsAI() || userQuery.History[1].AIResponse != "First answer." {
		t.Errorf("second entry = %+v, want the AI turn", userQuery.History[1])
	}
	if len(userQuery.History[1].AIReferences) != 1 {
		t.Errorf("AI turn carries %d references, want 1", len(userQuery.History[1].AIReferences))
	}
}

func TestContinueQueryAppendsWithoutMutatingEarlierTurns(t *testing.T) {
	db := newServiceDB()
	db.engines["eng-1"] = &models.QueryEngine{ID: "eng-1", Name: "docs", Status: models.EngineStatusActive}
	svc, _ := newTestService(db, "Answer.")

	first, _, _, err := svc.Query(context.Background(), "u1", "eng-1", "Turn one?", "")
	if err != nil {
		t.Fatal(err)
	}
	priorLen := len(first.History)
	firstHuman := first.History[0].HumanQuestion

	updated, _, _, err := svc.ContinueQuery(context.Background(), first.ID, "Turn two?", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.History) != priorLen+2 {
		t.Errorf("history has %d entries, want %d", len(updated.History), priorLen+2)
	}
	if updated.History[0].HumanQuestion != firstHuman {
		t.Error("earlier history entry was mutated")
	}
	if len(db.appended) != 2 {
		t.Errorf("append persisted %d entries, want exactly the new pair", len(db.appended))
	}
	if db.appended[0].HumanQuestion != "Turn two?" {
		t.Errorf("appended human turn = %+v", db.appended[0])
	}
}

func TestContinueQueryUnknownQueryIsNotFound(t *testing.T) {
	svc, _ := newTestService(newServiceDB(), "")

	_, _, _, err := svc.ContinueQuery(context.Background(), "missing", "Question?", "")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListUserQueriesValidatesPaging(t *testing.T) {
	svc, _ := newTestService(newServiceDB(), "")

	if _, err := svc.ListUserQueries(context.Background(), "u1", -1, 10); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("skip=-1 err = %v, want ErrValidation", err)
	}
	if _, err := svc.ListUserQueries(context.Background(), "u1", 0, 0); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("limit=0 err = %v, want ErrValidation", err)
	}
}
