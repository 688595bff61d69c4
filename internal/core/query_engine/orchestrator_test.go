package query_engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/core/errs"
	"github.com/queryforge/queryforge/internal/models"
)

type orchestratorDB struct {
	core.DbClient

	retrieved []models.RetrievedChunk
	refs      []models.QueryReference
	results   []*models.QueryResult
	searches  int
}

func (m *orchestratorDB) SearchEngineChunks(ctx context.Context, engineID string, queryVec []float32, limit int) ([]models.RetrievedChunk, error) {
	m.searches++
	return m.retrieved, nil
}

func (m *orchestratorDB) CreateQueryReferences(ctx context.Context, refs []models.QueryReference) error {
	m.refs = append(m.refs, refs...)
	return nil
}

func (m *orchestratorDB) CreateQueryResult(ctx context.Context, result *models.QueryResult) error {
	m.results = append(m.results, result)
	return nil
}

type recordingEmbedder struct {
	inputs []string
	fail   bool
}

func (r *recordingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	r.inputs = append(r.inputs, texts...)
	if r.fail {
		return nil, errors.New("embedder down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

type recordingLLM struct {
	models  []string
	prompts []string
	answer  string
}

func (r *recordingLLM) Generate(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	r.models = append(r.models, model)
	r.prompts = append(r.prompts, userPrompt)
	return r.answer, nil
}

func retrievedChunk(id, docID, docURL, text string) models.RetrievedChunk {
	return models.RetrievedChunk{
		QueryDocumentChunk: models.QueryDocumentChunk{ID: id, DocumentID: docID, Text: text},
		DocURL:             docURL,
	}
}

func testEngine() *models.QueryEngine {
	return &models.QueryEngine{ID: "eng-1", Name: "docs", LLMType: "gemini-1.5-flash", Status: models.EngineStatusActive}
}

func TestGenerateEmptyPromptRejectedBeforeBackends(t *testing.T) {
	db := &orchestratorDB{}
	emb := &recordingEmbedder{}
	o := NewOrchestrator(db, emb, &recordingLLM{}, 1024, 5)

	_, _, err := o.Generate(context.Background(), "u1", "   ", testEngine(), "", nil)
	if !errors.Is(err, errs.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if len(emb.inputs) != 0 || db.searches != 0 {
		t.Error("backends were called for an invalid prompt")
	}
}

func TestGenerateOversizedPromptRejectedBeforeBackends(t *testing.T) {
	db := &orchestratorDB{}
	emb := &recordingEmbedder{}
	o := NewOrchestrator(db, emb, &recordingLLM{}, 32, 5)

	prompt := strings.Repeat("x", 33)
	_, _, err := o.Generate(context.Background(), "u1", prompt, testEngine(), "", nil)
	if !errors.Is(err, errs.ErrPayloadTooLarge) {
		t.Errorf("err = %v, want ErrPayloadTooLarge", err)
	}
	if len(emb.inputs) != 0 || db.searches != 0 {
		t.Error("backends were called for an oversized prompt")
	}
}

func TestGenerateDenormalizesReferences(t *testing.T) {
	db := &orchestratorDB{
		retrieved: []models.RetrievedChunk{
			retrievedChunk("ch-1", "doc-1", "https://corpus/a.txt", "Grounding text one."),
			retrievedChunk("ch-2", "doc-2", "https://corpus/b.txt", "Grounding text two."),
		},
	}
	llm := &recordingLLM{answer: "The answer."}
	o := NewOrchestrator(db, &recordingEmbedder{}, llm, 1024, 5)

	result, refs, err := o.Generate(context.Background(), "u1", "What is it?", testEngine(), "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2", len(refs))
	}
	for i, ref := range refs {
		if ref.DocumentText != db.retrieved[i].Text {
			t.Errorf("ref %d text = %q, want chunk text copied in", i, ref.DocumentText)
		}
		if ref.DocumentURL != db.retrieved[i].DocURL {
			t.Errorf("ref %d url = %q, want %q", i, ref.DocumentURL, db.retrieved[i].DocURL)
		}
		if ref.ChunkID != db.retrieved[i].QueryDocumentChunk.ID {
			t.Errorf("ref %d chunk id = %q", i, ref.ChunkID)
		}
	}
	if result.Response != "The answer." {
		t.Errorf("response = %q", result.Response)
	}
	if len(result.QueryRefs) != 2 || result.QueryRefs[0] != refs[0].ID || result.QueryRefs[1] != refs[1].ID {
		t.Errorf("QueryRefs = %v, want the reference ids in order", result.QueryRefs)
	}
	if len(db.refs) != 2 || len(db.results) != 1 {
		t.Errorf("persisted %d refs and %d results, want 2 and 1", len(db.refs), len(db.results))
	}
	if got := llm.prompts[0]; !strings.Contains(got, "Grounding text one.") || !strings.Contains(got, "What is it?") {
		t.Errorf("generation prompt missing references or question:\n%s", got)
	}
}

func TestGenerateModelOverride(t *testing.T) {
	db := &orchestratorDB{}
	llm := &recordingLLM{answer: "ok"}
	o := NewOrchestrator(db, &recordingEmbedder{}, llm, 1024, 5)

	if _, _, err := o.Generate(context.Background(), "u1", "Question?", testEngine(), "", nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := o.Generate(context.Background(), "u1", "Question?", testEngine(), "gemini-1.5-pro", nil); err != nil {
		t.Fatal(err)
	}
	if llm.models[0] != "gemini-1.5-flash" || llm.models[1] != "gemini-1.5-pro" {
		t.Errorf("models = %v, want engine default then override", llm.models)
	}
}

func TestGenerateContinuationFoldsHistoryIntoRetrieval(t *testing.T) {
	db := &orchestratorDB{}
	emb := &recordingEmbedder{}
	llm := &recordingLLM{answer: "follow-up answer"}
	o := NewOrchestrator(db, emb, llm, 1024, 5)

	prior := &models.UserQuery{
		ID: "q-1",
		History: []models.HistoryEntry{
			{HumanQuestion: "What is the capital?"},
			{AIResponse: "The capital is Springfield."},
		},
	}

	if _, _, err := o.Generate(context.Background(), "u1", "And its population?", testEngine(), "", prior); err != nil {
		t.Fatal(err)
	}
	if len(emb.inputs) != 1 {
		t.Fatalf("embedder called %d times, want 1", len(emb.inputs))
	}
	embedded := emb.inputs[0]
	if !strings.Contains(embedded, "What is the capital?") ||
		!strings.Contains(embedded, "The capital is Springfield.") ||
		!strings.Contains(embedded, "And its population?") {
		t.Errorf("retrieval text missing history or new prompt:\n%s", embedded)
	}
	gen := llm.prompts[0]
	if !strings.Contains(gen, "User: What is the capital?") ||
		!strings.Contains(gen, "Assistant: The capital is Springfield.") {
		t.Errorf("generation prompt missing prior turns:\n%s", gen)
	}
}

func TestGenerateEmbedderFailureIsInternal(t *testing.T) {
	o := NewOrchestrator(&orchestratorDB{}, &recordingEmbedder{fail: true}, &recordingLLM{}, 1024, 5)

	_, _, err := o.Generate(context.Background(), "u1", "Question?", testEngine(), "", nil)
	if !errors.Is(err, errs.ErrInternal) {
		t.Errorf("err = %v, want ErrInternal", err)
	}
}
