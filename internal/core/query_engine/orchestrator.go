package query_engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/core/errs"
	"github.com/queryforge/queryforge/internal/models"
)

const systemPrompt = "You are an assistant answering questions based only on the provided references from indexed documents. If the references do not contain the answer, say 'I cannot find this in the indexed documents.'"

// Orchestrator composes retrieval, reference resolution, and generation for
// one query turn. It persists the QueryResult and QueryReferences it
// creates; persisting the UserQuery and its history is the caller's
// responsibility, so retrieval and generation stay testable without a
// conversation store.
type Orchestrator struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	llm      core.LLMProvider

	maxPromptBytes int
	topK           int
}

func NewOrchestrator(db core.DbClient, embedder core.EmbeddingProvider, llm core.LLMProvider, maxPromptBytes, topK int) *Orchestrator {
	if maxPromptBytes <= 0 {
		maxPromptBytes = 1024
	}
	if topK <= 0 {
		topK = 5
	}
	return &Orchestrator{db: db, embedder: embedder, llm: llm, maxPromptBytes: maxPromptBytes, topK: topK}
}

// Generate answers one prompt against an engine. When prior is non-nil the
// prior conversation history is folded into both retrieval and generation
// context, so continuations never discard earlier grounding.
//
// All validation happens before any backend call; backend failures surface
// as a single internal error with no partial answer and no internal retry.
func (o *Orchestrator) Generate(ctx context.Context, userID, prompt string, engine *models.QueryEngine, llmOverride string, prior *models.UserQuery) (*models.QueryResult, []models.QueryReference, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, nil, errs.Wrap(errs.ErrValidation, "missing or empty prompt")
	}
	if len(prompt) > o.maxPromptBytes {
		return nil, nil, errs.Wrap(errs.ErrPayloadTooLarge, "prompt must be less than %d bytes", o.maxPromptBytes)
	}

	retrievalText := prompt
	if prior != nil {
		retrievalText = historyText(prior) + "\n" + prompt
	}

	vecs, err := o.embedder.EmbedTexts(ctx, []string{retrievalText})
	if err != nil || len(vecs) == 0 {
		return nil, nil, errs.Wrap(errs.ErrInternal, "embed query: %v", err)
	}

	retrieved, err := o.db.SearchEngineChunks(ctx, engine.ID, vecs[0], o.topK)
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrInternal, "retrieve chunks: %v", err)
	}
	log.Printf("orchestrator: engine %s retrieved %d chunks for user %s", engine.Name, len(retrieved), userID)

	// Denormalize each retrieved chunk into a reference now, so later chunk
	// deletion cannot invalidate this result.
	refs := make([]models.QueryReference, 0, len(retrieved))
	for _, rc := range retrieved {
		refs = append(refs, models.QueryReference{
			ID:           uuid.NewString(),
			EngineID:     engine.ID,
			EngineName:   engine.Name,
			DocumentID:   rc.DocumentID,
			DocumentURL:  rc.DocURL,
			ChunkID:      rc.QueryDocumentChunk.ID,
			DocumentText: rc.Text,
			CreatedAt:    time.Now(),
		})
	}

	model := engine.LLMType
	if llmOverride != "" {
		model = llmOverride
	}
	answer, err := o.llm.Generate(ctx, model, systemPrompt, buildUserPrompt(prompt, prior, refs))
	if err != nil {
		return nil, nil, errs.Wrap(errs.ErrInternal, "generate: %v", err)
	}

	if err := o.db.CreateQueryReferences(ctx, refs); err != nil {
		return nil, nil, errs.Wrap(errs.ErrInternal, "persist references: %v", err)
	}

	refIDs := make([]string, len(refs))
	for i := range refs {
		refIDs[i] = refs[i].ID
	}
	result := &models.QueryResult{
		ID:         uuid.NewString(),
		EngineID:   engine.ID,
		EngineName: engine.Name,
		QueryRefs:  refIDs,
		Response:   answer,
		CreatedAt:  time.Now(),
	}
	if err := o.db.CreateQueryResult(ctx, result); err != nil {
		return nil, nil, errs.Wrap(errs.ErrInternal, "persist result: %v", err)
	}

	return result, refs, nil
}

// historyText flattens prior turns for retrieval context.
func historyText(prior *models.UserQuery) string {
	var sb strings.Builder
	for _, e := range prior.History {
		sb.WriteString(e.Content())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// buildUserPrompt assembles references, optional prior turns, and the new
// question into the generation prompt.
func buildUserPrompt(prompt string, prior *models.UserQuery, refs []models.QueryReference) string {
	var sb strings.Builder
	if prior != nil && len(prior.History) > 0 {
		sb.WriteString("Conversation so far:\n")
		for _, e := range prior.History {
			if e.IsHuman() {
				fmt.Fprintf(&sb, "User: %s\n", e.HumanQuestion)
			} else if e.IsAI() {
				fmt.Fprintf(&sb, "Assistant: %s\n", e.AIResponse)
			}
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("References:\n")
	for _, ref := range refs {
		sb.WriteString(ref.DocumentText)
		sb.WriteString("\n---\n")
	}
	fmt.Fprintf(&sb, "\nQuestion: %s", prompt)
	return sb.String()
}
