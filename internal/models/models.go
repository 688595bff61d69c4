package models

import (
	"time"
)

// Query engine types.
const (
	EngineTypeVectorSearch     = "qe_vector_search"
	EngineTypeLLMService       = "qe_llm_service"
	EngineTypeIntegratedSearch = "qe_integrated_search"
)

// Query engine lifecycle states. An engine is created "building" when a
// build job is accepted and becomes "active" once at least one chunk has
// been persisted.
const (
	EngineStatusBuilding = "building"
	EngineStatusActive   = "active"
	EngineStatusFailed   = "failed"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// QueryEngine is a named index over one document corpus.
// Name is unique among non-deleted engines.
type QueryEngine struct {
	ID             string            `db:"id" json:"id"`
	Name           string            `db:"name" json:"name"`
	EngineType     string            `db:"engine_type" json:"engine_type"`
	Description    string            `db:"description" json:"description"`
	LLMType        string            `db:"llm_type" json:"llm_type"`
	EmbeddingType  string            `db:"embedding_type" json:"embedding_type"`
	VectorStore    string            `db:"vector_store" json:"vector_store"`
	CreatedBy      string            `db:"created_by" json:"created_by"`
	IsPublic       bool              `db:"is_public" json:"is_public"`
	DocURL         string            `db:"doc_url" json:"doc_url"`
	ParentEngineID string            `db:"parent_engine_id" json:"parent_engine_id,omitempty"`
	Params         map[string]string `db:"params" json:"params"`
	Status         string            `db:"status" json:"status"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time        `db:"deleted_at" json:"-"`
}

// QueryDocument is one ingested source file belonging to exactly one engine.
// (EngineID, DocURL) is unique among non-deleted documents.
type QueryDocument struct {
	ID         string    `db:"id" json:"id"`
	EngineID   string    `db:"engine_id" json:"engine_id"`
	DocURL     string    `db:"doc_url" json:"doc_url"`
	IndexFile  string    `db:"index_file" json:"index_file,omitempty"`
	IndexStart int       `db:"index_start" json:"index_start"`
	IndexEnd   int       `db:"index_end" json:"index_end"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// QueryDocumentChunk is one retrievable unit of text. Index is contiguous
// from 0 within an engine at the time of a completed build. Chunks are never
// mutated after creation.
type QueryDocumentChunk struct {
	ID         string    `db:"id" json:"id"`
	EngineID   string    `db:"engine_id" json:"engine_id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Index      int       `db:"chunk_index" json:"index"`
	Text       string    `db:"text" json:"text"`
	CleanText  string    `db:"clean_text" json:"clean_text"`
	Sentences  []string  `db:"sentences" json:"sentences,omitempty"`
	Embedding  []float32 `db:"embedding" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RetrievedChunk is a chunk returned from vector search together with the
// URL of its owning document, so references can be resolved without a
// second lookup.
type RetrievedChunk struct {
	QueryDocumentChunk
	DocURL string `json:"doc_url"`
}

// QueryReference points from a query result back to the exact chunk of text
// that grounded part of the answer. The chunk text is denormalized so the
// reference stays valid if the chunk is later deleted.
type QueryReference struct {
	ID           string    `db:"id" json:"id"`
	EngineID     string    `db:"engine_id" json:"engine_id"`
	EngineName   string    `db:"engine_name" json:"engine_name"`
	DocumentID   string    `db:"document_id" json:"document_id"`
	DocumentURL  string    `db:"document_url" json:"document_url"`
	ChunkID      string    `db:"chunk_id" json:"chunk_id,omitempty"`
	DocumentText string    `db:"document_text" json:"document_text"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// QueryResult is the generated answer for one retrieval call, with the
// ordered ids of the references used to produce it.
type QueryResult struct {
	ID         string    `db:"id" json:"id"`
	EngineID   string    `db:"engine_id" json:"engine_id"`
	EngineName string    `db:"engine_name" json:"engine_name"`
	QueryRefs  []string  `db:"query_refs" json:"query_refs"`
	Response   string    `db:"response" json:"response"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// HistoryEntry is one turn in a conversation. Entries alternate: a human
// entry carries only HumanQuestion, an AI entry carries AIResponse plus the
// references that grounded it.
type HistoryEntry struct {
	HumanQuestion string           `json:"HumanQuestion,omitempty"`
	AIResponse    string           `json:"AIResponse,omitempty"`
	AIReferences  []QueryReference `json:"AIReferences,omitempty"`
}

// IsHuman reports whether the entry is a human turn.
func (e HistoryEntry) IsHuman() bool { return e.HumanQuestion != "" }

// IsAI reports whether the entry is an AI turn.
func (e HistoryEntry) IsAI() bool { return e.AIResponse != "" }

// Content returns the text of the entry regardless of turn kind.
func (e HistoryEntry) Content() string {
	if e.IsHuman() {
		return e.HumanQuestion
	}
	return e.AIResponse
}

// UserQuery is one conversation thread against an engine. History is an
// append-only log of alternating human/AI turn pairs.
type UserQuery struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Title     string         `db:"title" json:"title,omitempty"`
	EngineID  string         `db:"engine_id" json:"engine_id"`
	Prompt    string         `db:"prompt" json:"prompt"`
	Response  string         `db:"response" json:"response"`
	History   []HistoryEntry `db:"history" json:"history"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
	DeletedAt *time.Time     `db:"deleted_at" json:"-"`
}
