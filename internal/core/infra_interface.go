package core

import (
	"context"

	"github.com/queryforge/queryforge/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateQueryEngine(ctx context.Context, engine *models.QueryEngine) error
	GetQueryEngineByID(ctx context.Context, id string) (*models.QueryEngine, error)
	FindQueryEngineByName(ctx context.Context, name string) (*models.QueryEngine, error)
	ListQueryEngines(ctx context.Context) ([]models.QueryEngine, error)
	UpdateQueryEngineStatus(ctx context.Context, id, status string) error
	// UpdateQueryEngine changes the mutable configuration of an engine:
	// its description and parameter map. Identity, corpus, and status are
	// not touched.
	UpdateQueryEngine(ctx context.Context, id, description string, params map[string]string) error
	SoftDeleteQueryEngine(ctx context.Context, id string) error
	// HardDeleteQueryEngine cascades to the engine's documents and chunks.
	// References are left in place: they denormalize chunk text and have an
	// independent lifecycle.
	HardDeleteQueryEngine(ctx context.Context, id string) error

	CreateQueryDocument(ctx context.Context, doc *models.QueryDocument) error
	ListQueryDocumentsByEngine(ctx context.Context, engineID string) ([]models.QueryDocument, error)

	InsertQueryChunks(ctx context.Context, chunks []models.QueryDocumentChunk) error
	// SearchEngineChunks returns the top-k chunks of an engine ranked by
	// vector distance to queryVec, each joined with its document URL.
	SearchEngineChunks(ctx context.Context, engineID string, queryVec []float32, limit int) ([]models.RetrievedChunk, error)

	CreateQueryReferences(ctx context.Context, refs []models.QueryReference) error
	CreateQueryResult(ctx context.Context, result *models.QueryResult) error

	CreateUserQuery(ctx context.Context, query *models.UserQuery) error
	GetUserQueryByID(ctx context.Context, id string) (*models.UserQuery, error)
	ListUserQueriesByUser(ctx context.Context, userID string, skip, limit int) ([]models.UserQuery, error)
	UpdateUserQueryTitle(ctx context.Context, id, title string) error
	// AppendUserQueryHistory applies one human/AI turn pair as a single
	// merge-update so racing continuations cannot drop each other's turns.
	AppendUserQueryHistory(ctx context.Context, id string, entries []models.HistoryEntry, response string) error
	SoftDeleteUserQuery(ctx context.Context, id string) error
	HardDeleteUserQuery(ctx context.Context, id string) error

	Close() error
}

// ObjectInfo describes one object found under a storage prefix.
type ObjectInfo struct {
	Name          string // object key, possibly nested
	PublicURL     string // display/source URL
	CanonicalPath string // canonical remote path, e.g. s3://bucket/key
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so AWS can be replaced with MinIO, GCP, etc. easily.
type ObjectClient interface {
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	Download(ctx context.Context, bucket, key, localPath string) error
}
