package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/queryforge/queryforge/internal/config"
	"github.com/queryforge/queryforge/internal/core"
	"github.com/queryforge/queryforge/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()), COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Query engines

func (c *DatabaseClient) CreateQueryEngine(ctx context.Context, engine *models.QueryEngine) error {
	if engine == nil {
		return errors.New("nil engine")
	}
	params, err := json.Marshal(engine.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	const q = `
		INSERT INTO query_engines
			(id, name, engine_type, description, llm_type, embedding_type, vector_store,
			 created_by, is_public, doc_url, parent_engine_id, params, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid, $12, $13,
			 COALESCE($14, now()), COALESCE($15, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		engine.ID, engine.Name, engine.EngineType, engine.Description, engine.LLMType,
		engine.EmbeddingType, engine.VectorStore, engine.CreatedBy, engine.IsPublic,
		engine.DocURL, engine.ParentEngineID, params, engine.Status,
		engine.CreatedAt, engine.UpdatedAt)
	return err
}

const engineColumns = `
	id, name, engine_type, description, llm_type, embedding_type, vector_store,
	created_by, is_public, doc_url, COALESCE(parent_engine_id::text, ''), params, status,
	created_at, updated_at
`

func scanEngine(row interface{ Scan(...any) error }) (*models.QueryEngine, error) {
	var e models.QueryEngine
	var params []byte
	err := row.Scan(
		&e.ID, &e.Name, &e.EngineType, &e.Description, &e.LLMType, &e.EmbeddingType,
		&e.VectorStore, &e.CreatedBy, &e.IsPublic, &e.DocURL, &e.ParentEngineID,
		&params, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &e.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	return &e, nil
}

func (c *DatabaseClient) GetQueryEngineByID(ctx context.Context, id string) (*models.QueryEngine, error) {
	q := `SELECT ` + engineColumns + ` FROM query_engines WHERE id = $1 AND deleted_at IS NULL`
	e, err := scanEngine(c.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (c *DatabaseClient) FindQueryEngineByName(ctx context.Context, name string) (*models.QueryEngine, error) {
	q := `SELECT ` + engineColumns + ` FROM query_engines WHERE name = $1 AND deleted_at IS NULL`
	e, err := scanEngine(c.db.QueryRowContext(ctx, q, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

func (c *DatabaseClient) ListQueryEngines(ctx context.Context) ([]models.QueryEngine, error) {
	q := `SELECT ` + engineColumns + ` FROM query_engines WHERE deleted_at IS NULL ORDER BY created_at DESC`
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QueryEngine
	for rows.Next() {
		e, err := scanEngine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateQueryEngineStatus(ctx context.Context, id, status string) error {
	const q = `
		UPDATE query_engines SET status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("engine not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) UpdateQueryEngine(ctx context.Context, id, description string, params map[string]string) error {
	p, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	const q = `
		UPDATE query_engines SET description = $2, params = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id, description, p)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("engine not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) SoftDeleteQueryEngine(ctx context.Context, id string) error {
	const q = `
		UPDATE query_engines SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}

// HardDeleteQueryEngine removes the engine row; documents and chunks go with
// it via ON DELETE CASCADE. References are denormalized and survive.
func (c *DatabaseClient) HardDeleteQueryEngine(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM query_engines WHERE id = $1`, id)
	return err
}

// Query documents

func (c *DatabaseClient) CreateQueryDocument(ctx context.Context, doc *models.QueryDocument) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO query_documents (id, engine_id, doc_url, index_file, index_start, index_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.EngineID, doc.DocURL, doc.IndexFile, doc.IndexStart, doc.IndexEnd, doc.CreatedAt)
	return err
}

func (c *DatabaseClient) ListQueryDocumentsByEngine(ctx context.Context, engineID string) ([]models.QueryDocument, error) {
	const q = `
		SELECT id, engine_id, doc_url, index_file, index_start, index_end, created_at
		FROM query_documents
		WHERE engine_id = $1
		ORDER BY index_start ASC
	`
	rows, err := c.db.QueryContext(ctx, q, engineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.QueryDocument
	for rows.Next() {
		var d models.QueryDocument
		if err := rows.Scan(&d.ID, &d.EngineID, &d.DocURL, &d.IndexFile, &d.IndexStart, &d.IndexEnd, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Chunks

// InsertQueryChunks inserts chunks in a single transaction.
func (c *DatabaseClient) InsertQueryChunks(ctx context.Context, chunks []models.QueryDocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO query_document_chunks
			(id, engine_id, document_id, chunk_index, text, clean_text, sentences, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		sentences, err := json.Marshal(ch.Sentences)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("marshal sentences: %w", err)
		}
		vec := pgvector.NewVector(ch.Embedding)

		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.EngineID, ch.DocumentID, ch.Index, ch.Text, ch.CleanText, sentences, vec, ch.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// SearchEngineChunks finds the top-k chunks of an engine by vector distance,
// joined with each chunk's document URL.
func (c *DatabaseClient) SearchEngineChunks(ctx context.Context, engineID string, queryVec []float32, limit int) ([]models.RetrievedChunk, error) {
	const q = `
		SELECT ch.id, ch.engine_id, ch.document_id, ch.chunk_index, ch.text, ch.clean_text, d.doc_url
		FROM query_document_chunks ch
		JOIN query_documents d ON d.id = ch.document_id
		WHERE ch.engine_id = $1
		ORDER BY ch.embedding <-> $2
		LIMIT $3
	`
	vec := pgvector.NewVector(queryVec)
	rows, err := c.db.QueryContext(ctx, q, engineID, vec, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RetrievedChunk
	for rows.Next() {
		var rc models.RetrievedChunk
		if err := rows.Scan(&rc.ID, &rc.EngineID, &rc.DocumentID, &rc.Index, &rc.Text, &rc.CleanText, &rc.DocURL); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// References and results

func (c *DatabaseClient) CreateQueryReferences(ctx context.Context, refs []models.QueryReference) error {
	if len(refs) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO query_references
			(id, engine_id, engine_name, document_id, document_url, chunk_id, document_text, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, $7, COALESCE($8, now()))
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range refs {
		r := &refs[i]
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.EngineID, r.EngineName, r.DocumentID, r.DocumentURL, r.ChunkID, r.DocumentText, r.CreatedAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (c *DatabaseClient) CreateQueryResult(ctx context.Context, result *models.QueryResult) error {
	if result == nil {
		return errors.New("nil result")
	}
	refIDs, err := json.Marshal(result.QueryRefs)
	if err != nil {
		return fmt.Errorf("marshal refs: %w", err)
	}
	const q = `
		INSERT INTO query_results (id, engine_id, engine_name, query_refs, response, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		result.ID, result.EngineID, result.EngineName, refIDs, result.Response, result.CreatedAt)
	return err
}

// User queries

func (c *DatabaseClient) CreateUserQuery(ctx context.Context, query *models.UserQuery) error {
	if query == nil {
		return errors.New("nil query")
	}
	history, err := json.Marshal(query.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	const q = `
		INSERT INTO user_queries (id, user_id, title, engine_id, prompt, response, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), COALESCE($9, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		query.ID, query.UserID, query.Title, query.EngineID, query.Prompt, query.Response,
		history, query.CreatedAt, query.UpdatedAt)
	return err
}

func (c *DatabaseClient) GetUserQueryByID(ctx context.Context, id string) (*models.UserQuery, error) {
	const q = `
		SELECT id, user_id, title, engine_id, prompt, response, history, created_at, updated_at
		FROM user_queries
		WHERE id = $1 AND deleted_at IS NULL
	`
	var uq models.UserQuery
	var history []byte
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&uq.ID, &uq.UserID, &uq.Title, &uq.EngineID, &uq.Prompt, &uq.Response,
		&history, &uq.CreatedAt, &uq.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &uq.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return &uq, nil
}

func (c *DatabaseClient) ListUserQueriesByUser(ctx context.Context, userID string, skip, limit int) ([]models.UserQuery, error) {
	const q = `
		SELECT id, user_id, title, engine_id, prompt, response, created_at, updated_at
		FROM user_queries
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// History is elided here to slim the listing payload; fetch a single
	// query to get the full conversation.
	var out []models.UserQuery
	for rows.Next() {
		var uq models.UserQuery
		if err := rows.Scan(&uq.ID, &uq.UserID, &uq.Title, &uq.EngineID, &uq.Prompt, &uq.Response, &uq.CreatedAt, &uq.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, uq)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateUserQueryTitle(ctx context.Context, id, title string) error {
	const q = `
		UPDATE user_queries SET title = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id, title)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user query not found: %s", id)
	}
	return nil
}

// AppendUserQueryHistory appends a turn pair and updates the latest response
// in one statement, so concurrent continuations cannot drop each other's
// appended turns.
func (c *DatabaseClient) AppendUserQueryHistory(ctx context.Context, id string, entries []models.HistoryEntry, response string) error {
	tail, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal history entries: %w", err)
	}
	const q = `
		UPDATE user_queries
		SET history = history || $2::jsonb, response = $3, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := c.db.ExecContext(ctx, q, id, tail, response)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("user query not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) SoftDeleteUserQuery(ctx context.Context, id string) error {
	const q = `
		UPDATE user_queries SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}

func (c *DatabaseClient) HardDeleteUserQuery(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM user_queries WHERE id = $1`, id)
	return err
}
