package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	middleware "github.com/queryforge/queryforge/internal/api/middlewares"
	"github.com/queryforge/queryforge/internal/core/errs"
	"github.com/queryforge/queryforge/internal/models"
	"github.com/queryforge/queryforge/internal/services"
)

// QueryHandler serves the query and conversation endpoints.
type QueryHandler struct {
	svc *services.QueryService
}

func NewQueryHandler(svc *services.QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type queryRequest struct {
	Prompt      string `json:"prompt"`
	LLMOverride string `json:"llm_type"`
}

type updateQueryRequest struct {
	Title string `json:"title"`
}

func queryPayload(q *models.UserQuery, result *models.QueryResult, refs []models.QueryReference) map[string]any {
	return map[string]any{
		"query_id":   q.ID,
		"response":   result.Response,
		"references": refs,
		"history":    q.History,
	}
}

// Run executes a first-turn query against an engine.
func (h *QueryHandler) Run(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.ErrValidation, "invalid request body"))
		return
	}

	engineID := chi.URLParam(r, "engineID")
	userQuery, result, refs, err := h.svc.Query(r.Context(), userID, engineID, req.Prompt, req.LLMOverride)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Query answered", queryPayload(userQuery, result, refs))
}

// Continue runs a follow-up turn on an existing conversation.
func (h *QueryHandler) Continue(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.ErrValidation, "invalid request body"))
		return
	}

	queryID := chi.URLParam(r, "queryID")
	userQuery, result, refs, err := h.svc.ContinueQuery(r.Context(), queryID, req.Prompt, req.LLMOverride)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Query answered", queryPayload(userQuery, result, refs))
}

// Get returns one conversation with its full history.
func (h *QueryHandler) Get(w http.ResponseWriter, r *http.Request) {
	queryID := chi.URLParam(r, "queryID")
	userQuery, err := h.svc.GetQuery(r.Context(), queryID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User query", map[string]any{"user_query": userQuery})
}

// ListForUser returns the caller's conversations, history elided.
func (h *QueryHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	skip := intQueryParam(r, "skip", 0)
	limit := intQueryParam(r, "limit", 10)

	queries, err := h.svc.ListUserQueries(r.Context(), userID, skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User queries", map[string]any{"user_queries": queries})
}

// Update renames a conversation.
func (h *QueryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.ErrValidation, "invalid request body"))
		return
	}

	queryID := chi.URLParam(r, "queryID")
	if err := h.svc.UpdateQueryTitle(r.Context(), queryID, req.Title); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User query updated", nil)
}

func (h *QueryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	queryID := chi.URLParam(r, "queryID")
	hard := r.URL.Query().Get("hard") == "true"

	if err := h.svc.DeleteQuery(r.Context(), queryID, hard); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "User query deleted", nil)
}

func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
