package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	middleware "github.com/queryforge/queryforge/internal/api/middlewares"
	"github.com/queryforge/queryforge/internal/core/errs"
	"github.com/queryforge/queryforge/internal/services"
)

// EngineHandler serves the query-engine management endpoints.
type EngineHandler struct {
	svc *services.QueryService
}

func NewEngineHandler(svc *services.QueryService) *EngineHandler {
	return &EngineHandler{svc: svc}
}

// Create schedules an asynchronous engine build and returns immediately.
func (h *EngineHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req services.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.ErrValidation, "invalid request body"))
		return
	}

	engine, err := h.svc.BuildEngine(r.Context(), userID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, "Query engine build started", map[string]any{
		"id":     engine.ID,
		"name":   engine.Name,
		"status": engine.Status,
	})
}

func (h *EngineHandler) List(w http.ResponseWriter, r *http.Request) {
	engines, err := h.svc.ListEngines(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Query engines", map[string]any{"query_engines": engines})
}

// URLs returns the source URLs of the documents indexed by an engine.
func (h *EngineHandler) URLs(w http.ResponseWriter, r *http.Request) {
	engineID := chi.URLParam(r, "engineID")
	urls, err := h.svc.EngineURLs(r.Context(), engineID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Engine document URLs", map[string]any{"urls": urls})
}

// VectorStores lists the retrieval backends a build request may name.
func (h *EngineHandler) VectorStores(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "Supported vector stores", map[string]any{
		"vector_stores": h.svc.SupportedVectorStores(),
	})
}

type updateEngineRequest struct {
	Description string            `json:"description"`
	Params      map[string]string `json:"params"`
}

// Update changes an engine's description and parameter map.
func (h *EngineHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateEngineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errs.Wrap(errs.ErrValidation, "invalid request body"))
		return
	}

	engineID := chi.URLParam(r, "engineID")
	if err := h.svc.UpdateEngine(r.Context(), engineID, req.Description, req.Params); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Query engine updated", nil)
}

func (h *EngineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	engineID := chi.URLParam(r, "engineID")
	hard := r.URL.Query().Get("hard") == "true"

	if err := h.svc.DeleteEngine(r.Context(), engineID, hard); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Query engine deleted", nil)
}
