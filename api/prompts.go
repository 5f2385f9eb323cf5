package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/prompt"
)

// Prompt validation constants.
const (
	MaxPromptNameLength = 100
	MaxPromptTextLength = 10000
)

// PromptStore is the prompt surface the handlers depend on.
type PromptStore interface {
	Create(ctx context.Context, name, text, createdBy string) (prompt.Prompt, error)
	Get(ctx context.Context, id int64) (prompt.Prompt, error)
	List(ctx context.Context) ([]prompt.Prompt, error)
	Update(ctx context.Context, id int64, name, text, updatedBy string) (prompt.Prompt, error)
	Delete(ctx context.Context, id int64) error
	Activate(ctx context.Context, id int64, updatedBy string) error
	Deactivate(ctx context.Context, id int64, updatedBy string) error
}

// PromptHandler handles prompt management endpoints.
type PromptHandler struct {
	store  PromptStore
	logger log.Logger
}

// NewPromptHandler creates a new prompt handler.
func NewPromptHandler(store PromptStore, logger log.Logger) *PromptHandler {
	return &PromptHandler{store: store, logger: logger}
}

// RegisterRoutes registers prompt routes on the given mux.
func (h *PromptHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/prompts", h.list)
	mux.HandleFunc("POST /api/prompts", h.create)
	mux.HandleFunc("GET /api/prompts/{id}", h.get)
	mux.HandleFunc("PUT /api/prompts/{id}", h.update)
	mux.HandleFunc("DELETE /api/prompts/{id}", h.delete)
	mux.HandleFunc("POST /api/prompts/{id}/activate", h.activate)
	mux.HandleFunc("POST /api/prompts/{id}/deactivate", h.deactivate)
}

// PromptRequest is the request body for creating or updating a prompt.
type PromptRequest struct {
	Name   string `json:"name"`
	Text   string `json:"text"`
	Author string `json:"author"`
}

func (req *PromptRequest) validate() string {
	if req.Name == "" || len(req.Name) > MaxPromptNameLength {
		return "name is required (max 100 characters)"
	}
	if req.Text == "" || len(req.Text) > MaxPromptTextLength {
		return "text is required (max 10000 characters)"
	}
	return ""
}

func promptID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *PromptHandler) list(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list prompts", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prompts": prompts,
		"total":   len(prompts),
	})
}

func (h *PromptHandler) create(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "validation", msg)
		return
	}

	p, err := h.store.Create(r.Context(), req.Name, req.Text, req.Author)
	if err != nil {
		h.logger.Error("failed to create prompt", "name", req.Name, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PromptHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation", "invalid prompt id")
		return
	}

	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PromptHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation", "invalid prompt id")
		return
	}

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "validation", msg)
		return
	}

	p, err := h.store.Update(r.Context(), id, req.Name, req.Text, req.Author)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PromptHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := promptID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation", "invalid prompt id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ActivateRequest is the request body for activation state changes.
type ActivateRequest struct {
	Author string `json:"author"`
}

func (h *PromptHandler) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.store.Activate)
}

func (h *PromptHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, h.store.Deactivate)
}

func (h *PromptHandler) setActive(w http.ResponseWriter, r *http.Request, op func(context.Context, int64, string) error) {
	id, ok := promptID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "validation", "invalid prompt id")
		return
	}

	// Body is optional: an empty POST activates with no author recorded.
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}

	if err := op(r.Context(), id, req.Author); err != nil {
		writeDomainError(w, err)
		return
	}

	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
