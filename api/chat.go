package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/conversation"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/retrieval"
)

// Chat request validation constants.
const (
	MaxQuestionLength = 10000
	MaxTitleLength    = 200
	MaxUserIDLength   = 100
	MaxTopK           = 100
)

// Answerer produces an answer for a conversation turn.
type Answerer interface {
	Synthesize(ctx context.Context, conversationID uuid.UUID, userID, question string, opts retrieval.Options) (answer.Answer, error)
}

// ConversationStore is the conversation surface the handlers depend on.
type ConversationStore interface {
	Start(ctx context.Context, userID, title string) (conversation.Conversation, error)
	List(ctx context.Context, userID string) ([]conversation.Conversation, error)
	History(ctx context.Context, id uuid.UUID) ([]conversation.Turn, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChatHandler handles conversation and chat endpoints.
type ChatHandler struct {
	answerer      Answerer
	conversations ConversationStore
	logger        log.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(answerer Answerer, conversations ConversationStore, logger log.Logger) *ChatHandler {
	return &ChatHandler{answerer: answerer, conversations: conversations, logger: logger}
}

// RegisterRoutes registers chat and conversation routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/conversations", h.startConversation)
	mux.HandleFunc("GET /api/conversations", h.listConversations)
	mux.HandleFunc("GET /api/conversations/{id}/history", h.history)
	mux.HandleFunc("DELETE /api/conversations/{id}", h.deleteConversation)
	mux.HandleFunc("POST /api/chat/{id}", h.chat)
}

// StartConversationRequest is the request body for starting a conversation.
type StartConversationRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

func (h *ChatHandler) startConversation(w http.ResponseWriter, r *http.Request) {
	var req StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if req.UserID == "" || len(req.UserID) > MaxUserIDLength {
		writeError(w, http.StatusBadRequest, "validation", "user_id is required (max 100 characters)")
		return
	}
	if len(req.Title) > MaxTitleLength {
		writeError(w, http.StatusBadRequest, "validation", "title too long (max 200 characters)")
		return
	}

	conv, err := h.conversations.Start(r.Context(), req.UserID, req.Title)
	if err != nil {
		h.logger.Error("failed to start conversation", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (h *ChatHandler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation", "user_id query parameter is required")
		return
	}

	convs, err := h.conversations.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": convs,
		"total":         len(convs),
	})
}

func (h *ChatHandler) history(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid conversation id")
		return
	}

	turns, err := h.conversations.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"turns":           turns,
		"total":           len(turns),
	})
}

func (h *ChatHandler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid conversation id")
		return
	}

	if err := h.conversations.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// ChatRequest is the request body for asking a question. TopK and
// ScoreThreshold override the configured retrieval policy for this
// question only; omitted fields keep the defaults.
type ChatRequest struct {
	UserID         string   `json:"user_id"`
	Question       string   `json:"question"`
	TopK           int      `json:"top_k,omitempty"`
	ScoreThreshold *float32 `json:"score_threshold,omitempty"`
}

// ChatResponse is the response body for a chat turn.
type ChatResponse struct {
	Answer     string                `json:"answer"`
	References []retrieval.Reference `json:"references,omitempty"`
	TurnID     int64                 `json:"turn_id"`
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid conversation id")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation", "invalid request body")
		return
	}
	if req.UserID == "" || len(req.UserID) > MaxUserIDLength {
		writeError(w, http.StatusBadRequest, "validation", "user_id is required (max 100 characters)")
		return
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "validation", "question too long (max 10000 characters)")
		return
	}
	if req.TopK < 0 || req.TopK > MaxTopK {
		writeError(w, http.StatusBadRequest, "validation", "top_k must be between 0 and 100 (0 uses the configured default)")
		return
	}
	if req.ScoreThreshold != nil && (*req.ScoreThreshold < 0 || *req.ScoreThreshold > 1) {
		writeError(w, http.StatusBadRequest, "validation", "score_threshold must be between 0.0 and 1.0")
		return
	}

	opts := retrieval.Options{TopK: req.TopK, Threshold: req.ScoreThreshold}
	ans, err := h.answerer.Synthesize(r.Context(), id, req.UserID, req.Question, opts)
	if err != nil {
		h.logger.Error("failed to answer question", "conversation_id", id, "error", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:     ans.Text,
		References: ans.References,
		TurnID:     ans.Turn.ID,
	})
}
