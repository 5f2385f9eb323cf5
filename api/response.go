package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/conversation"
	"github.com/docent-ai/docent/internal/document"
	"github.com/docent-ai/docent/internal/embed"
	"github.com/docent-ai/docent/internal/index"
	"github.com/docent-ai/docent/internal/ingest"
	"github.com/docent-ai/docent/internal/prompt"
)

// writeJSON writes a JSON response with the given status code.
// Note: If encoding fails after WriteHeader is called, there's no way to
// notify the client since the status code is already sent. The error is
// logged for debugging but doesn't affect the response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeDomainError maps a pipeline error to an HTTP status and error
// code. Every error kind the pipeline distinguishes gets its own
// status so clients can act on the kind without parsing messages.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, answer.ErrEmptyQuestion),
		errors.Is(err, document.ErrUnsupportedFormat),
		errors.Is(err, document.ErrEmptyDocument),
		errors.Is(err, index.ErrDimensionMismatch),
		errors.Is(err, embed.ErrDimensionMismatch):
		return http.StatusBadRequest, "validation"

	case errors.Is(err, index.ErrDocumentNotFound),
		errors.Is(err, conversation.ErrConversationNotFound),
		errors.Is(err, prompt.ErrPromptNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, prompt.ErrDuplicateName):
		return http.StatusConflict, "duplicate_name"

	case errors.Is(err, index.ErrPartialDelete):
		return http.StatusMultiStatus, "partial_delete"

	case errors.Is(err, embed.ErrServiceTimeout),
		errors.Is(err, answer.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, "service_timeout"

	case errors.Is(err, embed.ErrEmbeddingService),
		errors.Is(err, document.ErrFetch),
		errors.Is(err, ingest.ErrNoDocuments):
		return http.StatusBadGateway, "upstream"

	default:
		return http.StatusInternalServerError, "internal"
	}
}
