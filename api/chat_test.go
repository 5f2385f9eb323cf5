package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docent-ai/docent/internal/answer"
	"github.com/docent-ai/docent/internal/conversation"
	"github.com/docent-ai/docent/internal/embed"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/retrieval"
)

type fakeAnswerer struct {
	answer answer.Answer
	err    error

	gotConversation uuid.UUID
	gotUserID       string
	gotQuestion     string
	gotOpts         retrieval.Options
}

func (f *fakeAnswerer) Synthesize(_ context.Context, conversationID uuid.UUID, userID, question string, opts retrieval.Options) (answer.Answer, error) {
	f.gotConversation = conversationID
	f.gotUserID = userID
	f.gotQuestion = question
	f.gotOpts = opts
	if f.err != nil {
		return answer.Answer{}, f.err
	}
	return f.answer, nil
}

type fakeConversations struct {
	conversations []conversation.Conversation
	turns         []conversation.Turn
	err           error
	deleted       []uuid.UUID
}

func (f *fakeConversations) Start(_ context.Context, userID, title string) (conversation.Conversation, error) {
	if f.err != nil {
		return conversation.Conversation{}, f.err
	}
	return conversation.Conversation{
		ID: uuid.New(), UserID: userID, Title: title,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}, nil
}

func (f *fakeConversations) List(_ context.Context, _ string) ([]conversation.Conversation, error) {
	return f.conversations, f.err
}

func (f *fakeConversations) History(_ context.Context, _ uuid.UUID) ([]conversation.Turn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.turns, nil
}

func (f *fakeConversations) Delete(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func chatMux(t *testing.T, answerer Answerer, conversations ConversationStore) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	NewChatHandler(answerer, conversations, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestChatHandler_StartConversation(t *testing.T) {
	mux := chatMux(t, &fakeAnswerer{}, &fakeConversations{})

	req := httptest.NewRequest(http.MethodPost, "/api/conversations",
		strings.NewReader(`{"user_id":"alice","title":"onboarding"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var conv conversation.Conversation
	require.NoError(t, json.NewDecoder(w.Body).Decode(&conv))
	assert.Equal(t, "alice", conv.UserID)
	assert.Equal(t, "onboarding", conv.Title)
	assert.NotEqual(t, uuid.Nil, conv.ID)
}

func TestChatHandler_StartConversationValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json}`},
		{"missing user_id", `{"title":"x"}`},
		{"title too long", `{"user_id":"alice","title":"` + strings.Repeat("x", MaxTitleLength+1) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := chatMux(t, &fakeAnswerer{}, &fakeConversations{})
			req := httptest.NewRequest(http.MethodPost, "/api/conversations", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestChatHandler_Chat(t *testing.T) {
	answerer := &fakeAnswerer{answer: answer.Answer{
		Text:       "Grounded answer.",
		References: []retrieval.Reference{{Title: "guide", Origin: "guide.md", Score: 0.88}},
		Turn:       conversation.Turn{ID: 7},
	}}
	mux := chatMux(t, answerer, &fakeConversations{})

	id := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/"+id.String(),
		strings.NewReader(`{"user_id":"alice","question":"How do I start?"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Grounded answer.", resp.Answer)
	assert.Equal(t, int64(7), resp.TurnID)
	require.Len(t, resp.References, 1)
	assert.Equal(t, "guide", resp.References[0].Title)
	assert.Equal(t, float32(0.88), resp.References[0].Score)

	assert.Equal(t, id, answerer.gotConversation)
	assert.Equal(t, "alice", answerer.gotUserID)
	assert.Equal(t, "How do I start?", answerer.gotQuestion)
	assert.Equal(t, retrieval.Options{}, answerer.gotOpts)
}

func TestChatHandler_ChatRetrievalOverrides(t *testing.T) {
	answerer := &fakeAnswerer{answer: answer.Answer{Text: "ok"}}
	mux := chatMux(t, answerer, &fakeConversations{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/"+uuid.NewString(),
		strings.NewReader(`{"user_id":"alice","question":"q","top_k":10,"score_threshold":0.5}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, answerer.gotOpts.TopK)
	require.NotNil(t, answerer.gotOpts.Threshold)
	assert.Equal(t, float32(0.5), *answerer.gotOpts.Threshold)
}

func TestChatHandler_ChatTopKMessageMatchesContract(t *testing.T) {
	mux := chatMux(t, &fakeAnswerer{}, &fakeConversations{})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/"+uuid.NewString(),
		strings.NewReader(`{"user_id":"a","question":"q","top_k":101}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	// Zero means "use the configured default" and is accepted, so the
	// rejection message must state the 0-100 contract.
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Contains(t, resp.Message, "between 0 and 100")
}

func TestChatHandler_ChatOverrideValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"top_k too large", `{"user_id":"a","question":"q","top_k":500}`},
		{"negative top_k", `{"user_id":"a","question":"q","top_k":-1}`},
		{"threshold above one", `{"user_id":"a","question":"q","score_threshold":1.5}`},
		{"negative threshold", `{"user_id":"a","question":"q","score_threshold":-0.1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := chatMux(t, &fakeAnswerer{}, &fakeConversations{})
			req := httptest.NewRequest(http.MethodPost, "/api/chat/"+uuid.NewString(), strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestChatHandler_ChatErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty question", answer.ErrEmptyQuestion, http.StatusBadRequest},
		{"missing conversation", conversation.ErrConversationNotFound, http.StatusNotFound},
		{"embedding outage", embed.ErrEmbeddingService, http.StatusBadGateway},
		{"embedding timeout", embed.ErrServiceTimeout, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := chatMux(t, &fakeAnswerer{err: tt.err}, &fakeConversations{})
			req := httptest.NewRequest(http.MethodPost, "/api/chat/"+uuid.NewString(),
				strings.NewReader(`{"user_id":"alice","question":"hi"}`))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestChatHandler_ChatInvalidConversationID(t *testing.T) {
	mux := chatMux(t, &fakeAnswerer{}, &fakeConversations{})
	req := httptest.NewRequest(http.MethodPost, "/api/chat/not-a-uuid",
		strings.NewReader(`{"user_id":"alice","question":"hi"}`))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_History(t *testing.T) {
	id := uuid.New()
	conversations := &fakeConversations{turns: []conversation.Turn{
		{ID: 1, ConversationID: id, Question: "q1", Answer: "a1"},
		{ID: 2, ConversationID: id, Question: "q2", Answer: "a2"},
	}}
	mux := chatMux(t, &fakeAnswerer{}, conversations)

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+id.String()+"/history", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Turns []conversation.Turn `json:"turns"`
		Total int                 `json:"total"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "q1", resp.Turns[0].Question)
}

func TestChatHandler_HistoryNotFound(t *testing.T) {
	mux := chatMux(t, &fakeAnswerer{}, &fakeConversations{err: conversation.ErrConversationNotFound})
	req := httptest.NewRequest(http.MethodGet, "/api/conversations/"+uuid.NewString()+"/history", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatHandler_ListConversationsRequiresUserID(t *testing.T) {
	mux := chatMux(t, &fakeAnswerer{}, &fakeConversations{})
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_DeleteConversation(t *testing.T) {
	conversations := &fakeConversations{}
	mux := chatMux(t, &fakeAnswerer{}, conversations)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodDelete, "/api/conversations/"+id.String(), nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, conversations.deleted, 1)
	assert.Equal(t, id, conversations.deleted[0])
}
