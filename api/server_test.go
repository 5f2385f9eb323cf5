package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docent-ai/docent/internal/log"
)

func newTestServer(t *testing.T, ready func(r *http.Request) error) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Answerer:      &fakeAnswerer{},
		Conversations: &fakeConversations{},
		Ingester:      &fakeIngester{},
		Prompts:       newFakePrompts(),
		Ready:         ready,
		Logger:        log.NewNop(),
	})
	require.NoError(t, err)
	return srv
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	assert.Error(t, err)
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServerReadiness(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		srv := newTestServer(t, func(*http.Request) error { return nil })

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("database down", func(t *testing.T) {
		srv := newTestServer(t, func(*http.Request) error { return errors.New("connection refused") })

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestServerUnknownRoute(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := chain(panicking, recoveryMiddleware(log.NewNop()), loggingMiddleware(log.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
