package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"expense-coach/internal/chat"
	"expense-coach/internal/completion"
	"expense-coach/internal/handlers"
	"expense-coach/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type noopCompleter struct{}

func (noopCompleter) Complete(context.Context, string, []completion.Message) (string, error) {
	return "ok", nil
}

func TestSetupRouter(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err, "failed to create database")
	defer store.Close()

	svc := chat.NewService(store, noopCompleter{}, nil)
	h := handlers.NewHandlers(svc, store, "secret", "", nil)
	mux := setupRouter(h, zap.NewNop())

	tests := []struct {
		name       string
		method     string
		path       string
		headers    map[string]string
		wantStatus int
	}{
		{
			name:       "Health check",
			method:     http.MethodGet,
			path:       "/healthz",
			wantStatus: http.StatusOK,
		},
		{
			name:       "Chat requires auth",
			method:     http.MethodPost,
			path:       "/api/chat",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Messages require auth",
			method:     http.MethodGet,
			path:       "/api/messages",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "Expenses require auth",
			method:     http.MethodGet,
			path:       "/api/expenses",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "Preflight is answered without auth",
			method: http.MethodOptions,
			path:   "/api/chat",
			headers: map[string]string{
				"Origin":                         "http://localhost:5173",
				"Access-Control-Request-Method":  http.MethodPost,
				"Access-Control-Request-Headers": "authorization,content-type",
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "Unknown route",
			method:     http.MethodGet,
			path:       "/nope",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code,
				"%s %s returned unexpected status", tt.method, tt.path)
		})
	}
}

func TestSetupRouterCORSHeaders(t *testing.T) {
	h := handlers.NewHandlers(nil, nil, "secret", "", nil)
	mux := setupRouter(h, zap.NewNop())

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", http.NoBody)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
