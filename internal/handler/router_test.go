package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anglenexus/nexus/internal/config"
	"github.com/anglenexus/nexus/internal/model/agent"
	aiService "github.com/anglenexus/nexus/internal/service/ai"
	chatService "github.com/anglenexus/nexus/internal/service/chat"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{CORSOrigins: "*"},
		Models: config.ModelsConfig{Default: "o3-mini", Allowed: []string{"o3-mini", "o1"}},
	}
	aiSvc, err := aiService.NewService(context.Background(), agent.NewMemoryStore(agent.Seed()), chatService.NewService(), nil, aiService.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return NewRouter(cfg, aiSvc, zerolog.Nop())
}

func TestRouterHealth(t *testing.T) {
	r := newTestRouter(t)

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "o3-mini", status["default_model"])
	assert.Equal(t, false, status["model_backend"])
}

func TestRouterWiresChatAndCORS(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/avvocato", strings.NewReader(`{"message":"hello"}`))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header().Get("X-Session-ID"))

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/api/chat/weaver", nil))
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/agents", nil))
	assert.Equal(t, http.StatusOK, resp.Code)
}
