package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/ipc/internal/domain/ipc/channel"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/ipc/internal/infrastructure/tracing"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Logging.Level = "error"
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.IPC.DefaultCapacity = 0

	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t, nil)

	w := serve(srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(tracing.TraceHeader))

	w = serve(srv, http.MethodPost, "/channels", `{"name":"events"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(srv, http.MethodPost, "/channels/1/messages", `{"receiver_id":2,"data":"hi"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = serve(srv, http.MethodGet, "/channels/1/messages?receiver=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":"hi"`)

	w = serve(srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ipc_messages_sent_total")
	assert.Contains(t, w.Body.String(), "ipc_http_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = serve(srv, http.MethodGet, "/metrics/json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"messages_sent":1`)
}

func TestServerRateLimit(t *testing.T) {
	srv := newTestServer(t, func(c *config.Config) {
		c.RateLimit.RequestsPerSecond = 1
		c.RateLimit.Burst = 1
	})

	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/health", "").Code)
	w := serve(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestShutdownClosesChannels(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "error"
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	_, err = srv.Service().CreateOptimizedChannel("a", channel.TypePointToPoint)
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Empty(t, srv.Service().ListChannels())
}
