package routers

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xenn00/conference-system/internal/websocket"
	"github.com/xenn00/conference-system/state"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	appState := &state.AppState{JwtSecret: &state.JwtSecret{Public: &key.PublicKey}}
	hub := websocket.NewHub()
	t.Cleanup(hub.Close)

	return NewRouter(appState, Deps{
		Hub:       hub,
		WebSocket: websocket.NewWebSocketHandler(hub, websocket.NewRelay(hub, nil, nil), websocket.JWTWebSocketAuth(&key.PublicKey, nil)),
	})
}

func TestRouter_PublicEndpoints(t *testing.T) {
	r := newTestRouter(t)

	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/conferences"},
		{http.MethodPost, "/api/v1/conferences/abc/end"},
		{http.MethodGet, "/api/v1/hub/stats"},
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestRouter_WebSocketRejectsMissingToken(t *testing.T) {
	r := newTestRouter(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
