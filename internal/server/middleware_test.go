package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/m3ueditor/internal/logging"
)

func TestRateLimitPerUser(t *testing.T) {
	env := newEnv(t, 2)
	_, alice := env.user(t, "alice")
	_, bob := env.user(t, "bob")

	for i := 0; i < 2; i++ {
		rec := env.do(t, http.MethodGet, "/api/v1/playlists", alice, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := env.do(t, http.MethodGet, "/api/v1/playlists", alice, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 429, decodeBody[APIError](t, rec).Status)

	rec = env.do(t, http.MethodGet, "/api/v1/playlists", bob, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "budgets are per user")

	rec = env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "ops routes are not limited")
}

func TestLimiterRefills(t *testing.T) {
	l := newLimiter(60, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 60; i++ {
		ok, _ := l.allow("ip:1.2.3.4")
		require.True(t, ok, i)
	}
	ok, wait := l.allow("ip:1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)

	now = now.Add(time.Second)
	ok, _ = l.allow("ip:1.2.3.4")
	assert.True(t, ok, "one token per second")

	now = now.Add(2 * time.Minute)
	l.allow("ip:5.6.7.8")
	assert.NotContains(t, l.buckets, "ip:1.2.3.4", "idle buckets are swept")
}

func TestCORSPreflight(t *testing.T) {
	env := newEnv(t, 0)
	rec := env.do(t, http.MethodOptions, "/api/v1/playlists", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovererWritesEnvelope(t *testing.T) {
	s := &Server{log: logging.Discard()}
	h := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status":500,"error":"Internal Server Error","message":"internal server error"}`, rec.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	env := newEnv(t, 0)
	rec := env.do(t, http.MethodGet, "/api/v1/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
