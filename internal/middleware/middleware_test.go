package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/iou-backend/internal/auth"
)

func echoClient() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := ClientFrom(r.Context())
		_, _ = w.Write([]byte(c.Method + ":" + c.ID))
	})
}

func TestAuth(t *testing.T) {
	hash, err := auth.HashToken("bot-secret")
	require.NoError(t, err)
	tm := auth.NewTokenManager("iou-test", "a", "r", time.Minute, time.Hour)
	access, refresh, _, err := tm.GeneratePair("bot-1")
	require.NoError(t, err)

	h := NewAuthMiddleware(tm, hash, "prod").Auth(echoClient())

	tests := []struct {
		name   string
		header map[string]string
		status int
		body   string
	}{
		{"x-token", map[string]string{"X-Token": "bot-secret"}, http.StatusOK, "token:bot"},
		{"bad x-token", map[string]string{"X-Token": "nope"}, http.StatusUnauthorized, ""},
		{"bearer", map[string]string{"Authorization": "Bearer " + access}, http.StatusOK, "jwt:bot-1"},
		{"refresh as access", map[string]string{"Authorization": "Bearer " + refresh}, http.StatusUnauthorized, ""},
		{"nothing", nil, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestAuthDevWithoutHash(t *testing.T) {
	tm := auth.NewTokenManager("iou-test", "a", "r", time.Minute, time.Hour)
	h := NewAuthMiddleware(tm, "", "dev").Auth(echoClient())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev:dev", rec.Body.String())

	// prod never falls open
	h = NewAuthMiddleware(tm, "", "prod").Auth(echoClient())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Token", "anything")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLimiter(t *testing.T) {
	now := time.Unix(0, 0)
	l := &limiter{rate: 2, burst: 2, buckets: map[string]*tokenBucket{}, now: func() time.Time { return now }}

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "buckets are per host")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
}

func TestRateLimitResponds429(t *testing.T) {
	h := RateLimit(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	codes := make([]int, 2)
	for i := range codes {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = rec.Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "abc", seen)
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
