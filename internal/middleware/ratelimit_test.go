package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	for _, cfg := range []RateLimitConfig{{}, {Enabled: true, RPS: 0, Burst: 5}} {
		handler := RateLimitMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		for i := 0; i < 10; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	}
}

func TestRateLimitMiddleware_BurstExceeded(t *testing.T) {
	handler := RateLimitMiddleware(RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 2})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	serve := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
		return rec
	}
	assert.Equal(t, http.StatusOK, serve().Code)
	assert.Equal(t, http.StatusOK, serve().Code)

	rec := serve()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())
}

func TestTokenBucket_Refills(t *testing.T) {
	now := time.Unix(0, 0)
	bucket := newTokenBucket(2, 2, func() time.Time { return now })

	assert.True(t, bucket.take())
	assert.True(t, bucket.take())
	assert.False(t, bucket.take())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, bucket.take())
	assert.False(t, bucket.take())

	now = now.Add(time.Hour)
	assert.True(t, bucket.take())
	assert.True(t, bucket.take())
	assert.False(t, bucket.take())
}
