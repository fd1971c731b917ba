package httpmiddleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketRefills(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return clock }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "a")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok, "keys have separate buckets")

	clock = clock.Add(2 * time.Second)
	ok, _ = l.Allow(ctx, "a")
	assert.True(t, ok)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("redis down")
}

type denyAll struct{}

func (denyAll) Allow(context.Context, string) (bool, error) { return false, nil }

func TestFallbackUsesSecondaryOnError(t *testing.T) {
	ok, err := Fallback{Primary: brokenLimiter{}, Secondary: denyAll{}}.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Fallback{Primary: denyAll{}, Secondary: brokenLimiter{}}.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(NewTokenBucket(1, 1), ClientIP))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusNoContent, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}
