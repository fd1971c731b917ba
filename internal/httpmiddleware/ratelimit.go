package httpmiddleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether one more request for key fits the budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucket is an in-memory per-key limiter refilled at a per-minute rate.
type TokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates limiter with capacity tokens and rate per minute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		now:      time.Now,
	}
}

func (l *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true, nil
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// RedisWindow counts requests per key in fixed one-minute windows shared by
// every API replica.
type RedisWindow struct {
	client    *redis.Client
	perMinute int
	prefix    string
	now       func() time.Time
}

// NewRedisWindow builds a limiter that allows perMinute requests per key and minute.
func NewRedisWindow(client *redis.Client, perMinute int) *RedisWindow {
	return &RedisWindow{client: client, perMinute: perMinute, prefix: "tuition:ratelimit:", now: time.Now}
}

func (l *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	window := l.now().Unix() / 60
	k := l.prefix + key + ":" + strconv.FormatInt(window, 10)
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= int64(l.perMinute), nil
}

// Fallback asks primary first and switches to secondary while primary errors.
type Fallback struct {
	Primary   Limiter
	Secondary Limiter
}

func (f Fallback) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := f.Primary.Allow(ctx, key)
	if err == nil {
		return ok, nil
	}
	return f.Secondary.Allow(ctx, key)
}

// ClientIP keys requests by caller address.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}
	return "ip:unknown"
}

// RateLimit returns gin handler enforcing per-key limits. Limiter errors let
// the request through.
func RateLimit(l Limiter, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := l.Allow(c.Request.Context(), key(c))
		if err != nil {
			slog.Warn("rate limiter unavailable", "error", err)
		}
		if !ok {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please slow down"})
			return
		}
		c.Next()
	}
}
