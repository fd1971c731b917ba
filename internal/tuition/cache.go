package tuition

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// DashboardCache holds computed dashboards per teacher.
type DashboardCache interface {
	Get(ctx context.Context, teacherID string) (Dashboard, bool)
	Set(ctx context.Context, teacherID string, d Dashboard)
	Invalidate(ctx context.Context, teacherID string)
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (Dashboard, bool) { return Dashboard{}, false }
func (NopCache) Set(context.Context, string, Dashboard)        {}
func (NopCache) Invalidate(context.Context, string)            {}

// RedisCache stores dashboards as JSON strings with a TTL. Cache failures are
// swallowed: a miss just means the dashboard gets recomputed.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache builds a cache; ttl <= 0 falls back to one minute.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "tuition:dashboard:"}
}

func (c *RedisCache) key(teacherID string) string { return c.prefix + teacherID }

func (c *RedisCache) Get(ctx context.Context, teacherID string) (Dashboard, bool) {
	raw, err := c.client.Get(ctx, c.key(teacherID)).Bytes()
	if err != nil {
		return Dashboard{}, false
	}
	var d Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		return Dashboard{}, false
	}
	return d, true
}

func (c *RedisCache) Set(ctx context.Context, teacherID string, d Dashboard) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.key(teacherID), raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, teacherID string) {
	_ = c.client.Del(ctx, c.key(teacherID)).Err()
}
