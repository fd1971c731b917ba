package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds the one client shared by the queue, dashboard cache and rate limiter.
type Redis struct {
	Client *redis.Client
}

// NewRedis accepts a bare host:port or a redis:// / rediss:// URL carrying
// credentials and a database number, as hosted providers hand out.
// The client dials lazily; use Ping to check the server.
func NewRedis(target string) (*Redis, error) {
	opts, err := redisOptions(target)
	if err != nil {
		return nil, err
	}
	return &Redis{Client: redis.NewClient(opts)}, nil
}

func redisOptions(target string) (*redis.Options, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("redis: empty address")
	}
	opts := &redis.Options{Addr: target}
	if strings.Contains(target, "://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts = parsed
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return opts, nil
}

// Ping reports why the server is unreachable.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return fmt.Errorf("redis: not configured")
	}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis %s: %w", r.Client.Options().Addr, err)
	}
	return nil
}

func (r *Redis) Healthy(ctx context.Context) bool {
	return r.Ping(ctx) == nil
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
