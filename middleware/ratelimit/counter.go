package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter increments the hit count for key inside a fixed window
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisClient is the slice of the go-redis API the counter needs.
// *redis.Client and *redis.ClusterClient both satisfy it.
type RedisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisCounter is a fixed window counter: INCR, then EXPIRE on the first hit
type RedisCounter struct {
	client RedisClient
}

func NewRedisCounter(client RedisClient) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}

	return count, nil
}

// MemoryCounter keeps windows in process. Used when no redis is configured
// and in tests.
type MemoryCounter struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count   int64
	expires time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// WithClock sets the time source
func (m *MemoryCounter) WithClock(now func() time.Time) *MemoryCounter {
	if now != nil {
		m.now = now
	}
	return m
}

func (m *MemoryCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.expires) {
		b = &bucket{expires: now.Add(window)}
		m.buckets[key] = b
		m.sweep(now)
	}

	b.count++
	return b.count, nil
}

// sweep drops expired windows, only called when a window opens
func (m *MemoryCounter) sweep(now time.Time) {
	for k, b := range m.buckets {
		if !now.Before(b.expires) {
			delete(m.buckets, k)
		}
	}
}
