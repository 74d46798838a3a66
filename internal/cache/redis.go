package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Redis-backed second cache tier, used in place of Disk
// when a Redis address is configured (spec §4.9). Grounded on the
// teacher's root-level data/cache.Cache Redis mode, swapped onto the
// go-redis/v9 client already in the module's dependency graph.
type Redis struct {
	client *redis.Client
	hits   int64
	miss   int64
}

// NewRedis dials a Redis server at addr. The connection is lazy: Dial
// errors surface on first Get/Set, matching go-redis's own client
// lifecycle.
func NewRedis(addr string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		atomic.AddInt64(&r.miss, 1)
		return nil, false
	}
	atomic.AddInt64(&r.hits, 1)
	return val, true
}

func (r *Redis) Set(key string, value []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Stats() Stats {
	hits := atomic.LoadInt64(&r.hits)
	miss := atomic.LoadInt64(&r.miss)
	total := hits + miss
	ratio := 0.0
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return Stats{Hits: hits, Misses: miss, HitRatio: ratio}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
