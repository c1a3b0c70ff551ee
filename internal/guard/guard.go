// Package guard reserves sequence targets across relayer replicas so that
// two replicas sharing one wrapper deployment do not both spend a
// submission on the same target. A reservation is advisory: the ledger's
// compare-and-swap still decides which bundle wins.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lugondev/go-continuum/internal/config"
)

// Guard holds short-lived reservations keyed by sequence target.
type Guard interface {
	// Acquire reserves target for ttl. It reports false when another
	// holder's reservation is still live.
	Acquire(ctx context.Context, target uint64) (bool, error)
	// Release drops a reservation this holder owns.
	Release(ctx context.Context, target uint64) error
}

// New returns a Redis guard when cfg enables it and an in-process guard
// otherwise.
func New(cfg config.RedisConfig) (Guard, func() error, error) {
	if !cfg.Enabled {
		return NewMemoryGuard(cfg.TTL), func() error { return nil }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisGuard(rdb, cfg.KeyPrefix, cfg.TTL), rdb.Close, nil
}

// releaseScript deletes the key only while it still holds our token, so a
// holder whose reservation expired cannot drop a newer holder's.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard stores reservations as SET NX keys with a TTL.
type RedisGuard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	token  string
}

func NewRedisGuard(rdb *redis.Client, prefix string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

func (g *RedisGuard) key(target uint64) string {
	return fmt.Sprintf("%s:inflight:seq:%d", g.prefix, target)
}

func (g *RedisGuard) Acquire(ctx context.Context, target uint64) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.key(target), g.token, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx error: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, target uint64) error {
	if err := releaseScript.Run(ctx, g.rdb, []string{g.key(target)}, g.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis release error: %w", err)
	}
	return nil
}

// MemoryGuard keeps reservations in process memory.
type MemoryGuard struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	until map[uint64]time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		ttl:   ttl,
		now:   time.Now,
		until: make(map[uint64]time.Time),
	}
}

func (g *MemoryGuard) Acquire(ctx context.Context, target uint64) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.until[target]; ok && now.Before(exp) {
		return false, nil
	}
	g.until[target] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) Release(ctx context.Context, target uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.until, target)
	return nil
}
