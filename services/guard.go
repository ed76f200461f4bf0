package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Guard is the short-lived fast path in front of the ledger for minute-exact reminders.
// Acquire returns false when the key was taken within the TTL.
type Guard interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// GuardKey builds the guard key for one owner at one wall-clock minute.
func GuardKey(source, ownerID, day, clock string) string {
	return fmt.Sprintf("%s:%s:%s:%s", source, ownerID, day, clock)
}

// MemoryGuard keeps keys in process memory. When the map reaches maxEntries it is cleared wholesale.
type MemoryGuard struct {
	mu         sync.Mutex
	entries    map[string]time.Time
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryGuard(ttl time.Duration, maxEntries int) *MemoryGuard {
	return NewMemoryGuardWithClock(ttl, maxEntries, time.Now)
}

func NewMemoryGuardWithClock(ttl time.Duration, maxEntries int, now func() time.Time) *MemoryGuard {
	if maxEntries < 1 {
		maxEntries = 5000
	}
	return &MemoryGuard{
		entries:    make(map[string]time.Time),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        now,
	}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if expires, ok := g.entries[key]; ok && now.Before(expires) {
		return false, nil
	}

	for k, expires := range g.entries {
		if !now.Before(expires) {
			delete(g.entries, k)
		}
	}
	if len(g.entries) >= g.maxEntries {
		g.entries = make(map[string]time.Time)
	}

	g.entries[key] = now.Add(g.ttl)
	return true, nil
}

func (g *MemoryGuard) Forget(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.entries, key)
	g.mu.Unlock()
	return nil
}

// Len reports how many keys are currently held, expired ones included until the next sweep.
func (g *MemoryGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// RedisGuard shares the guard across instances with SET NX and a TTL.
type RedisGuard struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, prefix string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, prefix: prefix, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis guard acquire %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGuard) Forget(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis guard forget %s: %w", key, err)
	}
	return nil
}
