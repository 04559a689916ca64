package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard is an in-process ProcessedGuard for single-instance deployments.
// Entries expire after ttl and are swept lazily on Mark.
type MemoryGuard struct {
	mu        sync.RWMutex
	entries   map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	return &MemoryGuard{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (g *MemoryGuard) Seen(_ context.Context, key string) (bool, error) {
	g.mu.RLock()
	expiresAt, ok := g.entries[key]
	g.mu.RUnlock()
	return ok && g.now().Before(expiresAt), nil
}

func (g *MemoryGuard) Mark(_ context.Context, key string) error {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[key] = now.Add(g.ttl)
	if now.Sub(g.lastSweep) >= g.ttl {
		for k, expiresAt := range g.entries {
			if !now.Before(expiresAt) {
				delete(g.entries, k)
			}
		}
		g.lastSweep = now
	}
	return nil
}

func (g *MemoryGuard) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}
