package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/taxi-admin/internal/models"
)

// ProfileCache fronts the full-collection customer fetch that backs the
// queue's fallback lookup table. A nil or cold cache just means the
// aggregator fetches from the store; correctness never depends on it.
type ProfileCache interface {
	GetAll(ctx context.Context) (map[string]models.CustomerProfile, bool)
	SetAll(ctx context.Context, profiles map[string]models.CustomerProfile) error
}

// MemoryCache is a process-local ProfileCache with a TTL.
type MemoryCache struct {
	mu       sync.RWMutex
	profiles map[string]models.CustomerProfile
	storedAt time.Time
	ttl      time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl}
}

func (c *MemoryCache) GetAll(ctx context.Context) (map[string]models.CustomerProfile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.profiles == nil || time.Since(c.storedAt) > c.ttl {
		return nil, false
	}
	out := make(map[string]models.CustomerProfile, len(c.profiles))
	for id, p := range c.profiles {
		out[id] = p
	}
	return out, true
}

func (c *MemoryCache) SetAll(ctx context.Context, profiles map[string]models.CustomerProfile) error {
	cp := make(map[string]models.CustomerProfile, len(profiles))
	for id, p := range profiles {
		cp[id] = p
	}
	c.mu.Lock()
	c.profiles = cp
	c.storedAt = time.Now()
	c.mu.Unlock()
	return nil
}
