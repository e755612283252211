package authz

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	roledomain "authcore/internal/role/domain"
)

const cacheKeyPrefix = "authz:"

func cacheKey(identityID string) string { return cacheKeyPrefix + identityID }

// RedisCache keeps grants as JSON under authz:<identityID> with the entry TTL set on the key.
type RedisCache struct {
	client redis.UniversalClient
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, identityID string) (*roledomain.Grants, bool, error) {
	raw, err := c.client.Get(ctx, cacheKey(identityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var g roledomain.Grants
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, false, err
	}
	return &g, true, nil
}

func (c *RedisCache) Set(ctx context.Context, identityID string, g *roledomain.Grants, ttl time.Duration) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(identityID), raw, ttl).Err()
}

type cacheEntry struct {
	grants    roledomain.Grants
	expiresAt time.Time
}

// MemoryCache is an in-process Cache for tests and single-node development.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	nowF    func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), nowF: time.Now}
}

// SetClock replaces the time source. Used by tests to move past TTLs.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowF = now
}

func (c *MemoryCache) Get(_ context.Context, identityID string) (*roledomain.Grants, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[identityID]
	if !ok {
		return nil, false, nil
	}
	if !c.nowF().Before(e.expiresAt) {
		delete(c.entries, identityID)
		return nil, false, nil
	}
	g := roledomain.Grants{
		Roles:       append([]string(nil), e.grants.Roles...),
		Permissions: append([]string(nil), e.grants.Permissions...),
	}
	return &g, true, nil
}

func (c *MemoryCache) Set(_ context.Context, identityID string, g *roledomain.Grants, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[identityID] = cacheEntry{
		grants: roledomain.Grants{
			Roles:       append([]string(nil), g.Roles...),
			Permissions: append([]string(nil), g.Permissions...),
		},
		expiresAt: c.nowF().Add(ttl),
	}
	return nil
}
