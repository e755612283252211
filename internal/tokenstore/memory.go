package tokenstore

import (
	"context"
	"sync"
	"time"

	"authcore/internal/autherr"
	"authcore/internal/security"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for tests and single-node development.
// A mutex serialises rotation so the compare-and-set matches RedisStore.
type MemoryStore struct {
	mu        sync.Mutex
	refresh   map[string]entry
	blacklist map[string]time.Time
	nowF      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		refresh:   make(map[string]entry),
		blacklist: make(map[string]time.Time),
		nowF:      time.Now,
	}
}

// SetClock replaces the time source. Used by tests to move past TTLs.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowF = now
}

func (s *MemoryStore) SetCurrentRefreshToken(ctx context.Context, identityID, token string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return autherr.Unavailable("tokenstore: set refresh", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[identityID] = entry{value: security.TokenID(token), expiresAt: s.expiry(ttl)}
	return nil
}

func (s *MemoryStore) IsCurrentRefreshToken(ctx context.Context, identityID, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, autherr.Unavailable("tokenstore: get refresh", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveRefresh(identityID)
	if !ok {
		return false, nil
	}
	return equalIDs(security.TokenID(token), e.value), nil
}

func (s *MemoryStore) RotateRefreshToken(ctx context.Context, identityID, oldToken, newToken string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, autherr.Unavailable("tokenstore: rotate refresh", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.liveRefresh(identityID)
	if !ok || !equalIDs(security.TokenID(oldToken), e.value) {
		return false, nil
	}
	s.refresh[identityID] = entry{value: security.TokenID(newToken), expiresAt: s.expiry(ttl)}
	return true, nil
}

func (s *MemoryStore) RevokeRefreshToken(ctx context.Context, identityID string) error {
	if err := ctx.Err(); err != nil {
		return autherr.Unavailable("tokenstore: revoke refresh", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, identityID)
	return nil
}

func (s *MemoryStore) BlacklistAccessToken(ctx context.Context, tokenID string, remainingTTL time.Duration) error {
	if remainingTTL <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return autherr.Unavailable("tokenstore: blacklist", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[tokenID] = s.nowF().Add(remainingTTL)
	return nil
}

func (s *MemoryStore) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, autherr.Unavailable("tokenstore: blacklist lookup", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.blacklist[tokenID]
	if !ok {
		return false, nil
	}
	if !exp.After(s.nowF()) {
		delete(s.blacklist, tokenID)
		return false, nil
	}
	return true, nil
}

// liveRefresh returns the unexpired slot for identityID. Caller holds s.mu.
func (s *MemoryStore) liveRefresh(identityID string) (entry, bool) {
	e, ok := s.refresh[identityID]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(s.nowF()) {
		delete(s.refresh, identityID)
		return entry{}, false
	}
	return e, true
}

// expiry returns the absolute expiry for ttl; zero means no expiry. Caller holds s.mu.
func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.nowF().Add(ttl)
}
