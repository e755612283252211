package credential

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResetStore persists reset token hashes. There is at most one live token per identity.
type ResetStore interface {
	// Save stores tokenHash for identityID with ttl, deleting any earlier token for identityID.
	Save(ctx context.Context, identityID, tokenHash string, ttl time.Duration) error
	// Take atomically reads and deletes tokenHash. ok is false when absent or expired.
	Take(ctx context.Context, tokenHash string) (identityID string, ok bool, err error)
}

const (
	resetTokenPrefix = "reset:token:"
	resetOwnerPrefix = "reset:owner:"
)

// saveResetScript moves the owner index and the token key together.
// KEYS[1] owner key, KEYS[2] new token key; ARGV[1] token hash, ARGV[2] identity, ARGV[3] ttl ms, ARGV[4] token prefix.
var saveResetScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[1])
if prev then
  redis.call('DEL', ARGV[4] .. prev)
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// RedisResetStore implements ResetStore on Redis.
type RedisResetStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

var _ ResetStore = (*RedisResetStore)(nil)

// NewRedisResetStore returns a Redis-backed ResetStore. Every call is bounded by timeout (default 2s).
func NewRedisResetStore(client redis.UniversalClient, timeout time.Duration) *RedisResetStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisResetStore{client: client, timeout: timeout}
}

func (s *RedisResetStore) Save(ctx context.Context, identityID, tokenHash string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return saveResetScript.Run(ctx, s.client,
		[]string{resetOwnerPrefix + identityID, resetTokenPrefix + tokenHash},
		tokenHash, identityID, ttl.Milliseconds(), resetTokenPrefix,
	).Err()
}

func (s *RedisResetStore) Take(ctx context.Context, tokenHash string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	id, err := s.client.GetDel(ctx, resetTokenPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

type resetEntry struct {
	identityID string
	expiresAt  time.Time
}

// MemoryResetStore is an in-process ResetStore for tests and development.
type MemoryResetStore struct {
	mu      sync.Mutex
	byHash  map[string]resetEntry
	byOwner map[string]string
	nowF    func() time.Time
}

var _ ResetStore = (*MemoryResetStore)(nil)

// NewMemoryResetStore returns an empty MemoryResetStore.
func NewMemoryResetStore() *MemoryResetStore {
	return &MemoryResetStore{
		byHash:  make(map[string]resetEntry),
		byOwner: make(map[string]string),
		nowF:    time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (s *MemoryResetStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowF = now
}

func (s *MemoryResetStore) Save(ctx context.Context, identityID, tokenHash string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byOwner[identityID]; ok {
		delete(s.byHash, prev)
	}
	s.byHash[tokenHash] = resetEntry{identityID: identityID, expiresAt: s.nowF().Add(ttl)}
	s.byOwner[identityID] = tokenHash
	return nil
}

func (s *MemoryResetStore) Take(ctx context.Context, tokenHash string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byHash[tokenHash]
	if !ok {
		return "", false, nil
	}
	delete(s.byHash, tokenHash)
	if s.byOwner[e.identityID] == tokenHash {
		delete(s.byOwner, e.identityID)
	}
	if !e.expiresAt.After(s.nowF()) {
		return "", false, nil
	}
	return e.identityID, true, nil
}
