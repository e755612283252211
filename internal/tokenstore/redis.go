package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"authcore/internal/autherr"
	"authcore/internal/security"
)

// rotateScript swaps the refresh slot only when it still holds the expected token ID.
// Scripts run atomically, which makes rotation linearizable per identity.
var rotateScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and cur == ARGV[1] then
  if tonumber(ARGV[3]) > 0 then
    redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
  else
    redis.call('SET', KEYS[1], ARGV[2])
  end
  return 1
end
return 0
`)

// RedisStore implements Store on Redis.
type RedisStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a Redis-backed Store. Every call is bounded by timeout (default 2s).
func NewRedisStore(client redis.UniversalClient, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisStore{client: client, timeout: timeout}
}

func (s *RedisStore) SetCurrentRefreshToken(ctx context.Context, identityID, token string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, refreshKey(identityID), security.TokenID(token), ttl).Err(); err != nil {
		return autherr.Unavailable("tokenstore: set refresh", err)
	}
	return nil
}

func (s *RedisStore) IsCurrentRefreshToken(ctx context.Context, identityID, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stored, err := s.client.Get(ctx, refreshKey(identityID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, autherr.Unavailable("tokenstore: get refresh", err)
	}
	return security.TokenIDEqual(token, stored), nil
}

func (s *RedisStore) RotateRefreshToken(ctx context.Context, identityID, oldToken, newToken string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := rotateScript.Run(ctx, s.client,
		[]string{refreshKey(identityID)},
		security.TokenID(oldToken), security.TokenID(newToken), ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, autherr.Unavailable("tokenstore: rotate refresh", err)
	}
	return n == 1, nil
}

func (s *RedisStore) RevokeRefreshToken(ctx context.Context, identityID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Del(ctx, refreshKey(identityID)).Err(); err != nil {
		return autherr.Unavailable("tokenstore: revoke refresh", err)
	}
	return nil
}

func (s *RedisStore) BlacklistAccessToken(ctx context.Context, tokenID string, remainingTTL time.Duration) error {
	if remainingTTL <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, blacklistKey(tokenID), "1", remainingTTL).Err(); err != nil {
		return autherr.Unavailable("tokenstore: blacklist", err)
	}
	return nil
}

func (s *RedisStore) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.client.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		return false, autherr.Unavailable("tokenstore: blacklist lookup", err)
	}
	return n == 1, nil
}
