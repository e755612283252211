package db

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// OpenRedis returns a Redis client for addr and verifies it with PING.
// The client is safe for concurrent use and shared by the token store, reset store and authz cache.
func OpenRedis(ctx context.Context, addr, password string, database int) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("db: REDIS_ADDR is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
