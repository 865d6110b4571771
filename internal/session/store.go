package session

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// KV is the durable local key-value storage holding the serialized
// session snapshot under a single well-known key.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RedisKV implements KV on a Redis client.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV constructs a Redis backed KV store.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Get returns the stored value, reporting presence separately.
func (s *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

// Set stores the value without expiry; the snapshot lives until logout.
func (s *RedisKV) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

// Remove deletes the key. Deleting a missing key is not an error.
func (s *RedisKV) Remove(ctx context.Context, key string) error {
	err := s.client.Del(ctx, key).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
