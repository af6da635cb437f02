package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "turf:session:v1:"

// RedisStore mirrors the session into Redis, namespaced per device profile.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a store whose keys live under the given profile.
func NewRedisStore(client *redis.Client, profile string) *RedisStore {
	prefix := redisPrefix
	if profile != "" {
		prefix += profile + ":"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
