package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisConnectTimeout = 5 * time.Second

// RedisTokenStore is a TokenStore backed by a Redis instance shared by every
// host in the deployment.
type RedisTokenStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisTokenStore connects to Redis and verifies the connection with a
// ping before returning.
func NewRedisTokenStore(addr, password string, db int, keyPrefix string, logger *zap.Logger) (*RedisTokenStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("connected to redis",
		zap.String("addr", addr),
		zap.Int("db", db),
	)

	return &RedisTokenStore{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}, nil
}

func (s *RedisTokenStore) key(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + key
}

func (s *RedisTokenStore) GetToken(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token %s: %w", key, err)
	}
	return value, nil
}

// SetToken stores value under key. Tokens carry no TTL; each one stays until
// overwritten by a newer token.
func (s *RedisTokenStore) SetToken(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set token %s: %w", key, err)
	}
	return nil
}

func (s *RedisTokenStore) Shared() bool {
	return true
}

func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
