package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// ScanPattern limits which keys Keys reports. Defaults to "*".
	ScanPattern string `mapstructure:"scan_pattern"`
	// ScanCount is the COUNT hint passed to SCAN.
	ScanCount int64 `mapstructure:"scan_count"`
}

// RedisStore is a Store backed by a Redis database.
// Values are stored as plain strings without a Redis-level expiry; entry
// lifetimes are managed by the caller.
type RedisStore struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	pattern     string
	scanCount   int64
}

// NewRedisStore creates and connects a new RedisStore.
// It pings the Redis server to ensure connectivity before returning.
func NewRedisStore(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	pattern := cfg.ScanPattern
	if pattern == "" {
		pattern = "*"
	}
	count := cfg.ScanCount
	if count <= 0 {
		count = 500
	}

	return &RedisStore{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisStore").Logger(),
		pattern:     pattern,
		scanCount:   count,
	}, nil
}

// Get retrieves a value from Redis. A redis.Nil reply is a normal miss.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Msg("Redis hit.")
	return value, true, nil
}

// Set stores a value with no expiry.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.redisClient.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", key, err)
	}
	return nil
}

// Remove deletes a key from Redis.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del failed for key %s: %w", key, err)
	}
	return nil
}

// Keys walks the keyspace with SCAN so large databases are never blocked
// by a single KEYS call.
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.redisClient.Scan(ctx, 0, s.pattern, s.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan failed: %w", err)
	}
	return keys, nil
}

// RemoveMany deletes the given keys with a single DEL.
func (s *RedisStore) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.redisClient.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del failed for %d keys: %w", len(keys), err)
	}
	return nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	if s.redisClient != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.redisClient.Close()
	}
	return nil
}
