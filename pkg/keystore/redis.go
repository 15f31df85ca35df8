package keystore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore is the production Store backed by Redis. Snapshots are plain
// string keys, index sets are Redis sets. All operations are single commands;
// there is no transactional grouping, matching the best-effort contract of
// the mirror.
type RedisStore struct {
	redisClient *redis.Client
	logger      zerolog.Logger
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

	return &RedisStore{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisStore").Logger(),
	}, nil
}

// Get retrieves the raw value stored under key. A redis.Nil result is a
// normal cache miss and reported as ok=false.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.redisClient.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a value without expiry; snapshots live until deleted or
// overwritten by a newer event.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.redisClient.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. UNLINK reclaims large values off the command path,
// which matters during guild cascades.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.redisClient.Unlink(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis unlink failed for key %s: %w", key, err)
	}
	return nil
}

// AddIndex records a member in an index set. SADD is idempotent, so update
// events may re-assert membership freely.
func (s *RedisStore) AddIndex(ctx context.Context, indexKey, member string) error {
	if err := s.redisClient.SAdd(ctx, indexKey, member).Err(); err != nil {
		return fmt.Errorf("redis sadd failed for index %s: %w", indexKey, err)
	}
	return nil
}

// RemoveIndex drops a member from an index set.
func (s *RedisStore) RemoveIndex(ctx context.Context, indexKey, member string) error {
	if err := s.redisClient.SRem(ctx, indexKey, member).Err(); err != nil {
		return fmt.Errorf("redis srem failed for index %s: %w", indexKey, err)
	}
	return nil
}

// ScanIndex enumerates an index set with SSCAN in batches of batchSize,
// following the cursor until the set is exhausted.
func (s *RedisStore) ScanIndex(ctx context.Context, indexKey string, batchSize int64) ([]string, error) {
	var members []string
	var cursor uint64
	for {
		batch, next, err := s.redisClient.SScan(ctx, indexKey, cursor, "*", batchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("redis sscan failed for index %s: %w", indexKey, err)
		}
		members = append(members, batch...)
		if next == 0 {
			return members, nil
		}
		cursor = next
	}
}

// IndexSize reports the cardinality of an index set.
func (s *RedisStore) IndexSize(ctx context.Context, indexKey string) (int64, error) {
	size, err := s.redisClient.SCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis scard failed for index %s: %w", indexKey, err)
	}
	return size, nil
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	if s.redisClient != nil {
		s.logger.Info().Msg("Closing Redis client connection...")
		return s.redisClient.Close()
	}
	return nil
}
