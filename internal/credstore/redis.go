// Package credstore holds CredentialStore implementations backed by external services.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/devilmonastery/tally/internal/client"
)

// DefaultPrefix namespaces every key this store writes
const DefaultPrefix = "tally:cred:"

const defaultOpTimeout = 3 * time.Second

// RedisStore keeps credentials in Redis so several web replicas can share
// browser sessions. MaxAge becomes the key's TTL.
type RedisStore struct {
	rdb       *redis.Client
	prefix    string
	opTimeout time.Duration
	log       *slog.Logger
}

// Options configures a Redis connection
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	Prefix      string
}

// Dial connects to Redis and fails fast if the server is unreachable
func Dial(ctx context.Context, opts Options) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return NewRedisStore(rdb, opts.Prefix), nil
}

// NewRedisStore wraps an existing client. An empty prefix uses DefaultPrefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{
		rdb:       rdb,
		prefix:    prefix,
		opTimeout: defaultOpTimeout,
		log:       slog.Default().With(slog.String("component", "redis_store")),
	}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

// Get implements client.CredentialStore
func (s *RedisStore) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	value, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", client.ErrNoCredential
	}
	if err != nil {
		s.log.Error("failed to get credential", slog.String("key", key), slog.String("error", err.Error()))
		return "", fmt.Errorf("failed to get value from redis: %w", err)
	}
	return value, nil
}

// Set implements client.CredentialStore. Path has no meaning here.
func (s *RedisStore) Set(key, value string, opts client.SetOptions) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.rdb.Set(ctx, s.key(key), value, opts.MaxAge).Err(); err != nil {
		s.log.Error("failed to set credential", slog.String("key", key), slog.String("error", err.Error()))
		return fmt.Errorf("failed to set value in redis: %w", err)
	}
	return nil
}

// Clear implements client.CredentialStore
func (s *RedisStore) Clear(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete value from redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}
	return nil
}
