package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces credential keys
const DefaultRedisPrefix = "fortnox-client"

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	DialTimeout time.Duration
}

// RedisStore keeps each provider record as a JSON value without expiry
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		MaxRetries:  -1,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewRedisStoreWithClient(client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// key generates the Redis key for a provider record
func (s *RedisStore) key(provider string) string {
	return fmt.Sprintf("%s:credentials:%s", s.prefix, provider)
}

// Get returns the record for provider
func (s *RedisStore) Get(ctx context.Context, provider string) (*Credentials, error) {
	data, err := s.client.Get(ctx, s.key(provider)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: provider %q in redis", ErrNotFound, provider)
		}
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return &c, nil
}

// UpdateTokens rewrites the OAuth fields for provider
func (s *RedisStore) UpdateTokens(ctx context.Context, provider string, update TokenUpdate) error {
	c, err := s.Get(ctx, provider)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		c = &Credentials{Provider: provider}
	}
	update.apply(c)

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := s.client.Set(ctx, s.key(provider), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool
func (s *RedisStore) Close(_ context.Context) error {
	return s.client.Close()
}
