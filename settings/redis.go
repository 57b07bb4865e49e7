package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding all settings.
const DefaultRedisKey = "desklink:settings"

// DefaultRedisTimeout bounds each Redis command.
const DefaultRedisTimeout = 5 * time.Second

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Key is the hash name (default: desklink:settings).
	Key string
	// Timeout is the per-command timeout (default 5s).
	Timeout time.Duration
}

// RedisStore keeps settings as fields of one Redis hash.
type RedisStore struct {
	config RedisConfig
	client *goredis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedis creates a RedisStore. Returns an error if the URL is empty or invalid.
func NewRedis(cfg RedisConfig) (*RedisStore, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis settings store requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis settings store: invalid URL: %w", err)
	}
	if cfg.Key == "" {
		cfg.Key = DefaultRedisKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisTimeout
	}
	return &RedisStore{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	v, err := s.client.HGet(ctx, s.config.Key, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return v, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	if err := s.client.HSet(ctx, s.config.Key, key, value).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()
	if err := s.client.HDel(ctx, s.config.Key, key).Err(); err != nil {
		return fmt.Errorf("redis: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
