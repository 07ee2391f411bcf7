package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"edge-proxy/internal/config"
	"edge-proxy/internal/model"
)

// RedisStore shares entries between proxy instances through redis. Each entry
// is one JSON value with the TTL set on the key.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisStore connects to redis and verifies the connection with PING.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	s := newRedisStore(client, cfg.KeyPrefix, timeout)

	ctx, cancel := s.withTimeout(context.Background())
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Addr, err)
	}

	return s, nil
}

func newRedisStore(client *redis.Client, prefix string, timeout time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, timeout: timeout}
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (*model.StoredResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var resp model.StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &resp, nil
}

func (s *RedisStore) Store(ctx context.Context, key string, resp *model.StoredResponse, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("negative ttl %v: %w", ttl, ErrRejected)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
