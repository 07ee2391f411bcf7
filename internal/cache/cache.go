// Package cache stores captured image responses behind a small key/value interface.
//
// Entries are keyed by Key, written once after a successful origin fetch and
// expired by the backend after the configured TTL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"edge-proxy/internal/config"
	"edge-proxy/internal/model"
)

var (
	// ErrNotFound is returned by Lookup when no live entry exists for the key.
	ErrNotFound = errors.New("cache entry not found")
	// ErrRejected is returned when a backend declines to hold an entry.
	ErrRejected = errors.New("cache entry rejected")
	// ErrEntryTooLarge is returned when a response body exceeds the per-entry limit.
	ErrEntryTooLarge = errors.New("cache entry too large")
)

// Store is a concurrency-safe key/value store for captured responses.
type Store interface {
	// Lookup returns the entry stored under key, or ErrNotFound.
	Lookup(ctx context.Context, key string) (*model.StoredResponse, error)
	// Store saves resp under key for ttl. A zero ttl means no expiry.
	Store(ctx context.Context, key string, resp *model.StoredResponse, ttl time.Duration) error
	// Close releases backend resources.
	Close() error
}

// Key derives the cache key for an image request. The method is fixed to GET
// because only GET image fetches are cached; Accept is part of the key since
// origins negotiate image formats on it.
func Key(rawURL, accept string) string {
	sum := sha256.Sum256([]byte(http.MethodGet + "\n" + rawURL + "\n" + accept))
	return hex.EncodeToString(sum[:])
}

// New builds the Store selected by cfg.Cache.Backend.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	logger = logger.With("component", "cache")

	switch cfg.Cache.Backend {
	case config.CacheBackendNone:
		logger.Info("image cache disabled")
		return Nop{}, nil
	case config.CacheBackendRedis:
		s, err := NewRedisStore(cfg.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		logger.Info("image cache enabled", "backend", "redis", "addr", cfg.Cache.Redis.Addr, "ttl", cfg.Cache.TTL())
		return s, nil
	default:
		s, err := NewMemoryStore(cfg.Cache.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("memory cache: %w", err)
		}
		logger.Info("image cache enabled", "backend", "memory", "max_bytes", cfg.Cache.MaxBytes, "ttl", cfg.Cache.TTL())
		return s, nil
	}
}

// Nop is a Store that holds nothing.
type Nop struct{}

func (Nop) Lookup(context.Context, string) (*model.StoredResponse, error) { return nil, ErrNotFound }

func (Nop) Store(context.Context, string, *model.StoredResponse, time.Duration) error { return nil }

func (Nop) Close() error { return nil }

// IsNop reports whether s is the disabled store.
func IsNop(s Store) bool {
	_, ok := s.(Nop)
	return ok
}

// clone returns a deep copy so callers never share header maps or body bytes
// with the stored entry.
func clone(resp *model.StoredResponse) *model.StoredResponse {
	body := make([]byte, len(resp.Body))
	copy(body, resp.Body)
	return &model.StoredResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header.Clone(),
		Body:       body,
	}
}

// size approximates the memory held by an entry.
func size(resp *model.StoredResponse) int64 {
	n := int64(len(resp.Body) + len(resp.Status))
	for k, vals := range resp.Header {
		n += int64(len(k))
		for _, v := range vals {
			n += int64(len(v))
		}
	}
	return n
}
