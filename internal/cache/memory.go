package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"edge-proxy/internal/model"
)

// averageEntryBytes sizes ristretto's admission counters; it only needs to be
// in the right order of magnitude for typical web images.
const averageEntryBytes = 32 * 1024

// MemoryStore keeps entries in-process, bounded by total bytes.
type MemoryStore struct {
	cache *ristretto.Cache
}

// NewMemoryStore creates a MemoryStore that holds at most maxBytes of entries.
func NewMemoryStore(maxBytes int64) (*MemoryStore, error) {
	if maxBytes <= 0 {
		return nil, fmt.Errorf("max bytes must be positive; got %d", maxBytes)
	}
	counters := max(maxBytes/averageEntryBytes*10, 1000)

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        counters,
		MaxCost:            maxBytes,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init ristretto: %w", err)
	}
	return &MemoryStore{cache: c}, nil
}

func (s *MemoryStore) Lookup(ctx context.Context, key string) (*model.StoredResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	resp, ok := v.(*model.StoredResponse)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(resp), nil
}

// Store admits the entry and waits for ristretto's write buffer to drain so a
// following Lookup observes it.
func (s *MemoryStore) Store(ctx context.Context, key string, resp *model.StoredResponse, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl < 0 {
		return fmt.Errorf("negative ttl %v: %w", ttl, ErrRejected)
	}
	if !s.cache.SetWithTTL(key, clone(resp), size(resp), ttl) {
		return ErrRejected
	}
	s.cache.Wait()
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Close()
	return nil
}
