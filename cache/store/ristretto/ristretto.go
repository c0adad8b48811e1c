// Package ristretto implements the cache entry store on dgraph's
// ristretto, an in-process cache with native TTL support.
package ristretto

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/recallhq/recall-go-sdk/cache"
)

// Store is a ristretto-backed cache.EntryStore.
type Store struct {
	c *ristretto.Cache
}

// New creates a store bounded to maxEntries cache entries.
func New(maxEntries int64) (*Store, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &Store{c: c}, nil
}

// Fetch returns the entry for key if present. Ristretto's own TTL may
// lag slightly, so the caller still checks Entry.ExpiresAt.
func (s *Store) Fetch(_ context.Context, key string) (*cache.Entry, bool, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	e, ok := v.(*cache.Entry)
	if !ok {
		return nil, false, nil
	}
	return e, true, nil
}

// Save stores the entry with the given TTL. Ristretto applies sets
// through a buffer, so Wait flushes it to guarantee read-your-writes.
// A set the admission policy drops is reported as an error rather than
// silently breaking that guarantee.
func (s *Store) Save(_ context.Context, key string, e *cache.Entry, ttl time.Duration) error {
	if !s.c.SetWithTTL(key, e, 1, ttl) {
		return fmt.Errorf("save entry %s: set rejected", key)
	}
	s.c.Wait()
	if _, ok := s.c.Get(key); !ok {
		return fmt.Errorf("save entry %s: dropped by admission policy", key)
	}
	return nil
}

// Close releases the cache.
func (s *Store) Close() error {
	s.c.Close()
	return nil
}
