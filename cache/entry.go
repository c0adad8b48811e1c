package cache

import (
	"context"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
)

// Entry is one channel's bounded fast-path buffer of recent turns,
// oldest first.
type Entry struct {
	Records   []core.MemoryRecord `json:"records"`
	FetchedAt time.Time           `json:"fetched_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// Expired reports whether the entry has gone cold at now. A cold entry
// is never served; the next read rebuilds it from the chronological log.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// EntryStore is the TTL-expiring key-value backend holding cache
// entries. Implementations: ristretto (in-process, default) and redis
// (shared across processes).
//
// Save must be immediately visible to a subsequent Fetch from the same
// process (read-your-writes).
type EntryStore interface {
	Fetch(ctx context.Context, key string) (*Entry, bool, error)
	Save(ctx context.Context, key string, e *Entry, ttl time.Duration) error
	Close() error
}
