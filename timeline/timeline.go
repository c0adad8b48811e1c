// Package timeline defines the durable, append-only, time-ordered record
// store. Ordering is exact, by (timestamp, sequence), not approximate:
// this store is the only authority for temporal questions.
package timeline

import (
	"context"
	"time"

	"github.com/recallhq/recall-go-sdk/core"
)

// Order is the scan direction of a range query.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// RangeQuery scopes a scan over one owner's records. A zero Since or
// Until leaves that bound open; Since is inclusive, Until exclusive. An
// empty ChannelID matches every channel; setting it narrows the scan so
// the limit bounds this channel's records, not the owner's overall
// activity.
type RangeQuery struct {
	Owner     core.OwnerKey
	ChannelID string
	Since     time.Time
	Until     time.Time
	Order     Order
	Limit     int
}

// Stats summarizes one owner's stored records.
type Stats struct {
	Count    int64
	Earliest time.Time
	Latest   time.Time
}

// Store is the durable ordered-range-scan backend. Implementations must
// make Append idempotent by record ID (last write wins by sequence) so
// fire-and-forget retries are safe.
type Store interface {
	// Append durably writes a record. The caller has already assigned
	// ID, Timestamp and Sequence.
	Append(ctx context.Context, rec core.MemoryRecord) error

	// Range returns records matching q in exact (timestamp, sequence)
	// order, ascending or descending per q.Order.
	Range(ctx context.Context, q RangeQuery) ([]core.MemoryRecord, error)

	// LastSequence returns the highest sequence stored for owner, zero
	// if none. Used to seed the in-process counter after a restart.
	LastSequence(ctx context.Context, owner core.OwnerKey) (uint64, error)

	// Stats reports record count and time span for owner.
	Stats(ctx context.Context, owner core.OwnerKey) (Stats, error)

	// Close releases resources.
	Close() error
}

// First returns the earliest record in the scoped window, issued as a
// limit-1 ascending range query.
func First(ctx context.Context, s Store, owner core.OwnerKey, since, until time.Time) (core.MemoryRecord, bool, error) {
	recs, err := s.Range(ctx, RangeQuery{Owner: owner, Since: since, Until: until, Order: Asc, Limit: 1})
	if err != nil || len(recs) == 0 {
		return core.MemoryRecord{}, false, err
	}
	return recs[0], true, nil
}

// Last returns the latest record in the scoped window, issued as a
// limit-1 descending range query.
func Last(ctx context.Context, s Store, owner core.OwnerKey, since, until time.Time) (core.MemoryRecord, bool, error) {
	recs, err := s.Range(ctx, RangeQuery{Owner: owner, Since: since, Until: until, Order: Desc, Limit: 1})
	if err != nil || len(recs) == 0 {
		return core.MemoryRecord{}, false, err
	}
	return recs[0], true, nil
}
