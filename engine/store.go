package engine

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/recallhq/recall-go-sdk/core"
)

// Store validates and completes one turn, then hands it to the hybrid
// cache: the recent window updates synchronously, the durable log and
// index writes happen in the background with retries. The returned
// record carries the assigned ID, timestamp, and sequence number.
//
// Re-storing a record with the same ID is idempotent end to end.
func (e *Engine) Store(ctx context.Context, rec core.MemoryRecord) (core.MemoryRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = e.now()
	}
	if rec.Type == "" {
		rec.Type = core.TypeConversation
	}
	if err := rec.Validate(); err != nil {
		return core.MemoryRecord{}, err
	}

	owner := rec.Owner()
	if rec.Sequence == 0 {
		seq, err := e.nextSequence(ctx, owner)
		if err != nil {
			return core.MemoryRecord{}, err
		}
		rec.Sequence = seq
	}

	// Stored turns count as activity for session boundary tracking.
	e.sessions.Observe(owner, rec.Timestamp)

	e.cache.Put(ctx, rec)
	return rec, nil
}

// sequencer hands out strictly increasing sequence numbers per owner.
// Counters are seeded lazily from the durable log's high-water mark, so
// a restarted process continues the sequence instead of reusing it.
type sequencer struct {
	counters sync.Map // core.OwnerKey -> *ownerCounter
}

type ownerCounter struct {
	seedOnce sync.Once
	seedErr  error
	next     atomic.Uint64
}

func (e *Engine) nextSequence(ctx context.Context, owner core.OwnerKey) (uint64, error) {
	v, _ := e.seq.counters.LoadOrStore(owner, &ownerCounter{})
	c := v.(*ownerCounter)

	c.seedOnce.Do(func() {
		err := core.Retry(ctx, e.cfg.MaxAttempts, e.cfg.RetryBackoff, func(ctx context.Context) error {
			last, err := e.log.LastSequence(ctx, owner)
			if err != nil {
				return err
			}
			c.next.Store(last)
			return nil
		})
		c.seedErr = err
	})
	if c.seedErr != nil {
		// Seeding failed for every caller that raced this Once; drop
		// the counter so a later Store can retry from scratch.
		e.seq.counters.Delete(owner)
		return 0, c.seedErr
	}
	return c.next.Add(1), nil
}
