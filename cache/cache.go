// Package cache implements the bounded, TTL-expiring fast path over
// recent turns, with write-through to the durable backends and
// cold-start bootstrap from the chronological log.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/index"
	"github.com/recallhq/recall-go-sdk/timeline"
)

// Cache is the hybrid fast path. Reads are synchronous and reflect the
// most recent Put from the same process immediately; durable writes
// happen asynchronously behind it. An expired entry is never served:
// the next read always rebuilds from the log, so the cache cannot be
// the source of stale post-restart context.
type Cache struct {
	entries EntryStore
	log     timeline.Store
	idx     index.Index

	size           int
	ttl            time.Duration
	bootstrapLimit int
	maxAttempts    int
	retryBackoff   time.Duration

	group  singleflight.Group
	locks  sync.Map // key string -> *sync.Mutex, scoped per channel key
	writes sync.WaitGroup
	now    func() time.Time
	logger *zap.Logger
}

// Option configures the cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithClock overrides the time source, for deterministic expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a hybrid cache over the given entry store and durable
// backends.
func New(entries EntryStore, log timeline.Store, idx index.Index, cfg core.Config, opts ...Option) *Cache {
	cfg = cfg.WithDefaults()
	c := &Cache{
		entries:        entries,
		log:            log,
		idx:            idx,
		size:           cfg.CacheSize,
		ttl:            cfg.CacheTTL,
		bootstrapLimit: cfg.BootstrapLimit,
		maxAttempts:    cfg.MaxAttempts,
		retryBackoff:   cfg.RetryBackoff,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetRecent returns up to limit most recent turns for the channel, in
// chronological order. A miss or an expired entry triggers one bounded
// bootstrap query against the chronological log; concurrent misses for
// the same key share a single bootstrap.
func (c *Cache) GetRecent(ctx context.Context, key core.ChannelKey, limit int) ([]core.MemoryRecord, error) {
	now := c.now()

	e, ok, err := c.entries.Fetch(ctx, key.String())
	if err != nil {
		c.logger.Warn("entry store fetch failed, bootstrapping",
			zap.String("key", key.String()), zap.Error(err))
		ok = false
	}
	if !ok || e.Expired(now) {
		e, err = c.bootstrap(ctx, key)
		if err != nil {
			return nil, err
		}
	}

	return tail(e.Records, limit), nil
}

// Put appends rec to the channel's entry (trimming to the size bound)
// and schedules the durable write-through. The entry mutation is
// synchronous; the log and index writes are fire-and-forget with retry,
// idempotent by record ID.
//
// The entry store and the durable backends are independent failure
// domains: a failed entry update is logged and the fast path stays cold
// until the next bootstrap, but the durable writes are scheduled
// regardless. Put therefore never reports an error to the caller.
func (c *Cache) Put(ctx context.Context, rec core.MemoryRecord) {
	key := rec.Channel()

	mu := c.lockFor(key.String())
	mu.Lock()
	err := c.applyPut(ctx, key, rec)
	mu.Unlock()
	if err != nil {
		c.logger.Warn("cache entry update failed, fast path degraded until next bootstrap",
			zap.String("key", key.String()),
			zap.String("record_id", rec.ID),
			zap.Error(err))
	}

	c.writeThrough(ctx, rec)
}

// Wait blocks until all scheduled durable writes have finished. Writes
// are never cancelled mid-flight, so this also bounds shutdown.
func (c *Cache) Wait() {
	c.writes.Wait()
}

// Close waits for in-flight writes and releases the entry store.
func (c *Cache) Close() error {
	c.Wait()
	return c.entries.Close()
}

func (c *Cache) applyPut(ctx context.Context, key core.ChannelKey, rec core.MemoryRecord) error {
	now := c.now()

	e, ok, err := c.entries.Fetch(ctx, key.String())
	if err != nil || !ok || e.Expired(now) {
		// Warm the entry first so the append lands on complete data. If
		// the log is unreachable the entry starts from this record alone;
		// the TTL bounds how long that degraded view can live.
		if e, err = c.bootstrap(ctx, key); err != nil {
			c.logger.Warn("bootstrap before put failed, starting fresh entry",
				zap.String("key", key.String()), zap.Error(err))
			e = &Entry{FetchedAt: now, ExpiresAt: now.Add(c.ttl)}
		}
	}

	// Copy-on-write: concurrent readers may hold the fetched entry, so
	// the append builds a fresh one. Idempotent by ID: a retried Put
	// replaces, never duplicates.
	records := make([]core.MemoryRecord, 0, len(e.Records)+1)
	for _, r := range e.Records {
		if r.ID != rec.ID {
			records = append(records, r)
		}
	}
	records = append(records, rec)
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Before(records[b])
	})
	if len(records) > c.size {
		records = records[len(records)-c.size:]
	}

	next := &Entry{Records: records, FetchedAt: e.FetchedAt, ExpiresAt: e.ExpiresAt}
	return c.entries.Save(ctx, key.String(), next, next.ExpiresAt.Sub(now))
}

// bootstrap rebuilds the entry from the chronological log: one bounded
// channel-scoped descending range query, reversed into chronological
// order. Scoping the query itself keeps the limit a bound on this
// channel's records; an owner busy in sibling channels cannot push this
// channel's turns out of the window.
func (c *Cache) bootstrap(ctx context.Context, key core.ChannelKey) (*Entry, error) {
	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		recs, err := c.log.Range(ctx, timeline.RangeQuery{
			Owner:     key.OwnerKey,
			ChannelID: key.ChannelID,
			Order:     timeline.Desc,
			Limit:     c.bootstrapLimit,
		})
		if err != nil {
			return nil, err
		}

		chrono := make([]core.MemoryRecord, 0, len(recs))
		for i := len(recs) - 1; i >= 0; i-- {
			chrono = append(chrono, recs[i])
		}
		if len(chrono) > c.size {
			chrono = chrono[len(chrono)-c.size:]
		}

		now := c.now()
		e := &Entry{Records: chrono, FetchedAt: now, ExpiresAt: now.Add(c.ttl)}
		if err := c.entries.Save(ctx, key.String(), e, c.ttl); err != nil {
			// The rebuilt entry is still good data; a down entry store
			// only costs the next read another bootstrap.
			c.logger.Warn("entry store save after bootstrap failed",
				zap.String("key", key.String()), zap.Error(err))
		}

		c.logger.Debug("cache entry bootstrapped",
			zap.String("key", key.String()),
			zap.Int("records", len(chrono)))
		return e, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// writeThrough schedules the asynchronous durable writes. The write
// context is detached from the caller's: an abandoned turn must not
// leave a partial record behind.
func (c *Cache) writeThrough(ctx context.Context, rec core.MemoryRecord) {
	detached := context.WithoutCancel(ctx)

	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		err := core.Retry(detached, c.maxAttempts, c.retryBackoff, func(ctx context.Context) error {
			return c.log.Append(ctx, rec)
		})
		if err != nil {
			c.logger.Error("write-through to chronological log failed",
				zap.String("record_id", rec.ID), zap.Error(err))
		}
	}()

	if c.idx == nil || len(rec.Embedding) == 0 {
		return
	}
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		err := core.Retry(detached, c.maxAttempts, c.retryBackoff, func(ctx context.Context) error {
			return c.idx.Upsert(ctx, rec)
		})
		if err != nil {
			c.logger.Error("write-through to semantic index failed",
				zap.String("record_id", rec.ID), zap.Error(err))
		}
	}()
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	v, _ := c.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func tail(recs []core.MemoryRecord, limit int) []core.MemoryRecord {
	if limit <= 0 || limit >= len(recs) {
		return recs
	}
	return recs[len(recs)-limit:]
}
