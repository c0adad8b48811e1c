package cache_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/recallhq/recall-go-sdk/cache"
	rstore "github.com/recallhq/recall-go-sdk/cache/store/ristretto"
	"github.com/recallhq/recall-go-sdk/core"
	"github.com/recallhq/recall-go-sdk/timeline"
	"github.com/recallhq/recall-go-sdk/timeline/sqlite"
)

var (
	owner   = core.OwnerKey{UserID: "alice", BotNamespace: "bot1"}
	channel = core.ChannelKey{OwnerKey: owner, ChannelID: "dm"}
)

type fixture struct {
	cache *cache.Cache
	log   *sqlite.Store
	now   *time.Time
}

func newFixture(t *testing.T, cfg core.Config) *fixture {
	t.Helper()

	log, err := sqlite.New(filepath.Join(t.TempDir(), "timeline.db"))
	if err != nil {
		t.Fatalf("Failed to create timeline: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	entries, err := rstore.New(64)
	if err != nil {
		t.Fatalf("Failed to create entry store: %v", err)
	}

	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	f := &fixture{log: log, now: &now}
	f.cache = cache.New(entries, log, nil, cfg, cache.WithClock(func() time.Time { return *f.now }))
	t.Cleanup(func() { f.cache.Close() })
	return f
}

func (f *fixture) rec(id string, seq uint64, content string) core.MemoryRecord {
	return core.MemoryRecord{
		ID:           id,
		UserID:       owner.UserID,
		BotNamespace: owner.BotNamespace,
		ChannelID:    channel.ChannelID,
		Role:         core.RoleUser,
		Content:      content,
		Timestamp:    *f.now,
		Sequence:     seq,
		Type:         core.TypeConversation,
	}
}

func TestCache_ReadYourWrites(t *testing.T) {
	f := newFixture(t, core.Config{CacheSize: 10, CacheTTL: 5 * time.Minute})
	ctx := context.Background()

	f.cache.Put(ctx, f.rec("r1", 1, "hello"))

	// No waiting on durable writes: the put must be visible immediately.
	got, err := f.cache.GetRecent(ctx, channel, 10)
	if err != nil {
		t.Fatalf("Failed to get recent: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("got %d records, want the put record immediately", len(got))
	}
}

func TestCache_TrimsToBound(t *testing.T) {
	f := newFixture(t, core.Config{CacheSize: 3, CacheTTL: 5 * time.Minute})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		*f.now = f.now.Add(time.Second)
		f.cache.Put(ctx, f.rec(fmt.Sprintf("r%d", i), uint64(i), "turn"))
	}

	got, err := f.cache.GetRecent(ctx, channel, 10)
	if err != nil {
		t.Fatalf("Failed to get recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want bound of 3", len(got))
	}
	if got[0].ID != "r3" || got[2].ID != "r5" {
		t.Errorf("kept records %v, want the 3 most recent in order", ids(got))
	}
}

func TestCache_ExpiryTriggersBootstrapFromLog(t *testing.T) {
	f := newFixture(t, core.Config{CacheSize: 10, CacheTTL: 5 * time.Minute, BootstrapLimit: 50})
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		*f.now = f.now.Add(time.Second)
		f.cache.Put(ctx, f.rec(fmt.Sprintf("r%d", i), uint64(i), "turn"))
	}
	// Let the write-through land before forcing the entry cold.
	f.cache.Wait()

	*f.now = f.now.Add(10 * time.Minute)

	got, err := f.cache.GetRecent(ctx, channel, 10)
	if err != nil {
		t.Fatalf("Failed to get recent after expiry: %v", err)
	}

	// The rebuilt entry must match the log exactly: same set, same order,
	// no gaps, no duplicates.
	want, err := f.log.Range(ctx, timeline.RangeQuery{Owner: owner, Order: timeline.Asc})
	if err != nil {
		t.Fatalf("Failed to range log: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("rebuilt entry has %d records, log has %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID {
			t.Errorf("position %d: cache %s vs log %s", i, got[i].ID, want[i].ID)
		}
	}
}

func TestCache_ColdStartBootstrap(t *testing.T) {
	f := newFixture(t, core.Config{CacheSize: 10, CacheTTL: 5 * time.Minute, BootstrapLimit: 50})
	ctx := context.Background()

	// Records exist only durably, as after a restart.
	for i := 1; i <= 3; i++ {
		r := f.rec(fmt.Sprintf("r%d", i), uint64(i), "old turn")
		r.Timestamp = f.now.Add(time.Duration(i) * time.Second)
		if err := f.log.Append(ctx, r); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}

	got, err := f.cache.GetRecent(ctx, channel, 10)
	if err != nil {
		t.Fatalf("Failed to get recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("cold start returned %d records, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Before(got[i-1]) {
			t.Errorf("bootstrap result not chronological at %d", i)
		}
	}
}

func TestCache_ChannelScoping(t *testing.T) {
	f := newFixture(t, core.Config{CacheSize: 10, CacheTTL: 5 * time.Minute, BootstrapLimit: 50})
	ctx := context.Background()

	dm := f.rec("dm-1", 1, "private")
	if err := f.log.Append(ctx, dm); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	shared := f.rec("shared-1", 2, "public")
	shared.ChannelID = "shared"
	shared.Timestamp = f.now.Add(time.Second)
	if err := f.log.Append(ctx, shared); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	got, err := f.cache.GetRecent(ctx, channel, 10)
	if err != nil {
		t.Fatalf("Failed to get recent: %v", err)
	}
	if len(got) != 1 || got[0].ID != "dm-1" {
		t.Errorf("dm channel saw %v, want only [dm-1]", ids(got))
	}
}

func TestCache_PutIsIdempotent(t *testing.T) {
	f := newFixture(t, core.Config{CacheSize: 10, CacheTTL: 5 * time.Minute})
	ctx := context.Background()

	r := f.rec("dup", 1, "v1")
	f.cache.Put(ctx, r)
	r.Content = "v2"
	f.cache.Put(ctx, r)

	got, err := f.cache.GetRecent(ctx, channel, 10)
	if err != nil {
		t.Fatalf("Failed to get recent: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d records after duplicate put, want 1", len(got))
	}
	if got[0].Content != "v2" {
		t.Errorf("content = %q, want last write v2", got[0].Content)
	}
}

func TestCache_GetRecentLimit(t *testing.T) {
	f := newFixture(t, core.Config{CacheSize: 10, CacheTTL: 5 * time.Minute})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		*f.now = f.now.Add(time.Second)
		f.cache.Put(ctx, f.rec(fmt.Sprintf("r%d", i), uint64(i), "turn"))
	}

	got, err := f.cache.GetRecent(ctx, channel, 2)
	if err != nil {
		t.Fatalf("Failed to get recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "r4" || got[1].ID != "r5" {
		t.Errorf("limit 2 returned %v, want [r4 r5]", ids(got))
	}
}

// downEntries is an entry store whose backend is unreachable, as when a
// shared redis is down.
type downEntries struct{}

func (downEntries) Fetch(context.Context, string) (*cache.Entry, bool, error) {
	return nil, false, fmt.Errorf("entry store down")
}
func (downEntries) Save(context.Context, string, *cache.Entry, time.Duration) error {
	return fmt.Errorf("entry store down")
}
func (downEntries) Close() error { return nil }

// The entry store and the durable log are independent failure domains: a
// record put while the entry store is down must still reach the log.
func TestCache_EntryStoreFailureStillWritesThrough(t *testing.T) {
	log, err := sqlite.New(filepath.Join(t.TempDir(), "timeline.db"))
	if err != nil {
		t.Fatalf("Failed to create timeline: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	c := cache.New(downEntries{}, log, nil, core.Config{
		CacheSize: 10, CacheTTL: 5 * time.Minute, MaxAttempts: 1, RetryBackoff: time.Millisecond,
	})
	t.Cleanup(func() { c.Close() })
	ctx := context.Background()

	r := core.MemoryRecord{
		ID:           "r1",
		UserID:       owner.UserID,
		BotNamespace: owner.BotNamespace,
		ChannelID:    channel.ChannelID,
		Role:         core.RoleUser,
		Content:      "must survive",
		Timestamp:    time.Now(),
		Sequence:     1,
		Type:         core.TypeConversation,
	}
	c.Put(ctx, r)
	c.Wait()

	stats, err := log.Stats(ctx, owner)
	if err != nil {
		t.Fatalf("Failed to read stats: %v", err)
	}
	if stats.Count != 1 {
		t.Fatalf("log holds %d records, want the put record despite the entry store being down", stats.Count)
	}

	// Reads fall through to a log-backed bootstrap every time.
	got, err := c.GetRecent(ctx, channel, 10)
	if err != nil {
		t.Fatalf("Failed to get recent with entry store down: %v", err)
	}
	if len(got) != 1 || got[0].ID != "r1" {
		t.Errorf("got %v, want [r1] served from the log", ids(got))
	}
}

// An owner busy in sibling channels must not push a quiet channel's
// turns out of the bounded bootstrap window.
func TestCache_BootstrapBoundsPerChannel(t *testing.T) {
	f := newFixture(t, core.Config{CacheSize: 10, CacheTTL: 5 * time.Minute, BootstrapLimit: 20})
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		r := f.rec(fmt.Sprintf("dm-%d", i), uint64(i), "quiet channel turn")
		r.Timestamp = f.now.Add(time.Duration(i) * time.Second)
		if err := f.log.Append(ctx, r); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}
	for i := 1; i <= 30; i++ {
		r := f.rec(fmt.Sprintf("busy-%d", i), uint64(3+i), "busy channel turn")
		r.ChannelID = "busy"
		r.Timestamp = f.now.Add(time.Minute + time.Duration(i)*time.Second)
		if err := f.log.Append(ctx, r); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}

	got, err := f.cache.GetRecent(ctx, channel, 10)
	if err != nil {
		t.Fatalf("Failed to get recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("cold bootstrap returned %d dm records, want 3", len(got))
	}
	for i, r := range got {
		if r.ChannelID != channel.ChannelID {
			t.Errorf("position %d: record %s from channel %q", i, r.ID, r.ChannelID)
		}
	}
}

func ids(recs []core.MemoryRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
