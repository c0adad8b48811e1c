package redis_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/recallhq/recall-go-sdk/cache"
	redisstore "github.com/recallhq/recall-go-sdk/cache/store/redis"
	"github.com/recallhq/recall-go-sdk/core"
)

// newStore connects to the Redis named by REDIS_ADDR, skipping the test
// when none is configured.
func newStore(t *testing.T) *redisstore.Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis store tests")
	}
	s, err := redisstore.New(redisstore.Config{Addr: addr})
	if err != nil {
		t.Fatalf("Failed to connect to redis: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testKey(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func TestSaveAndFetch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	key := testKey(t)

	entry := &cache.Entry{
		Records: []core.MemoryRecord{{
			ID:           "rec-1",
			UserID:       "alice",
			BotNamespace: "support-bot",
			ChannelID:    "general",
			Role:         core.RoleUser,
			Content:      "hello from redis",
			Timestamp:    time.Now().UTC().Truncate(time.Millisecond),
			Sequence:     1,
		}},
		FetchedAt: time.Now().UTC().Truncate(time.Millisecond),
		ExpiresAt: time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond),
	}

	if err := s.Save(ctx, key, entry, time.Minute); err != nil {
		t.Fatalf("Failed to save entry: %v", err)
	}

	got, ok, err := s.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Failed to fetch entry: %v", err)
	}
	if !ok {
		t.Fatal("Expected entry to be present")
	}
	if len(got.Records) != 1 || got.Records[0].Content != "hello from redis" {
		t.Errorf("Expected round-tripped records, got %+v", got.Records)
	}
}

func TestFetchMiss(t *testing.T) {
	s := newStore(t)

	_, ok, err := s.Fetch(context.Background(), testKey(t))
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if ok {
		t.Fatal("Expected a miss for an unknown key")
	}
}

func TestServerSideExpiry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	key := testKey(t)

	entry := &cache.Entry{ExpiresAt: time.Now().Add(100 * time.Millisecond)}
	if err := s.Save(ctx, key, entry, 100*time.Millisecond); err != nil {
		t.Fatalf("Failed to save entry: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	_, ok, err := s.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Failed to fetch: %v", err)
	}
	if ok {
		t.Fatal("Expected entry to expire server-side")
	}
}
