// Package redis implements the cache entry store on Redis, for
// deployments where several engine processes share one fast path.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/recallhq/recall-go-sdk/cache"
)

const keyPrefix = "recall:recent:"

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store is a redis-backed cache.EntryStore. Entries are stored as JSON
// values under a prefixed key with Redis-side expiry matching the TTL.
type Store struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

// FromClient wraps an existing client, which the caller keeps owning.
func FromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Fetch returns the entry for key if present.
func (s *Store) Fetch(ctx context.Context, key string) (*cache.Entry, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var e cache.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &e, true, nil
}

// Save stores the entry with Redis-side expiry.
func (s *Store) Save(ctx context.Context, key string, e *cache.Entry, ttl time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
