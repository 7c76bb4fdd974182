// Package redisindex implements the index store on Redis sets. SADD is the
// concurrency-safe set-add primitive, so simultaneous issuances can register
// ids on the same index without a lost update. Membership order is not
// preserved; callers that need an ordering sort after loading.
package redisindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/memestreet/market_layer/internal/app/storage"
)

// Store is a Redis-backed IndexStore.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

var _ storage.IndexStore = (*Store)(nil)

// New wraps an existing Redis client. The optional prefix namespaces index
// keys so several deployments can share one Redis instance.
func New(client *redis.Client, keyPrefix string) *Store {
	return &Store{client: client, keyPrefix: strings.TrimSpace(keyPrefix)}
}

// Dial connects to the given address and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, keyPrefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client, keyPrefix), nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(index string) string {
	if s.keyPrefix == "" {
		return index
	}
	return s.keyPrefix + ":" + index
}

func (s *Store) AddToIndex(ctx context.Context, index, id string) error {
	if err := s.client.SAdd(ctx, s.key(index), id).Err(); err != nil {
		return fmt.Errorf("index add %s: %w", index, err)
	}
	return nil
}

func (s *Store) ListIndex(ctx context.Context, index string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.key(index)).Result()
	if err != nil {
		return nil, fmt.Errorf("index list %s: %w", index, err)
	}
	return ids, nil
}
