package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Cache short-circuits repeat retrievals within a TTL window. Both
// implementations are best-effort: a cache failure never fails retrieval.
type Cache interface {
	Get(ctx context.Context, key string) ([]Candidate, bool)
	Set(ctx context.Context, key string, candidates []Candidate)
}

// LRUCache is an in-process TTL-bounded LRU cache.
type LRUCache struct {
	lru *expirable.LRU[string, []Candidate]
}

// NewLRUCache creates an in-process cache holding up to size entries for ttl.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	return &LRUCache{lru: expirable.NewLRU[string, []Candidate](size, nil, ttl)}
}

// Get returns the cached candidates for a key.
func (c *LRUCache) Get(_ context.Context, key string) ([]Candidate, bool) {
	return c.lru.Get(key)
}

// Set stores candidates under a key.
func (c *LRUCache) Set(_ context.Context, key string, candidates []Candidate) {
	c.lru.Add(key, candidates)
}

// RedisCache shares cached retrievals across replicas, with candidates
// encoded as CBOR for compactness.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

const retrievalCacheKeyFmt = "retrieval:%s"

// NewRedisCache creates a redis-backed retrieval cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached candidates for a key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Candidate, bool) {
	data, err := c.client.Get(ctx, fmt.Sprintf(retrievalCacheKeyFmt, key)).Bytes()
	if err != nil {
		return nil, false
	}
	var out []Candidate
	if err := cbor.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

// Set stores candidates under a key for the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, candidates []Candidate) {
	data, err := cbor.Marshal(candidates)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, fmt.Sprintf(retrievalCacheKeyFmt, key), data, c.ttl).Err()
}
