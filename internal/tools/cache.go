package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when a key is absent. Callers treat the cache as
// advisory, so a miss is never an error path worth surfacing.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a simple key-value cache for chain data. Entries are advisory:
// the query pipeline never depends on a read-back for correctness.
type Cache interface {
	// Get retrieves a value by key, ErrCacheMiss if not found
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL (zero means no expiry)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// GetJSON retrieves and unmarshals JSON data
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// SetJSON marshals and stores JSON data
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Has checks if a key exists
	Has(ctx context.Context, key string) bool
}

// Standard TTLs for the data this service caches
var (
	// Wallet snapshots go stale with every block
	SnapshotTTL = 30 * time.Second

	// Bytecode presence never changes once deployed
	ContractInfoTTL = 24 * time.Hour * 365

	// Header-level block data is immutable once final
	BlockDetailsTTL = 24 * time.Hour
)

// Cache key patterns, namespaced by chain ID
const (
	ContractInfoKeyPattern = "contract-info:%d:%s"    // contract-info:50311:0x123...
	SnapshotKeyPattern     = "wallet-snapshot:%d:%s"  // wallet-snapshot:50311:0x123...
	BlockDetailsKeyPattern = "block-details:%d:%d"    // block-details:50311:238800679
)

// RedisCache implements Cache against a shared redis instance
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCache creates a redis-backed cache. keyPrefix avoids collisions
// when the instance is shared.
func NewRedisCache(client *redis.Client, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (c *RedisCache) formatKey(key string) string {
	if c.keyPrefix == "" {
		return key
	}
	return fmt.Sprintf("%s:%s", c.keyPrefix, key)
}

// Get retrieves a value by key
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.formatKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return value, nil
}

// Set stores a value with a TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.formatKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// GetJSON retrieves and unmarshals JSON data
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON marshals and stores JSON data
func (c *RedisCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Has checks if a key exists
func (c *RedisCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)
	return err == nil
}

// MemoryCache implements Cache in-process, used when no redis address is
// configured. Backed by ristretto so hot entries survive under pressure.
type MemoryCache struct {
	cache *ristretto.Cache[string, []byte]
}

// NewMemoryCache creates an in-process cache
func NewMemoryCache() (*MemoryCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 1e5,
		MaxCost:     32 << 20, // 32 MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{cache: cache}, nil
}

// Get retrieves a value by key
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	value, found := c.cache.Get(key)
	if !found {
		return nil, ErrCacheMiss
	}
	return value, nil
}

// Set stores a value with a TTL
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.cache.SetWithTTL(key, value, int64(len(value)), ttl)
	// Wait so a Set followed by a Get in the same request sees the entry
	c.cache.Wait()
	return nil
}

// GetJSON retrieves and unmarshals JSON data
func (c *MemoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// SetJSON marshals and stores JSON data
func (c *MemoryCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Has checks if a key exists
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)
	return err == nil
}

// Close releases the underlying store
func (c *MemoryCache) Close() {
	c.cache.Close()
}
