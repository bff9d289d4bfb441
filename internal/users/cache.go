package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/classboard/classboard/internal/access"
)

const cachePrefix = "classboard:identity:"

// Cache stores identity snapshots in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache. A non-positive ttl defaults to one minute.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached snapshot, reporting whether it was present.
func (c *Cache) Get(ctx context.Context, id string) (access.Identity, bool, error) {
	raw, err := c.client.Get(ctx, cachePrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return access.Identity{}, false, nil
	}
	if err != nil {
		return access.Identity{}, false, fmt.Errorf("users: cache get: %w", err)
	}
	var ident access.Identity
	if err := json.Unmarshal(raw, &ident); err != nil {
		return access.Identity{}, false, fmt.Errorf("users: cache decode: %w", err)
	}
	return ident, true, nil
}

// Set stores ident for the configured ttl.
func (c *Cache) Set(ctx context.Context, ident access.Identity) error {
	raw, err := json.Marshal(ident)
	if err != nil {
		return fmt.Errorf("users: cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cachePrefix+ident.ID, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("users: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for id.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, cachePrefix+id).Err(); err != nil {
		return fmt.Errorf("users: cache invalidate: %w", err)
	}
	return nil
}
