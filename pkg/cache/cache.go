// Package cache provides a JSON-encoded Redis cache for read models.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ViewCache stores values of type T under a key prefix. A zero ttl means keys never expire.
type ViewCache[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewViewCache creates a ViewCache backed by the provided Redis client.
func NewViewCache[T any](client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *ViewCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &ViewCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *ViewCache[T]) key(id string) string {
	return c.prefix + id
}

// Get returns the cached value for id. Misses and decode failures both report false.
func (c *ViewCache[T]) Get(ctx context.Context, id string) (T, bool) {
	var v T
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "key", c.key(id), "error", err)
		}
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("cache decode failed", "key", c.key(id), "error", err)
		return v, false
	}
	return v, true
}

// Set stores value under id. Write failures are logged, never returned.
func (c *ViewCache[T]) Set(ctx context.Context, id string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", c.key(id), "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(id), data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", c.key(id), "error", err)
	}
}

// Delete evicts id.
func (c *ViewCache[T]) Delete(ctx context.Context, id string) {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.logger.Warn("cache delete failed", "key", c.key(id), "error", err)
	}
}
