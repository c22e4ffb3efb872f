// Package cache keeps read-mostly resource catalog entries in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/model"
	"github.com/Ponikrad/dormitory-management-backend-sub000/internal/observability/metrics"
)

// Catalog is a cache-aside store for resources. A nil client disables it:
// every lookup misses and every write is a no-op.
type Catalog struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewCatalog returns a catalog cache. ttl <= 0 falls back to one minute.
func NewCatalog(rdb *redis.Client, prefix string, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if prefix == "" {
		prefix = "catalog"
	}
	return &Catalog{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Catalog) resourceKey(id uint64) string { return fmt.Sprintf("%s:resource:%d", c.prefix, id) }

func (c *Catalog) listKey(activeOnly bool) string {
	if activeOnly {
		return c.prefix + ":resources:active"
	}
	return c.prefix + ":resources:all"
}

// Resource returns the cached resource, or ok=false on a miss or any Redis error.
func (c *Catalog) Resource(ctx context.Context, id uint64) (*model.Resource, bool) {
	var r model.Resource
	if !c.get(ctx, c.resourceKey(id), &r) {
		return nil, false
	}
	return &r, true
}

// StoreResource caches r.
func (c *Catalog) StoreResource(ctx context.Context, r *model.Resource) {
	c.set(ctx, c.resourceKey(r.ID), r)
}

// Resources returns a cached listing.
func (c *Catalog) Resources(ctx context.Context, activeOnly bool) ([]model.Resource, bool) {
	var out []model.Resource
	if !c.get(ctx, c.listKey(activeOnly), &out) {
		return nil, false
	}
	return out, true
}

// StoreResources caches a listing.
func (c *Catalog) StoreResources(ctx context.Context, activeOnly bool, rs []model.Resource) {
	c.set(ctx, c.listKey(activeOnly), rs)
}

// Invalidate drops the resource entry and both listings.
func (c *Catalog) Invalidate(ctx context.Context, id uint64) {
	if c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, c.resourceKey(id), c.listKey(true), c.listKey(false)).Err()
}

func (c *Catalog) get(ctx context.Context, key string, dst any) bool {
	if c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.ObserveCacheLookup("miss")
		return false
	case err != nil:
		metrics.ObserveCacheLookup("error")
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.ObserveCacheLookup("error")
		return false
	}
	metrics.ObserveCacheLookup("hit")
	return true
}

func (c *Catalog) set(ctx context.Context, key string, v any) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
}
