// Package cache stores the full catalog listing in Redis.
package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-sweet-shop/internal/domain/entity"
	"github.com/oksasatya/go-sweet-shop/pkg/helpers"
)

const (
	generationKey = "sweets:catalog:gen"
	listKeyPrefix = "sweets:catalog:v"
)

// CatalogCache keys the listing by a generation counter. Invalidate bumps the
// counter, so a listing computed before a mutation is stored under a stale
// key and never served afterwards.
type CatalogCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCatalogCache(rdb *redis.Client, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CatalogCache{rdb: rdb, ttl: ttl}
}

// Generation returns the current generation. A missing counter reads as 0.
func (c *CatalogCache) Generation(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, generationKey).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func listKey(gen int64) string {
	return listKeyPrefix + strconv.FormatInt(gen, 10)
}

// Load returns the cached listing for the current generation together with
// that generation, which callers pass back to Store.
func (c *CatalogCache) Load(ctx context.Context) ([]entity.Sweet, int64, bool, error) {
	gen, err := c.Generation(ctx)
	if err != nil {
		return nil, 0, false, err
	}
	var sweets []entity.Sweet
	ok, err := helpers.RedisGetJSON(ctx, c.rdb, listKey(gen), &sweets)
	if err != nil || !ok {
		return nil, gen, false, err
	}
	return sweets, gen, true, nil
}

// Store caches sweets under gen.
func (c *CatalogCache) Store(ctx context.Context, gen int64, sweets []entity.Sweet) error {
	return helpers.RedisSetJSON(ctx, c.rdb, listKey(gen), sweets, c.ttl)
}

func (c *CatalogCache) Invalidate(ctx context.Context) error {
	return c.rdb.Incr(ctx, generationKey).Err()
}
