package schema

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/metrics"
)

// CachedSource is a read-through Redis cache in front of another Source.
// A Redis failure is logged and the backing source is used instead.
type CachedSource struct {
	next   Source
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSource(next Source, rdb redis.Cmdable, prefix string, ttl time.Duration, log logger.Logger) *CachedSource {
	return &CachedSource{
		next:   next,
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "schema-cache"}),
	}
}

func (c *CachedSource) cacheKey(key string) string {
	return c.prefix + key
}

func (c *CachedSource) LoadSchemaText(ctx context.Context, key string) (string, error) {
	text, err := c.rdb.Get(ctx, c.cacheKey(key)).Result()
	switch {
	case err == nil:
		metrics.SchemaCacheLookups.WithLabelValues("hit").Inc()
		return text, nil
	case errors.Is(err, redis.Nil):
		metrics.SchemaCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.SchemaCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("schema cache read failed", map[string]interface{}{
			"schemaKey": key,
			"error":     err.Error(),
		})
	}

	text, err = c.next.LoadSchemaText(ctx, key)
	if err != nil {
		return "", err
	}

	if err := c.rdb.Set(ctx, c.cacheKey(key), text, c.ttl).Err(); err != nil {
		c.logger.Warn("schema cache write failed", map[string]interface{}{
			"schemaKey": key,
			"error":     err.Error(),
		})
	}
	return text, nil
}

// SaveSchemaText writes through and drops the cached copy. Once the backing
// source has the text the save has succeeded; a failed invalidation only
// delays the new text until the cached copy expires.
func (c *CachedSource) SaveSchemaText(ctx context.Context, key, text string) error {
	if err := c.next.SaveSchemaText(ctx, key, text); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, key); err != nil {
		metrics.SchemaCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("schema cache invalidation failed", map[string]interface{}{
			"schemaKey": key,
			"error":     err.Error(),
			"staleFor":  c.ttl.String(),
		})
	}
	return nil
}

func (c *CachedSource) Invalidate(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.cacheKey(key)).Err()
}
