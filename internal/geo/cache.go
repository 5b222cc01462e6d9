package geo

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/swellmates/swellmates-backend/internal/common/logger"
	"github.com/swellmates/swellmates-backend/internal/matching"
)

// CachedStrategy decorates a NormalizationStrategy with a Redis cache so
// repeated country+area+intent triples skip the underlying call across
// runs. Cache failures fall through to the inner strategy.
type CachedStrategy struct {
	inner matching.NormalizationStrategy
	rdb   *redis.Client
	ttl   time.Duration
	log   logger.Logger
}

// NewCachedStrategy wraps inner with a Redis cache.
func NewCachedStrategy(inner matching.NormalizationStrategy, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedStrategy {
	return &CachedStrategy{inner: inner, rdb: rdb, ttl: ttl, log: log}
}

func (c *CachedStrategy) NormalizeArea(ctx context.Context, country, text string, intent matching.Intent) ([]matching.CompassArea, error) {
	key := cacheKey("area", country, text, intent)

	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var areas []matching.CompassArea
		if json.Unmarshal(cached, &areas) == nil {
			return areas, nil
		}
	}

	areas, err := c.inner.NormalizeArea(ctx, country, text, intent)
	if err != nil {
		return nil, err
	}

	if payload, merr := json.Marshal(areas); merr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.log.Warn("normalization cache write failed", map[string]interface{}{"error": serr.Error()})
		}
	}
	return areas, nil
}

func (c *CachedStrategy) ExtractTowns(ctx context.Context, country, text string, intent matching.Intent, areas []matching.CompassArea) ([]string, error) {
	key := cacheKey("towns", country, text, intent)

	if cached, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var towns []string
		if json.Unmarshal(cached, &towns) == nil {
			return towns, nil
		}
	}

	towns, err := c.inner.ExtractTowns(ctx, country, text, intent, areas)
	if err != nil {
		return nil, err
	}

	if payload, merr := json.Marshal(towns); merr == nil {
		if serr := c.rdb.Set(ctx, key, payload, c.ttl).Err(); serr != nil {
			c.log.Warn("normalization cache write failed", map[string]interface{}{"error": serr.Error()})
		}
	}
	return towns, nil
}

func cacheKey(kind, country, text string, intent matching.Intent) string {
	return "geo:" + kind + ":" + strings.ToLower(country) + "|" + strings.ToLower(strings.TrimSpace(text)) + "|" + string(intent)
}
