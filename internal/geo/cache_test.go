package geo

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellmates/swellmates-backend/internal/common/logger"
	"github.com/swellmates/swellmates-backend/internal/matching"
)

// countingStrategy records how often the inner strategy is consulted.
type countingStrategy struct {
	areas     []matching.CompassArea
	towns     []string
	areaCalls int64
	townCalls int64
}

func (s *countingStrategy) NormalizeArea(_ context.Context, _, _ string, _ matching.Intent) ([]matching.CompassArea, error) {
	atomic.AddInt64(&s.areaCalls, 1)
	return s.areas, nil
}

func (s *countingStrategy) ExtractTowns(_ context.Context, _, _ string, _ matching.Intent, _ []matching.CompassArea) ([]string, error) {
	atomic.AddInt64(&s.townCalls, 1)
	return s.towns, nil
}

func newCachedStrategy(t *testing.T, inner matching.NormalizationStrategy, ttl time.Duration) (*CachedStrategy, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCachedStrategy(inner, rdb, ttl, logger.NewTestLogger(t)), mr
}

func TestCachedStrategyServesSecondCallFromCache(t *testing.T) {
	inner := &countingStrategy{
		areas: []matching.CompassArea{matching.AreaSouth},
		towns: []string{"Uluwatu"},
	}
	cached, _ := newCachedStrategy(t, inner, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		areas, err := cached.NormalizeArea(ctx, "Indonesia", "south", matching.IntentSurfSpots)
		require.NoError(t, err)
		assert.Equal(t, []matching.CompassArea{matching.AreaSouth}, areas)

		towns, err := cached.ExtractTowns(ctx, "Indonesia", "south", matching.IntentSurfSpots, areas)
		require.NoError(t, err)
		assert.Equal(t, []string{"Uluwatu"}, towns)
	}

	assert.EqualValues(t, 1, inner.areaCalls)
	assert.EqualValues(t, 1, inner.townCalls)
}

func TestCachedStrategyKeyVariesByIntentAndText(t *testing.T) {
	inner := &countingStrategy{areas: []matching.CompassArea{matching.AreaNorth}}
	cached, _ := newCachedStrategy(t, inner, time.Hour)
	ctx := context.Background()

	_, err := cached.NormalizeArea(ctx, "Portugal", "north", matching.IntentSurfSpots)
	require.NoError(t, err)
	_, err = cached.NormalizeArea(ctx, "Portugal", "north", matching.IntentAccommodation)
	require.NoError(t, err)
	_, err = cached.NormalizeArea(ctx, "Portugal", "north coast", matching.IntentSurfSpots)
	require.NoError(t, err)

	assert.EqualValues(t, 3, inner.areaCalls)
}

func TestCachedStrategyExpiresWithTTL(t *testing.T) {
	inner := &countingStrategy{areas: []matching.CompassArea{matching.AreaSouth}}
	cached, mr := newCachedStrategy(t, inner, time.Minute)
	ctx := context.Background()

	_, err := cached.NormalizeArea(ctx, "Indonesia", "south", matching.IntentSurfSpots)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cached.NormalizeArea(ctx, "Indonesia", "south", matching.IntentSurfSpots)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.areaCalls)
}

func TestCachedStrategyFallsThroughWhenRedisIsDown(t *testing.T) {
	inner := &countingStrategy{areas: []matching.CompassArea{matching.AreaEast}}
	cached, mr := newCachedStrategy(t, inner, time.Hour)
	mr.Close()

	areas, err := cached.NormalizeArea(context.Background(), "Portugal", "east", matching.IntentGeneral)
	require.NoError(t, err)
	assert.Equal(t, []matching.CompassArea{matching.AreaEast}, areas)
	assert.EqualValues(t, 1, inner.areaCalls)
}
