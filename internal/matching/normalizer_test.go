package matching

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellmates/swellmates-backend/internal/common/logger"
)

// stubStrategy is a deterministic in-process strategy for tests.
type stubStrategy struct {
	areas []CompassArea
	towns []string
	err   error
	calls int64
}

func (s *stubStrategy) NormalizeArea(_ context.Context, _, _ string, _ Intent) ([]CompassArea, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.areas, s.err
}

func (s *stubStrategy) ExtractTowns(_ context.Context, _, _ string, _ Intent, _ []CompassArea) ([]string, error) {
	return s.towns, s.err
}

func TestParseCompassToken(t *testing.T) {
	tests := []struct {
		token string
		want  CompassArea
		ok    bool
	}{
		{"south", AreaSouth, true},
		{"North", AreaNorth, true},
		{"  east ", AreaEast, true},
		{"southwest", AreaSouthWest, true},
		{"south-west", AreaSouthWest, true},
		{"south west", AreaSouthWest, true},
		{"southern", AreaSouth, true},
		{"northeastern", AreaNorthEast, true},
		{"the far southeast corner", AreaSouthEast, true},
		{"Uluwatu", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ParseCompassToken(tt.token)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCountriesEqual(t *testing.T) {
	assert.True(t, CountriesEqual("USA", "United States"))
	assert.True(t, CountriesEqual("united states of america", "US"))
	assert.True(t, CountriesEqual("UK", "United Kingdom"))
	assert.True(t, CountriesEqual("Indonesia", "indonesia"))
	assert.False(t, CountriesEqual("Indonesia", "Portugal"))
	assert.False(t, CountriesEqual("", "Portugal"))
	assert.False(t, CountriesEqual("Portugal", ""))
}

func TestDestinationEntryUnmarshal(t *testing.T) {
	t.Run("current shape with area array", func(t *testing.T) {
		var entry DestinationEntry
		payload := `{"country":"Indonesia","area":["south","Uluwatu"],"time_in_days":30}`
		require.NoError(t, json.Unmarshal([]byte(payload), &entry))

		assert.Equal(t, "Indonesia", entry.Country)
		assert.Equal(t, []string{"south", "Uluwatu"}, entry.Tokens)
		assert.Equal(t, 30, entry.TimeInDays)
		assert.False(t, entry.Legacy)
	})

	t.Run("current shape with single area string", func(t *testing.T) {
		var entry DestinationEntry
		payload := `{"country":"Portugal","area":"north","time_in_days":14}`
		require.NoError(t, json.Unmarshal([]byte(payload), &entry))

		assert.Equal(t, []string{"north"}, entry.Tokens)
	})

	t.Run("legacy combined string", func(t *testing.T) {
		var entry DestinationEntry
		payload := `{"destination_name":"Portugal, North, Ericeira","time_in_days":21}`
		require.NoError(t, json.Unmarshal([]byte(payload), &entry))

		assert.Equal(t, "Portugal", entry.Country)
		assert.Equal(t, []string{"North", "Ericeira"}, entry.Tokens)
		assert.Equal(t, 21, entry.TimeInDays)
		assert.True(t, entry.Legacy)
	})

	t.Run("legacy country only", func(t *testing.T) {
		var entry DestinationEntry
		payload := `{"destination_name":"Morocco","time_in_days":7}`
		require.NoError(t, json.Unmarshal([]byte(payload), &entry))

		assert.Equal(t, "Morocco", entry.Country)
		assert.Empty(t, entry.Tokens)
	})
}

func TestNormalizerDegeneratesToCountryOnly(t *testing.T) {
	strategy := &stubStrategy{areas: []CompassArea{AreaSouth}}
	n := NewDestinationNormalizer(strategy, time.Second, logger.NewTestLogger(t))

	dest := n.Normalize(context.Background(), "Indonesia", "", IntentSurfSpots)

	assert.Equal(t, "Indonesia", dest.Country)
	assert.Empty(t, dest.Areas)
	assert.Empty(t, dest.Towns)
	assert.EqualValues(t, 0, strategy.calls, "empty area text must not call the strategy")
}

func TestNormalizerDegradesOnStrategyFailure(t *testing.T) {
	strategy := &stubStrategy{err: errors.New("upstream timeout")}
	n := NewDestinationNormalizer(strategy, time.Second, logger.NewTestLogger(t))

	dest := n.Normalize(context.Background(), "Indonesia", "south coast", IntentSurfSpots)

	assert.Equal(t, "Indonesia", dest.Country)
	assert.Empty(t, dest.Areas, "strategy failure degrades to no area constraint")
	assert.Empty(t, dest.Towns)
}

func TestNormalizerTownsOnlyForGranularIntents(t *testing.T) {
	strategy := &stubStrategy{
		areas: []CompassArea{AreaSouth},
		towns: []string{"Uluwatu"},
	}
	n := NewDestinationNormalizer(strategy, time.Second, logger.NewTestLogger(t))

	granular := n.Normalize(context.Background(), "Indonesia", "south, Uluwatu", IntentSurfSpots)
	assert.Equal(t, []string{"Uluwatu"}, granular.Towns)

	coarse := n.Normalize(context.Background(), "Indonesia", "south, Uluwatu", IntentConnectTraveler)
	assert.Empty(t, coarse.Towns, "non-granular intents skip town extraction")
	assert.Equal(t, []CompassArea{AreaSouth}, coarse.Areas)
}

func TestNormalizerMemoizesPerRun(t *testing.T) {
	strategy := &stubStrategy{areas: []CompassArea{AreaSouth}}
	n := NewDestinationNormalizer(strategy, time.Second, logger.NewTestLogger(t))

	for i := 0; i < 5; i++ {
		n.Normalize(context.Background(), "Indonesia", "south", IntentSurfSpots)
	}

	assert.EqualValues(t, 1, strategy.calls, "same triple must normalize once per run")
}

func TestClassifyEntrySplitsAreasAndTowns(t *testing.T) {
	n := NewDestinationNormalizer(&stubStrategy{}, time.Second, logger.NewTestLogger(t))

	dest := n.ClassifyEntry(DestinationEntry{
		Country: "Indonesia",
		Tokens:  []string{"south", "Uluwatu", "Canggu", "north-west"},
	})

	assert.Equal(t, []CompassArea{AreaSouth, AreaNorthWest}, dest.Areas)
	assert.Equal(t, []string{"Uluwatu", "Canggu"}, dest.Towns)
}
