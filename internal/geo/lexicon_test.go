package geo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swellmates/swellmates-backend/internal/matching"
)

func TestLexiconNormalizeArea(t *testing.T) {
	s := NewLexiconStrategy()

	tests := []struct {
		name string
		text string
		want []matching.CompassArea
	}{
		{
			name: "single direction",
			text: "south",
			want: []matching.CompassArea{matching.AreaSouth},
		},
		{
			name: "composite before simple",
			text: "south-west coast",
			want: []matching.CompassArea{matching.AreaSouthWest},
		},
		{
			name: "filler words around the direction",
			text: "somewhere on the northern coast",
			want: []matching.CompassArea{matching.AreaNorth},
		},
		{
			name: "multiple directions deduplicated",
			text: "south and the southern beaches",
			want: []matching.CompassArea{matching.AreaSouth},
		},
		{
			name: "towns are not directions",
			text: "Uluwatu and Canggu",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.NormalizeArea(context.Background(), "Indonesia", tt.text, matching.IntentSurfSpots)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLexiconExtractTowns(t *testing.T) {
	s := NewLexiconStrategy()

	t.Run("keeps capitalized place names", func(t *testing.T) {
		towns, err := s.ExtractTowns(context.Background(), "Indonesia",
			"south coast, Uluwatu and Canggu", matching.IntentSurfSpots, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Uluwatu", "Canggu"}, towns)
	})

	t.Run("drops directions, stopwords and lowercase tokens", func(t *testing.T) {
		towns, err := s.ExtractTowns(context.Background(), "Portugal",
			"the northern beaches near ericeira", matching.IntentAccommodation, nil)
		require.NoError(t, err)
		assert.Empty(t, towns)
	})

	t.Run("deduplicates case-insensitively", func(t *testing.T) {
		towns, err := s.ExtractTowns(context.Background(), "Portugal",
			"Ericeira, ERICEIRA, Peniche", matching.IntentSurfSpots, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ericeira", "Peniche"}, towns)
	})
}
