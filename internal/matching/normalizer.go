package matching

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/swellmates/swellmates-backend/internal/common/logger"
)

// CompassArea is the fixed 8-value enumeration every free-text area is
// reduced to.
type CompassArea string

const (
	AreaNorth     CompassArea = "north"
	AreaSouth     CompassArea = "south"
	AreaEast      CompassArea = "east"
	AreaWest      CompassArea = "west"
	AreaNorthEast CompassArea = "northeast"
	AreaNorthWest CompassArea = "northwest"
	AreaSouthEast CompassArea = "southeast"
	AreaSouthWest CompassArea = "southwest"
)

// compassAreas in canonical order. Composite directions come first so that
// prefix/substring classification prefers "northeast" over "north".
var compassAreas = []CompassArea{
	AreaNorthEast, AreaNorthWest, AreaSouthEast, AreaSouthWest,
	AreaNorth, AreaSouth, AreaEast, AreaWest,
}

// NormalizedDestination is a destination reduced to comparable shape.
// Derived, never persisted.
type NormalizedDestination struct {
	Country string        `json:"country"`
	Areas   []CompassArea `json:"areas"`
	Towns   []string      `json:"towns,omitempty"`
}

// NormalizationStrategy maps free-text geography onto the compass enum and
// town names. Implementations may be network-bound; failures must degrade
// to empty results rather than abort a match run.
type NormalizationStrategy interface {
	NormalizeArea(ctx context.Context, country, text string, intent Intent) ([]CompassArea, error)
	ExtractTowns(ctx context.Context, country, text string, intent Intent, areas []CompassArea) ([]string, error)
}

// DestinationNormalizer reduces the request and candidate history to
// comparable destination hierarchies. Strategy results are memoized per
// country|area|intent triple so one run never normalizes the same input
// twice.
type DestinationNormalizer struct {
	strategy NormalizationStrategy
	timeout  time.Duration
	log      logger.Logger

	mu    sync.Mutex
	cache map[string]NormalizedDestination
}

// NewDestinationNormalizer builds a normalizer for a single match run.
func NewDestinationNormalizer(strategy NormalizationStrategy, timeout time.Duration, log logger.Logger) *DestinationNormalizer {
	return &DestinationNormalizer{
		strategy: strategy,
		timeout:  timeout,
		log:      log,
		cache:    make(map[string]NormalizedDestination),
	}
}

// Normalize reduces a country plus free-text area into a normalized
// destination. Degenerate input (no area text) yields an empty area set;
// strategy failures degrade to "no area/town constraint" with a warning.
func (n *DestinationNormalizer) Normalize(ctx context.Context, country, freeTextArea string, intent Intent) NormalizedDestination {
	key := strings.ToLower(country) + "|" + strings.ToLower(freeTextArea) + "|" + string(intent)

	n.mu.Lock()
	if cached, ok := n.cache[key]; ok {
		n.mu.Unlock()
		normalizationCacheHits.Inc()
		return cached
	}
	n.mu.Unlock()
	normalizationCacheMisses.Inc()

	dest := NormalizedDestination{Country: country}

	if strings.TrimSpace(freeTextArea) != "" {
		sctx := ctx
		var cancel context.CancelFunc
		if n.timeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, n.timeout)
			defer cancel()
		}

		areas, err := n.strategy.NormalizeArea(sctx, country, freeTextArea, intent)
		if err != nil {
			n.log.Warn("area normalization degraded to unconstrained", map[string]interface{}{
				"country": country,
				"error":   err.Error(),
			})
		} else {
			dest.Areas = areas
		}

		// Town granularity only matters for a subset of intents.
		if err == nil && townDetailIntents[intent] {
			towns, terr := n.strategy.ExtractTowns(sctx, country, freeTextArea, intent, dest.Areas)
			if terr != nil {
				n.log.Warn("town extraction degraded to empty", map[string]interface{}{
					"country": country,
					"error":   terr.Error(),
				})
			} else {
				dest.Towns = towns
			}
		}
	}

	n.mu.Lock()
	n.cache[key] = dest
	n.mu.Unlock()

	return dest
}

// ClassifyEntry reduces one historical destination entry to the same shape:
// tokens matching the compass enum become areas, everything else a town.
func (n *DestinationNormalizer) ClassifyEntry(entry DestinationEntry) NormalizedDestination {
	dest := NormalizedDestination{Country: entry.Country}
	for _, tok := range entry.Tokens {
		if area, ok := ParseCompassToken(tok); ok {
			dest.Areas = append(dest.Areas, area)
		} else {
			dest.Towns = append(dest.Towns, tok)
		}
	}
	return dest
}

// ParseCompassToken matches a raw token against the compass enum by exact
// value, prefix, or substring, in that order. Strategy implementations
// reuse it so free-text reduction and history classification agree.
func ParseCompassToken(token string) (CompassArea, bool) {
	tok := strings.ToLower(strings.TrimSpace(token))
	if tok == "" {
		return "", false
	}
	// Common separators collapse ("south-west", "south west").
	collapsed := strings.NewReplacer("-", "", " ", "", "_", "").Replace(tok)

	for _, area := range compassAreas {
		if collapsed == string(area) {
			return area, true
		}
	}
	for _, area := range compassAreas {
		if strings.HasPrefix(collapsed, string(area)) {
			return area, true
		}
	}
	for _, area := range compassAreas {
		if strings.Contains(collapsed, string(area)) {
			return area, true
		}
	}
	return "", false
}

// countryAliases maps alternate spellings onto a canonical lowercase name.
var countryAliases = map[string]string{
	"usa":                      "united states",
	"us":                       "united states",
	"united states of america": "united states",
	"america":                  "united states",
	"uk":                       "united kingdom",
	"great britain":            "united kingdom",
	"britain":                  "united kingdom",
	"uae":                      "united arab emirates",
	"nz":                       "new zealand",
	"ivory coast":              "cote d'ivoire",
}

// canonicalCountry lowercases, trims, and resolves aliases.
func canonicalCountry(name string) string {
	c := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := countryAliases[c]; ok {
		return canonical
	}
	return c
}

// CountriesEqual compares two country names case-insensitively and
// alias-aware, independent of area/town normalization.
func CountriesEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return canonicalCountry(a) == canonicalCountry(b)
}

// countryAliasSet expands a country filter value to every form that should
// pass a DB-level equality check against unnormalized profile data.
func countryAliasSet(name string) []string {
	canonical := canonicalCountry(name)
	out := []string{canonical}
	for alias, target := range countryAliases {
		if target == canonical {
			out = append(out, alias)
		}
	}
	return out
}
