// Package geo provides NormalizationStrategy implementations: a
// deterministic lexicon reducer, an HTTP client for a remote normalization
// service, and a Redis caching decorator.
package geo

import (
	"context"
	"strings"
	"unicode"

	"github.com/swellmates/swellmates-backend/internal/matching"
)

// stopwords are filler tokens that are neither directions nor place names.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "of": true, "in": true, "on": true,
	"at": true, "near": true, "and": true, "or": true, "to": true,
	"coast": true, "coastal": true, "side": true, "part": true, "area": true,
	"region": true, "around": true, "somewhere": true, "beach": true,
	"beaches": true,
}

// LexiconStrategy reduces free text deterministically: tokens matching the
// compass enum become areas, remaining capitalized tokens become town
// names. It needs no network and is the default provider.
type LexiconStrategy struct{}

// NewLexiconStrategy returns the deterministic strategy.
func NewLexiconStrategy() *LexiconStrategy {
	return &LexiconStrategy{}
}

// NormalizeArea maps free text onto the compass enumeration.
func (s *LexiconStrategy) NormalizeArea(_ context.Context, _ string, text string, _ matching.Intent) ([]matching.CompassArea, error) {
	var areas []matching.CompassArea
	seen := make(map[matching.CompassArea]bool)

	for _, tok := range tokenize(text) {
		if stopwords[strings.ToLower(tok)] {
			continue
		}
		if area, ok := matching.ParseCompassToken(tok); ok && !seen[area] {
			seen[area] = true
			areas = append(areas, area)
		}
	}
	return areas, nil
}

// ExtractTowns returns the non-directional, non-filler tokens that look
// like place names (capitalized in the source text).
func (s *LexiconStrategy) ExtractTowns(_ context.Context, _ string, text string, _ matching.Intent, _ []matching.CompassArea) ([]string, error) {
	var towns []string
	seen := make(map[string]bool)

	for _, tok := range tokenize(text) {
		lower := strings.ToLower(tok)
		if stopwords[lower] || seen[lower] {
			continue
		}
		if _, isArea := matching.ParseCompassToken(tok); isArea {
			continue
		}
		if !startsUpper(tok) {
			continue
		}
		seen[lower] = true
		towns = append(towns, tok)
	}
	return towns, nil
}

// tokenize splits on anything that is not a letter, keeping hyphenated
// direction words intact ("south-west").
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})
}

func startsUpper(s string) bool {
	for _, r := range s {
		return unicode.IsUpper(r)
	}
	return false
}
