package matching

import (
	"encoding/json"
	"strings"
	"time"
)

// Intent is the inferred purpose of a trip-planning request, derived from
// the request's purpose type and topic keywords. It weights constraint
// gating and scoring downstream.
type Intent string

const (
	IntentSurfSpots       Intent = "surf_spots"
	IntentAccommodation   Intent = "accommodation"
	IntentProviders       Intent = "providers"
	IntentHikes           Intent = "hikes"
	IntentConnectTraveler Intent = "connect_traveler"
	IntentGeneral         Intent = "general"
)

// townDetailIntents are the intents where town-level granularity matters;
// other intents skip town extraction entirely.
var townDetailIntents = map[Intent]bool{
	IntentSurfSpots:     true,
	IntentAccommodation: true,
	IntentProviders:     true,
}

// Purpose carries the raw purpose type plus free-text topic keywords.
type Purpose struct {
	Type   string   `json:"type"`
	Topics []string `json:"topics,omitempty"`
}

// Intent maps the purpose onto the fixed intent enumeration.
func (p Purpose) Intent() Intent {
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "find_surf_spots", "surf_spots", "surf_spot_discovery":
		return IntentSurfSpots
	case "find_accommodation", "find_stay", "accommodation", "stays":
		return IntentAccommodation
	case "find_providers", "find_equipment", "providers", "equipment":
		return IntentProviders
	case "find_hikes", "hikes":
		return IntentHikes
	case "connect_traveler", "connect_travelers", "find_buddy":
		return IntentConnectTraveler
	default:
		return IntentGeneral
	}
}

// TopicsContain reports whether any topic mentions the given keyword,
// case-insensitively.
func (p Purpose) TopicsContain(keyword string) bool {
	keyword = strings.ToLower(keyword)
	for _, t := range p.Topics {
		if strings.Contains(strings.ToLower(t), keyword) {
			return true
		}
	}
	return false
}

// SurfLevelFilter is the hard surf-level filter in one of its two mutually
// exclusive modes: category membership (preferred) or legacy numeric bounds.
// Categories win whenever present; the numeric bounds are ignored then.
type SurfLevelFilter struct {
	Categories []string `json:"categories,omitempty"`
	Min        *int     `json:"min,omitempty"`
	Max        *int     `json:"max,omitempty"`
}

// IsCategoryMode reports whether the filter operates on categories.
func (f SurfLevelFilter) IsCategoryMode() bool {
	return len(f.Categories) > 0
}

// IsEmpty reports whether no surf-level constraint is present at all.
func (f SurfLevelFilter) IsEmpty() bool {
	return len(f.Categories) == 0 && f.Min == nil && f.Max == nil
}

// HardFilters are the request's non-negotiable criteria. Absent fields are
// vacuously satisfied.
type HardFilters struct {
	CountryFrom    []string        `json:"country_from,omitempty"`
	SurfboardTypes []string        `json:"surfboard_type,omitempty"`
	AgeMin         *int            `json:"age_min,omitempty"`
	AgeMax         *int            `json:"age_max,omitempty"`
	SurfLevel      SurfLevelFilter `json:"surf_level,omitempty"`
}

// PriorityHints are the requester's explicit soft preferences feeding the
// bounded priority score. Every field is optional.
type PriorityHints struct {
	CountryFrom       []string `json:"country_from,omitempty"`
	SurfboardType     string   `json:"surfboard_type,omitempty"`
	SurfLevelCategory string   `json:"surf_level_category,omitempty"`
	SurfLevel         int      `json:"surf_level,omitempty"`
	AgeMin            *int     `json:"age_min,omitempty"`
	AgeMax            *int     `json:"age_max,omitempty"`
	TravelExperience  string   `json:"travel_experience,omitempty"`
	TravelBuddies     string   `json:"travel_buddies,omitempty"`
}

// IsEmpty reports whether no hint was supplied.
func (p PriorityHints) IsEmpty() bool {
	return len(p.CountryFrom) == 0 && p.SurfboardType == "" &&
		p.SurfLevelCategory == "" && p.SurfLevel == 0 &&
		p.AgeMin == nil && p.AgeMax == nil &&
		p.TravelExperience == "" && p.TravelBuddies == ""
}

// QueryFilters are pre-computed DB-level filters carried on the request,
// applied conjunctively with the hard filters.
type QueryFilters struct {
	AgeMin *int `json:"age_min,omitempty"`
	AgeMax *int `json:"age_max,omitempty"`
}

// TripRequest is the structured trip request. Immutable once received.
type TripRequest struct {
	DestinationCountry string        `json:"destination_country"`
	Area               string        `json:"area,omitempty"`
	BudgetLevel        int           `json:"budget_level,omitempty"` // 1-3, 0 when unset
	Purpose            Purpose       `json:"purpose"`
	NonNegotiable      HardFilters   `json:"non_negotiable_criteria,omitempty"`
	Prioritize         PriorityHints `json:"prioritize_filters,omitempty"`
	QueryFilters       QueryFilters  `json:"query_filters,omitempty"`
}

// DestinationEntry is one historical trip on a candidate profile, already
// resolved from either the current shape {country, area[], time_in_days}
// or the legacy {destination_name: "Country, Area", time_in_days} string.
// Tokens hold the raw area/town tokens; classification against the compass
// enum happens in the normalizer.
type DestinationEntry struct {
	Country    string
	Tokens     []string
	TimeInDays int
	Legacy     bool
}

// rawDestinationEntry covers both persisted shapes.
type rawDestinationEntry struct {
	Country         string          `json:"country"`
	Area            json.RawMessage `json:"area"`
	DestinationName string          `json:"destination_name"`
	TimeInDays      int             `json:"time_in_days"`
}

// UnmarshalJSON resolves the legacy/current shape split once, at the
// ingestion boundary.
func (d *DestinationEntry) UnmarshalJSON(data []byte) error {
	var raw rawDestinationEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.TimeInDays = raw.TimeInDays

	if raw.Country != "" {
		d.Country = raw.Country
		d.Tokens = parseAreaTokens(raw.Area)
		return nil
	}

	// Legacy single-string shape: "Country, Area, ..." split on commas,
	// first segment is the country, the rest are raw tokens.
	d.Legacy = true
	parts := strings.Split(raw.DestinationName, ",")
	if len(parts) > 0 {
		d.Country = strings.TrimSpace(parts[0])
	}
	for _, p := range parts[1:] {
		if tok := strings.TrimSpace(p); tok != "" {
			d.Tokens = append(d.Tokens, tok)
		}
	}
	return nil
}

// parseAreaTokens accepts the area field as a string or string array.
func parseAreaTokens(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		out := make([]string, 0, len(many))
		for _, t := range many {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
		return out
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		if one = strings.TrimSpace(one); one != "" {
			return []string{one}
		}
	}
	return nil
}

// CandidateProfile is a traveler profile under evaluation. Read-only input
// to a match run.
type CandidateProfile struct {
	UserID            int64              `json:"user_id" db:"user_id"`
	CountryFrom       string             `json:"country_from" db:"country_from"`
	SurfboardType     string             `json:"surfboard_type" db:"surfboard_type"`
	SurfLevel         int                `json:"surf_level" db:"surf_level"`
	SurfLevelCategory string             `json:"surf_level_category" db:"surf_level_category"`
	Age               int                `json:"age" db:"age"`
	TravelExperience  string             `json:"travel_experience" db:"travel_experience"`
	TravelType        string             `json:"travel_type" db:"travel_type"`
	TravelBuddies     string             `json:"travel_buddies" db:"travel_buddies"`
	LifestyleKeywords []string           `json:"lifestyle_keywords"`
	WaveKeywords      []string           `json:"wave_keywords"`
	Destinations      []DestinationEntry `json:"destinations_array"`
}

// EffectiveSurfLevel prefers the category when present, falling back to the
// numeric level.
func (c *CandidateProfile) EffectiveSurfLevel() int {
	if lvl := surfCategoryLevel(c.SurfLevelCategory); lvl > 0 {
		return lvl
	}
	return c.SurfLevel
}

// MatchQuality carries the deterministic match flags. Fields beyond these
// were never reliably populated upstream and are deliberately left out.
type MatchQuality struct {
	CountryMatch bool `json:"country_match"`
	AreaMatch    bool `json:"area_match"`
	TownMatch    bool `json:"town_match"`
}

// MatchResult is the in-memory outcome for one candidate in one run.
type MatchResult struct {
	UserID                  int64        `json:"user_id"`
	PriorityScore           float64      `json:"priority_score"`
	GeneralScore            float64      `json:"general_score"`
	AreaPriorityBoost       float64      `json:"area_priority_boost"`
	TotalScore              float64      `json:"total_score"`
	MatchedAreas            []string     `json:"matched_areas"`
	MatchedTowns            []string     `json:"matched_towns"`
	CommonLifestyleKeywords []string     `json:"common_lifestyle_keywords"`
	CommonWaveKeywords      []string     `json:"common_wave_keywords"`
	DaysInDestination       int          `json:"days_in_destination"`
	Quality                 MatchQuality `json:"match_quality"`
}

// FiltersApplied snapshots the filters a run was executed with, persisted
// alongside each record for auditability.
type FiltersApplied struct {
	DestinationCountry string      `json:"destination_country"`
	Area               string      `json:"area,omitempty"`
	Intent             Intent      `json:"intent"`
	NonNegotiable      HardFilters `json:"non_negotiable_criteria"`
	ExcludedCount      int         `json:"excluded_count"`
}

// MatchRecord is the persisted row, unique on (chat_id, matched_user_id).
type MatchRecord struct {
	ID                 int64    `json:"id" db:"id"`
	ChatID             string   `json:"chat_id" db:"chat_id"`
	RequestingUserID   int64    `json:"requesting_user_id" db:"requesting_user_id"`
	MatchedUserID      int64    `json:"matched_user_id" db:"matched_user_id"`
	DestinationCountry string   `json:"destination_country" db:"destination_country"`
	Area               string   `json:"area" db:"area"`
	MatchScore         float64  `json:"match_score" db:"match_score"`
	PriorityScore      float64  `json:"priority_score" db:"priority_score"`
	GeneralScore       float64  `json:"general_score" db:"general_score"`
	AreaPriorityBoost  float64  `json:"area_priority_boost" db:"area_priority_boost"`
	MatchedAreas       []string `json:"matched_areas"`
	MatchedTowns       []string `json:"matched_towns"`
	CommonLifestyle    []string `json:"common_lifestyle_keywords"`
	CommonWave         []string `json:"common_wave_keywords"`
	DaysInDestination  int      `json:"days_in_destination" db:"days_in_destination"`
	Quality            MatchQuality
	Filters            FiltersApplied
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// surfCategoryLevel maps the category vocabulary onto the numeric scale.
// Unknown categories map to 0.
func surfCategoryLevel(category string) int {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case "beginner":
		return 1
	case "intermediate":
		return 2
	case "advanced":
		return 3
	case "expert", "pro":
		return 4
	default:
		return 0
	}
}

// budgetLevel maps a travel_type bracket onto the 1-3 budget scale.
// Unknown brackets map to 0 and drop out of proximity scoring.
func budgetLevel(travelType string) int {
	switch strings.ToLower(strings.TrimSpace(travelType)) {
	case "budget", "low":
		return 1
	case "mid", "medium":
		return 2
	case "high", "luxury":
		return 3
	default:
		return 0
	}
}

// experienceBracket maps travel_experience onto a coarse 1-4 bracket. The
// field arrives either as an int trip count or a legacy bracket string;
// unknown values map to 0 and are leniently skipped.
func experienceBracket(raw string) int {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0
	}
	switch raw {
	case "novice", "beginner":
		return 1
	case "intermediate", "occasional":
		return 2
	case "experienced", "frequent":
		return 3
	case "expert", "globetrotter":
		return 4
	}
	// Numeric trip count.
	trips := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0
		}
		trips = trips*10 + int(r-'0')
	}
	switch {
	case trips <= 2:
		return 1
	case trips <= 5:
		return 2
	case trips <= 10:
		return 3
	default:
		return 4
	}
}
