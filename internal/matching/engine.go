package matching

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/swellmates/swellmates-backend/internal/common/logger"
)

// Layer 3 point values for explicit prioritization hints.
const (
	priorityOriginCountry   = 30
	priorityBoardType       = 40
	prioritySurfLevel       = 35
	priorityAgeRange        = 25
	priorityTravelExp       = 20
	priorityGroupType       = 15
	priorityExceptionWeight = 100
	priorityCap             = 100
)

// Layer 4 contribution parameters.
const (
	generalDaysCap       = 50
	generalAreaBonusHigh = 40
	generalAreaBonusBase = 25
	generalTownBonusHigh = 30
	generalTownBonusBase = 10
	generalBudgetBase    = 30
	generalBudgetStep    = 15
	generalProximityBase = 30
	generalProximityStep = 10
	generalBoardBonus    = 20
	generalGroupBonus    = 15
)

// Engine runs the four-layer filter/score pipeline per candidate and ranks
// the survivors. Per-candidate evaluation reads only immutable shared
// inputs, so it fans out across a bounded worker group and merges with a
// single stable sort.
type Engine struct {
	workers   int
	areaBoost float64
	log       logger.Logger
}

// NewEngine constructs an engine with the given fan-out width and
// area-priority boost.
func NewEngine(workers int, areaBoost float64, log logger.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{workers: workers, areaBoost: areaBoost, log: log}
}

// RunInput bundles the immutable inputs shared by every candidate
// evaluation in one run.
type RunInput struct {
	Request     *TripRequest
	Requester   *CandidateProfile
	Destination NormalizedDestination
	Intent      Intent
	Normalizer  *DestinationNormalizer
}

// Evaluate applies the pipeline to every candidate and returns the ranked
// results. Ties preserve original retrieval order.
func (e *Engine) Evaluate(ctx context.Context, in RunInput, candidates []*CandidateProfile) ([]*MatchResult, error) {
	started := time.Now()
	results := make([]*MatchResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.evaluateCandidate(in, candidate)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &TimeoutError{Stage: "candidate evaluation"}
	}

	ranked := make([]*MatchResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, r)
		}
	}

	// Stable: equal totals keep retrieval order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalScore > ranked[j].TotalScore
	})

	pipelineDuration.WithLabelValues("evaluate").Observe(time.Since(started).Seconds())
	candidatesSurviving.WithLabelValues("ranked").Add(float64(len(ranked)))
	e.log.Debug("pipeline evaluated", map[string]interface{}{
		"candidates": len(candidates),
		"ranked":     len(ranked),
		"elapsed_ms": time.Since(started).Milliseconds(),
	})

	return ranked, nil
}

// evaluateCandidate runs the full per-candidate pipeline. A nil return
// means the candidate was eliminated.
func (e *Engine) evaluateCandidate(in RunInput, c *CandidateProfile) *MatchResult {
	hist, ok := e.preFilter(in, c)
	if !ok {
		return nil
	}
	candidatesSurviving.WithLabelValues("country_prefilter").Inc()

	if !e.passesHardRequirements(in.Request, c) {
		return nil
	}
	candidatesSurviving.WithLabelValues("layer1_hard").Inc()

	if !e.passesInferredConstraints(in, c) {
		return nil
	}
	candidatesSurviving.WithLabelValues("layer2_inferred").Inc()

	priority := e.priorityScore(in, c)
	general := e.generalScore(in, c, hist)

	var boost float64
	if hist.rawAreaHit {
		boost = e.areaBoost
	}

	result := &MatchResult{
		UserID:                  c.UserID,
		PriorityScore:           priority,
		GeneralScore:            general,
		AreaPriorityBoost:       boost,
		TotalScore:              priority + general + boost,
		MatchedAreas:            hist.matchedAreas,
		MatchedTowns:            hist.matchedTowns,
		CommonLifestyleKeywords: commonKeywords(in.Requester.LifestyleKeywords, c.LifestyleKeywords),
		CommonWaveKeywords:      commonKeywords(in.Requester.WaveKeywords, c.WaveKeywords),
		DaysInDestination:       hist.days,
		Quality: MatchQuality{
			CountryMatch: true,
			AreaMatch:    len(hist.matchedAreas) > 0,
			TownMatch:    len(hist.matchedTowns) > 0,
		},
	}
	scoreDistribution.Observe(result.TotalScore)
	return result
}

// historyMatch aggregates a candidate's history against the normalized
// request destination.
type historyMatch struct {
	days         int
	matchedAreas []string
	matchedTowns []string
	// rawAreaHit is true when any historical area token contains the
	// requested area token; it triggers the orchestration-level boost.
	rawAreaHit bool
}

// preFilter retains a candidate only when at least one historical entry's
// country matches the request country, accumulating days and the best
// area/town overlap across matching entries. Candidates with malformed or
// empty histories drop out here rather than erroring.
func (e *Engine) preFilter(in RunInput, c *CandidateProfile) (historyMatch, bool) {
	var hist historyMatch
	reqAreaToken := strings.ToLower(strings.TrimSpace(in.Request.Area))

	areaSet := make(map[CompassArea]bool, len(in.Destination.Areas))
	for _, a := range in.Destination.Areas {
		areaSet[a] = true
	}
	townSet := make(map[string]bool, len(in.Destination.Towns))
	for _, t := range in.Destination.Towns {
		townSet[strings.ToLower(t)] = true
	}

	seenAreas := make(map[string]bool)
	seenTowns := make(map[string]bool)

	for _, entry := range c.Destinations {
		if !CountriesEqual(entry.Country, in.Destination.Country) {
			continue
		}
		if entry.TimeInDays > 0 {
			hist.days += entry.TimeInDays
		}

		classified := in.Normalizer.ClassifyEntry(entry)
		for _, area := range classified.Areas {
			if areaSet[area] && !seenAreas[string(area)] {
				seenAreas[string(area)] = true
				hist.matchedAreas = append(hist.matchedAreas, string(area))
			}
		}
		for _, town := range classified.Towns {
			key := strings.ToLower(town)
			if townSet[key] && !seenTowns[key] {
				seenTowns[key] = true
				hist.matchedTowns = append(hist.matchedTowns, town)
			}
		}

		if reqAreaToken != "" && !hist.rawAreaHit {
			for _, tok := range entry.Tokens {
				if strings.Contains(strings.ToLower(tok), reqAreaToken) {
					hist.rawAreaHit = true
					break
				}
			}
		}
	}

	if hist.days == 0 {
		return hist, false
	}
	return hist, true
}

// passesHardRequirements evaluates Layer 1: every explicit non-negotiable
// field present on the request must be individually satisfied. Absent
// fields pass vacuously.
func (e *Engine) passesHardRequirements(req *TripRequest, c *CandidateProfile) bool {
	hard := req.NonNegotiable

	if len(hard.CountryFrom) > 0 {
		found := false
		for _, country := range hard.CountryFrom {
			if CountriesEqual(country, c.CountryFrom) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(hard.SurfboardTypes) > 0 {
		found := false
		for _, board := range hard.SurfboardTypes {
			if strings.EqualFold(strings.TrimSpace(board), strings.TrimSpace(c.SurfboardType)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if hard.AgeMin != nil && c.Age < *hard.AgeMin {
		return false
	}
	if hard.AgeMax != nil && c.Age > *hard.AgeMax {
		return false
	}

	if hard.SurfLevel.IsCategoryMode() {
		found := false
		want := surfCategoryLevel(c.SurfLevelCategory)
		for _, cat := range hard.SurfLevel.Categories {
			if strings.EqualFold(strings.TrimSpace(cat), strings.TrimSpace(c.SurfLevelCategory)) ||
				(want > 0 && surfCategoryLevel(cat) == want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	} else if !hard.SurfLevel.IsEmpty() {
		lvl := c.EffectiveSurfLevel()
		if hard.SurfLevel.Min != nil && lvl < *hard.SurfLevel.Min {
			return false
		}
		if hard.SurfLevel.Max != nil && lvl > *hard.SurfLevel.Max {
			return false
		}
	}

	return true
}

// inferredRule is one intent-derived gating rule. Returning false
// eliminates the candidate.
type inferredRule func(in RunInput, c *CandidateProfile) bool

// inferredConstraints is the intent-keyed Layer 2 rule set. Candidates
// under unmatched intents pass through unconditionally.
var inferredConstraints = map[Intent][]inferredRule{
	IntentSurfSpots: {
		// Surf-spot discovery phrased around advanced/expert surfing
		// implies a minimum candidate level even when no explicit filter
		// was set.
		func(in RunInput, c *CandidateProfile) bool {
			if in.Request.Purpose.TopicsContain("advanced") || in.Request.Purpose.TopicsContain("expert") {
				return c.EffectiveSurfLevel() >= 3
			}
			return true
		},
	},
}

func (e *Engine) passesInferredConstraints(in RunInput, c *CandidateProfile) bool {
	for _, rule := range inferredConstraints[in.Intent] {
		if !rule(in, c) {
			return false
		}
	}
	return true
}

// priorityScore computes Layer 3: a bounded soft score from the hints the
// requester explicitly supplied. Two alignments promote their contribution
// to a saturating exception weight; the total is capped afterwards, so an
// exception plus smaller bonuses can compound but never exceed the cap.
func (e *Engine) priorityScore(in RunInput, c *CandidateProfile) float64 {
	hints := in.Request.Prioritize
	if hints.IsEmpty() {
		return 0
	}

	var total float64

	if len(hints.CountryFrom) > 0 {
		for _, country := range hints.CountryFrom {
			if CountriesEqual(country, c.CountryFrom) {
				total += priorityOriginCountry
				break
			}
		}
	}

	if hints.SurfboardType != "" && strings.EqualFold(hints.SurfboardType, c.SurfboardType) {
		if in.Intent == IntentProviders || in.Request.Purpose.TopicsContain(strings.ToLower(hints.SurfboardType)) {
			total += priorityExceptionWeight
		} else {
			total += priorityBoardType
		}
	}

	if hintLevel := hintSurfLevel(hints); hintLevel > 0 && hintLevel == c.EffectiveSurfLevel() {
		if in.Intent == IntentSurfSpots && hintLevel >= 3 {
			total += priorityExceptionWeight
		} else {
			total += prioritySurfLevel
		}
	}

	if hints.AgeMin != nil || hints.AgeMax != nil {
		inRange := true
		if hints.AgeMin != nil && c.Age < *hints.AgeMin {
			inRange = false
		}
		if hints.AgeMax != nil && c.Age > *hints.AgeMax {
			inRange = false
		}
		if inRange && c.Age > 0 {
			total += priorityAgeRange
		}
	}

	if hints.TravelExperience != "" {
		want := experienceBracket(hints.TravelExperience)
		if want > 0 && want == experienceBracket(c.TravelExperience) {
			total += priorityTravelExp
		}
	}

	if hints.TravelBuddies != "" && strings.EqualFold(hints.TravelBuddies, c.TravelBuddies) {
		total += priorityGroupType
	}

	if total > priorityCap {
		total = priorityCap
	}
	return total
}

// hintSurfLevel resolves the hint's surf level, category form preferred.
func hintSurfLevel(hints PriorityHints) int {
	if lvl := surfCategoryLevel(hints.SurfLevelCategory); lvl > 0 {
		return lvl
	}
	return hints.SurfLevel
}

// generalScore computes Layer 4: the unbounded additive similarity score
// against the requester's own profile and the candidate's history.
func (e *Engine) generalScore(in RunInput, c *CandidateProfile, hist historyMatch) float64 {
	var total float64

	days := hist.days
	if days > generalDaysCap {
		days = generalDaysCap
	}
	total += float64(days)

	if len(hist.matchedAreas) > 0 {
		switch in.Intent {
		case IntentSurfSpots, IntentAccommodation, IntentHikes:
			total += generalAreaBonusHigh
		default:
			total += generalAreaBonusBase
		}
	}

	if len(hist.matchedTowns) > 0 {
		switch in.Intent {
		case IntentSurfSpots, IntentAccommodation, IntentProviders:
			total += generalTownBonusHigh
		default:
			total += generalTownBonusBase
		}
	}

	if in.Request.BudgetLevel > 0 {
		if candidateBudget := budgetLevel(c.TravelType); candidateBudget > 0 {
			total += stepProximity(generalBudgetBase, generalBudgetStep, in.Request.BudgetLevel, candidateBudget)
		}
	}

	if reqLevel, candLevel := in.Requester.EffectiveSurfLevel(), c.EffectiveSurfLevel(); reqLevel > 0 && candLevel > 0 {
		total += stepProximity(generalProximityBase, generalProximityStep, reqLevel, candLevel)
	}

	if reqExp, candExp := experienceBracket(in.Requester.TravelExperience), experienceBracket(c.TravelExperience); reqExp > 0 && candExp > 0 {
		total += stepProximity(generalProximityBase, generalProximityStep, reqExp, candExp)
	}

	// Board equality is already rewarded at exception weight for
	// equipment-focused intents in Layer 3; suppress the duplicate here.
	if in.Intent != IntentProviders &&
		in.Requester.SurfboardType != "" &&
		strings.EqualFold(in.Requester.SurfboardType, c.SurfboardType) {
		total += generalBoardBonus
	}

	if in.Requester.TravelBuddies != "" && strings.EqualFold(in.Requester.TravelBuddies, c.TravelBuddies) {
		total += generalGroupBonus
	}

	return total
}

// stepProximity is max(0, base - step*|a-b|).
func stepProximity(base, step float64, a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	v := base - step*float64(diff)
	if v < 0 {
		return 0
	}
	return v
}

// commonKeywords intersects two keyword lists case-insensitively,
// preserving the candidate's spelling and order.
func commonKeywords(requester, candidate []string) []string {
	if len(requester) == 0 || len(candidate) == 0 {
		return nil
	}
	set := make(map[string]bool, len(requester))
	for _, k := range requester {
		set[strings.ToLower(strings.TrimSpace(k))] = true
	}
	var out []string
	for _, k := range candidate {
		if set[strings.ToLower(strings.TrimSpace(k))] {
			out = append(out, k)
		}
	}
	return out
}
