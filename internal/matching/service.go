package matching

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/swellmates/swellmates-backend/internal/common/logger"
)

// Service runs the trip-planning match pipeline: candidate fetch, the
// four-layer evaluation, ranking, and idempotent persistence.
type Service interface {
	RunMatch(ctx context.Context, dto *RunMatchDTO) (*RunMatchResponse, error)
	GetMatchesForChat(ctx context.Context, chatID string, limit, offset int) (*ChatMatchesResponse, error)
	ResetChat(ctx context.Context, chatID string) error
}

// Options carry the run-level tunables from configuration.
type Options struct {
	Workers             int
	ExclusionInlineMax  int
	CandidateFetchLimit int
	AreaPriorityBoost   float64
	NormalizerTimeout   time.Duration
	RunTimeout          time.Duration
}

type service struct {
	repo     Repository
	strategy NormalizationStrategy
	opts     Options
	log      logger.Logger
}

// NewService wires the match service.
func NewService(repo Repository, strategy NormalizationStrategy, opts Options, log logger.Logger) Service {
	return &service{repo: repo, strategy: strategy, opts: opts, log: log}
}

// RunMatch is one synchronous request/response match run, invoked once per
// conversational turn. Compute and persist are separate phases: a
// persistence failure is surfaced alongside the already-computed ranking.
func (s *service) RunMatch(ctx context.Context, dto *RunMatchDTO) (*RunMatchResponse, error) {
	if strings.TrimSpace(dto.ChatID) == "" {
		return nil, ErrChatIDRequired
	}
	if strings.TrimSpace(dto.TripRequest.DestinationCountry) == "" {
		matchRunsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrMissingDestinationCountry
	}

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	runID := uuid.New().String()
	req := &dto.TripRequest
	intent := req.Purpose.Intent()
	log := s.log.With(map[string]interface{}{
		"run_id":  runID,
		"chat_id": dto.ChatID,
		"intent":  intent,
	})

	requester, err := s.repo.GetProfile(ctx, dto.RequestingUserID)
	if err != nil {
		matchRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	excluded, err := s.repo.GetPreviouslyMatched(ctx, dto.ChatID)
	if err != nil {
		matchRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	qb := NewQueryBuilder(s.opts.ExclusionInlineMax, s.opts.CandidateFetchLimit)
	query := qb.Build(req, dto.RequestingUserID, excluded)

	started := time.Now()
	candidates, err := s.repo.FindCandidates(ctx, query)
	if err != nil {
		matchRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	pipelineDuration.WithLabelValues("fetch").Observe(time.Since(started).Seconds())

	if query.InMemoryExclusion {
		candidates = filterExcluded(candidates, query.ExcludedIDs)
	}
	candidatesSurviving.WithLabelValues("fetched").Add(float64(len(candidates)))

	log.Debug("candidate pool fetched", map[string]interface{}{
		"fetched":  len(candidates),
		"excluded": len(excluded),
	})

	normalizer := NewDestinationNormalizer(s.strategy, s.opts.NormalizerTimeout, log)
	destination := normalizer.Normalize(ctx, req.DestinationCountry, req.Area, intent)

	if err := ctx.Err(); err != nil {
		matchRunsTotal.WithLabelValues("timeout").Inc()
		return nil, &TimeoutError{Stage: "normalization"}
	}

	engine := NewEngine(s.opts.Workers, s.opts.AreaPriorityBoost, log)
	ranked, err := engine.Evaluate(ctx, RunInput{
		Request:     req,
		Requester:   requester,
		Destination: destination,
		Intent:      intent,
		Normalizer:  normalizer,
	}, candidates)
	if err != nil {
		matchRunsTotal.WithLabelValues("timeout").Inc()
		return nil, err
	}

	resp := &RunMatchResponse{
		RunID:      runID,
		ChatID:     dto.ChatID,
		TotalCount: len(ranked),
		Matches:    ranked,
	}

	records := buildRecords(dto, intent, ranked, len(excluded))
	if err := s.repo.UpsertMatches(ctx, records); err != nil {
		// The ranking is complete and consistent; only persistence failed.
		matchRunsTotal.WithLabelValues("persist_error").Inc()
		log.Error("match persistence failed", map[string]interface{}{"error": err.Error()})
		return resp, err
	}

	matchRunsTotal.WithLabelValues("ok").Inc()
	log.Info("match run completed", map[string]interface{}{
		"matches": len(ranked),
	})
	return resp, nil
}

func (s *service) GetMatchesForChat(ctx context.Context, chatID string, limit, offset int) (*ChatMatchesResponse, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrChatIDRequired
	}
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.repo.GetMatchesForChat(ctx, chatID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ChatMatchesResponse{
		ChatID:     chatID,
		TotalCount: len(records),
		Matches:    records,
	}, nil
}

func (s *service) ResetChat(ctx context.Context, chatID string) error {
	if strings.TrimSpace(chatID) == "" {
		return ErrChatIDRequired
	}
	return s.repo.DeleteMatchesForChat(ctx, chatID)
}

// filterExcluded drops candidates whose id is in the exclusion set; used
// when the set was too large to fold into the fetch predicate.
func filterExcluded(candidates []*CandidateProfile, excluded []int64) []*CandidateProfile {
	if len(excluded) == 0 {
		return candidates
	}
	skip := make(map[int64]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}
	out := candidates[:0]
	for _, c := range candidates {
		if !skip[c.UserID] {
			out = append(out, c)
		}
	}
	return out
}

func buildRecords(dto *RunMatchDTO, intent Intent, ranked []*MatchResult, excludedCount int) []*MatchRecord {
	filters := FiltersApplied{
		DestinationCountry: dto.TripRequest.DestinationCountry,
		Area:               dto.TripRequest.Area,
		Intent:             intent,
		NonNegotiable:      dto.TripRequest.NonNegotiable,
		ExcludedCount:      excludedCount,
	}

	records := make([]*MatchRecord, 0, len(ranked))
	for _, m := range ranked {
		records = append(records, &MatchRecord{
			ChatID:             dto.ChatID,
			RequestingUserID:   dto.RequestingUserID,
			MatchedUserID:      m.UserID,
			DestinationCountry: dto.TripRequest.DestinationCountry,
			Area:               dto.TripRequest.Area,
			MatchScore:         m.TotalScore,
			PriorityScore:      m.PriorityScore,
			GeneralScore:       m.GeneralScore,
			AreaPriorityBoost:  m.AreaPriorityBoost,
			MatchedAreas:       m.MatchedAreas,
			MatchedTowns:       m.MatchedTowns,
			CommonLifestyle:    m.CommonLifestyleKeywords,
			CommonWave:         m.CommonWaveKeywords,
			DaysInDestination:  m.DaysInDestination,
			Quality:            m.Quality,
			Filters:            filters,
		})
	}
	return records
}
