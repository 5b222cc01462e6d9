package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_runs_total",
			Help: "Total number of match runs",
		},
		[]string{"status"},
	)

	candidatesSurviving = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_candidates_surviving_total",
			Help: "Candidates surviving each pipeline stage",
		},
		[]string{"stage"},
	)

	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "matching_pipeline_duration_seconds",
			Help: "Duration of pipeline stages",
		},
		[]string{"stage"},
	)

	scoreDistribution = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_total_scores",
			Help:    "Distribution of total match scores",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
	)

	normalizationCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_normalization_cache_hits_total",
			Help: "Per-run normalization cache hits",
		},
	)

	normalizationCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_normalization_cache_misses_total",
			Help: "Per-run normalization cache misses",
		},
	)
)
