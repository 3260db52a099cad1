package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	interactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_interactions_total",
			Help: "Total number of recorded interactions",
		},
		[]string{"kind"},
	)

	likeOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_like_outcomes_total",
			Help: "Outcome of like requests",
		},
		[]string{"outcome"},
	)

	mutualMatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_mutual_matches_total",
			Help: "Total number of mutual matches created",
		},
	)

	unmatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_unmatches_total",
			Help: "Total number of unmatch requests applied",
		},
	)

	candidatesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_candidates_dropped_total",
			Help: "Candidates removed by the candidate filter",
		},
		[]string{"reason"},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of compatibility scores served in feeds",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	feedBuildSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "matching_feed_build_seconds",
			Help: "Time spent building a fresh discovery feed",
		},
	)

	storeRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_store_retries_total",
			Help: "Retries after transient store failures",
		},
		[]string{"operation"},
	)

	weightRefreshFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_weight_refresh_failures_total",
			Help: "Preference weight refreshes that failed after a committed interaction",
		},
	)
)

func recordInteraction(kind InteractionKind) {
	interactionsTotal.WithLabelValues(string(kind)).Inc()
}

func recordLikeOutcome(outcome string) {
	likeOutcomesTotal.WithLabelValues(outcome).Inc()
}

func recordMutualMatch() {
	mutualMatchesTotal.Inc()
}

func recordUnmatch() {
	unmatchesTotal.Inc()
}

func recordCandidateDropped(reason string) {
	candidatesDroppedTotal.WithLabelValues(reason).Inc()
}

func recordCompatibilityScore(score float64) {
	compatibilityScores.Observe(score)
}

func recordFeedBuild(d time.Duration) {
	feedBuildSeconds.Observe(d.Seconds())
}

func recordStoreRetry(operation string) {
	storeRetriesTotal.WithLabelValues(operation).Inc()
}

func recordWeightRefreshFailure() {
	weightRefreshFailuresTotal.Inc()
}
