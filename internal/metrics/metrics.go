package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for NotesScored.
const (
	OutcomeFlagged             = "flagged"
	OutcomeClear               = "clear"
	OutcomeInsufficientHistory = "insufficient_history"
)

var (
	NotesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notewatch_notes_scored_total",
			Help: "Total number of case notes run through anomaly detection",
		},
		[]string{"outcome"},
	)

	AnomalyScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notewatch_anomaly_score",
			Help:    "Distribution of anomaly scores for notes with enough history",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	ScoringDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notewatch_scoring_duration_seconds",
			Help:    "Time spent scoring one note, including store reads and writes",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
	)

	ScoringErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notewatch_scoring_errors_total",
			Help: "Total number of scoring failures",
		},
		[]string{"stage"}, // stage: load/history/persist
	)
)
