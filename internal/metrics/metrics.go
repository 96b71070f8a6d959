package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels runs that finished without a run-level error.
	OutcomeSuccess = "success"
	// OutcomeError labels runs that ended with an upstream or pipeline error.
	OutcomeError = "error"
)

var (
	commentsCollectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fanpulse",
			Name:      "comments_collected_total",
			Help:      "Raw comment payloads fetched from the comment source.",
		},
	)

	payloadsMalformedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fanpulse",
			Name:      "payloads_malformed_total",
			Help:      "Raw payloads rejected by the normalizer.",
		},
	)

	duplicatesSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fanpulse",
			Name:      "duplicates_skipped_total",
			Help:      "Raw payloads skipped because their key was already seen.",
		},
	)

	feedbackAnalyzedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanpulse",
			Name:      "feedback_analyzed_total",
			Help:      "Feedback items analyzed, partitioned by engine.",
		},
		[]string{"engine"},
	)

	analysisFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fanpulse",
			Name:      "analysis_failures_total",
			Help:      "Feedback items that failed analysis, including whole failed batches.",
		},
	)

	feedbackStoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fanpulse",
			Name:      "feedback_stored_total",
			Help:      "Enriched feedback records upserted into storage.",
		},
	)

	feedbackDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fanpulse",
			Name:      "feedback_dropped_total",
			Help:      "Enriched feedback records dropped after the storage retry.",
		},
	)

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fanpulse",
			Name:      "runs_total",
			Help:      "Collection runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fanpulse",
			Name:      "run_seconds",
			Help:      "Collection run latency in seconds.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		},
	)
)

// Register attaches fanpulse collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		commentsCollectedTotal,
		payloadsMalformedTotal,
		duplicatesSkippedTotal,
		feedbackAnalyzedTotal,
		analysisFailuresTotal,
		feedbackStoredTotal,
		feedbackDroppedTotal,
		runsTotal,
		runDurationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func AddCollected(n int) {
	if n > 0 {
		commentsCollectedTotal.Add(float64(n))
	}
}

func IncMalformed() { payloadsMalformedTotal.Inc() }
func IncDuplicate() { duplicatesSkippedTotal.Inc() }

func AddAnalyzed(engine string, n int) {
	if n > 0 {
		feedbackAnalyzedTotal.WithLabelValues(engine).Add(float64(n))
	}
}

func AddAnalysisFailures(n int) {
	if n > 0 {
		analysisFailuresTotal.Add(float64(n))
	}
}

func AddStored(n int) {
	if n > 0 {
		feedbackStoredTotal.Add(float64(n))
	}
}

func AddDropped(n int) {
	if n > 0 {
		feedbackDroppedTotal.Add(float64(n))
	}
}

// ObserveRun records a collection run duration and outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	runsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}
