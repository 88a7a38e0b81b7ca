package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "live_contest",
		Name:      "active_sessions",
		Help:      "Number of authenticated participant sessions currently connected.",
	})

	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_contest",
		Name:      "messages_total",
		Help:      "Client messages processed, by message type and outcome.",
	}, []string{"type", "outcome"})

	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_contest",
		Name:      "submissions_total",
		Help:      "Answer submissions, by result (correct, incorrect, duplicate).",
	}, []string{"result"})

	FlushCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "live_contest",
		Name:      "flush_cycles_total",
		Help:      "Submission flush cycles, by outcome.",
	}, []string{"outcome"})

	FlushRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "live_contest",
		Name:      "flush_rows_total",
		Help:      "Submission rows newly inserted into the durable store.",
	})

	FlushCycleSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "live_contest",
		Name:      "flush_cycle_seconds",
		Help:      "Duration of flush cycles that did work.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Outcome labels shared by the websocket layer and the flush worker.
const (
	OutcomeOK       = "ok"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeLocked   = "locked"
)
