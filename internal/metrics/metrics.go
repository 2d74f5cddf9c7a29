package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HeadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstruct_headings_total",
			Help: "Headings recognized, by hierarchy level",
		},
		[]string{"level"},
	)

	DroppedNodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstruct_dropped_nodes_total",
			Help: "Text nodes dropped before classification, by reason",
		},
		[]string{"reason"},
	)

	MergeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstruct_merge_requests_total",
			Help: "Paragraph merge calls, by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	MergeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docstruct_merge_latency_seconds",
			Help:    "Paragraph merge call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"provider"},
	)

	MergeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docstruct_merge_fallbacks_total",
			Help: "Nodes assembled heuristically after a failed merge",
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstruct_runs_total",
			Help: "Extraction runs, by outcome",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "docstruct_run_duration_seconds",
			Help: "Extraction run duration in seconds",
		},
	)

	JobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "docstruct_jobs_queued",
			Help: "Extraction jobs waiting for a worker",
		},
	)

	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docstruct_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "docstruct_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)
)

// Merge outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomeFatal     = "fatal"
	OutcomeError     = "error"
	OutcomeCanceled  = "canceled"
)

// Heading counts one recognized heading.
func Heading(level int) {
	HeadingsTotal.WithLabelValues(strconv.Itoa(level)).Inc()
}

// Dropped counts one dropped node.
func Dropped(reason string) {
	DroppedNodes.WithLabelValues(reason).Inc()
}

// ObserveMerge records one merge call. Latency is only observed for
// successful calls.
func ObserveMerge(provider string, d time.Duration, outcome string) {
	MergeRequests.WithLabelValues(provider, outcome).Inc()
	if outcome == OutcomeOK {
		MergeLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// Run records a finished extraction run.
func Run(d time.Duration, err error) {
	RunDuration.Observe(d.Seconds())
	RunsTotal.WithLabelValues(RunOutcome(err)).Inc()
}

// RunOutcome labels a run error.
func RunOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	}
	return OutcomeError
}
