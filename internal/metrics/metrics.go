// Package metrics provides Prometheus metrics for the reply bot.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ragtoxiv"

var (
	// NotificationsTotal counts handled notifications by outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications handled, by outcome",
		},
		[]string{"outcome"},
	)

	// LLMRequestsTotal counts completion requests.
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Completion requests, by status",
		},
		[]string{"status"},
	)

	// LLMDuration measures completion latency including retries.
	LLMDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_duration_seconds",
			Help:      "Duration of completion requests in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// PostsTotal counts reply posts.
	PostsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_total",
			Help:      "Reply posts, by status",
		},
		[]string{"status"},
	)

	// ContextPapers observes how many papers went into a prompt.
	ContextPapers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "context_papers",
			Help:      "Papers included in a prompt context",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// SkippedSnapshotsTotal counts unreadable snapshot files.
	SkippedSnapshotsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_snapshots_total",
			Help:      "Snapshot files skipped because they could not be read",
		},
	)

	// PollCyclesTotal counts polling cycles by status.
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Mention polling cycles, by status",
		},
		[]string{"status"},
	)

	// LedgerSize tracks committed notification ids.
	LedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Notification ids recorded as processed",
		},
	)

	// PrunedSnapshotsTotal counts snapshot files removed by retention.
	PrunedSnapshotsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pruned_snapshots_total",
			Help:      "Snapshot files removed by retention",
		},
	)
)

// RecordNotification records a handled notification.
func RecordNotification(outcome string) {
	NotificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordLLM records a completion request.
func RecordLLM(status string, duration time.Duration) {
	LLMRequestsTotal.WithLabelValues(status).Inc()
	LLMDuration.Observe(duration.Seconds())
}

// RecordPost records a reply post attempt sequence.
func RecordPost(status string) {
	PostsTotal.WithLabelValues(status).Inc()
}

// RecordPoll records a polling cycle.
func RecordPoll(status string) {
	PollCyclesTotal.WithLabelValues(status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer returns an HTTP server exposing /metrics on addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// IsServerClosed reports whether err is the normal result of shutting the
// server down.
func IsServerClosed(err error) bool {
	return err == nil || errors.Is(err, http.ErrServerClosed)
}
