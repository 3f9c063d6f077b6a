package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	explorerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "explorer",
		Name:      "requests_total",
		Help:      "Count of block explorer API requests.",
	}, []string{"action", "chain", "status"})
	explorerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "explorer",
		Name:      "request_duration_seconds",
		Help:      "Duration of block explorer API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action", "chain", "status"})
)

// Explorer tracks metrics for block explorer REST calls.
type Explorer struct {
	chain string
}

// NewExplorer constructs a metrics collector for explorer calls.
func NewExplorer(chain string) *Explorer {
	if chain == "" {
		chain = "unknown"
	}
	return &Explorer{chain: chain}
}

// Observe records a single explorer request outcome and duration.
func (m Explorer) Observe(action string, err error, started time.Time) {
	status := statusOf(err)
	explorerRequestsTotal.WithLabelValues(action, m.chain, status).Inc()
	explorerRequestDuration.WithLabelValues(action, m.chain, status).Observe(time.Since(started).Seconds())
}
