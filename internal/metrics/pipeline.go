package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proxyDetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "proxy",
		Name:      "detections_total",
		Help:      "Count of proxy resolutions by matched standard (none when no standard matched).",
	}, []string{"chain", "standard"})
	signatureCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "signature_cache",
		Name:      "lookups_total",
		Help:      "Count of signature cache lookups by result.",
	}, []string{"chain", "result"})
	samplerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sampler",
		Name:      "requests_total",
		Help:      "Count of sample requests.",
	}, []string{"chain", "status"})
	samplerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sampler",
		Name:      "request_duration_seconds",
		Help:      "Duration of sample requests.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"chain", "status"})
	samplerTransactions = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sampler",
		Name:      "sampled_transactions",
		Help:      "Number of transactions returned per successful sample.",
		Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
	}, []string{"chain"})
)

// ObserveProxyDetection counts one freshly computed proxy resolution.
func ObserveProxyDetection(chain, standard string) {
	if standard == "" {
		standard = "none"
	}
	proxyDetectionsTotal.WithLabelValues(chain, standard).Inc()
}

// ObserveSignatureLookup counts a signature cache hit or miss.
func ObserveSignatureLookup(chain string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	signatureCacheLookupsTotal.WithLabelValues(chain, result).Inc()
}

// ObserveSample records a sample request outcome, duration and size.
func ObserveSample(chain string, err error, count int, started time.Time) {
	status := statusOf(err)
	samplerRequestsTotal.WithLabelValues(chain, status).Inc()
	samplerRequestDuration.WithLabelValues(chain, status).Observe(time.Since(started).Seconds())
	if err == nil {
		samplerTransactions.WithLabelValues(chain).Observe(float64(count))
	}
}
