package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type clientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// newClientMetrics registers with reg. A nil reg yields working but
// unregistered collectors.
func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	factory := promauto.With(reg)
	return &clientMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuvem",
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Identity service requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nuvem",
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Identity service request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
}
