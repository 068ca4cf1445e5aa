package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type managerMetrics struct {
	state       prometheus.Gauge
	transitions *prometheus.CounterVec
	verify      *prometheus.CounterVec
	refresh     *prometheus.CounterVec
	logout      *prometheus.CounterVec
}

// newManagerMetrics registers with reg. A nil reg yields working but
// unregistered collectors.
func newManagerMetrics(reg prometheus.Registerer) *managerMetrics {
	factory := promauto.With(reg)
	return &managerMetrics{
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "nuvem",
			Subsystem: "session",
			Name:      "state",
			Help:      "Current manager state (0 initializing, 1 unauthenticated, 2 authenticating, 3 online, 4 offline).",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuvem",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "State transitions by target state.",
		}, []string{"to"}),
		verify: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuvem",
			Subsystem: "session",
			Name:      "verify_total",
			Help:      "Code verifications by kind and result.",
		}, []string{"kind", "result"}),
		refresh: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuvem",
			Subsystem: "session",
			Name:      "refresh_total",
			Help:      "Session refreshes by result.",
		}, []string{"result"}),
		logout: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nuvem",
			Subsystem: "session",
			Name:      "logout_total",
			Help:      "Logouts by reason.",
		}, []string{"reason"}),
	}
}
