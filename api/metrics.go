package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks collaboration activity for the operational surface
type Metrics struct {
	RoomsActive            prometheus.Gauge
	ConnectionsActive      prometheus.Gauge
	MessagesTotal          *prometheus.CounterVec
	BroadcastFailuresTotal prometheus.Counter
	SessionsReapedTotal    prometheus.Counter
}

// NewMetrics builds and registers the collaboration metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collab_rooms_active",
			Help: "Number of active collaboration rooms",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collab_connections_active",
			Help: "Number of live collaboration sessions",
		}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collab_messages_total",
			Help: "Inbound collaboration messages routed, by type",
		}, []string{"type"}),
		BroadcastFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collab_broadcast_failures_total",
			Help: "Sends that failed during broadcast and triggered an implicit disconnect",
		}),
		SessionsReapedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collab_sessions_reaped_total",
			Help: "Sessions disconnected by the inactivity reaper",
		}),
	}

	reg.MustRegister(
		m.RoomsActive,
		m.ConnectionsActive,
		m.MessagesTotal,
		m.BroadcastFailuresTotal,
		m.SessionsReapedTotal,
	)
	return m
}
