package ws

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ws_sessions_active",
			Help: "Open WebSocket sessions by view.",
		},
		[]string{"view"},
	)
	resyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_resyncs_total",
			Help: "Sessions that fell behind the broker and reloaded from the store.",
		},
		[]string{"view"},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, resyncsTotal)
}
