package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Change events published, by table and origin (local|relay).",
		},
		[]string{"table", "origin"},
	)

	// resyncs counts subscriber queue overflows that forced a full re-fetch.
	resyncs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_resyncs_total",
			Help: "Subscriber overflows that dropped queued events.",
		},
	)

	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscriptions",
			Help: "Current number of open subscriptions.",
		},
	)
)

func init() {
	prometheus.MustRegister(eventsPublished, resyncs, activeSubscriptions)
}
