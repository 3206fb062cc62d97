package threespace

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts pipeline outcomes. A nil registerer builds unregistered
// collectors, which is what tests use.
type Metrics struct {
	ReadingsEmitted prometheus.Counter
	ReadingsDropped prometheus.Counter
	Resyncs         prometheus.Counter
	Latency         prometheus.Gauge
}

// NewMetrics creates the driver collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReadingsEmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "threespace",
			Name:      "readings_emitted_total",
			Help:      "Readings handed to the consumer.",
		}),
		ReadingsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "threespace",
			Name:      "readings_dropped_total",
			Help:      "Readings discarded because their timestamp was in the future.",
		}),
		Resyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "threespace",
			Name:      "clock_resyncs_total",
			Help:      "Device clock resynchronizations.",
		}),
		Latency: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "threespace",
			Name:      "message_latency_seconds",
			Help:      "Current one-way message latency estimate.",
		}),
	}
}
