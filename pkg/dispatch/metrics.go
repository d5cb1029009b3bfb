package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lgreene/tracksim/pkg/tracker"
	"github.com/lgreene/tracksim/schemas"
)

// Metrics are registered on a caller-supplied registry so a one-shot run can
// push them to a Pushgateway when it finishes.
type Metrics struct {
	events          *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	resets          *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracksim_events_total",
				Help: "Synthetic events sent, by outcome and event type.",
			},
			[]string{"outcome", "type"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracksim_request_duration_seconds",
				Help:    "Latency of track requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracksim_resets_total",
				Help: "Reset requests, by outcome.",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.events, m.requestDuration, m.resets)
	return m
}

func (m *Metrics) observeSend(typ schemas.EventType, res tracker.Result) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(res.Outcome.String(), string(typ)).Inc()
	m.requestDuration.WithLabelValues(res.Outcome.String()).Observe(res.Latency.Seconds())
}

// ObserveReset records the outcome of a reset call.
func (m *Metrics) ObserveReset(res tracker.Result) {
	if m == nil {
		return
	}
	m.resets.WithLabelValues(res.Outcome.String()).Inc()
}
