package auth

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink is an ActivitySink that counts credential events.
type MetricsSink struct {
	events *prometheus.CounterVec
}

var _ ActivitySink = (*MetricsSink)(nil)

// NewMetricsSink registers its collectors with reg. A nil reg uses the
// default registerer.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &MetricsSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rideshare",
				Subsystem: "auth",
				Name:      "events_total",
				Help:      "Credential lifecycle events by type and failure kind.",
			},
			[]string{"event", "failure"},
		),
	}
	reg.MustRegister(s.events)
	return s
}

// Record implements ActivitySink.
func (s *MetricsSink) Record(_ context.Context, event ActivityEvent) error {
	s.events.WithLabelValues(string(event.EventType), string(event.Failure)).Inc()
	return nil
}

// Counter exposes the underlying collector, mainly for tests.
func (s *MetricsSink) Counter() *prometheus.CounterVec {
	return s.events
}
