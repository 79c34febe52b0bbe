package observability

import (
	"context"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsObserver counts events in Prometheus collectors registered on its
// own registry.
type MetricsObserver struct {
	registry *prometheus.Registry
	events   *prometheus.CounterVec
	warnings *prometheus.CounterVec
}

// NewMetricsObserver creates a MetricsObserver whose metric names start with
// namespace.
func NewMetricsObserver(namespace string) *MetricsObserver {
	o := &MetricsObserver{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Runtime events by type and subsystem.",
			},
			[]string{"type", "subsystem"},
		),
		warnings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "problems_total",
				Help:      "Warning and error events by type.",
			},
			[]string{"type", "severity"},
		),
	}
	o.registry.MustRegister(o.events, o.warnings)
	return o
}

func (o *MetricsObserver) OnEvent(_ context.Context, event Event) {
	typ := string(event.Type)
	subsystem, _, _ := strings.Cut(typ, ".")

	o.events.WithLabelValues(typ, subsystem).Inc()
	if event.Level >= LevelWarning {
		o.warnings.WithLabelValues(typ, event.Level.String()).Inc()
	}
}

// Registry exposes the underlying registry for additional collectors.
func (o *MetricsObserver) Registry() *prometheus.Registry {
	return o.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (o *MetricsObserver) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}
