package observability

import (
	"context"
	"net/http"

	"github.com/pichlex/debitor/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "debitor"

// Metrics holds the collectors fed by the executor hooks.
type Metrics struct {
	registry *prometheus.Registry

	NodeVisits    *prometheus.CounterVec
	NodeErrors    *prometheus.CounterVec
	UnknownRoutes *prometheus.CounterVec
	Turns         *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
}

// NewMetrics creates the collectors on a dedicated registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of node visits",
		}, []string{"node"}),
		NodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_errors_total",
			Help:      "Node executions that returned an error",
		}, []string{"node"}),
		UnknownRoutes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_routes_total",
			Help:      "Classifications that fell back to the unknown route",
		}, []string{"node"}),
		Turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Completed turns by result",
		}, []string{"result"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of a turn, including the oracle calls",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.NodeVisits, m.NodeErrors, m.UnknownRoutes, m.Turns, m.TurnDuration)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks that record the metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(e.Node).Inc()
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			if e.Err != nil {
				m.NodeErrors.WithLabelValues(e.Node).Inc()
				return
			}
			if e.Route == domain.RouteUnknown {
				m.UnknownRoutes.WithLabelValues(e.Node).Inc()
			}
		},
		OnTurnEnd: func(_ context.Context, e *domain.TurnEvent) {
			result := "ok"
			if e.Err != nil {
				result = "error"
			}
			m.Turns.WithLabelValues(result).Inc()
			m.TurnDuration.Observe(e.Duration.Seconds())
		},
	}
}
