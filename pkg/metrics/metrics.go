package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersPlaced     prometheus.Counter
	PlaceRejected    *prometheus.CounterVec
	PlaceLatencySec  prometheus.Histogram
	Transitions      *prometheus.CounterVec
	StatusConflicts  prometheus.Counter
	Suggestions      *prometheus.CounterVec
	SessionsResolved *prometheus.CounterVec
	Streams          prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	placed := prometheus.NewCounter(prometheus.CounterOpts{Name: "restro_orders_placed_total"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "restro_orders_rejected_total"}, []string{"reason"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "restro_order_place_seconds",
		Buckets: prometheus.DefBuckets,
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "restro_order_transitions_total"}, []string{"to"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "restro_order_status_conflicts_total"})
	suggestions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "restro_suggestions_total"}, []string{"op"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "restro_sessions_resolved_total"}, []string{"role"})
	streams := prometheus.NewGauge(prometheus.GaugeOpts{Name: "restro_open_streams"})

	r.MustRegister(placed, rejected, latency, transitions, conflicts, suggestions, sessions, streams,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Registry{
		reg:              r,
		OrdersPlaced:     placed,
		PlaceRejected:    rejected,
		PlaceLatencySec:  latency,
		Transitions:      transitions,
		StatusConflicts:  conflicts,
		Suggestions:      suggestions,
		SessionsResolved: sessions,
		Streams:          streams,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
