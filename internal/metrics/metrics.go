package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes recorded by the hub.
const (
	ResultDelivered = "delivered"
	ResultDropped   = "dropped"
	ResultFailed    = "failed"
)

// Metrics owns its registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	connections     prometheus.Gauge
	rooms           prometheus.Gauge
	deliveries      *prometheus.CounterVec
	shareRecomputes prometheus.Counter
	renewals        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainsplit",
			Name:      "ws_connections",
			Help:      "Live websocket connections registered in the hub.",
		}),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chainsplit",
			Name:      "ws_chain_rooms",
			Help:      "Chain rooms with at least one live connection.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainsplit",
			Name:      "message_deliveries_total",
			Help:      "Realtime message push attempts by kind and result.",
		}, []string{"kind", "result"}),
		shareRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chainsplit",
			Name:      "chain_share_recomputes_total",
			Help:      "Accepted invitations that redistributed chain shares.",
		}),
		renewals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chainsplit",
			Name:      "subscription_renewals_total",
			Help:      "Subscriptions processed by the renewal worker by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.rooms,
		m.deliveries,
		m.shareRecomputes,
		m.renewals,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connections.Set(float64(n))
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) Delivery(kind, result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ShareRecompute() {
	if m == nil {
		return
	}
	m.shareRecomputes.Inc()
}

func (m *Metrics) Renewal(outcome string) {
	if m == nil {
		return
	}
	m.renewals.WithLabelValues(outcome).Inc()
}
