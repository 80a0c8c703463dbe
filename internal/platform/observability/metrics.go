package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the game server's Prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	activePlayers prometheus.Gauge
	liveNPCs      prometheus.Gauge
	messages      *prometheus.CounterVec
	dropped       prometheus.Counter
	tickDuration  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cityfps",
			Name:      "active_players",
			Help:      "Connections that have named themselves and own a player entity.",
		}),
		liveNPCs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cityfps",
			Name:      "live_npcs",
			Help:      "NPCs currently in the directory.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cityfps",
			Name:      "inbound_messages_total",
			Help:      "Client messages received, by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cityfps",
			Name:      "outbound_dropped_total",
			Help:      "Outbound frames dropped because a client send buffer was full.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cityfps",
			Name:      "tick_duration_seconds",
			Help:      "Time spent advancing NPCs and broadcasting one server tick.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),
	}
	reg.MustRegister(m.activePlayers, m.liveNPCs, m.messages, m.dropped, m.tickDuration)
	return m
}

func (m *Metrics) SetActivePlayers(n int) {
	if m == nil {
		return
	}
	m.activePlayers.Set(float64(n))
}

func (m *Metrics) SetLiveNPCs(n int) {
	if m == nil {
		return
	}
	m.liveNPCs.Set(float64(n))
}

func (m *Metrics) IncMessage(msgType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}
