// Package metrics exposes Prometheus counters for the game server. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "domino"

type Metrics struct {
	registry      *prometheus.Registry
	gamesCreated  prometheus.Counter
	gamesActive   prometheus.Gauge
	gamesFinished *prometheus.CounterVec
	actions       *prometheus.CounterVec
	illegalMoves  *prometheus.CounterVec
	subscribers   prometheus.Gauge
}

// New registers the domino collectors plus the Go runtime and process
// collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gamesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_created_total",
			Help:      "Games started.",
		}),
		gamesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "games_active",
			Help:      "Games held in memory.",
		}),
		gamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished games by outcome.",
		}, []string{"outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Accepted turns by action and seat kind.",
		}, []string{"action", "seat"}),
		illegalMoves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "illegal_moves_total",
			Help:      "Rejected placements by reason.",
		}, []string{"reason"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Open event streams.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.gamesCreated,
		m.gamesActive,
		m.gamesFinished,
		m.actions,
		m.illegalMoves,
		m.subscribers,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) GameCreated() {
	if m == nil {
		return
	}
	m.gamesCreated.Inc()
	m.gamesActive.Inc()
}

func (m *Metrics) GameEvicted() {
	if m == nil {
		return
	}
	m.gamesActive.Dec()
}

func (m *Metrics) GameFinished(outcome string) {
	if m == nil {
		return
	}
	m.gamesFinished.WithLabelValues(outcome).Inc()
}

// Action counts an accepted play, draw or pass. seat is "human" or "bot".
func (m *Metrics) Action(action, seat string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, seat).Inc()
}

func (m *Metrics) IllegalMove(reason string) {
	if m == nil {
		return
	}
	m.illegalMoves.WithLabelValues(reason).Inc()
}

func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}
