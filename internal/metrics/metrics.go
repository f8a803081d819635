// File: internal/metrics/metrics.go (complete file)

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "connscope"

// Metrics holds every collector the agent exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	transitions *prometheus.CounterVec
	state       *prometheus.GaugeVec
	candidates  *prometheus.CounterVec
	sessions    *prometheus.CounterVec
	history     *prometheus.CounterVec
	cache       *prometheus.CounterVec
	syncs       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "transitions_total",
			Help:      "Connectivity state transitions by event and target state.",
		}, []string{"event", "state"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "controller",
			Name:      "state",
			Help:      "1 for the current connectivity state, 0 otherwise.",
		}, []string{"state"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_total",
			Help:      "Gathered candidates by outcome.",
		}, []string{"outcome"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "sessions_total",
			Help:      "Discovery sessions by result.",
		}, []string{"result"}),
		history: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "operations_total",
			Help:      "History store mutations by kind.",
		}, []string{"op"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache controller decisions by outcome.",
		}, []string{"outcome"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "version_syncs_total",
			Help:      "Version tag synchronisations by result.",
		}, []string{"result"}),
	}
	m.reg.MustRegister(m.transitions, m.state, m.candidates, m.sessions, m.history, m.cache, m.syncs)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) Transition(event, state string, all []string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, state).Inc()
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) Candidate(outcome string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Session(result string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(result).Inc()
}

func (m *Metrics) History(op string) {
	if m == nil {
		return
	}
	m.history.WithLabelValues(op).Inc()
}

func (m *Metrics) Cache(outcome string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Sync(result string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(result).Inc()
}
