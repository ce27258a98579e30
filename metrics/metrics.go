// Package metrics exposes Prometheus instrumentation for the acceptor and
// the matchmaker, and an optional HTTP endpoint to scrape it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "termninja"

// Metrics holds the server's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	connections       prometheus.Counter
	accepted          prometheus.Counter
	rejected          prometheus.Counter
	handshakeErrors   prometheus.Counter
	batches           prometheus.Counter
	activeControllers prometheus.Gauge
	queuedSessions    prometheus.Gauge
}

// New registers the collectors with reg. Use a fresh prometheus.NewRegistry
// per server; registering twice on the same registry panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of inbound connections",
		}),
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_accepted_total",
			Help:      "Total number of sessions accepted and queued",
		}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_rejected_total",
			Help:      "Total number of sessions rejected by the hook chain",
		}),
		handshakeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_errors_total",
			Help:      "Total number of connections dropped by an error during the handshake",
		}),
		batches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches handed to a controller",
		}),
		activeControllers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_controllers",
			Help:      "Number of controllers currently running",
		}),
		queuedSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_sessions",
			Help:      "Number of accepted sessions waiting for a match",
		}),
	}
}

// ConnectionOpened counts an accepted TCP connection.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

// SessionAccepted counts a session that passed ShouldAccept.
func (m *Metrics) SessionAccepted() {
	if m != nil {
		m.accepted.Inc()
	}
}

// SessionRejected counts a session that ShouldAccept turned away.
func (m *Metrics) SessionRejected() {
	if m != nil {
		m.rejected.Inc()
	}
}

// HandshakeFailed counts a session dropped by a hook or I/O error
// before it was queued.
func (m *Metrics) HandshakeFailed() {
	if m != nil {
		m.handshakeErrors.Inc()
	}
}

// ControllerStarted counts a new batch and its running controller.
func (m *Metrics) ControllerStarted() {
	if m != nil {
		m.batches.Inc()
		m.activeControllers.Inc()
	}
}

// ControllerFinished marks a controller as no longer running.
func (m *Metrics) ControllerFinished() {
	if m != nil {
		m.activeControllers.Dec()
	}
}

// SetQueued records the current queue length.
func (m *Metrics) SetQueued(n int) {
	if m != nil {
		m.queuedSessions.Set(float64(n))
	}
}
