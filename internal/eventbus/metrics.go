package eventbus

import "github.com/prometheus/client_golang/prometheus"

const (
	modeSync = "sync"
	modeMain = "main"
)

// Metrics holds the bus's Prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	published  prometheus.Counter
	dispatched *prometheus.CounterVec
	failures   prometheus.Counter
	purged     prometheus.Counter
	bindings   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "starbus",
			Subsystem: "eventbus",
			Name:      "published_total",
			Help:      "Events accepted by Publish.",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starbus",
			Subsystem: "eventbus",
			Name:      "dispatched_total",
			Help:      "Handler invocations, by mode (sync or main).",
		}, []string{"mode"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "starbus",
			Subsystem: "eventbus",
			Name:      "handler_failures_total",
			Help:      "Handlers that returned an error or panicked.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "starbus",
			Subsystem: "eventbus",
			Name:      "purged_bindings_total",
			Help:      "Bindings removed because their subscriber was released.",
		}),
		bindings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "starbus",
			Subsystem: "eventbus",
			Name:      "bindings",
			Help:      "Bindings currently held by the registry.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.published, m.dispatched, m.failures, m.purged, m.bindings)
	}
	return m
}

func (m *Metrics) observePublish() {
	if m == nil {
		return
	}
	m.published.Inc()
}

func (m *Metrics) observeDispatch(mode string) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(mode).Inc()
}

func (m *Metrics) observeFailure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

func (m *Metrics) observePurge(n int) {
	if m == nil || n == 0 {
		return
	}
	m.purged.Add(float64(n))
}

func (m *Metrics) setBindings(n int) {
	if m == nil {
		return
	}
	m.bindings.Set(float64(n))
}
