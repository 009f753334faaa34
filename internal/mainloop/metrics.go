package mainloop

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	depth   prometheus.Gauge
	delay   prometheus.Histogram
	panics  prometheus.Counter
	dropped prometheus.Counter
}

// newMetrics always returns usable collectors; they are only exported when
// reg is set.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "starbus",
			Subsystem: "mainloop",
			Name:      "queue_depth",
			Help:      "Tasks waiting to run on the main loop.",
		}),
		delay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "starbus",
			Subsystem: "mainloop",
			Name:      "task_delay_seconds",
			Help:      "Time between Post and the task starting.",
			Buckets:   []float64{.001, .004, .016, .033, .066, .25, 1},
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "starbus",
			Subsystem: "mainloop",
			Name:      "task_panics_total",
			Help:      "Tasks that panicked.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "starbus",
			Subsystem: "mainloop",
			Name:      "dropped_tasks_total",
			Help:      "Tasks posted after the loop was closed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.depth, m.delay, m.panics, m.dropped)
	}
	return m
}
