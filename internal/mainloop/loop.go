// Package mainloop provides the single-consumer execution context that
// UI-affine event handlers are posted to.
package mainloop

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config configures a Loop
type Config struct {
	// Clock timestamps posted tasks; defaults to the wall clock
	Clock clock.Clock

	// LagWarning logs a warning when a task waited longer than this before
	// running. Zero disables the warning.
	LagWarning time.Duration

	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

type task struct {
	fn     func()
	posted time.Time
}

// Loop is a FIFO task queue drained by one goroutine at a time. Post never
// blocks and never waits for the task to run.
type Loop struct {
	mu     sync.Mutex
	queue  []task
	closed bool

	// consume serialises Drain so tasks never run concurrently
	consume sync.Mutex

	wake chan struct{}
	done chan struct{}

	clock      clock.Clock
	lagWarning time.Duration
	logger     *zap.Logger
	metrics    *metrics
}

// New creates an open loop
func New(cfg *Config) *Loop {
	if cfg == nil {
		cfg = &Config{}
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Loop{
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		clock:      clk,
		lagWarning: cfg.LagWarning,
		logger:     logger.Named("mainloop"),
		metrics:    newMetrics(cfg.Registerer),
	}
}

// Post queues fn to run on the loop. Tasks posted after Close are dropped.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		l.metrics.dropped.Inc()
		l.logger.Warn("dropping task posted after close")
		return
	}
	l.queue = append(l.queue, task{fn: fn, posted: l.clock.Now()})
	depth := len(l.queue)
	l.mu.Unlock()

	l.metrics.depth.Set(float64(depth))

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is done or the loop is closed. Tasks still
// queued at Close are run before Run returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("main loop started")
	defer l.logger.Debug("main loop stopped")

	for {
		l.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			l.Drain()
			return nil
		case <-l.wake:
		}
	}
}

// Drain runs every task queued at the time of the call on the calling
// goroutine and returns how many ran. Tasks posted by those tasks wait for the
// next drain.
func (l *Loop) Drain() int {
	l.consume.Lock()
	defer l.consume.Unlock()

	l.mu.Lock()
	tasks := l.queue
	l.queue = nil
	l.mu.Unlock()

	if len(tasks) == 0 {
		return 0
	}
	l.metrics.depth.Set(0)

	for _, t := range tasks {
		l.run(t)
	}
	return len(tasks)
}

// Pending returns the number of queued tasks
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops accepting tasks and makes Run return once the queue is empty
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}

func (l *Loop) run(t task) {
	delay := l.clock.Since(t.posted)
	l.metrics.delay.Observe(delay.Seconds())
	if l.lagWarning > 0 && delay > l.lagWarning {
		l.logger.Warn("main loop lagging",
			zap.Duration("delay", delay),
			zap.Duration("threshold", l.lagWarning))
	}

	defer func() {
		if r := recover(); r != nil {
			l.metrics.panics.Inc()
			l.logger.Error("task panicked", zap.Any("panic", r))
		}
	}()

	t.fn()
}
