package eventbus

import (
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/KirkDiggler/starbus/internal/errors"
	"github.com/KirkDiggler/starbus/internal/uuid"
)

// DispatchPolicy decides what happens to the rest of a publish when a handler
// fails.
type DispatchPolicy int

const (
	// DispatchIsolate runs every matching handler and reports all failures together
	DispatchIsolate DispatchPolicy = iota
	// DispatchAbort stops at the first failing handler
	DispatchAbort
)

func (p DispatchPolicy) String() string {
	switch p {
	case DispatchIsolate:
		return "isolate"
	case DispatchAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// ParseDispatchPolicy parses "isolate" or "abort"
func ParseDispatchPolicy(s string) (DispatchPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "isolate":
		return DispatchIsolate, nil
	case "abort":
		return DispatchAbort, nil
	default:
		return DispatchIsolate, errors.InvalidArgumentf("unknown dispatch policy %q", s)
	}
}

// Config configures a Bus
type Config struct {
	// Strict turns a second Register of a live subscriber into an error
	// instead of a logged no-op.
	Strict bool

	// Dispatch is the handler failure policy
	Dispatch DispatchPolicy

	// MainContext receives handlers flagged OnMain. Registering such a handler
	// without one is a configuration error.
	MainContext MainContext

	Logger      *zap.Logger
	Metrics     *Metrics
	IDGenerator uuid.Generator
}

// BindingInfo describes a registered binding
type BindingInfo struct {
	ID         string
	EventType  reflect.Type
	MainThread bool
}

// Bus dispatches published events to registered handlers
type Bus struct {
	registry *registry
	strict   bool
	dispatch DispatchPolicy
	main     MainContext
	logger   *zap.Logger
	metrics  *Metrics
	ids      uuid.Generator
}

// New creates a bus. A nil config gives a lenient, isolating bus with no main
// context.
func New(cfg *Config) *Bus {
	if cfg == nil {
		cfg = &Config{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ids := cfg.IDGenerator
	if ids == nil {
		ids = uuid.NewGoogleUUIDGenerator()
	}

	return &Bus{
		registry: newRegistry(),
		strict:   cfg.Strict,
		dispatch: cfg.Dispatch,
		main:     cfg.MainContext,
		logger:   logger.Named("eventbus"),
		metrics:  cfg.Metrics,
		ids:      ids,
	}
}

// Register binds the handlers to sub. All descriptors are validated before the
// registry is touched.
func (b *Bus) Register(sub *Subscriber, handlers ...Handler) error {
	if sub == nil {
		return errors.InvalidArgument("subscriber cannot be nil")
	}
	if !sub.Alive() {
		return errors.InvalidArgumentf("subscriber %s has been released", sub).
			WithMeta("subscriber", sub.Name())
	}

	for i, h := range handlers {
		if err := b.validate(h); err != nil {
			return errors.Wrapf(err, "register %s: handler %d", sub, i).
				WithMeta("subscriber", sub.Name())
		}
	}

	if len(handlers) == 0 {
		return errors.NoHandlers(fmt.Sprintf("subscriber %s has no handlers", sub)).
			WithMeta("subscriber", sub.Name())
	}

	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	b.purgeLocked()

	if b.registry.owns(sub) {
		if b.strict {
			return errors.AlreadyRegistered(fmt.Sprintf("subscriber %s is already registered", sub)).
				WithMeta("subscriber", sub.Name())
		}
		b.logger.Warn("register called twice on the same subscriber, ignoring second call",
			zap.Stringer("subscriber", sub))
		return nil
	}

	added := make([]*binding, 0, len(handlers))
	for _, h := range handlers {
		added = append(added, &binding{
			id:      b.ids.New(),
			owner:   sub,
			handler: h,
		})
	}
	b.registry.appendLocked(added)
	b.metrics.setBindings(len(b.registry.snapshot()))

	b.logger.Debug("registered subscriber",
		zap.Stringer("subscriber", sub),
		zap.Int("handlers", len(added)))

	return nil
}

// Unregister removes every binding owned by sub, along with any binding whose
// subscriber has been released. Unknown or nil subscribers are ignored.
func (b *Bus) Unregister(sub *Subscriber) {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	stale := 0
	removed := b.registry.removeLocked(func(bd *binding) bool {
		if !bd.live() {
			stale++
			return true
		}
		return bd.owner == sub
	})
	if removed == 0 {
		return
	}

	b.metrics.observePurge(stale)
	b.metrics.setBindings(len(b.registry.snapshot()))

	b.logger.Debug("unregistered subscriber",
		zap.Stringer("subscriber", sub),
		zap.Int("removed", removed),
		zap.Int("stale", stale))
}

// Publish invokes every live handler whose event type accepts event, in
// registration order. Handlers flagged OnMain are posted to the main context
// and not waited for.
func (b *Bus) Publish(event any) error {
	if isNilEvent(event) {
		return errors.InvalidEvent("event cannot be nil")
	}
	b.metrics.observePublish()

	var (
		failures []error
		stale    bool
	)
	defer func() {
		if stale {
			b.purgeStale()
		}
	}()

	for _, bd := range b.registry.snapshot() {
		if !bd.live() {
			stale = true
			continue
		}
		if !bd.handler.accepts(event) {
			continue
		}

		if bd.handler.main {
			b.post(bd, event)
			continue
		}

		b.metrics.observeDispatch(modeSync)
		if err := b.call(bd, event); err != nil {
			if b.dispatch == DispatchAbort {
				return err
			}
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		return errors.HandlerFailed(multierr.Combine(failures...),
			fmt.Sprintf("%d handler(s) failed for %T", len(failures), event))
	}
	return nil
}

// IsRegistered reports whether sub currently owns live bindings
func (b *Bus) IsRegistered(sub *Subscriber) bool {
	return b.registry.owns(sub)
}

// Len returns the number of live bindings
func (b *Bus) Len() int {
	n := 0
	for _, bd := range b.registry.snapshot() {
		if bd.live() {
			n++
		}
	}
	return n
}

// Bindings returns the live bindings owned by sub in registration order
func (b *Bus) Bindings(sub *Subscriber) []BindingInfo {
	var infos []BindingInfo
	for _, bd := range b.registry.snapshot() {
		if bd.owner != sub || !bd.live() {
			continue
		}
		infos = append(infos, BindingInfo{
			ID:         bd.id,
			EventType:  bd.handler.eventType,
			MainThread: bd.handler.main,
		})
	}
	return infos
}

// Clear removes all bindings
func (b *Bus) Clear() {
	b.registry.mu.Lock()
	defer b.registry.mu.Unlock()

	b.registry.store(nil)
	b.metrics.setBindings(0)
	b.logger.Debug("cleared all bindings")
}

func (b *Bus) validate(h Handler) error {
	if h.err != nil {
		return h.err
	}
	if h.invoke == nil {
		return errors.Configuration("empty handler descriptor")
	}
	if h.main && b.main == nil {
		return errors.Configurationf("handler for %s requires a main context but none is configured", h.eventType)
	}
	return nil
}

func (b *Bus) post(bd *binding, event any) {
	b.metrics.observeDispatch(modeMain)
	b.main.Post(func() {
		// the subscriber may have been released while the task was queued
		if !bd.live() {
			return
		}
		_ = b.call(bd, event) //nolint:errcheck // failures are logged by call
	})
}

// call invokes the handler, turning a panic into an error
func (b *Bus) call(bd *binding, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internalf("handler panicked: %v", r)
		}
		if err == nil {
			return
		}

		b.metrics.observeFailure()
		b.logger.Error("handler failed",
			zap.Stringer("subscriber", bd.owner),
			zap.String("binding_id", bd.id),
			zap.String("event_type", fmt.Sprintf("%T", event)),
			zap.Bool("main_thread", bd.handler.main),
			zap.Error(err))

		err = errors.HandlerFailed(err, fmt.Sprintf("handler %s for %T", bd.id, event)).
			WithMeta("subscriber", bd.owner.Name()).
			WithMeta("binding_id", bd.id).
			WithMeta("event_type", fmt.Sprintf("%T", event))
	}()

	return bd.handler.invoke(event)
}

// purgeStale drops released bindings unless a writer holds the registry, so
// publish never waits on registration.
func (b *Bus) purgeStale() {
	if !b.registry.mu.TryLock() {
		return
	}
	defer b.registry.mu.Unlock()

	b.purgeLocked()
}

// purgeLocked requires b.registry.mu
func (b *Bus) purgeLocked() {
	n := b.registry.removeLocked(func(bd *binding) bool {
		return !bd.live()
	})
	if n == 0 {
		return
	}

	b.metrics.observePurge(n)
	b.metrics.setBindings(len(b.registry.snapshot()))
	b.logger.Debug("purged stale bindings", zap.Int("count", n))
}

func isNilEvent(event any) bool {
	if event == nil {
		return true
	}
	v := reflect.ValueOf(event)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
