package starfield

import (
	"sync"

	"go.uber.org/zap"

	"github.com/KirkDiggler/starbus/internal/eventbus"
)

// Registrar is the part of the event bus the HUD needs
type Registrar interface {
	Register(sub *eventbus.Subscriber, handlers ...eventbus.Handler) error
	Unregister(sub *eventbus.Subscriber)
}

// HUD mirrors the current selection for display. Selection panels update on
// the main goroutine; taps and the change counter are handled inline.
type HUD struct {
	sub    *eventbus.Subscriber
	bus    Registrar
	logger *zap.Logger

	mu      sync.Mutex
	star    *Star
	fleet   *Fleet
	lastTap *SpaceTapEvent
	changes int
}

// NewHUD creates a detached HUD
func NewHUD(logger *zap.Logger) *HUD {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HUD{
		sub:    eventbus.NewSubscriber("hud"),
		logger: logger.Named("hud"),
	}
}

// Attach subscribes the HUD to bus
func (h *HUD) Attach(bus Registrar) error {
	if err := bus.Register(h.sub,
		eventbus.Handle(h.onStarSelected).OnMain(),
		eventbus.Handle(h.onFleetSelected).OnMain(),
		eventbus.Handle(h.onSelectionChanged),
		eventbus.Handle(h.onSpaceTap),
	); err != nil {
		return err
	}

	h.mu.Lock()
	h.bus = bus
	h.mu.Unlock()
	return nil
}

// Detach unsubscribes the HUD; it can be attached again later
func (h *HUD) Detach() {
	h.mu.Lock()
	bus := h.bus
	h.bus = nil
	h.mu.Unlock()

	if bus != nil {
		bus.Unregister(h.sub)
	}
}

// Close detaches the HUD for good. Updates already queued on the main
// goroutine are dropped.
func (h *HUD) Close() {
	h.Detach()
	h.sub.Release()
}

// Star returns the star shown in the HUD
func (h *HUD) Star() *Star {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.star
}

// Fleet returns the fleet shown in the HUD
func (h *HUD) Fleet() *Fleet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fleet
}

// LastTap returns the most recent tap on empty space
func (h *HUD) LastTap() *SpaceTapEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastTap
}

// SelectionChanges counts every selection event seen
func (h *HUD) SelectionChanges() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.changes
}

func (h *HUD) onStarSelected(e *StarSelectedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.star = e.Star
	if e.Star != nil {
		h.fleet = nil
	}
}

func (h *HUD) onFleetSelected(e *FleetSelectedEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.fleet = e.Fleet
	if e.Fleet != nil {
		h.star = nil
	}
}

func (h *HUD) onSelectionChanged(e SelectionEvent) {
	h.mu.Lock()
	h.changes++
	h.mu.Unlock()

	h.logger.Debug("selection changed", zap.String("key", e.SelectedKey()))
}

func (h *HUD) onSpaceTap(e *SpaceTapEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastTap = e
}
