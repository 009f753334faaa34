package eventbus

import "sync/atomic"

// Subscriber identifies the owner of a set of handler bindings. The bus only
// holds this token; the object that owns the handlers ends its lifetime with
// Release.
type Subscriber struct {
	name     string
	released atomic.Bool
}

// NewSubscriber creates a live subscriber token. The name only shows up in
// logs and errors.
func NewSubscriber(name string) *Subscriber {
	return &Subscriber{name: name}
}

// Name returns the diagnostic name of the subscriber
func (s *Subscriber) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Release marks the subscriber as no longer reachable. Its bindings are never
// invoked again, including tasks already posted to the main context.
func (s *Subscriber) Release() {
	s.released.Store(true)
}

// Alive reports whether the subscriber has not been released
func (s *Subscriber) Alive() bool {
	return s != nil && !s.released.Load()
}

func (s *Subscriber) String() string {
	if s == nil {
		return "<nil>"
	}
	return s.name
}
