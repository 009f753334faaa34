// Package eventbus is an in-process publish/subscribe bus for game events.
//
// Subscribers are identified by a *Subscriber token and bind one or more
// handlers at registration time:
//
//	hud := eventbus.NewSubscriber("hud")
//	err := bus.Register(hud,
//		eventbus.Handle(h.onStarSelected).OnMain(),
//		eventbus.Handle(h.onSpaceTap),
//	)
//
// A handler bound to T receives every published event whose dynamic type is
// assignable to T, so handlers bound to an interface see every implementation.
// Handlers flagged OnMain are posted to the configured MainContext instead of
// running on the publisher's goroutine.
//
// The bus never keeps the subscriber's lifetime: once Release is called on the
// token its bindings are skipped and purged the next time the registry is
// scanned.
package eventbus
