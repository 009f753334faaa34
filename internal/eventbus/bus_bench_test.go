package eventbus_test

import (
	"testing"

	"github.com/KirkDiggler/starbus/internal/eventbus"
)

func BenchmarkPublish(b *testing.B) {
	bus := eventbus.New(nil)

	for i := 0; i < 10; i++ {
		sub := eventbus.NewSubscriber("bench")
		_ = bus.Register(sub, eventbus.Handle(func(*Ping) {})) //nolint:errcheck // benchmark
	}

	event := &Ping{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(event) //nolint:errcheck // benchmark
	}
}

func BenchmarkPublishInterfaceMatch(b *testing.B) {
	bus := eventbus.New(nil)
	sub := eventbus.NewSubscriber("bench")
	_ = bus.Register(sub, eventbus.Handle(func(Greeting) {})) //nolint:errcheck // benchmark

	event := &Pong{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(event) //nolint:errcheck // benchmark
	}
}

func BenchmarkPublishNoHandlers(b *testing.B) {
	bus := eventbus.New(nil)
	event := &Ping{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(event) //nolint:errcheck // benchmark
	}
}

func BenchmarkRegisterUnregister(b *testing.B) {
	bus := eventbus.New(nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sub := eventbus.NewSubscriber("bench")
		_ = bus.Register(sub, eventbus.Handle(func(*Ping) {})) //nolint:errcheck // benchmark
		bus.Unregister(sub)
	}
}
