package eventbus_test

import (
	stderrors "errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KirkDiggler/starbus/internal/errors"
	"github.com/KirkDiggler/starbus/internal/eventbus"
)

type Greeting interface {
	Greet() string
}

type Ping struct{ Seq int }

func (p *Ping) Greet() string { return "ping" }

type Pong struct{ Seq int }

func (p *Pong) Greet() string { return "pong" }

type Unrelated struct{}

// queueMain collects posted tasks until the test runs them
type queueMain struct {
	mu    sync.Mutex
	tasks []func()
}

func (q *queueMain) Post(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, fn)
}

func (q *queueMain) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *queueMain) run() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()

	for _, task := range tasks {
		task()
	}
}

type BusSuite struct {
	suite.Suite
	main *queueMain
	logs *observer.ObservedLogs
	bus  *eventbus.Bus
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	core, logs := observer.New(zapcore.DebugLevel)
	s.logs = logs
	s.main = &queueMain{}
	s.bus = eventbus.New(&eventbus.Config{
		Strict:      true,
		MainContext: s.main,
		Logger:      zap.New(core),
	})
}

func (s *BusSuite) TestRegisterAndPublish() {
	sub := eventbus.NewSubscriber("scanner")
	var got []*Ping

	err := s.bus.Register(sub, eventbus.Handle(func(p *Ping) {
		got = append(got, p)
	}))
	s.Require().NoError(err)

	ping := &Ping{Seq: 1}
	s.NoError(s.bus.Publish(ping))

	s.Equal([]*Ping{ping}, got)
	s.True(s.bus.IsRegistered(sub))
	s.Equal(1, s.bus.Len())
}

func (s *BusSuite) TestRegisterNilSubscriber() {
	err := s.bus.Register(nil, eventbus.Handle(func(*Ping) {}))

	s.True(errors.IsInvalidArgument(err))
	s.Equal(0, s.bus.Len())
}

func (s *BusSuite) TestRegisterReleasedSubscriber() {
	sub := eventbus.NewSubscriber("gone")
	sub.Release()

	err := s.bus.Register(sub, eventbus.Handle(func(*Ping) {}))

	s.True(errors.IsInvalidArgument(err))
	s.False(s.bus.IsRegistered(sub))
}

func (s *BusSuite) TestRegisterWithoutHandlers() {
	existing := eventbus.NewSubscriber("existing")
	s.Require().NoError(s.bus.Register(existing, eventbus.Handle(func(*Ping) {})))

	sub := eventbus.NewSubscriber("empty")
	err := s.bus.Register(sub)

	s.True(errors.IsNoHandlers(err))
	s.Equal("empty", errors.GetMeta(err)["subscriber"])
	s.False(s.bus.IsRegistered(sub))
	s.Equal(1, s.bus.Len())
}

func (s *BusSuite) TestRegisterConfigurationErrors() {
	cases := map[string]eventbus.Handler{
		"primitive generic":   eventbus.Handle(func(int) {}),
		"string generic":      eventbus.Handle(func(string) {}),
		"nil generic":         eventbus.Handle[*Ping](nil),
		"nil error generic":   eventbus.HandleErr[*Ping](nil),
		"not a func":          eventbus.Bind(42),
		"nil func":            eventbus.Bind((func(*Ping))(nil)),
		"two parameters":      eventbus.Bind(func(*Ping, *Pong) {}),
		"no parameters":       eventbus.Bind(func() {}),
		"variadic":            eventbus.Bind(func(...*Ping) {}),
		"primitive parameter": eventbus.Bind(func(float64) {}),
		"non-error result":    eventbus.Bind(func(*Ping) int { return 0 }),
		"two results":         eventbus.Bind(func(*Ping) (int, error) { return 0, nil }),
		"zero descriptor":     {},
	}

	for name, h := range cases {
		s.Run(name, func() {
			sub := eventbus.NewSubscriber(name)
			err := s.bus.Register(sub, eventbus.Handle(func(*Ping) {}), h)

			s.True(errors.IsConfiguration(err), "got %v", err)
			s.False(s.bus.IsRegistered(sub))
			s.Equal(0, s.bus.Len())
		})
	}
}

func (s *BusSuite) TestRegisterMainHandlerWithoutMainContext() {
	bus := eventbus.New(nil)
	sub := eventbus.NewSubscriber("ui")

	err := bus.Register(sub, eventbus.Handle(func(*Pong) {}).OnMain())

	s.True(errors.IsConfiguration(err))
	s.Equal(0, bus.Len())
}

func (s *BusSuite) TestRegisterTwiceStrict() {
	sub := eventbus.NewSubscriber("hud")
	s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(*Ping) {})))

	err := s.bus.Register(sub, eventbus.Handle(func(*Pong) {}))

	s.True(errors.IsAlreadyRegistered(err))
	s.Len(s.bus.Bindings(sub), 1)
}

func (s *BusSuite) TestRegisterTwiceLenient() {
	core, logs := observer.New(zapcore.WarnLevel)
	bus := eventbus.New(&eventbus.Config{Logger: zap.New(core)})
	sub := eventbus.NewSubscriber("hud")
	s.Require().NoError(bus.Register(sub, eventbus.Handle(func(*Ping) {}), eventbus.Handle(func(*Pong) {})))
	before := bus.Bindings(sub)

	err := bus.Register(sub, eventbus.Handle(func(*Unrelated) {}))

	s.NoError(err)
	s.Equal(before, bus.Bindings(sub))
	s.Equal(1, logs.FilterMessage("register called twice on the same subscriber, ignoring second call").Len())
}

func (s *BusSuite) TestRegisterAgainAfterUnregister() {
	sub := eventbus.NewSubscriber("hud")
	s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(*Ping) {})))
	s.bus.Unregister(sub)

	s.NoError(s.bus.Register(sub, eventbus.Handle(func(*Ping) {})))
	s.True(s.bus.IsRegistered(sub))
}

func (s *BusSuite) TestPublishNilEvent() {
	called := false
	sub := eventbus.NewSubscriber("any")
	s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(any) { called = true })))

	var typedNil *Ping
	for _, event := range []any{nil, typedNil} {
		err := s.bus.Publish(event)
		s.True(errors.IsInvalidEvent(err))
	}
	s.False(called)
}

func (s *BusSuite) TestPublishMatchesAssignableTypes() {
	var greetings, pings, everything int
	sub := eventbus.NewSubscriber("matcher")
	s.Require().NoError(s.bus.Register(sub,
		eventbus.Handle(func(Greeting) { greetings++ }),
		eventbus.Handle(func(*Ping) { pings++ }),
		eventbus.Bind(func(any) { everything++ }),
	))

	s.NoError(s.bus.Publish(&Ping{}))
	s.NoError(s.bus.Publish(&Pong{}))
	s.NoError(s.bus.Publish(&Unrelated{}))

	s.Equal(2, greetings)
	s.Equal(1, pings)
	s.Equal(3, everything)
}

func (s *BusSuite) TestPublishBoundFuncWithError() {
	sub := eventbus.NewSubscriber("reflected")
	boom := stderrors.New("boom")
	var seen []Greeting
	s.Require().NoError(s.bus.Register(sub, eventbus.Bind(func(g Greeting) error {
		seen = append(seen, g)
		if _, ok := g.(*Pong); ok {
			return boom
		}
		return nil
	})))

	s.NoError(s.bus.Publish(&Ping{}))
	err := s.bus.Publish(&Pong{})

	s.True(errors.IsHandlerFailed(err))
	s.ErrorIs(err, boom)
	s.Len(seen, 2)
}

func (s *BusSuite) TestPublishInsertionOrder() {
	var order []string
	first := eventbus.NewSubscriber("first")
	second := eventbus.NewSubscriber("second")

	s.Require().NoError(s.bus.Register(first,
		eventbus.Handle(func(*Ping) { order = append(order, "first-a") }),
		eventbus.Handle(func(Greeting) { order = append(order, "first-b") }),
	))
	s.Require().NoError(s.bus.Register(second,
		eventbus.Handle(func(*Ping) { order = append(order, "second") }),
	))

	s.NoError(s.bus.Publish(&Ping{}))

	s.Equal([]string{"first-a", "first-b", "second"}, order)
}

func (s *BusSuite) TestPublishSkipsReleasedSubscriber() {
	var gone, kept int
	released := eventbus.NewSubscriber("released")
	live := eventbus.NewSubscriber("live")
	s.Require().NoError(s.bus.Register(released, eventbus.Handle(func(*Ping) { gone++ })))
	s.Require().NoError(s.bus.Register(live, eventbus.Handle(func(*Ping) { kept++ })))

	released.Release()
	s.NoError(s.bus.Publish(&Ping{}))

	s.Equal(0, gone)
	s.Equal(1, kept)
	s.False(s.bus.IsRegistered(released))
	s.Equal(1, s.bus.Len())
	s.Empty(s.bus.Bindings(released))
}

func (s *BusSuite) TestUnregisterIsIdempotent() {
	never := eventbus.NewSubscriber("never")
	s.NotPanics(func() {
		s.bus.Unregister(never)
		s.bus.Unregister(nil)
	})

	sub := eventbus.NewSubscriber("twice")
	s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(*Ping) {})))
	s.bus.Unregister(sub)
	s.bus.Unregister(sub)

	s.False(s.bus.IsRegistered(sub))
	s.Equal(0, s.bus.Len())
}

func (s *BusSuite) TestUnregisterPurgesReleasedSubscribers() {
	a := eventbus.NewSubscriber("a")
	b := eventbus.NewSubscriber("b")
	c := eventbus.NewSubscriber("c")
	for _, sub := range []*eventbus.Subscriber{a, b, c} {
		s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(*Ping) {})))
	}

	b.Release()
	s.bus.Unregister(a)

	s.Equal(1, s.bus.Len())
	s.True(s.bus.IsRegistered(c))
	s.Equal(1, s.logs.FilterMessage("unregistered subscriber").Len())
}

func (s *BusSuite) TestPublishIsolatesFailures() {
	boom := stderrors.New("boom")
	var reached bool
	sub := eventbus.NewSubscriber("flaky")
	s.Require().NoError(s.bus.Register(sub,
		eventbus.HandleErr(func(*Ping) error { return boom }),
		eventbus.Handle(func(*Ping) { panic("kaboom") }),
		eventbus.Handle(func(*Ping) { reached = true }),
	))

	err := s.bus.Publish(&Ping{})

	s.True(errors.IsHandlerFailed(err))
	s.True(reached)
	s.Len(multierr.Errors(stderrors.Unwrap(err)), 2)
	s.ErrorIs(err, boom)
	s.Equal(2, s.logs.FilterMessage("handler failed").Len())
}

func (s *BusSuite) TestPublishAbortStopsAtFirstFailure() {
	bus := eventbus.New(&eventbus.Config{Dispatch: eventbus.DispatchAbort})
	boom := stderrors.New("boom")
	var reached bool
	sub := eventbus.NewSubscriber("flaky")
	s.Require().NoError(bus.Register(sub,
		eventbus.HandleErr(func(*Ping) error { return boom }),
		eventbus.Handle(func(*Ping) { reached = true }),
	))

	err := bus.Publish(&Ping{})

	s.True(errors.IsHandlerFailed(err))
	s.ErrorIs(err, boom)
	s.Equal("flaky", errors.GetMeta(err)["subscriber"])
	s.False(reached)
}

func (s *BusSuite) TestMainHandlerIsPosted() {
	var onMain int
	sub := eventbus.NewSubscriber("ui")
	s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(*Pong) { onMain++ }).OnMain()))

	s.NoError(s.bus.Publish(&Pong{}))

	s.Equal(0, onMain)
	s.Equal(1, s.main.pending())

	s.main.run()
	s.Equal(1, onMain)
}

func (s *BusSuite) TestMainHandlerSkippedWhenReleasedBeforeRun() {
	var onMain int
	sub := eventbus.NewSubscriber("ui")
	s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(*Pong) { onMain++ }).OnMain()))

	s.NoError(s.bus.Publish(&Pong{}))
	sub.Release()
	s.main.run()

	s.Equal(0, onMain)
}

func (s *BusSuite) TestMainHandlerFailureIsLogged() {
	sub := eventbus.NewSubscriber("ui")
	s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(*Pong) { panic("ui blew up") }).OnMain()))

	s.NoError(s.bus.Publish(&Pong{}))
	s.NotPanics(s.main.run)

	entries := s.logs.FilterMessage("handler failed").All()
	s.Require().Len(entries, 1)
	s.Equal(true, entries[0].ContextMap()["main_thread"])
}

func (s *BusSuite) TestBindingsDescribeHandlers() {
	sub := eventbus.NewSubscriber("hud")
	s.Require().NoError(s.bus.Register(sub,
		eventbus.Handle(func(*Ping) {}),
		eventbus.Handle(func(Greeting) {}).OnMain(),
	))

	infos := s.bus.Bindings(sub)

	s.Require().Len(infos, 2)
	s.Equal(reflect.TypeFor[*Ping](), infos[0].EventType)
	s.False(infos[0].MainThread)
	s.Equal(reflect.TypeFor[Greeting](), infos[1].EventType)
	s.True(infos[1].MainThread)
	s.NotEqual(infos[0].ID, infos[1].ID)
}

func (s *BusSuite) TestClear() {
	sub := eventbus.NewSubscriber("hud")
	s.Require().NoError(s.bus.Register(sub, eventbus.Handle(func(*Ping) {})))

	s.bus.Clear()

	s.Equal(0, s.bus.Len())
	s.False(s.bus.IsRegistered(sub))
}

func TestParseDispatchPolicy(t *testing.T) {
	cases := map[string]eventbus.DispatchPolicy{
		"":        eventbus.DispatchIsolate,
		"isolate": eventbus.DispatchIsolate,
		" Abort ": eventbus.DispatchAbort,
	}
	for in, want := range cases {
		got, err := eventbus.ParseDispatchPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseDispatchPolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := eventbus.ParseDispatchPolicy("sometimes"); !errors.IsInvalidArgument(err) {
		t.Errorf("expected invalid argument, got %v", err)
	}
	if eventbus.DispatchAbort.String() != "abort" {
		t.Errorf("unexpected String() %q", eventbus.DispatchAbort.String())
	}
}
