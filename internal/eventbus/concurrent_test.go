package eventbus_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/starbus/internal/eventbus"
)

func TestConcurrentPublishAndRegister(t *testing.T) {
	bus := eventbus.New(nil)

	var delivered atomic.Int64
	stable := eventbus.NewSubscriber("stable")
	require.NoError(t, bus.Register(stable, eventbus.Handle(func(*Ping) {
		delivered.Add(1)
	})))

	const (
		publishers = 8
		publishes  = 200
		churners   = 4
		churns     = 100
	)

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < publishes; j++ {
				assert.NoError(t, bus.Publish(&Ping{Seq: j}))
			}
		}()
	}

	for i := 0; i < churners; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < churns; j++ {
				sub := eventbus.NewSubscriber(fmt.Sprintf("churn-%d-%d", worker, j))
				if err := bus.Register(sub, eventbus.Handle(func(Greeting) {})); err != nil {
					t.Errorf("register: %v", err)
					return
				}
				if j%2 == 0 {
					bus.Unregister(sub)
				} else {
					sub.Release()
				}
			}
		}(i)
	}

	wg.Wait()

	// one more publish sweeps any released bindings left behind
	require.NoError(t, bus.Publish(&Ping{}))
	bus.Unregister(nil)

	assert.Equal(t, int64(publishers*publishes+1), delivered.Load())
	assert.Equal(t, 1, bus.Len())
	assert.True(t, bus.IsRegistered(stable))
}

func TestConcurrentMainDispatch(t *testing.T) {
	main := &queueMain{}
	bus := eventbus.New(&eventbus.Config{MainContext: main})

	var onMain atomic.Int64
	sub := eventbus.NewSubscriber("ui")
	require.NoError(t, bus.Register(sub, eventbus.Handle(func(*Pong) {
		onMain.Add(1)
	}).OnMain()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, bus.Publish(&Pong{Seq: j}))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), onMain.Load())
	assert.Equal(t, 500, main.pending())

	main.run()
	assert.Equal(t, int64(500), onMain.Load())
}
