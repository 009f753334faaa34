package eventbus

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/KirkDiggler/starbus/internal/uuid"
)

// Settings are the policy knobs an application supplies to the fx module
type Settings struct {
	Strict   bool
	Dispatch DispatchPolicy
}

// Params are the dependencies the fx module resolves for a Bus
type Params struct {
	fx.In

	Settings    Settings              `optional:"true"`
	MainContext MainContext           `optional:"true"`
	Logger      *zap.Logger           `optional:"true"`
	Registerer  prometheus.Registerer `optional:"true"`
	IDGenerator uuid.Generator        `optional:"true"`
}

// Module provides a *Bus to an fx application and clears it on stop
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide builds a Bus from fx-resolved dependencies
func Provide(p Params) *Bus {
	var metrics *Metrics
	if p.Registerer != nil {
		metrics = NewMetrics(p.Registerer)
	}

	return New(&Config{
		Strict:      p.Settings.Strict,
		Dispatch:    p.Settings.Dispatch,
		MainContext: p.MainContext,
		Logger:      p.Logger,
		Metrics:     metrics,
		IDGenerator: p.IDGenerator,
	})
}

func registerLifecycle(lc fx.Lifecycle, bus *Bus) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			bus.Clear()
			return nil
		},
	})
}
