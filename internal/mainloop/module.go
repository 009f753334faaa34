package mainloop

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Settings are the knobs an application supplies to the fx module
type Settings struct {
	LagWarning time.Duration
}

// Params are the dependencies the fx module resolves for a Loop
type Params struct {
	fx.In

	Settings   Settings              `optional:"true"`
	Clock      clock.Clock           `optional:"true"`
	Logger     *zap.Logger           `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Module provides a *Loop and runs it for the lifetime of the fx application
func Module() fx.Option {
	return fx.Module("mainloop",
		fx.Provide(Provide),
		fx.Invoke(registerLifecycle),
	)
}

// Provide builds a Loop from fx-resolved dependencies
func Provide(p Params) *Loop {
	return New(&Config{
		Clock:      p.Clock,
		LagWarning: p.Settings.LagWarning,
		Logger:     p.Logger,
		Registerer: p.Registerer,
	})
}

func registerLifecycle(lc fx.Lifecycle, loop *Loop) {
	stopped := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(stopped)
				_ = loop.Run(context.Background()) //nolint:errcheck // only returns on Close
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			loop.Close()
			select {
			case <-stopped:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
