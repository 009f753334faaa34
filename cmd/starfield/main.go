package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KirkDiggler/starbus/internal/config"
	"github.com/KirkDiggler/starbus/internal/eventbus"
	"github.com/KirkDiggler/starbus/internal/logging"
	"github.com/KirkDiggler/starbus/internal/mainloop"
	"github.com/KirkDiggler/starbus/internal/starfield"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }() //nolint:errcheck // syncing stderr fails on some platforms

	if err := run(cfg, logger); err != nil {
		logger.Fatal("starfield stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var (
		bus   *eventbus.Bus
		scene *starfield.Scene
		hud   *starfield.HUD
	)

	app := fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Supply(
			cfg,
			logger,
			cfg.EventBusSettings(),
			mainloop.Settings{LagWarning: cfg.Loop.LagWarning},
		),
		fx.Provide(func() prometheus.Registerer { return reg }),
		mainloop.Module(),
		fx.Provide(func(loop *mainloop.Loop) eventbus.MainContext { return loop }),
		eventbus.Module(),
		fx.Provide(newScene, starfield.NewHUD),
		fx.Populate(&bus, &scene, &hud),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}

	if err := hud.Attach(bus); err != nil {
		return fmt.Errorf("attach hud: %w", err)
	}
	journal := eventbus.NewSubscriber("journal")
	if err := bus.Register(journal, eventbus.Handle(func(event any) {
		logger.Info("event",
			zap.String("type", fmt.Sprintf("%T", event)),
			zap.Any("event", event))
	})); err != nil {
		return fmt.Errorf("register journal: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tour(gctx, scene, hud, logger)
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Addr, reg, logger)
		})
	}

	logger.Info("starfield is running, press CTRL-C to exit",
		zap.Int64("sector_x", cfg.Scene.SectorX),
		zap.Int64("sector_y", cfg.Scene.SectorY),
		zap.Bool("strict", cfg.Bus.Strict),
		zap.Stringer("dispatch", cfg.Bus.Dispatch))

	runErr := g.Wait()

	hud.Close()
	bus.Unregister(journal)

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop app: %w", err)
	}

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func newScene(cfg *config.Config, bus *eventbus.Bus, loop *mainloop.Loop, logger *zap.Logger) (*starfield.Scene, error) {
	scene, err := starfield.NewScene(&starfield.SceneConfig{
		SectorX:      cfg.Scene.SectorX,
		SectorY:      cfg.Scene.SectorY,
		SectorRadius: cfg.Scene.SectorRadius,
		Publisher:    bus,
		Poster:       loop,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	for i, name := range []string{"Sol", "Vega", "Rigel", "Deneb"} {
		scene.AddStar(&starfield.Star{
			Key:     fmt.Sprintf("star-%d", i),
			Name:    name,
			SectorX: cfg.Scene.SectorX,
			SectorY: cfg.Scene.SectorY,
			OffsetX: 128 * (i + 1),
			OffsetY: 96 * (i + 1),
		})
	}
	scene.AddFleet(&starfield.Fleet{Key: "fleet-0", StarKey: "star-0", DesignID: "scout", NumShips: 3})
	scene.AddFleet(&starfield.Fleet{Key: "fleet-1", StarKey: "star-2", DesignID: "colonyship", NumShips: 1})

	return scene, nil
}

// tour drives the scene the way a player's taps would
func tour(ctx context.Context, scene *starfield.Scene, hud *starfield.HUD, logger *zap.Logger) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for step := 0; ; step++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		switch step % 4 {
		case 0:
			scene.SelectStar(fmt.Sprintf("star-%d", step%3))
		case 1:
			scene.SelectFleet(fmt.Sprintf("fleet-%d", step%2))
		case 2:
			scene.SelectNothing(scene.SectorX(), scene.SectorY(), 512, 512)
		case 3:
			scene.SelectStar("star-3")
		}

		var starKey, fleetKey string
		if star := hud.Star(); star != nil {
			starKey = star.Key
		}
		if fleet := hud.Fleet(); fleet != nil {
			fleetKey = fleet.Key
		}
		logger.Debug("hud",
			zap.String("star", starKey),
			zap.String("fleet", fleetKey),
			zap.Int("selection_changes", hud.SelectionChanges()))
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
