package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	httpapi "github.com/i474232898/weather-data-generator/internal/api/http"
	"github.com/i474232898/weather-data-generator/internal/config"
	"github.com/i474232898/weather-data-generator/internal/logger"
	"github.com/i474232898/weather-data-generator/internal/metrics"
	"github.com/i474232898/weather-data-generator/internal/scheduler"
	"github.com/i474232898/weather-data-generator/internal/store"
	"github.com/i474232898/weather-data-generator/internal/weather"
)

const serviceName = "weather-data-generator"

func main() {
	// Load configuration. A bad configuration never starts the generator.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.NewWithFormat(logger.ParseLevel(cfg.LogLevel), cfg.LogFormat, os.Stderr)
	slog.SetDefault(lg)

	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register metrics: %v", err)
	}

	// Storage: every run opens its own store; pruning uses a separate one.
	var (
		opener weather.Opener
		pruner weather.Pruner
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		memStore := store.NewMemoryStore(cfg.MemoryMaxHistory)
		opener = func(context.Context) (weather.Store, error) { return memStore, nil }
		pruner = memStore
	default:
		pgCfg := cfg.Postgres()
		opener = store.NewPostgresOpener(pgCfg)
		pruner = store.NewPostgresPruner(pgCfg)
	}

	gen := weather.NewGenerator(nil, nil, cfg.Location)
	service := weather.NewService(opener, gen, weather.ServiceConfig{
		Window:    cfg.Window,
		Tick:      cfg.LiveTick,
		BatchSize: cfg.BackfillBatchSize,
		Logger:    lg,
		Observer:  collector,
	})

	// Scheduler that periodically prunes samples past retention.
	sched := scheduler.New(pruner, scheduler.Config{
		Retention: cfg.Retention,
		Interval:  cfg.PruneInterval,
		Logger:    lg,
		Recorder:  collector,
	})
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			lg.Error("fiber server stopped", logger.Err(err))
		}
	}()

	// Termination signals, installed before auto-start so a signal during the
	// initial connect still shuts down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoStart {
		interrupted, err := autoStart(ctx, service)
		if interrupted {
			lg.Info("shutting down")
			shutdown(app, sched, service, lg)
			return
		}
		if err != nil {
			lg.Error("failed to start data generation", logger.Err(err))
			shutdown(app, sched, service, lg)
			os.Exit(1)
		}
	}

	// Wait for termination signal or a fatal generation error.
	exitCode := 0
	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case err := <-service.Failures():
		lg.Error("data generation failed; exiting", logger.Err(err))
		exitCode = 1
	}

	shutdown(app, sched, service, lg)
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// autoStart starts generation, with ctx bounding the store open. It reports
// interrupted when ctx ended before the generator was up.
func autoStart(ctx context.Context, service *weather.Service) (interrupted bool, err error) {
	err = service.Start(ctx)
	if err != nil && ctx.Err() != nil {
		return true, err
	}
	return false, err
}

func shutdown(app *fiber.App, sched *scheduler.Scheduler, service *weather.Service, lg *slog.Logger) {
	if service.Running() {
		if err := service.Stop(); err != nil {
			lg.Warn("error stopping data generation", logger.Err(err))
		}
	}
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		lg.Error("error during shutdown", logger.Err(err))
	}
}
