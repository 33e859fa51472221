package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/telemeet/conference-mapper/internal/allocator"
	"github.com/telemeet/conference-mapper/internal/config"
	"github.com/telemeet/conference-mapper/internal/handlers"
	"github.com/telemeet/conference-mapper/internal/mapstore"
	"github.com/telemeet/conference-mapper/internal/router"
	"github.com/telemeet/conference-mapper/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// App represents the main application.
type App struct {
	config    *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	store     mapstore.ConferenceStore
	server    *http.Server

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewApp wires the application together: telemetry, allocator, mapping
// store, handlers and HTTP server. It also runs the one-shot expiry
// sweep the daemon has always done at startup.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	tel, err := telemetry.NewTelemetry(logger)
	if err != nil {
		return nil, err
	}

	alloc := allocator.New(cfg.IDLength)
	factory := mapstore.NewStoreFactory(logger, tel, alloc)
	store, err := factory.CreateStore(cfg.DBConfig)
	if err != nil {
		return nil, err
	}

	removed, err := store.SweepExpired(context.Background(), time.Now(), cfg.Retention())
	if err != nil {
		return nil, err
	}
	logger.Info("startup sweep complete", zap.Int64("removed", removed))

	limiter := rate.NewLimiter(rate.Limit(cfg.RPSLimit), cfg.RPSBurst)

	handlerList := []router.Handler{
		handlers.NewMapperHandler(store, logger),
		handlers.NewPhoneNumbersHandler(cfg.PhoneNumbers),
	}

	appRouter := router.NewRouter(limiter, tel, logger, handlerList)
	server := appRouter.CreateServer(":" + cfg.Port)

	return &App{
		config:    cfg,
		logger:    logger,
		telemetry: tel,
		store:     store,
		server:    server,
		sweepStop: make(chan struct{}),
		sweepDone: make(chan struct{}),
	}, nil
}

// start starts the application server and, when configured, the
// periodic expiry sweeper.
func (app *App) start() error {
	app.logger.Info("starting server", zap.String("port", app.config.Port))

	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	go app.sweepLoop()
	return nil
}

// sweepLoop periodically removes expired mappings. The original daemon
// only swept at startup; the ticker is an opt-in upgrade controlled by
// SWEEP_INTERVAL_SECONDS.
func (app *App) sweepLoop() {
	defer close(app.sweepDone)

	interval := app.config.SweepInterval()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := app.store.SweepExpired(context.Background(), time.Now(), app.config.Retention()); err != nil {
				app.logger.Warn("periodic sweep failed", zap.Error(err))
			}
		case <-app.sweepStop:
			return
		}
	}
}

// stop gracefully shuts down the application.
func (app *App) stop() error {
	app.logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	close(app.sweepStop)
	<-app.sweepDone

	if err := app.store.Close(); err != nil {
		app.logger.Error("failed to close mapping store", zap.Error(err))
		return err
	}

	if err := app.telemetry.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}

	app.logger.Info("server exited gracefully")
	return nil
}

// Run starts the application and waits for shutdown signals.
func (app *App) Run() error {
	if err := app.start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	return app.stop()
}
