// Package bootstrap handles application initialization and lifecycle
// management for the sync layer.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sitesentry/livesync/internal/activity"
	"github.com/sitesentry/livesync/internal/api"
	"github.com/sitesentry/livesync/internal/bridge"
	"github.com/sitesentry/livesync/internal/config"
	"github.com/sitesentry/livesync/internal/devserver"
	"github.com/sitesentry/livesync/internal/export"
	"github.com/sitesentry/livesync/internal/logger"
	"github.com/sitesentry/livesync/internal/mutation"
	"github.com/sitesentry/livesync/internal/querycache"
	"github.com/sitesentry/livesync/internal/retry"
	"github.com/sitesentry/livesync/internal/session"
)

// App holds the wired sync layer components.
type App struct {
	Config   *config.Config
	Log      logger.Logger
	Cache    *querycache.Cache
	API      api.Requester
	Mutation *mutation.Engine
	Session  *session.Manager
	Activity *activity.Service
	Bridge   *bridge.Bridge
	Registry *prometheus.Registry
}

// NewApp wires the component graph from a loaded configuration.
func NewApp(cfg *config.Config, log logger.Logger) (*App, error) {
	registry := prometheus.NewRegistry()

	cache := querycache.New(querycache.Options{
		Logger:  log,
		Metrics: querycache.NewMetrics(registry),
		GCDelay: cfg.Cache.GCDelay,
	})

	client, err := api.NewClient(api.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	reconnect := retry.DefaultConfig()
	reconnect.InitialDelay = cfg.Socket.InitialDelay
	reconnect.MaxDelay = cfg.Socket.MaxDelay

	return &App{
		Config:   cfg,
		Log:      log,
		Cache:    cache,
		API:      client,
		Mutation: mutation.NewEngine(cache, log, mutation.NewMetrics(registry)),
		Session:  session.NewManager(client, cache, log),
		Activity: activity.NewService(cache, client, log),
		Bridge: bridge.New(bridge.Config{
			URL:          cfg.Socket.URL,
			PollInterval: cfg.Socket.PollInterval,
			Reconnect:    reconnect,
		}, cache, log),
		Registry: registry,
	}, nil
}

// ExportActivity writes the requested activity page as a spreadsheet. Views
// call it for the download button.
func (a *App) ExportActivity(ctx context.Context, w io.Writer, req activity.PageRequest) error {
	page, err := a.Activity.Page(ctx, req)
	if err != nil {
		return fmt.Errorf("load activity page: %w", err)
	}
	return export.WriteActivity(w, page.Rows)
}

// Start initializes and runs the application until a shutdown signal.
func Start() error {
	// Phase 1: Load config and create logger.
	cfg, err := config.Load(config.GetConfigPath("config.yml"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Phase 2: Start the embedded dev server (if enabled).
	if cfg.DevServer.Enabled {
		srv := devserver.NewServer(devserver.Config{
			Addr:      cfg.DevServer.Addr,
			JWTSecret: cfg.DevServer.JWTSecret,
			Username:  cfg.DevServer.Username,
			Password:  cfg.DevServer.Password,
			// Simulated login runs resolve on their own after a few seconds.
			RunDuration: 3 * time.Second,
		}, log)
		go func() {
			if err := srv.Start(ctx); err != nil {
				log.Error("dev server error", logger.Error(err))
			}
		}()
	}

	// Phase 3: Wire the client stack.
	app, err := NewApp(cfg, log)
	if err != nil {
		return err
	}

	// Phase 4: Watch the config file for cache tuning changes.
	go func() {
		err := config.Watch(ctx, config.GetConfigPath("config.yml"), log, func(next *config.Config) {
			app.Cache.SetGCDelay(next.Cache.GCDelay)
		})
		if err != nil && ctx.Err() == nil {
			log.Warn("config watch stopped", logger.Error(err))
		}
	}()

	// Phase 5: Run the event bridge until shutdown.
	log.Info("sync layer started",
		logger.String("api", cfg.API.BaseURL),
		logger.String("socket", cfg.Socket.URL),
	)
	if err := app.Bridge.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("event bridge: %w", err)
	}

	log.Info("sync layer stopped")
	return nil
}
