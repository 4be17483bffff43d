// Package bot assembles the moderation core around the configured chat
// platform and runs it until shutdown.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"leviathan/internal/api"
	"leviathan/internal/automod"
	"leviathan/internal/clock"
	"leviathan/internal/command"
	"leviathan/internal/config"
	"leviathan/internal/crash"
	"leviathan/internal/handler"
	"leviathan/internal/logger"
	"leviathan/internal/models"
	"leviathan/internal/moderation"
	"leviathan/internal/platform"
	"leviathan/internal/platform/discord"
	"leviathan/internal/platform/telegram"
	"leviathan/internal/scheduler"
	"leviathan/internal/service"
	"leviathan/internal/spamwindow"
	"leviathan/internal/storage"
)

const (
	cacheResetInterval  = 10 * time.Minute
	statusInterval      = 5 * time.Minute
	shutdownGracePeriod = 15 * time.Second
)

// Adapter is a platform adapter with a connection lifecycle.
type Adapter interface {
	platform.Adapter
	Close() error
}

// App owns every long-lived component.
type App struct {
	cfg *config.Config
	db  *gorm.DB

	Service   *service.Service
	Adapter   Adapter
	Handler   *handler.Handler
	Scheduler *scheduler.Scheduler
	Server    *Server

	tracker spamwindow.Tracker
	memory  *spamwindow.MemoryTracker
	connect func(ctx context.Context) error
}

// Initialize opens storage and builds the adapter and the core components.
// Nothing talks to the platform until Run.
func Initialize(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	db, err := storage.Open(cfg)
	if err != nil {
		return nil, err
	}
	clk := clock.Real()
	svc := service.New(db, cfg.Automod.Defaults, clk)
	if err := svc.InitRepositories(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	app := &App{cfg: cfg, db: db, Service: svc}

	if err := app.setupTracker(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	var h *handler.Handler

	switch cfg.Bot.Platform {
	case config.PlatformDiscord:
		dg, err := discord.New(cfg.Bot.Token, logger.Named("discord"))
		if err != nil {
			return nil, err
		}
		app.Adapter = dg
		app.connect = func(ctx context.Context) error { return dg.Open(ctx, h) }

	case config.PlatformTelegram:
		tg, err := telegram.New(cfg.Bot.Token, cfg.Bot.Webhook, svc, logger.Named("telegram"))
		if err != nil {
			return nil, err
		}
		app.Adapter = tg
		app.connect = func(ctx context.Context) error {
			if err := tg.Open(ctx, h, mux); err != nil {
				return err
			}
			if cfg.Bot.Prefix == "/" {
				tg.SetCommands(ctx)
			}
			return nil
		}

	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Bot.Platform)
	}

	mod := moderation.New(logger.Named("moderation"), svc, app.Adapter, clk)
	engine := automod.NewEngine(logger.Named("automod"), svc, app.tracker, app.Adapter, clk, cfg.Automod.ActionTimeout)
	dispatcher := command.NewDispatcher(logger.Named("command"), svc, mod)
	h = handler.New(cfg.Bot, logger.Named("handler"), engine, dispatcher, app.Adapter)
	app.Handler = h
	app.Scheduler = scheduler.New(logger.Named("scheduler"), svc, app.Adapter, clk, cfg.Scheduler)

	if cfg.API.Enabled {
		srv := api.New(logger.Named("api"), cfg.API.AdminKey, svc, mod, app.Adapter, h)
		mux.Handle("/", srv.Router())
	}
	if cfg.API.Enabled || (cfg.Bot.Platform == config.PlatformTelegram && cfg.Bot.Webhook.Endpoint != "") {
		app.Server = NewServer(cfg.API.Listen, mux)
	}

	return app, nil
}

func (a *App) setupTracker() error {
	if a.cfg.Automod.SpamBackend == config.SpamBackendRedis {
		rt, err := spamwindow.NewRedisTracker(a.cfg.Redis.URL)
		if err != nil {
			return err
		}
		logger.Infof("Spam windows are kept in redis")
		a.tracker = rt
		return nil
	}
	a.memory = spamwindow.NewMemoryTracker()
	a.tracker = a.memory
	return nil
}

// Run connects to the platform, starts the background loops and blocks until
// ctx is cancelled or the HTTP server fails, then shuts everything down in
// reverse order. A server failure is returned.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	a.Service.StartCacheCleanup(ctx, cacheResetInterval)
	a.Handler.StartStatusMonitoring(ctx, statusInterval)
	if a.memory != nil {
		a.startSweeper(ctx)
	}

	if a.Server != nil {
		group.Go(func() (err error) {
			defer crash.RecoverToError("http-server", &err)
			if err := a.Server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("HTTP server error: %v", err)
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	if err := a.connect(ctx); err != nil {
		a.shutdown()
		_ = group.Wait()
		return fmt.Errorf("failed to connect to %s: %w", a.cfg.Bot.Platform, err)
	}
	logger.Infof("Connected to %s", a.Adapter.Name())

	if err := a.Scheduler.Start(ctx); err != nil {
		a.shutdown()
		_ = group.Wait()
		return err
	}

	<-ctx.Done()
	logger.Infof("Shutting down...")
	a.shutdown()
	return group.Wait()
}

// sweepMaxAge is how long an idle spam window is kept. It never drops below
// the longest spam interval a community may configure, so live windows
// survive a sweep.
func sweepMaxAge(sweepInterval time.Duration) time.Duration {
	return max(sweepInterval, models.MaxSpamInterval)
}

func (a *App) startSweeper(ctx context.Context) {
	interval := a.cfg.Automod.SweepInterval
	maxAge := sweepMaxAge(interval)
	crash.SafeGoroutine("spam-window-sweeper", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := a.memory.Sweep(now, maxAge); n > 0 {
					logger.Debugf("Swept %d idle spam windows", n)
				}
			}
		}
	})
}

func (a *App) shutdown() {
	a.Scheduler.Stop()

	if err := a.Adapter.Close(); err != nil {
		logger.Warningf("Error closing %s connection: %v", a.Adapter.Name(), err)
	}
	a.Handler.Wait()

	if a.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := a.Server.Shutdown(ctx); err != nil {
			logger.Warningf("HTTP server shutdown error: %v", err)
		}
	}

	if rt, ok := a.tracker.(*spamwindow.RedisTracker); ok {
		if err := rt.Close(); err != nil {
			logger.Warningf("Error closing redis: %v", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	logger.Infof("Shutdown complete")
}
