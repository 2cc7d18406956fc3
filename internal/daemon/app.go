// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package daemon wires the configured components together and owns their
// runtime lifecycle.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/config"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/rs/zerolog"
)

// App owns the long-lived runtime lifecycle (watchers, reload wiring, session
// sweeping) and delegates server management to Manager.
type App struct {
	logger        zerolog.Logger
	manager       Manager
	cfgHolder     *config.Holder
	catalog       *channels.Catalog
	registry      *playback.Registry
	watchChannels bool
	reloadSignal  os.Signal
}

// NewApp creates a new App orchestrator. Holder, catalog and registry are
// optional.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.Holder, catalog *channels.Catalog, registry *playback.Registry) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		catalog:      catalog,
		registry:     registry,
		reloadSignal: syscall.SIGHUP,
	}
}

// Manager returns the server manager.
func (a *App) Manager() Manager { return a.manager }

// Run starts all owned background subsystems and blocks until ctx is cancelled
// or a fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}

	g, ctx := errgroup.WithContext(ctx)

	// Watchers are best-effort: a failure never stops the daemon.
	if a.cfgHolder != nil {
		g.Go(func() error {
			if err := a.cfgHolder.Watch(ctx); err != nil {
				a.logger.Warn().Err(err).Str(log.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
			}
			return nil
		})

		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.Subscribe(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})
	}

	if a.catalog != nil && a.watchChannels {
		if err := a.catalog.Watch(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "channels.watcher_start_failed").Msg("failed to start channel watcher")
		}
	}

	if a.reloadSignal != nil && (a.cfgHolder != nil || a.catalog != nil) {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(log.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config and channels")
					a.reload(ctx)
				}
			}
		})
	}

	if a.registry != nil {
		g.Go(func() error { return a.registry.Run(ctx) })
	}

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	})

	return g.Wait()
}

func (a *App) reload(ctx context.Context) {
	if a.cfgHolder != nil {
		if err := a.cfgHolder.Reload(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "config.reload_failed").Msg("config reload failed")
		}
	}
	if a.catalog != nil {
		if _, err := a.catalog.Load(ctx); err != nil {
			a.logger.Warn().Err(err).Str(log.FieldEvent, "channels.reload_failed").Msg("channel reload failed")
		}
	}
}

// apply takes over the settings that can change without a restart. Everything
// else is read once at startup.
func (a *App) apply(cfg config.AppConfig) {
	if cfg.Log.Level == "" {
		return
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return
	}
	if level != zerolog.GlobalLevel() {
		zerolog.SetGlobalLevel(level)
		a.logger.Info().
			Str(log.FieldEvent, "config.log_level_applied").
			Str("level", level.String()).
			Msg("log level changed")
	}
}
