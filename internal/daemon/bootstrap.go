// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"fmt"

	"github.com/ManuGH/tvplay/internal/api"
	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/config"
	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/health"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/playlist"
	"github.com/ManuGH/tvplay/internal/store"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/ManuGH/tvplay/internal/telemetry"
)

// Bootstrap builds every component from the holder's current configuration.
// A channel source that cannot be loaded yet is not fatal; readiness reports
// it until a later reload succeeds.
func Bootstrap(ctx context.Context, holder *config.Holder) (*App, error) {
	cfg := holder.Get()
	logger := log.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, fmt.Errorf("startup checks: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, cfg.TelemetrySettings())
	if err != nil {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "telemetry.init_failed").
			Msg("telemetry initialization failed, continuing without tracing")
		tp = nil
	}

	st, err := store.Open(ctx, cfg.StoreSettings())
	if err != nil {
		shutdownTelemetry(ctx, tp)
		return nil, err
	}

	state := channels.NewStateManager(cfg.Channels.StateDir)
	if err := state.Load(); err != nil {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "channels.state_load_failed").
			Msg("failed to load channel state, all channels enabled")
	}

	catalog := channels.NewCatalog(cfg.CatalogSettings())
	if path := cfg.Playlist.ExportPath; path != "" {
		catalog.OnReload(func(list *channels.List) {
			items := playlist.Build(ctx, state.Apply(list), device.Unconstrained(), sp.ProtocolAuto)
			if err := playlist.Export(context.WithoutCancel(ctx), path, items); err != nil {
				logger.Warn().Err(err).
					Str(log.FieldEvent, "playlist.export_failed").
					Str(log.FieldPath, path).
					Msg("failed to export playlist")
			}
		})
	}
	if _, err := catalog.Load(ctx); err != nil {
		logger.Error().Err(err).
			Str(log.FieldEvent, "channels.initial_load_failed").
			Str("source", cfg.Channels.Source).
			Msg("initial channel load failed")
	}

	registry := playback.NewRegistry(cfg.RegistrySettings(), playback.WithJournal(store.NewJournal(st)))

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewCatalogChecker(catalog))
	hm.RegisterChecker(health.NewStoreChecker(st))

	srv := api.New(api.Config{
		ServiceName:       cfg.Log.Service,
		EnableMetrics:     cfg.Metrics.Enabled,
		EnableTracing:     cfg.Telemetry.Enabled,
		EnableRateLimit:   cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		BufferBudget:      cfg.Device.BufferBudget,
	}, api.Deps{
		Registry: registry,
		Catalog:  catalog,
		State:    state,
		Store:    st,
		Health:   hm,
	})

	mgr, err := NewManager(cfg.Server, Deps{Logger: logger, APIHandler: srv.Handler()})
	if err != nil {
		registry.Close()
		_ = st.Close()
		shutdownTelemetry(ctx, tp)
		return nil, err
	}
	// LIFO: sessions stop first, telemetry flushes last.
	if tp != nil {
		mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	}
	mgr.RegisterShutdownHook("store", func(context.Context) error { return st.Close() })
	mgr.RegisterShutdownHook("sessions", func(context.Context) error {
		registry.Close()
		return nil
	})

	app := NewApp(logger, mgr, holder, catalog, registry)
	app.watchChannels = cfg.Channels.Watch
	return app, nil
}

func shutdownTelemetry(ctx context.Context, tp *telemetry.Provider) {
	if tp != nil {
		_ = tp.Shutdown(context.WithoutCancel(ctx))
	}
}
