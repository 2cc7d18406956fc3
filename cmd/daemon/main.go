// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command daemon runs the tvplay playback control service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/config"
	"github.com/ManuGH/tvplay/internal/daemon"
	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/netmon"
	"github.com/ManuGH/tvplay/internal/resolver"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/ManuGH/tvplay/internal/version"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

func main() {
	// Safe defaults until the configuration is loaded.
	log.Configure(log.Config{Level: "info", Service: "tvplay", Version: version.Version})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logger := log.WithComponent("daemon")
		logger.Error().Err(err).Str(log.FieldEvent, "daemon.fatal").Msg("exiting")
		os.Exit(1)
	}
}

// run parses args and executes the selected subcommand; serve is the default.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	rootFS := flag.NewFlagSet("tvplay", flag.ContinueOnError)
	configPath := rootFS.String("config", "", "path to config file (YAML); TVPLAY_CONFIG")

	serve := &ffcli.Command{
		Name:       "serve",
		ShortUsage: "tvplay [-config path] serve",
		ShortHelp:  "Run the HTTP service (default)",
		Exec: func(ctx context.Context, _ []string) error {
			return runServe(ctx, *configPath)
		},
	}

	resolveFS := flag.NewFlagSet("tvplay resolve", flag.ContinueOnError)
	ua := resolveFS.String("ua", "", "client User-Agent used for device detection")
	protocol := resolveFS.String("protocol", "auto", "requested protocol: auto, hls, dash or flv")
	resolve := &ffcli.Command{
		Name:       "resolve",
		ShortUsage: "tvplay [-config path] resolve [-ua UA] [-protocol p] <channel>",
		ShortHelp:  "Print the stream source chosen for a channel and device",
		FlagSet:    resolveFS,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("resolve: exactly one channel name required")
			}
			return runResolve(ctx, *configPath, args[0], *ua, *protocol, stdout)
		},
	}

	probeFS := flag.NewFlagSet("tvplay probe", flag.ContinueOnError)
	probeURL := probeFS.String("url", "", "probe target; defaults to network.probeURL")
	probe := &ffcli.Command{
		Name:       "probe",
		ShortUsage: "tvplay [-config path] probe [-url URL]",
		ShortHelp:  "Take one network sample and print the recommended quality",
		FlagSet:    probeFS,
		Exec: func(ctx context.Context, _ []string) error {
			return runProbe(ctx, *configPath, *probeURL, stdout)
		},
	}

	versionCmd := &ffcli.Command{
		Name:       "version",
		ShortUsage: "tvplay version",
		ShortHelp:  "Print build information",
		Exec: func(context.Context, []string) error {
			_, err := fmt.Fprintln(stdout, version.String())
			return err
		},
	}

	root := &ffcli.Command{
		Name:        "tvplay",
		ShortUsage:  "tvplay [-config path] <subcommand>",
		FlagSet:     rootFS,
		Options:     []ff.Option{ff.WithEnvVarPrefix("TVPLAY")},
		Subcommands: []*ffcli.Command{serve, resolve, probe, versionCmd},
		Exec: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unknown subcommand %q", args[0])
			}
			return runServe(ctx, *configPath)
		},
	}
	return root.ParseAndRun(ctx, args)
}

func loadConfig(path string) (*config.Loader, config.AppConfig, error) {
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	log.Configure(log.Config{Level: cfg.Log.Level, Service: cfg.Log.Service, Version: version.Version})
	return loader, cfg, nil
}

func runServe(ctx context.Context, path string) error {
	loader, cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	logger := log.WithComponent("daemon")
	logger.Info().
		Str(log.FieldEvent, "daemon.config_loaded").
		Str("version", version.Version).
		Str("config", path).
		Str("listen", cfg.Server.Listen).
		Str("store", cfg.Store.Backend).
		Msg("configuration loaded")

	app, err := daemon.Bootstrap(ctx, config.NewHolder(cfg, loader))
	if err != nil {
		return err
	}
	return app.Run(ctx)
}

func runResolve(ctx context.Context, path, channel, ua, protocol string, out io.Writer) error {
	_, cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	requested, err := sp.ParseProtocol(protocol)
	if err != nil {
		return err
	}
	catalog := channels.NewCatalog(cfg.CatalogSettings())
	list, err := catalog.Load(ctx)
	if err != nil {
		return err
	}
	ch, err := list.Get(channel)
	if err != nil {
		return err
	}
	profile := device.Detector{BufferBudget: cfg.Device.BufferBudget}.Detect(ua, device.Hints{})
	src, err := resolver.Resolve(ch, profile, requested)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]any{
		"channel":     ch.Name(),
		"protocols":   profile.Protocols(),
		"constrained": profile.Constrained(),
		"source":      src,
	})
}

func runProbe(ctx context.Context, path, target string, out io.Writer) error {
	_, cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if target == "" {
		target = cfg.Network.ProbeURL
	}
	if target == "" {
		return fmt.Errorf("probe: no target; set -url or network.probeURL")
	}
	nc := cfg.NetworkSettings()
	mon := netmon.New(nc, false, netmon.NewHTTPProber(target, nc.ProbeTimeout))
	sample, _ := mon.SampleNow(ctx)
	return writeJSON(out, map[string]any{
		"url":         target,
		"sample":      sample,
		"recommended": netmon.Recommend(sample, false),
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
