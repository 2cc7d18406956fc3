// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"strings"
	"time"

	"github.com/ManuGH/tvplay/internal/metrics"
	xnet "github.com/ManuGH/tvplay/internal/platform/net"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/ManuGH/tvplay/internal/validate"
)

// Validate checks the configuration and returns a validate.ValidationError
// listing every problem.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("log.level", strings.ToLower(cfg.Log.Level), validate.LogLevels())
	v.ListenAddr("server.listen", cfg.Server.Listen)
	v.MinDuration("server.readTimeout", cfg.Server.ReadTimeout, time.Second)
	v.MinDuration("server.writeTimeout", cfg.Server.WriteTimeout, time.Second)
	v.MinDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout, time.Second)

	v.Range("playback.maxRetries", cfg.Playback.MaxRetries, 1, 10)
	v.MinDuration("playback.baseRetryDelay", cfg.Playback.BaseRetryDelay, 100*time.Millisecond)
	if _, err := sp.ParseProtocol(cfg.Playback.DefaultProtocol); err != nil {
		v.AddError("playback.defaultProtocol", err.Error(), cfg.Playback.DefaultProtocol)
	}
	if _, err := sp.ParseQuality(cfg.Playback.DefaultQuality); err != nil {
		v.AddError("playback.defaultQuality", err.Error(), cfg.Playback.DefaultQuality)
	}

	if cfg.Network.ProbeURL != "" {
		v.URL("network.probeURL", cfg.Network.ProbeURL, []string{"http", "https"})
	}
	v.MinDuration("network.interval", cfg.Network.Interval, time.Second)
	v.MinDuration("network.constrainedInterval", cfg.Network.ConstrainedInterval, time.Second)
	v.MinDuration("network.probeTimeout", cfg.Network.ProbeTimeout, 100*time.Millisecond)
	if cfg.Network.MediumThreshold <= cfg.Network.FastThreshold {
		v.AddError("network.mediumThreshold", "must be greater than fastThreshold", cfg.Network.MediumThreshold)
	}

	v.Range("device.bufferBudget", cfg.Device.BufferBudget, 1, 600)

	v.MinDuration("sessions.idleTTL", cfg.Sessions.IdleTTL, time.Second)
	v.NonNegative("sessions.maxSessions", cfg.Sessions.MaxSessions)
	v.NonNegative("sessions.maxQueuedCommands", cfg.Sessions.MaxQueuedCommands)

	v.NotEmpty("channels.source", cfg.Channels.Source)
	if cfg.Channels.Format != "" {
		v.OneOf("channels.format", cfg.Channels.Format, []string{"json", "yaml"})
	}
	if xnet.IsHTTPURL(cfg.Channels.Source) {
		v.URL("channels.source", cfg.Channels.Source, []string{"http", "https"})
	}

	backend := strings.ToLower(cfg.Store.Backend)
	v.OneOf("store.backend", backend, []string{"", "memory", "sqlite", "badger", "redis"})
	switch backend {
	case "sqlite", "badger":
		v.NotEmpty("store.path", cfg.Store.Path)
	case "redis":
		v.NotEmpty("store.redisAddr", cfg.Store.RedisAddr)
	}
	v.NonNegative("store.maxEvents", cfg.Store.MaxEvents)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}
	if cfg.RateLimit.Enabled {
		v.Range("rateLimit.requestsPerMinute", cfg.RateLimit.RequestsPerMinute, 1, 1_000_000)
	}

	if !v.IsValid() {
		metrics.IncConfigValidationError()
	}
	return v.Err()
}
