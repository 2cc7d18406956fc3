// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"

	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/netmon"
	"github.com/ManuGH/tvplay/internal/playback"
)

// Defaults returns the configuration used when neither file nor environment
// set a value.
func Defaults() AppConfig {
	pb := playback.DefaultConfig()
	nm := netmon.DefaultConfig()
	return AppConfig{
		Log: LogConfig{Level: "info", Service: "tvplay"},
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Playback: PlaybackConfig{
			MaxRetries:      pb.MaxRetries,
			BaseRetryDelay:  pb.BaseRetryDelay,
			DefaultProtocol: string(pb.DefaultProtocol),
			DefaultQuality:  string(pb.DefaultQuality),
			Autoplay:        pb.Autoplay,
		},
		Network: NetworkConfig{
			Interval:            nm.Interval,
			ConstrainedInterval: nm.ConstrainedInterval,
			MinSampleInterval:   nm.MinSampleInterval,
			SettleDelay:         nm.SettleDelay,
			FastThreshold:       nm.FastThreshold,
			MediumThreshold:     nm.MediumThreshold,
			ProbeTimeout:        nm.ProbeTimeout,
		},
		Device: DeviceConfig{BufferBudget: device.DefaultBufferBudget},
		Sessions: SessionsConfig{
			IdleTTL:           10 * time.Minute,
			SweepInterval:     time.Minute,
			MaxSessions:       1000,
			MaxQueuedCommands: 64,
		},
		Channels: ChannelsConfig{
			Source:       "channels.json",
			Watch:        true,
			FetchTimeout: 10 * time.Second,
			MaxElapsed:   time.Minute,
		},
		Store: StoreConfig{
			Backend:   "memory",
			Retention: 24 * time.Hour,
			MaxEvents: 500,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
		Metrics:   MetricsConfig{Enabled: true},
		RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 600},
	}
}
