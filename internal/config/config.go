// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"time"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/netmon"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/store"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/ManuGH/tvplay/internal/telemetry"
)

// AppConfig is the complete daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Network   NetworkConfig   `yaml:"network"`
	Device    DeviceConfig    `yaml:"device"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Store     StoreConfig     `yaml:"store"`
	Playlist  PlaylistConfig  `yaml:"playlist"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type PlaybackConfig struct {
	MaxRetries      int           `yaml:"maxRetries"`
	BaseRetryDelay  time.Duration `yaml:"baseRetryDelay"`
	DefaultProtocol string        `yaml:"defaultProtocol"`
	DefaultQuality  string        `yaml:"defaultQuality"`
	Autoplay        bool          `yaml:"autoplay"`
}

type NetworkConfig struct {
	// ProbeURL enables per-session monitoring when set.
	ProbeURL            string        `yaml:"probeURL"`
	Interval            time.Duration `yaml:"interval"`
	ConstrainedInterval time.Duration `yaml:"constrainedInterval"`
	MinSampleInterval   time.Duration `yaml:"minSampleInterval"`
	SettleDelay         time.Duration `yaml:"settleDelay"`
	FastThreshold       time.Duration `yaml:"fastThreshold"`
	MediumThreshold     time.Duration `yaml:"mediumThreshold"`
	ProbeTimeout        time.Duration `yaml:"probeTimeout"`
}

type DeviceConfig struct {
	// BufferBudget in seconds for clients that report none.
	BufferBudget int `yaml:"bufferBudget"`
}

type SessionsConfig struct {
	IdleTTL           time.Duration `yaml:"idleTTL"`
	SweepInterval     time.Duration `yaml:"sweepInterval"`
	MaxSessions       int           `yaml:"maxSessions"`
	MaxQueuedCommands int           `yaml:"maxQueuedCommands"`
}

type ChannelsConfig struct {
	// Source is a file path or an http(s) URL.
	Source       string        `yaml:"source"`
	Format       string        `yaml:"format"`
	Watch        bool          `yaml:"watch"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	MaxElapsed   time.Duration `yaml:"maxElapsed"`
	// StateDir holds channel-state.json; empty disables persistence.
	StateDir string `yaml:"stateDir"`
}

type StoreConfig struct {
	Backend       string        `yaml:"backend"`
	Path          string        `yaml:"path"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDB"`
	Retention     time.Duration `yaml:"retention"`
	MaxEvents     int           `yaml:"maxEvents"`
}

type PlaylistConfig struct {
	// ExportPath writes an M3U for the default device on every channel reload.
	ExportPath string `yaml:"exportPath"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

// PlaybackSettings converts to the controller configuration.
func (c AppConfig) PlaybackSettings() playback.Config {
	p, _ := sp.ParseProtocol(c.Playback.DefaultProtocol)
	q, _ := sp.ParseQuality(c.Playback.DefaultQuality)
	return playback.Config{
		MaxRetries:      c.Playback.MaxRetries,
		BaseRetryDelay:  c.Playback.BaseRetryDelay,
		DefaultProtocol: p,
		DefaultQuality:  q,
		Autoplay:        c.Playback.Autoplay,
	}
}

// NetworkSettings converts to the monitor configuration.
func (c AppConfig) NetworkSettings() netmon.Config {
	n := c.Network
	return netmon.Config{
		Interval:            n.Interval,
		ConstrainedInterval: n.ConstrainedInterval,
		MinSampleInterval:   n.MinSampleInterval,
		SettleDelay:         n.SettleDelay,
		FastThreshold:       n.FastThreshold,
		MediumThreshold:     n.MediumThreshold,
		ProbeTimeout:        n.ProbeTimeout,
	}
}

// RegistrySettings converts to the session registry configuration.
func (c AppConfig) RegistrySettings() playback.RegistryConfig {
	return playback.RegistryConfig{
		Playback:          c.PlaybackSettings(),
		Network:           c.NetworkSettings(),
		ProbeURL:          c.Network.ProbeURL,
		IdleTTL:           c.Sessions.IdleTTL,
		SweepInterval:     c.Sessions.SweepInterval,
		MaxSessions:       c.Sessions.MaxSessions,
		MaxQueuedCommands: c.Sessions.MaxQueuedCommands,
		BufferBudget:      c.Device.BufferBudget,
	}
}

// StoreSettings converts to the store configuration.
func (c AppConfig) StoreSettings() store.Config {
	return store.Config{
		Backend: c.Store.Backend,
		Path:    c.Store.Path,
		Redis: store.RedisConfig{
			Addr:     c.Store.RedisAddr,
			Password: c.Store.RedisPassword,
			DB:       c.Store.RedisDB,
		},
		Retention: c.Store.Retention,
		MaxEvents: c.Store.MaxEvents,
	}
}

// CatalogSettings converts to the channel catalog configuration.
func (c AppConfig) CatalogSettings() channels.CatalogConfig {
	return channels.CatalogConfig{
		Location:     c.Channels.Source,
		Format:       channels.Format(c.Channels.Format),
		FetchTimeout: c.Channels.FetchTimeout,
		MaxElapsed:   c.Channels.MaxElapsed,
	}
}

// TelemetrySettings converts to the tracer provider configuration.
func (c AppConfig) TelemetrySettings() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.Log.Service,
		ServiceVersion: c.Version,
		Environment:    c.Telemetry.Environment,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}
