// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/tvplay/internal/log"
	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
		// TVPLAY_CONFIG selects the file itself.
		ConsumedEnvKeys: map[string]struct{}{EnvPrefix + "CONFIG": {}},
	}
}

// Path returns the config file path; empty means environment only.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults, then
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	l.warnUnknownEnv()
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with strict parsing. Unknown fields
// are fatal.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.Log.Level = l.envString(EnvPrefix+"LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString(EnvPrefix+"LOG_SERVICE", cfg.Log.Service)

	cfg.Server.Listen = l.envString(EnvPrefix+"LISTEN", cfg.Server.Listen)
	cfg.Server.ReadTimeout = l.envDuration(EnvPrefix+"READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = l.envDuration(EnvPrefix+"WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = l.envDuration(EnvPrefix+"IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = l.envDuration(EnvPrefix+"SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Playback.MaxRetries = l.envInt(EnvPrefix+"MAX_RETRIES", cfg.Playback.MaxRetries)
	cfg.Playback.BaseRetryDelay = l.envDuration(EnvPrefix+"BASE_RETRY_DELAY", cfg.Playback.BaseRetryDelay)
	cfg.Playback.DefaultProtocol = l.envString(EnvPrefix+"DEFAULT_PROTOCOL", cfg.Playback.DefaultProtocol)
	cfg.Playback.DefaultQuality = l.envString(EnvPrefix+"DEFAULT_QUALITY", cfg.Playback.DefaultQuality)
	cfg.Playback.Autoplay = l.envBool(EnvPrefix+"AUTOPLAY", cfg.Playback.Autoplay)

	cfg.Network.ProbeURL = l.envString(EnvPrefix+"PROBE_URL", cfg.Network.ProbeURL)
	cfg.Network.Interval = l.envDuration(EnvPrefix+"NETWORK_INTERVAL", cfg.Network.Interval)
	cfg.Network.ConstrainedInterval = l.envDuration(EnvPrefix+"NETWORK_CONSTRAINED_INTERVAL", cfg.Network.ConstrainedInterval)
	cfg.Network.MinSampleInterval = l.envDuration(EnvPrefix+"NETWORK_MIN_SAMPLE_INTERVAL", cfg.Network.MinSampleInterval)
	cfg.Network.ProbeTimeout = l.envDuration(EnvPrefix+"PROBE_TIMEOUT", cfg.Network.ProbeTimeout)

	cfg.Device.BufferBudget = l.envInt(EnvPrefix+"BUFFER_BUDGET", cfg.Device.BufferBudget)

	cfg.Sessions.IdleTTL = l.envDuration(EnvPrefix+"SESSION_IDLE_TTL", cfg.Sessions.IdleTTL)
	cfg.Sessions.MaxSessions = l.envInt(EnvPrefix+"MAX_SESSIONS", cfg.Sessions.MaxSessions)

	cfg.Channels.Source = l.envString(EnvPrefix+"CHANNELS_SOURCE", cfg.Channels.Source)
	cfg.Channels.Format = l.envString(EnvPrefix+"CHANNELS_FORMAT", cfg.Channels.Format)
	cfg.Channels.Watch = l.envBool(EnvPrefix+"CHANNELS_WATCH", cfg.Channels.Watch)
	cfg.Channels.StateDir = l.envString(EnvPrefix+"CHANNELS_STATE_DIR", cfg.Channels.StateDir)

	cfg.Store.Backend = l.envString(EnvPrefix+"STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = l.envString(EnvPrefix+"STORE_PATH", cfg.Store.Path)
	cfg.Store.RedisAddr = l.envString(EnvPrefix+"REDIS_ADDR", cfg.Store.RedisAddr)
	cfg.Store.RedisPassword = l.envString(EnvPrefix+"REDIS_PASSWORD", cfg.Store.RedisPassword)
	cfg.Store.RedisDB = l.envInt(EnvPrefix+"REDIS_DB", cfg.Store.RedisDB)

	cfg.Playlist.ExportPath = l.envString(EnvPrefix+"PLAYLIST_EXPORT_PATH", cfg.Playlist.ExportPath)

	cfg.Telemetry.Enabled = l.envBool(EnvPrefix+"TELEMETRY_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString(EnvPrefix+"OTLP_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString(EnvPrefix+"OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = l.envFloat(EnvPrefix+"TRACE_SAMPLING_RATE", cfg.Telemetry.SamplingRate)

	cfg.Metrics.Enabled = l.envBool(EnvPrefix+"METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.RateLimit.Enabled = l.envBool(EnvPrefix+"RATELIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = l.envInt(EnvPrefix+"RATELIMIT_RPM", cfg.RateLimit.RequestsPerMinute)
}

// UnknownEnvKeys lists TVPLAY_ variables that no setting consumed.
func (l *Loader) UnknownEnvKeys() []string {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown
}

func (l *Loader) warnUnknownEnv() {
	if unknown := l.UnknownEnvKeys(); len(unknown) > 0 {
		logger := log.WithComponent("config")
		logger.Warn().
			Str(log.FieldEvent, "config.unknown_env").
			Strs("keys", unknown).
			Msg("ignoring unknown environment variables")
	}
}
