// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store persists user playback settings and the per-session event
// journal. Backends: memory, sqlite, badger and redis.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

var (
	// ErrInvalidSettings wraps every settings validation failure.
	ErrInvalidSettings = errors.New("invalid settings")
	// ErrUnknownBackend is returned by Open for unsupported backends.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// Buffer size bounds in seconds.
const (
	DefaultBufferSize = 30
	MinBufferSize     = 5
	MaxBufferSize     = 120
)

// CDNAuto lets the resolver pick whatever the channel list provides.
const CDNAuto = "auto"

// Settings are the user defaults applied to new sessions.
type Settings struct {
	DefaultProtocol sp.Protocol `json:"defaultProtocol"`
	DefaultQuality  sp.Quality  `json:"defaultQuality"`
	// BufferSize is the requested buffer length in seconds.
	BufferSize   int       `json:"bufferSize"`
	PreferredCDN string    `json:"preferredCDN"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// DefaultSettings returns auto protocol, auto quality and a 30s buffer.
func DefaultSettings() Settings {
	return Settings{
		DefaultProtocol: sp.ProtocolAuto,
		DefaultQuality:  sp.QualityAuto,
		BufferSize:      DefaultBufferSize,
		PreferredCDN:    CDNAuto,
	}
}

// Normalize fills empty fields with defaults and validates the rest.
func (s Settings) Normalize() (Settings, error) {
	p, err := sp.ParseProtocol(string(s.DefaultProtocol))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	q, err := sp.ParseQuality(string(s.DefaultQuality))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	s.DefaultProtocol = p
	s.DefaultQuality = q

	if s.BufferSize == 0 {
		s.BufferSize = DefaultBufferSize
	}
	if s.BufferSize < MinBufferSize || s.BufferSize > MaxBufferSize {
		return Settings{}, fmt.Errorf("%w: bufferSize %d outside [%d, %d]", ErrInvalidSettings, s.BufferSize, MinBufferSize, MaxBufferSize)
	}

	s.PreferredCDN = strings.ToLower(strings.TrimSpace(s.PreferredCDN))
	if s.PreferredCDN == "" {
		s.PreferredCDN = CDNAuto
	}
	return s, nil
}

// Entry is one journaled controller event.
type Entry struct {
	SessionID  string      `json:"sessionId"`
	Type       string      `json:"type"`
	From       string      `json:"from,omitempty"`
	To         string      `json:"to,omitempty"`
	Trigger    string      `json:"trigger,omitempty"`
	Channel    string      `json:"channel,omitempty"`
	Protocol   sp.Protocol `json:"protocol,omitempty"`
	Quality    sp.Quality  `json:"quality,omitempty"`
	RetryCount int         `json:"retryCount"`
	Generation uint64      `json:"generation"`
	Error      string      `json:"error,omitempty"`
	At         time.Time   `json:"at"`
}

// Store is implemented by every backend.
type Store interface {
	// LoadSettings returns the stored settings, or the defaults if none were saved.
	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
	// ResetSettings removes stored settings and returns the defaults.
	ResetSettings(ctx context.Context) (Settings, error)

	AppendEvent(ctx context.Context, e Entry) error
	// ListEvents returns up to limit most recent events of a session, oldest first.
	ListEvents(ctx context.Context, sessionID string, limit int) ([]Entry, error)

	Ping(ctx context.Context) error
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is memory, sqlite, badger or redis. Empty means memory.
	Backend string
	// Path is the database file (sqlite) or directory (badger).
	Path  string
	Redis RedisConfig
	// Retention bounds how long journal entries are kept where the backend
	// supports expiry. Default 24h.
	Retention time.Duration
	// MaxEvents caps journal entries per session. Default 500.
	MaxEvents int
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = 500
	}
	return c
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	cfg = cfg.withDefaults()
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))

	var (
		s   Store
		err error
	)
	switch backend {
	case "", "memory":
		backend = "memory"
		s = NewMemory(cfg.MaxEvents)
	case "sqlite":
		s, err = OpenSQLite(ctx, cfg.Path, cfg.MaxEvents)
	case "badger":
		s, err = OpenBadger(cfg.Path, cfg.Retention, cfg.MaxEvents)
	case "redis":
		s, err = OpenRedis(ctx, cfg.Redis, cfg.Retention, cfg.MaxEvents)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}
	return &instrumented{Store: s, backend: backend}, nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
