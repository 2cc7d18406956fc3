// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/tvplay/internal/clock"
	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	"github.com/ManuGH/tvplay/internal/netmon"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// ErrTooManySessions is returned when the registry is full.
var ErrTooManySessions = errors.New("too many sessions")

// Journal receives every controller event of every session.
type Journal interface {
	Record(ctx context.Context, sessionID string, e Event)
}

// JournalFunc adapts a function to Journal.
type JournalFunc func(ctx context.Context, sessionID string, e Event)

func (f JournalFunc) Record(ctx context.Context, sessionID string, e Event) { f(ctx, sessionID, e) }

// RegistryConfig configures per-client sessions.
type RegistryConfig struct {
	Playback Config
	Network  netmon.Config
	// ProbeURL enables a per-session network monitor probing this URL.
	ProbeURL string
	// IdleTTL expires sessions that saw no request. Default 10m.
	IdleTTL time.Duration
	// SweepInterval between expiry sweeps in Run. Default 1m.
	SweepInterval time.Duration
	// MaxSessions caps concurrent sessions; 0 means unlimited.
	MaxSessions int
	// MaxQueuedCommands per remote engine.
	MaxQueuedCommands int
	// BufferBudget is the default buffer budget for detected profiles.
	BufferBudget int
}

// SessionDefaults are the persisted user settings applied to new sessions.
type SessionDefaults struct {
	Protocol     sp.Protocol
	Quality      sp.Quality
	BufferBudget int
}

// CreateRequest describes a new client session.
type CreateRequest struct {
	UserAgent string
	Hints     device.Hints
	Defaults  SessionDefaults
}

// Session is one registered client.
type Session struct {
	ID         string
	Controller *Controller
	Engine     *RemoteEngine
	Monitor    *netmon.Monitor
	Profile    device.Profile
	Created    time.Time
}

// Registry owns client sessions and expires idle ones.
type Registry struct {
	cfg      RegistryConfig
	detector device.Detector
	journal  Journal
	clock    clock.Clock
	logger   zerolog.Logger
	baseCtx  context.Context
	cancel   context.CancelFunc
	sessions *gocache.Cache
	// createMu makes the session cap check and insert atomic.
	createMu sync.Mutex

	newProber func(url string, timeout time.Duration) netmon.Prober
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithJournal records session events.
func WithJournal(j Journal) RegistryOption {
	return func(r *Registry) { r.journal = j }
}

// WithRegistryClock replaces the clock used by sessions.
func WithRegistryClock(c clock.Clock) RegistryOption {
	return func(r *Registry) { r.clock = c }
}

// WithProberFactory replaces the HTTP prober used by session monitors.
func WithProberFactory(f func(url string, timeout time.Duration) netmon.Prober) RegistryOption {
	return func(r *Registry) { r.newProber = f }
}

// NewRegistry creates an empty registry. Expired sessions are only swept
// while Run is active.
func NewRegistry(cfg RegistryConfig, opts ...RegistryOption) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		cfg:      cfg,
		detector: device.Detector{BufferBudget: cfg.BufferBudget},
		clock:    clock.Real{},
		logger:   log.WithComponent("sessions"),
		baseCtx:  ctx,
		cancel:   cancel,
		// No janitor goroutine: Run sweeps on its own schedule.
		sessions: gocache.New(cfg.IdleTTL, 0),
		newProber: func(url string, timeout time.Duration) netmon.Prober {
			return netmon.NewHTTPProber(url, timeout)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sessions.OnEvicted(func(id string, v any) {
		if s, ok := v.(*Session); ok {
			r.stopSession(s)
		}
		metrics.SetActiveSessions(r.sessions.ItemCount())
	})
	return r
}

// Create registers a new session for a client.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()
	if r.cfg.MaxSessions > 0 && r.sessions.ItemCount() >= r.cfg.MaxSessions {
		r.sessions.DeleteExpired()
		if r.sessions.ItemCount() >= r.cfg.MaxSessions {
			return nil, ErrTooManySessions
		}
	}

	hints := req.Hints
	if hints.BufferBudget <= 0 {
		hints.BufferBudget = req.Defaults.BufferBudget
	}
	profile := r.detector.Detect(req.UserAgent, hints)

	id := uuid.NewString()
	logger := r.logger.With().Str(log.FieldSessionID, id).Logger()

	pcfg := r.cfg.Playback
	if req.Defaults.Protocol != "" {
		pcfg.DefaultProtocol = req.Defaults.Protocol
	}
	if req.Defaults.Quality != "" {
		pcfg.DefaultQuality = req.Defaults.Quality
	}

	s := &Session{
		ID:      id,
		Engine:  NewRemoteEngine(r.clock, r.cfg.MaxQueuedCommands),
		Profile: profile,
		Created: r.clock.Now(),
	}

	opts := []Option{
		WithClock(r.clock),
		WithLogger(sessionLogger("playback", id)),
		WithContext(log.ContextWithSessionID(r.baseCtx, id)),
	}
	if r.cfg.ProbeURL != "" {
		ncfg := r.cfg.Network
		prober := r.newProber(r.cfg.ProbeURL, ncfg.ProbeTimeout)
		s.Monitor = netmon.New(ncfg, profile.Constrained(), prober,
			netmon.WithClock(r.clock),
			netmon.WithLogger(sessionLogger("netmon", id)))
		opts = append(opts, WithNetwork(s.Monitor))
	}
	if r.journal != nil {
		journal := r.journal
		opts = append(opts, WithObserver(ObserverFunc(func(e Event) {
			journal.Record(r.baseCtx, id, e)
		})))
	}
	s.Controller = NewController(pcfg, device.Static{P: profile}, s.Engine, opts...)
	if s.Monitor != nil {
		s.Monitor.Start(log.ContextWithSessionID(r.baseCtx, id))
	}

	r.sessions.SetDefault(id, s)
	metrics.SetActiveSessions(r.sessions.ItemCount())

	logger.Info().
		Str(log.FieldEvent, "sessions.created").
		Bool("constrained", profile.Constrained()).
		Strs("protocols", protocolStrings(profile.Protocols())).
		Msg("session created")
	return s, nil
}

// Get returns a live session and extends its idle deadline.
func (r *Registry) Get(id string) (*Session, error) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s := v.(*Session)
	if err := r.sessions.Replace(id, s, gocache.DefaultExpiration); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete stops and removes a session.
func (r *Registry) Delete(id string) error {
	if _, ok := r.sessions.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	r.sessions.Delete(id)
	r.logger.Info().
		Str(log.FieldEvent, "sessions.deleted").
		Str(log.FieldSessionID, id).
		Msg("session deleted")
	return nil
}

// Len returns the number of registered sessions, including expired ones not
// yet swept.
func (r *Registry) Len() int { return r.sessions.ItemCount() }

// Sweep removes expired sessions.
func (r *Registry) Sweep() {
	r.sessions.DeleteExpired()
}

// Run sweeps expired sessions until ctx is done, then stops every session.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Close()
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Close stops every session.
func (r *Registry) Close() {
	for _, item := range r.sessions.Items() {
		if s, ok := item.Object.(*Session); ok {
			r.stopSession(s)
		}
	}
	r.sessions.Flush()
	r.cancel()
	metrics.SetActiveSessions(0)
}

func (r *Registry) stopSession(s *Session) {
	s.Controller.Close()
	if s.Monitor != nil {
		s.Monitor.Stop()
	}
	r.logger.Debug().
		Str(log.FieldEvent, "sessions.stopped").
		Str(log.FieldSessionID, s.ID).
		Msg("session stopped")
}

func sessionLogger(component, id string) zerolog.Logger {
	return log.WithComponent(component).With().Str(log.FieldSessionID, id).Logger()
}

func protocolStrings(ps []sp.Protocol) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
