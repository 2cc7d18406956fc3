// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api serves the tvplay HTTP API under /api/v1 plus the health and
// metrics endpoints.
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ManuGH/tvplay/internal/api/middleware"
	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/health"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 64 << 10

// Config controls the middleware stack.
type Config struct {
	ServiceName       string
	EnableMetrics     bool
	EnableTracing     bool
	EnableRateLimit   bool
	RequestsPerMinute int
	// BufferBudget is used for playlist requests without a session.
	BufferBudget int
}

// Deps are the components the handlers operate on.
type Deps struct {
	Registry *playback.Registry
	Catalog  *channels.Catalog
	State    *channels.StateManager
	Store    store.Store
	Health   *health.Manager
}

// Server owns the HTTP routes.
type Server struct {
	cfg      Config
	registry *playback.Registry
	catalog  *channels.Catalog
	state    *channels.StateManager
	store    store.Store
	health   *health.Manager
	detector device.Detector
	logger   zerolog.Logger
	router   chi.Router
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) *Server {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tvplay"
	}
	state := deps.State
	if state == nil {
		state = channels.NewStateManager("")
	}
	hm := deps.Health
	if hm == nil {
		hm = health.NewManager("")
	}
	s := &Server{
		cfg:      cfg,
		registry: deps.Registry,
		catalog:  deps.Catalog,
		state:    state,
		store:    deps.Store,
		health:   hm,
		detector: device.Detector{BufferBudget: cfg.BufferBudget},
		logger:   log.WithComponent("api"),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	stack := middleware.StackConfig{
		EnableMetrics:     s.cfg.EnableMetrics,
		EnableLogging:     true,
		EnableRateLimit:   s.cfg.EnableRateLimit,
		RequestsPerMinute: s.cfg.RequestsPerMinute,
	}
	if s.cfg.EnableTracing {
		stack.TracingService = s.cfg.ServiceName
	}
	r := middleware.NewRouter(stack)

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/channels", s.handleListChannels)
		r.Get("/categories", s.handleListCategories)
		r.Get("/channels/{name}", s.handleGetChannel)
		r.Put("/channels/{name}/enabled", s.handleSetChannelEnabled)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/channel", s.handleSelectChannel)
			r.Post("/protocol", s.handleSetProtocol)
			r.Post("/quality", s.handleSetQuality)
			r.Post("/play", s.handlePlay)
			r.Post("/pause", s.handlePause)
			r.Post("/events", s.handleEngineEvent)
			r.Get("/commands", s.handleDrainCommands)
			r.Post("/connectivity", s.handleConnectivity)
			r.Get("/network", s.handleNetwork)
			r.Get("/journal", s.handleJournal)
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handlePutSettings)
		r.Delete("/settings", s.handleResetSettings)

		r.Get("/playlist.m3u", s.handlePlaylist)
	})
	return r
}

// decodeJSON reads a bounded, strict JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
