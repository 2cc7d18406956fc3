// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/netmon"
	"github.com/ManuGH/tvplay/internal/playback"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/go-chi/chi/v5"
)

const (
	defaultJournalLimit = 100
	maxJournalLimit     = 1000
)

type createSessionRequest struct {
	// UserAgent overrides the request's User-Agent header.
	UserAgent string       `json:"userAgent,omitempty"`
	Hints     device.Hints `json:"hints"`
}

type profileView struct {
	Protocols    []sp.Protocol `json:"protocols"`
	Constrained  bool          `json:"constrained"`
	BufferBudget int           `json:"bufferBudget"`
	AutoQuality  bool          `json:"autoQuality"`
}

type sessionResponse struct {
	ID       string            `json:"id"`
	Profile  profileView       `json:"profile"`
	Playback playback.Snapshot `json:"playback"`
	Pending  int               `json:"pendingCommands"`
}

type selectChannelRequest struct {
	Channel string `json:"channel"`
}

type protocolRequest struct {
	Protocol sp.Protocol `json:"protocol"`
}

type qualityRequest struct {
	Quality sp.Quality `json:"quality"`
}

// engineEventRequest is an engine notification from the client player. Kind
// "levels" reports the rendition list instead; a non-zero generation ties it
// to one load.
type engineEventRequest struct {
	Kind       string                  `json:"kind"`
	Generation uint64                  `json:"generation"`
	Code       string                  `json:"code,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Levels     []playback.QualityLevel `json:"levels,omitempty"`
}

type connectivityRequest struct {
	Online  *bool `json:"online,omitempty"`
	Visible *bool `json:"visible,omitempty"`
}

type networkResponse struct {
	Monitored   bool          `json:"monitored"`
	Sample      netmon.Sample `json:"sample"`
	Recommended sp.Quality    `json:"recommended,omitempty"`
}

func newSessionResponse(s *playback.Session) sessionResponse {
	return sessionResponse{
		ID: s.ID,
		Profile: profileView{
			Protocols:    s.Profile.Protocols(),
			Constrained:  s.Profile.Constrained(),
			BufferBudget: s.Profile.BufferBudget(),
			AutoQuality:  s.Profile.AutoQuality(),
		},
		Playback: s.Controller.Snapshot(),
		Pending:  s.Engine.Pending(),
	}
}

// session resolves the {id} parameter and tags the request context with it.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*playback.Session, *http.Request, bool) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, r, false
	}
	ctx := log.ContextWithSessionID(r.Context(), sess.ID)
	return sess, r.WithContext(ctx), true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	settings, err := s.store.LoadSettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.registry.Create(r.Context(), playback.CreateRequest{
		UserAgent: req.UserAgent,
		Hints:     req.Hints,
		Defaults: playback.SessionDefaults{
			Protocol:     settings.DefaultProtocol,
			Quality:      settings.DefaultQuality,
			BufferBudget: settings.BufferSize,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSelectChannel(w http.ResponseWriter, r *http.Request) {
	sess, r, ok := s.session(w, r)
	if !ok {
		return
	}
	var req selectChannelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Channel == "" {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", "channel is required")
		return
	}

	list, err := s.catalog.Current()
	if err != nil {
		writeError(w, r, err)
		return
	}
	list = s.state.Apply(list)
	if sess.Profile.Constrained() {
		list = list.ActiveOnly()
	}
	ch, err := list.Get(req.Channel)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Controller.SelectChannel(r.Context(), ch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleSetProtocol(w http.ResponseWriter, r *http.Request) {
	sess, r, ok := s.session(w, r)
	if !ok {
		return
	}
	var req protocolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := sp.ParseProtocol(string(req.Protocol))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", playback.ErrInvalidProtocol, err))
		return
	}
	if err := sess.Controller.SetProtocol(r.Context(), p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleSetQuality(w http.ResponseWriter, r *http.Request) {
	sess, r, ok := s.session(w, r)
	if !ok {
		return
	}
	var req qualityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := sess.Controller.SetQuality(r.Context(), req.Quality); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, (*playback.Controller).Play)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, (*playback.Controller).Pause)
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, op func(*playback.Controller, context.Context) error) {
	sess, r, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := op(sess.Controller, r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleEngineEvent(w http.ResponseWriter, r *http.Request) {
	sess, r, ok := s.session(w, r)
	if !ok {
		return
	}
	var req engineEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	switch kind := playback.EngineEventKind(req.Kind); kind {
	case "levels":
		if req.Generation != 0 && req.Generation != sess.Controller.Snapshot().Generation {
			s.logger.Debug().
				Str(log.FieldEvent, "api.stale_levels").
				Str(log.FieldSessionID, sess.ID).
				Uint64(log.FieldGeneration, req.Generation).
				Msg("ignoring levels for superseded load")
			break
		}
		sess.Engine.ReportLevels(req.Levels)
		sess.Controller.LevelsChanged(r.Context())
	case playback.EngineLoaded, playback.EngineError:
		sess.Controller.HandleEngineEvent(r.Context(), playback.EngineEvent{
			Kind:       kind,
			Generation: req.Generation,
			Code:       req.Code,
			Message:    req.Message,
		})
	default:
		writeProblem(w, r, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("unknown event kind %q", req.Kind))
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleDrainCommands(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	cmds := sess.Engine.Drain()
	if cmds == nil {
		cmds = []playback.Command{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": cmds})
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	sess, r, ok := s.session(w, r)
	if !ok {
		return
	}
	var req connectivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if sess.Monitor == nil {
		writeError(w, r, errNoMonitor)
		return
	}
	if req.Online != nil {
		sess.Monitor.SetOnline(*req.Online)
	}
	if req.Visible != nil && *req.Visible {
		// The re-sample outlives this request.
		sess.Monitor.VisibilityRegained(context.WithoutCancel(r.Context()))
	}
	writeJSON(w, http.StatusOK, s.networkView(sess))
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	sess, _, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.networkView(sess))
}

func (s *Server) networkView(sess *playback.Session) networkResponse {
	if sess.Monitor == nil {
		return networkResponse{Monitored: false}
	}
	return networkResponse{
		Monitored:   true,
		Sample:      sess.Monitor.Latest(),
		Recommended: sess.Monitor.Recommend(),
	}
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	sess, r, ok := s.session(w, r)
	if !ok {
		return
	}
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, errors.Join(errBadRequest, fmt.Errorf("invalid limit %q", v)))
			return
		}
		limit = min(n, maxJournalLimit)
	}
	entries, err := s.store.ListEvents(r.Context(), sess.ID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}
