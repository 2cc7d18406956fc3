// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"net/url"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/go-chi/chi/v5"
)

type channelView struct {
	channels.Channel
	Enabled bool `json:"enabled"`
}

// MarshalJSON merges the enabled flag into the channel document shape.
func (v channelView) MarshalJSON() ([]byte, error) {
	return mergeJSON(v.Channel, map[string]any{"enabled": v.Enabled})
}

type channelListResponse struct {
	Channels   []channelView `json:"channels"`
	Categories []string      `json:"categories"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// visibleList is the current catalog as seen by an optional session: disabled
// channels are hidden from sessions and constrained devices only see active
// channels.
func (s *Server) visibleList(r *http.Request) (*channels.List, error) {
	list, err := s.catalog.Current()
	if err != nil {
		return nil, err
	}
	id := r.URL.Query().Get("session")
	if id == "" {
		return list, nil
	}
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	list = s.state.Apply(list)
	if sess.Profile.Constrained() {
		list = list.ActiveOnly()
	}
	return list, nil
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	list, err := s.visibleList(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filtered := list.Filter(r.URL.Query().Get("category"))
	resp := channelListResponse{
		Channels:   make([]channelView, 0, len(filtered)),
		Categories: list.Categories(),
	}
	for _, ch := range filtered {
		resp.Channels = append(resp.Channels, channelView{Channel: ch, Enabled: s.state.IsEnabled(ch.Name())})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := s.catalog.Current()
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats := append([]string{channels.CategoryAll}, list.Categories()...)
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cats})
}

func channelName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	list, err := s.visibleList(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ch, err := list.Get(channelName(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, channelView{Channel: ch, Enabled: s.state.IsEnabled(ch.Name())})
}

func (s *Server) handleSetChannelEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", "enabled is required")
		return
	}
	list, err := s.catalog.Current()
	if err != nil {
		writeError(w, r, err)
		return
	}
	ch, err := list.Get(channelName(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.state.SetEnabled(ch.Name(), *req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.Info().
		Str(log.FieldEvent, "channels.enabled_changed").
		Str(log.FieldChannel, ch.Name()).
		Bool("enabled", *req.Enabled).
		Msg("channel state changed")
	writeJSON(w, http.StatusOK, channelView{Channel: ch, Enabled: *req.Enabled})
}
