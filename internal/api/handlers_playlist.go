// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/playlist"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// handlePlaylist renders the channel list resolved for the caller's device:
// the session's profile when ?session= is given, else one detected from the
// User-Agent.
func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	requested, err := sp.ParseProtocol(q.Get("protocol"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %w", playback.ErrInvalidProtocol, err))
		return
	}

	list, err := s.visibleList(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var profile device.Profile
	if id := q.Get("session"); id != "" {
		sess, err := s.registry.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		profile = sess.Profile
	} else {
		profile = s.detector.Detect(r.UserAgent(), device.Hints{})
	}
	list = s.state.Apply(list)

	var buf bytes.Buffer
	if err := playlist.WriteM3U(&buf, playlist.Build(r.Context(), list, profile, requested)); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Content-Disposition", `inline; filename="playlist.m3u"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
