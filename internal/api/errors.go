// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/store"
)

var (
	errBadRequest = errors.New("bad request")
	errNoMonitor  = errors.New("network monitoring is disabled for this session")
)

// Problem is the JSON error body.
type Problem struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, code int, kind, detail string) {
	writeJSON(w, code, Problem{
		Error:     kind,
		Detail:    detail,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}

// writeError maps a domain error to its HTTP status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := classify(err)
	if code >= 500 {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(log.FieldEvent, "api.internal_error").
			Str(log.FieldPath, r.URL.Path).
			Msg("request failed")
	}
	writeProblem(w, r, code, kind, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, playback.ErrInvalidProtocol),
		errors.Is(err, playback.ErrInvalidQuality):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, store.ErrInvalidSettings):
		return http.StatusBadRequest, "invalid_settings"
	case errors.Is(err, playback.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, channels.ErrChannelNotFound):
		return http.StatusNotFound, "channel_not_found"
	case errors.Is(err, playback.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, errNoMonitor):
		return http.StatusConflict, "network_monitor_disabled"
	case errors.Is(err, playback.ErrClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, playback.ErrResolution):
		return http.StatusUnprocessableEntity, "resolution_failed"
	case errors.Is(err, playback.ErrTooManySessions):
		return http.StatusServiceUnavailable, "too_many_sessions"
	case errors.Is(err, channels.ErrNotLoaded):
		return http.StatusServiceUnavailable, "channels_not_loaded"
	case errors.Is(err, playback.ErrPlayback):
		return http.StatusBadGateway, "engine_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
