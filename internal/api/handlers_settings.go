// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"time"

	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/store"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.LoadSettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handlePutSettings replaces the stored settings. Omitted fields take their
// defaults. Existing sessions keep the settings they were created with.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var in store.Settings
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	settings, err := in.Normalize()
	if err != nil {
		writeError(w, r, err)
		return
	}
	settings.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveSettings(r.Context(), settings); err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.Info().
		Str(log.FieldEvent, "settings.saved").
		Str(log.FieldProtocol, string(settings.DefaultProtocol)).
		Str(log.FieldQuality, string(settings.DefaultQuality)).
		Int("buffer_size", settings.BufferSize).
		Msg("settings saved")
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.ResetSettings(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.Info().Str(log.FieldEvent, "settings.reset").Msg("settings reset to defaults")
	writeJSON(w, http.StatusOK, settings)
}
