// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"

	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/rs/zerolog"
)

// Journal writes controller events to a Store. Write failures are logged and
// never reach the controller.
type Journal struct {
	store  Store
	logger zerolog.Logger
}

// NewJournal returns a playback.Journal backed by s.
func NewJournal(s Store) *Journal {
	return &Journal{store: s, logger: log.WithComponent("journal")}
}

var _ playback.Journal = (*Journal)(nil)

func (j *Journal) Record(ctx context.Context, sessionID string, e playback.Event) {
	entry := EntryFromEvent(sessionID, e)
	if err := j.store.AppendEvent(ctx, entry); err != nil {
		j.logger.Warn().Err(err).
			Str(log.FieldEvent, "journal.append_failed").
			Str(log.FieldSessionID, sessionID).
			Str("type", entry.Type).
			Msg("failed to journal playback event")
	}
}

// EntryFromEvent flattens a controller event.
func EntryFromEvent(sessionID string, e playback.Event) Entry {
	protocol := e.Protocol
	if protocol == "" {
		protocol = e.Snapshot.Protocol
	}
	entry := Entry{
		SessionID:  sessionID,
		Type:       string(e.Type),
		From:       string(e.From),
		To:         string(e.To),
		Trigger:    string(e.Trigger),
		Channel:    e.Snapshot.Channel,
		Protocol:   protocol,
		Quality:    e.Quality,
		RetryCount: e.Snapshot.RetryCount,
		Generation: e.Snapshot.Generation,
		At:         e.At,
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}
	return entry
}
