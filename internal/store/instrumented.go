// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"

	"github.com/ManuGH/tvplay/internal/metrics"
)

// instrumented records an operation metric for every call.
type instrumented struct {
	Store
	backend string
}

// Backend names the wrapped backend.
func (i *instrumented) Backend() string { return i.backend }

func (i *instrumented) LoadSettings(ctx context.Context) (Settings, error) {
	s, err := i.Store.LoadSettings(ctx)
	metrics.RecordStoreOp(i.backend, "load_settings", err)
	return s, err
}

func (i *instrumented) SaveSettings(ctx context.Context, s Settings) error {
	err := i.Store.SaveSettings(ctx, s)
	metrics.RecordStoreOp(i.backend, "save_settings", err)
	return err
}

func (i *instrumented) ResetSettings(ctx context.Context) (Settings, error) {
	s, err := i.Store.ResetSettings(ctx)
	metrics.RecordStoreOp(i.backend, "reset_settings", err)
	return s, err
}

func (i *instrumented) AppendEvent(ctx context.Context, e Entry) error {
	err := i.Store.AppendEvent(ctx, e)
	metrics.RecordStoreOp(i.backend, "append_event", err)
	return err
}

func (i *instrumented) ListEvents(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	out, err := i.Store.ListEvents(ctx, sessionID, limit)
	metrics.RecordStoreOp(i.backend, "list_events", err)
	return out, err
}
