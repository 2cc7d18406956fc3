// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	"github.com/ManuGH/tvplay/internal/resolver"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/google/renameio/v2"
)

// Build resolves every channel of list for profile. Channels without a
// usable source are skipped. Constrained profiles only see active channels.
func Build(ctx context.Context, list *channels.List, profile device.Profile, requested sp.Protocol) []Item {
	logger := log.WithComponentFromContext(ctx, "playlist")
	if profile.Constrained() {
		list = list.ActiveOnly()
	}

	all := list.All()
	items := make([]Item, 0, len(all))
	for _, ch := range all {
		src, err := resolver.Resolve(ch, profile, requested)
		if err != nil {
			logger.Debug().Err(err).
				Str(log.FieldEvent, "playlist.channel_skipped").
				Str(log.FieldChannel, ch.Name()).
				Msg("channel has no playable source")
			continue
		}
		items = append(items, Item{
			Name:     ch.Name(),
			TvgID:    channels.Key(ch.Name()),
			TvgChNo:  len(items) + 1,
			Group:    ch.Category(),
			URL:      src.URL,
			MIMEType: src.MIMEType,
		})
	}
	return items
}

// Export atomically replaces the file at path with the playlist.
func Export(ctx context.Context, path string, items []Item) (err error) {
	defer func() { metrics.RecordPlaylistExport(err) }()
	logger := log.WithComponentFromContext(ctx, "playlist")

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create playlist dir: %w", err)
	}
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending M3U file: %w", err)
	}
	defer func() {
		if cerr := pending.Cleanup(); cerr != nil {
			logger.Debug().Err(cerr).Msg("cleanup pending M3U file")
		}
	}()

	if err := WriteM3U(pending, items); err != nil {
		return fmt.Errorf("write M3U data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace M3U file: %w", err)
	}

	logger.Info().
		Str(log.FieldEvent, "playlist.exported").
		Str("path", path).
		Int("channels", len(items)).
		Msg("playlist exported")
	return nil
}
