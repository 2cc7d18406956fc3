// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package daemon

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/tvplay/internal/config"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const channelsDoc = `{
  "channels": [
    {"name": "News One", "category": "news", "url": "https://cdn.example.com/news/index.m3u8",
     "streams": {"hls": "https://cdn.example.com/news/index.m3u8"}}
  ]
}`

func testAppConfig(t *testing.T) config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	source := filepath.Join(dir, "channels.json")
	require.NoError(t, os.WriteFile(source, []byte(channelsDoc), 0o600))

	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.Server = testServerConfig()
	cfg.Channels.Source = source
	cfg.Channels.Watch = false
	cfg.Channels.StateDir = filepath.Join(dir, "state")
	cfg.Playlist.ExportPath = filepath.Join(dir, "out", "playlist.m3u")
	return cfg
}

func TestApp_RunRequiresManager(t *testing.T) {
	app := NewApp(log.WithComponent("test"), nil, nil, nil, nil)
	assert.ErrorIs(t, app.Run(context.Background()), ErrMissingManager)
}

func TestApp_BootstrapServesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := testAppConfig(t)
	holder := config.NewHolder(cfg, config.NewLoader("", "test"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app, err := Bootstrap(ctx, holder)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	addr := waitForAddr(t, app.Manager())
	assert.Equal(t, http.StatusOK, getStatus(t, "http://"+addr+"/readyz"))
	assert.Equal(t, http.StatusOK, getStatus(t, "http://"+addr+"/api/v1/channels"))

	// the initial load exported the playlist
	data, err := os.ReadFile(cfg.Playlist.ExportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "https://cdn.example.com/news/index.m3u8")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestApp_BootstrapFailsOnUnreadableSource(t *testing.T) {
	cfg := testAppConfig(t)
	cfg.Channels.Source = filepath.Join(t.TempDir(), "missing.json")
	_, err := Bootstrap(context.Background(), config.NewHolder(cfg, config.NewLoader("", "test")))
	assert.Error(t, err)
}

func TestApp_ApplyLogLevel(t *testing.T) {
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	app := NewApp(log.WithComponent("test"), nil, nil, nil, nil)
	cfg := config.Defaults()
	cfg.Log.Level = "warn"
	app.apply(cfg)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	cfg.Log.Level = "nonsense"
	app.apply(cfg)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}
