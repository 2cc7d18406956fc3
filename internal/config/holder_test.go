// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadHolder(t *testing.T, path string) *Holder {
	t.Helper()
	l := NewLoader(path, "test")
	cfg, err := l.Load()
	require.NoError(t, err)
	return NewHolder(cfg, l)
}

func TestHolder_ReloadSuccessNotifies(t *testing.T) {
	path := writeFile(t, "config.yaml", "server:\n  listen: \":9000\"\n")
	h := loadHolder(t, path)
	assert.Equal(t, ":9000", h.Get().Server.Listen)

	ch := make(chan AppConfig, 1)
	h.Subscribe(ch)

	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \":9001\"\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, ":9001", h.Get().Server.Listen)
	select {
	case got := <-ch:
		assert.Equal(t, ":9001", got.Server.Listen)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolder_ReloadFailureKeepsPrevious(t *testing.T) {
	path := writeFile(t, "config.yaml", "playback:\n  maxRetries: 4\n")
	h := loadHolder(t, path)

	cases := map[string]string{
		"unknown field": "playback:\n  retries: 4\n",
		"invalid value": "playback:\n  maxRetries: 99\n",
		"type mismatch": "playback:\n  maxRetries: [1]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
			require.Error(t, h.Reload(context.Background()))
			assert.Equal(t, 4, h.Get().Playback.MaxRetries)
		})
	}
}

func TestHolder_NotifyIsNonBlocking(t *testing.T) {
	h := loadHolder(t, "")
	full := make(chan AppConfig) // unbuffered, nobody reading
	h.Subscribe(full)

	done := make(chan struct{})
	go func() {
		_ = h.Reload(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reload blocked on listener")
	}
}

func TestHolder_WatchWithoutPathWaitsForCancel(t *testing.T) {
	h := loadHolder(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Watch(ctx) }()
	cancel()
	require.NoError(t, <-errc)
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "config.yaml", "log:\n  level: info\n")
	h := loadHolder(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})

	// Writes before the watcher is registered are missed; keep writing.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600)
		return h.Get().Log.Level == "debug"
	}, 5*time.Second, 200*time.Millisecond)

	// unrelated files in the directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x: 1"), 0o600))
	time.Sleep(reloadDebounce + 100*time.Millisecond)
	assert.Equal(t, "debug", h.Get().Log.Level)
}
