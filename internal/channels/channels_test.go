// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package channels

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/ManuGH/tvplay/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "categories": ["news", "sports"],
  "channels": [
    {"name": "News One", "category": "news", "url": "https://cdn.example.com/news/index.m3u8",
     "streams": {"hls": "https://cdn.example.com/news/index.m3u8", "dash": "https://cdn.example.com/news/manifest.mpd"},
     "quality": ["high", "medium"]},
    {"name": "Sport Max", "category": "sports", "url": "https://cdn.example.com/sport/live.flv",
     "streams": {"flv": "https://cdn.example.com/sport/live.flv"}, "active": false},
    {"name": "Kids", "category": "kids", "url": "https://cdn.example.com/kids/index.m3u8"}
  ]
}`

const sampleYAML = `
channels:
  - name: Café Télé
    category: culture
    url: https://cdn.example.com/cafe/index.m3u8
    streams:
      dash: https://cdn.example.com/cafe/manifest.mpd
`

func mustList(t *testing.T, data string, format Format) *List {
	t.Helper()
	doc, err := Parse([]byte(data), format)
	require.NoError(t, err)
	l, err := NewList(doc)
	require.NoError(t, err)
	return l
}

func TestParse_JSON(t *testing.T) {
	l := mustList(t, sampleJSON, FormatJSON)
	require.Equal(t, 3, l.Len())

	news, err := l.Get("news one")
	require.NoError(t, err)
	u, ok := news.StreamURL(sp.ProtocolDASH)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/news/manifest.mpd", u)
	assert.True(t, news.Active())
	assert.Equal(t, []sp.Quality{sp.QualityHigh, sp.QualityMedium}, news.QualityTags())

	sport, err := l.Get("Sport Max")
	require.NoError(t, err)
	assert.False(t, sport.Active())
	_, ok = sport.StreamURL(sp.ProtocolHLS)
	assert.False(t, ok)
}

func TestParse_YAMLNormalizesLookup(t *testing.T) {
	l := mustList(t, sampleYAML, FormatYAML)
	// Decomposed "é" must find the precomposed name.
	ch, err := l.Get("Café Télé")
	require.NoError(t, err)
	assert.Equal(t, "culture", ch.Category())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "   "},
		{"bad json", "{"},
		{"unknown protocol", `{"channels":[{"name":"a","url":"https://x.example/a.m3u8","streams":{"rtmp":"x"}}]}`},
		{"unknown quality", `{"channels":[{"name":"a","url":"https://x.example/a.m3u8","quality":["ultra"]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), FormatJSON)
			assert.Error(t, err)
		})
	}
}

func TestNewList_ValidationErrors(t *testing.T) {
	doc := Document{Channels: []Channel{
		New("", "x", "https://cdn.example.com/a.m3u8", nil, nil, true),
		New("dup", "x", "https://cdn.example.com/a.m3u8", nil, nil, true),
		New("DUP", "x", "https://cdn.example.com/b.m3u8", nil, nil, true),
		New("nourl", "x", "", nil, nil, true),
		New("badscheme", "x", "ftp://cdn.example.com/a.m3u8", nil, nil, true),
	}}
	_, err := NewList(doc)
	require.Error(t, err)

	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors(), 4)
}

func TestList_FilterAndCategories(t *testing.T) {
	l := mustList(t, sampleJSON, FormatJSON)

	assert.Equal(t, []string{"news", "sports", "kids"}, l.Categories())
	assert.Len(t, l.Filter(""), 3)
	assert.Len(t, l.Filter(CategoryAll), 3)
	assert.Len(t, l.Filter("sports"), 1)
	assert.Empty(t, l.Filter("missing"))

	_, err := l.Get("nope")
	assert.ErrorIs(t, err, ErrChannelNotFound)
}

func TestList_ActiveOnly(t *testing.T) {
	l := mustList(t, sampleJSON, FormatJSON).ActiveOnly()
	assert.Equal(t, 2, l.Len())
	_, err := l.Get("Sport Max")
	assert.ErrorIs(t, err, ErrChannelNotFound)
	_, err = l.Get("Kids")
	assert.NoError(t, err)
}

func TestChannel_StreamsIsCopy(t *testing.T) {
	ch := New("a", "", "", map[sp.Protocol]string{sp.ProtocolHLS: "https://x.example/a.m3u8", sp.ProtocolAuto: "ignored"}, nil, true)
	streams := ch.Streams()
	require.Len(t, streams, 1)
	streams[sp.ProtocolDASH] = "mutated"
	_, ok := ch.StreamURL(sp.ProtocolDASH)
	assert.False(t, ok)
}

func TestCatalog_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	c := NewCatalog(CatalogConfig{Location: path})
	_, err := c.Current()
	assert.ErrorIs(t, err, ErrNotLoaded)

	var reloaded atomic.Int32
	c.OnReload(func(*List) { reloaded.Add(1) })

	l, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, int32(1), reloaded.Load())

	cur, err := c.Current()
	require.NoError(t, err)
	assert.Same(t, l, cur)
}

func TestCatalog_FailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o600))

	c := NewCatalog(CatalogConfig{Location: path})
	first, err := c.Load(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err = c.Load(context.Background())
	require.Error(t, err)

	cur, err := c.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)
}

func TestCatalog_LoadHTTPRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleJSON))
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{Location: srv.URL + "/channels", MaxElapsed: 5 * time.Second})
	l, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, int32(3), calls.Load())
}

func TestCatalog_LoadHTTPClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewCatalog(CatalogConfig{Location: srv.URL, MaxElapsed: 5 * time.Second})
	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCatalog_WatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o600))

	c := NewCatalog(CatalogConfig{Location: path})
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte(sampleYAMLAsJSON), 0o600))

	assert.Eventually(t, func() bool {
		l, err := c.Current()
		return err == nil && l.Len() == 1
	}, 5*time.Second, 50*time.Millisecond)
}

const sampleYAMLAsJSON = `{"channels":[{"name":"Solo","url":"https://cdn.example.com/solo/index.m3u8"}]}`

func TestStateManager_PersistsDisabled(t *testing.T) {
	dir := t.TempDir()
	m := NewStateManager(dir)
	require.NoError(t, m.Load())
	assert.True(t, m.IsEnabled("News One"))

	require.NoError(t, m.SetEnabled("News One", false))
	assert.False(t, m.IsEnabled("news one"))

	reloaded := NewStateManager(dir)
	require.NoError(t, reloaded.Load())
	assert.False(t, reloaded.IsEnabled("NEWS ONE"))
	assert.Equal(t, 1, reloaded.DisabledCount())

	l := reloaded.Apply(mustList(t, sampleJSON, FormatJSON))
	assert.Equal(t, 2, l.Len())

	require.NoError(t, reloaded.SetEnabled("News One", true))
	assert.Equal(t, 0, reloaded.DisabledCount())
}
