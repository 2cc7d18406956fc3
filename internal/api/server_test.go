// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/clock"
	"github.com/ManuGH/tvplay/internal/health"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/store"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	modernUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	legacyUA = "Mozilla/5.0 (iPad; CPU OS 9_3_5 like Mac OS X) AppleWebKit/601.1.46 (KHTML, like Gecko) Version/9.0 Mobile/13G36 Safari/601.1"
)

const catalogJSON = `{
  "categories": ["news", "sports"],
  "channels": [
    {"name": "News One", "category": "news", "url": "https://cdn.example.com/news/index.m3u8",
     "streams": {"hls": "https://cdn.example.com/news/index.m3u8", "dash": "https://cdn.example.com/news/manifest.mpd"}},
    {"name": "Sport Max", "category": "sports", "url": "https://cdn.example.com/sport/live.flv",
     "streams": {"flv": "https://cdn.example.com/sport/live.flv"}, "active": false}
  ]
}`

type testServer struct {
	t        *testing.T
	server   *Server
	handler  http.Handler
	registry *playback.Registry
	store    store.Store
	clock    *clock.Fake
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	doc, err := channels.Parse([]byte(catalogJSON), channels.FormatJSON)
	require.NoError(t, err)
	list, err := channels.NewList(doc)
	require.NoError(t, err)
	catalog := channels.NewStaticCatalog(list)

	st := store.NewMemory(100)
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	reg := playback.NewRegistry(playback.RegistryConfig{Playback: playback.DefaultConfig()},
		playback.WithJournal(store.NewJournal(st)),
		playback.WithRegistryClock(clk))
	t.Cleanup(reg.Close)

	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewCatalogChecker(catalog))
	hm.RegisterChecker(health.NewStoreChecker(st))

	srv := New(Config{EnableMetrics: true}, Deps{
		Registry: reg,
		Catalog:  catalog,
		State:    channels.NewStateManager(t.TempDir()),
		Store:    st,
		Health:   hm,
	})
	return &testServer{t: t, server: srv, handler: srv.Handler(), registry: reg, store: st, clock: clk}
}

func (s *testServer) do(method, path string, body any, ua string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	if strings.HasPrefix(req.URL.Path, apiPrefix) {
		validateContract(s.t, req, w)
	}
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func (s *testServer) createSession(ua string) sessionResponse {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/sessions", nil, ua)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[sessionResponse](s.t, w)
}

type commandsResponse struct {
	Commands []playback.Command `json:"commands"`
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", nil, "").Code)

	ready := ts.do(http.MethodGet, "/readyz", nil, "")
	assert.Equal(t, http.StatusOK, ready.Code)

	metrics := ts.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "tvplay_http_requests_in_flight")
}

func TestChannels(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/channels?category=news", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Channels []struct {
			Name    string `json:"name"`
			Enabled bool   `json:"enabled"`
		} `json:"channels"`
		Categories []string `json:"categories"`
	}](t, w)
	require.Len(t, list.Channels, 1)
	assert.Equal(t, "News One", list.Channels[0].Name)
	assert.True(t, list.Channels[0].Enabled)
	assert.Equal(t, []string{"news", "sports"}, list.Categories)

	cats := decode[map[string][]string](t, ts.do(http.MethodGet, "/api/v1/categories", nil, ""))
	assert.Equal(t, []string{"all", "news", "sports"}, cats["categories"])

	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/v1/channels/news%20one", nil, "").Code)
	missing := ts.do(http.MethodGet, "/api/v1/channels/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, "channel_not_found", decode[Problem](t, missing).Error)
}

func TestDisabledChannelHiddenFromSessions(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.createSession(modernUA)

	w := ts.do(http.MethodPut, "/api/v1/channels/News%20One/enabled", map[string]bool{"enabled": false}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	sel := ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/channel", map[string]string{"channel": "News One"}, "")
	assert.Equal(t, http.StatusNotFound, sel.Code)

	bad := ts.do(http.MethodPut, "/api/v1/channels/News%20One/enabled", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestSessionPlaybackFlow(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.createSession(modernUA)
	assert.False(t, sess.Profile.Constrained)
	assert.Equal(t, playback.StateIdle, sess.Playback.State)
	base := "/api/v1/sessions/" + sess.ID

	w := ts.do(http.MethodPost, base+"/channel", map[string]string{"channel": "News One"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[sessionResponse](t, w)
	assert.Equal(t, playback.StateLoading, got.Playback.State)
	assert.Equal(t, sp.ProtocolHLS, got.Playback.Protocol)

	cmds := decode[commandsResponse](t, ts.do(http.MethodGet, base+"/commands", nil, ""))
	require.NotEmpty(t, cmds.Commands)
	load := cmds.Commands[0]
	assert.Equal(t, playback.CmdLoad, load.Type)
	require.NotNil(t, load.Source)
	assert.Equal(t, "https://cdn.example.com/news/index.m3u8", load.Source.URL)

	// queue is drained
	again := decode[commandsResponse](t, ts.do(http.MethodGet, base+"/commands", nil, ""))
	assert.Empty(t, again.Commands)

	w = ts.do(http.MethodPost, base+"/events", map[string]any{"kind": "loaded", "generation": load.Generation}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, playback.StatePlaying, decode[sessionResponse](t, w).Playback.State)

	w = ts.do(http.MethodPost, base+"/pause", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, playback.StatePaused, decode[sessionResponse](t, w).Playback.State)
	w = ts.do(http.MethodPost, base+"/play", nil, "")
	assert.Equal(t, playback.StatePlaying, decode[sessionResponse](t, w).Playback.State)

	w = ts.do(http.MethodPost, base+"/protocol", map[string]string{"protocol": "dash"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[sessionResponse](t, w)
	assert.Equal(t, sp.ProtocolDASH, got.Playback.Protocol)
	assert.Equal(t, playback.StateLoading, got.Playback.State)

	journal := decode[struct {
		Events []store.Entry `json:"events"`
	}](t, ts.do(http.MethodGet, base+"/journal?limit=500", nil, ""))
	assert.NotEmpty(t, journal.Events)
	assert.Equal(t, sess.ID, journal.Events[0].SessionID)

	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, base, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, base, nil, "").Code)
}

func TestEngineErrorsRetryThroughAPI(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.createSession(modernUA)
	base := "/api/v1/sessions/" + sess.ID

	w := ts.do(http.MethodPost, base+"/channel", map[string]string{"channel": "News One"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	gen := decode[sessionResponse](t, w).Playback.Generation

	w = ts.do(http.MethodPost, base+"/events", map[string]any{"kind": "error", "generation": gen, "code": "NETWORK"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[sessionResponse](t, w)
	assert.Equal(t, playback.StateError, got.Playback.State)
	assert.Equal(t, 1, got.Playback.RetryCount)

	ts.clock.Advance(2 * time.Second)
	got = decode[sessionResponse](t, ts.do(http.MethodGet, base, nil, ""))
	assert.Equal(t, playback.StateLoading, got.Playback.State)

	// stale generation is ignored
	w = ts.do(http.MethodPost, base+"/events", map[string]any{"kind": "error", "generation": 99}, "")
	assert.Equal(t, playback.StateLoading, decode[sessionResponse](t, w).Playback.State)

	unknown := ts.do(http.MethodPost, base+"/events", map[string]any{"kind": "exploded"}, "")
	assert.Equal(t, http.StatusBadRequest, unknown.Code)
}

func TestLevelsReportedAfterLoadedApplyQuality(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.createSession(modernUA)
	base := "/api/v1/sessions/" + sess.ID

	w := ts.do(http.MethodPost, base+"/quality", map[string]string{"quality": "high"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(http.MethodPost, base+"/channel", map[string]string{"channel": "News One"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	gen := decode[sessionResponse](t, w).Playback.Generation

	w = ts.do(http.MethodPost, base+"/events", map[string]any{"kind": "loaded", "generation": gen}, "")
	require.Equal(t, http.StatusOK, w.Code)
	ts.do(http.MethodGet, base+"/commands", nil, "")

	levels := []map[string]int{{"height": 240}, {"height": 1080}}
	w = ts.do(http.MethodPost, base+"/events", map[string]any{"kind": "levels", "generation": gen + 1, "levels": levels}, "")
	require.Equal(t, http.StatusOK, w.Code)
	stale := decode[commandsResponse](t, ts.do(http.MethodGet, base+"/commands", nil, ""))
	assert.Empty(t, stale.Commands, "levels for another load are ignored")

	w = ts.do(http.MethodPost, base+"/events", map[string]any{"kind": "levels", "generation": gen, "levels": levels}, "")
	require.Equal(t, http.StatusOK, w.Code)
	cmds := decode[commandsResponse](t, ts.do(http.MethodGet, base+"/commands", nil, ""))
	require.Len(t, cmds.Commands, 1)
	assert.Equal(t, playback.CmdSetLevels, cmds.Commands[0].Type)
	assert.Equal(t, []bool{false, true}, cmds.Commands[0].Levels)
}

func TestSessionValidationErrors(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.createSession(modernUA)
	base := "/api/v1/sessions/" + sess.ID

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
		kind   string
	}{
		{"unknown session", http.MethodGet, "/api/v1/sessions/missing", nil, http.StatusNotFound, "session_not_found"},
		{"bad protocol", http.MethodPost, base + "/protocol", map[string]string{"protocol": "rtmp"}, http.StatusBadRequest, "invalid_request"},
		{"bad quality", http.MethodPost, base + "/quality", map[string]string{"quality": "ultra"}, http.StatusBadRequest, "invalid_request"},
		{"pause while idle", http.MethodPost, base + "/pause", nil, http.StatusConflict, "invalid_transition"},
		{"unknown field", http.MethodPost, base + "/channel", map[string]string{"chanel": "x"}, http.StatusBadRequest, "invalid_request"},
		{"no monitor", http.MethodPost, base + "/connectivity", map[string]bool{"online": false}, http.StatusConflict, "network_monitor_disabled"},
		{"bad journal limit", http.MethodGet, base + "/journal?limit=-1", nil, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, decode[Problem](t, w).Error)
		})
	}

	network := decode[networkResponse](t, ts.do(http.MethodGet, base+"/network", nil, ""))
	assert.False(t, network.Monitored)
}

func TestConstrainedSessionSeesActiveChannelsOnly(t *testing.T) {
	ts := newTestServer(t)
	sess := ts.createSession(legacyUA)
	assert.True(t, sess.Profile.Constrained)
	assert.Equal(t, []sp.Protocol{sp.ProtocolHLS}, sess.Profile.Protocols)

	w := ts.do(http.MethodGet, "/api/v1/channels?session="+sess.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Sport Max")

	sel := ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/channel", map[string]string{"channel": "Sport Max"}, "")
	assert.Equal(t, http.StatusNotFound, sel.Code)
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t)

	got := decode[store.Settings](t, ts.do(http.MethodGet, "/api/v1/settings", nil, ""))
	assert.Equal(t, store.DefaultSettings().BufferSize, got.BufferSize)

	w := ts.do(http.MethodPut, "/api/v1/settings", map[string]any{"defaultProtocol": "DASH", "defaultQuality": "low", "bufferSize": 60}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got = decode[store.Settings](t, w)
	assert.Equal(t, sp.ProtocolDASH, got.DefaultProtocol)
	assert.Equal(t, store.CDNAuto, got.PreferredCDN)

	// new sessions pick up the saved defaults
	sess := ts.createSession(modernUA)
	assert.Equal(t, sp.ProtocolDASH, sess.Playback.RequestedProtocol)
	assert.Equal(t, sp.QualityLow, sess.Playback.Quality)

	bad := ts.do(http.MethodPut, "/api/v1/settings", map[string]any{"bufferSize": 1000}, "")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "invalid_settings", decode[Problem](t, bad).Error)

	reset := decode[store.Settings](t, ts.do(http.MethodDelete, "/api/v1/settings", nil, ""))
	assert.Equal(t, sp.ProtocolAuto, reset.DefaultProtocol)
}

func TestPlaylist(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/playlist.m3u", nil, modernUA)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/x-mpegurl", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "#EXTM3U"))
	assert.Contains(t, body, "https://cdn.example.com/sport/live.flv")

	legacy := ts.do(http.MethodGet, "/api/v1/playlist.m3u", nil, legacyUA).Body.String()
	assert.NotContains(t, legacy, "Sport Max")

	dash := ts.do(http.MethodGet, "/api/v1/playlist.m3u?protocol=dash", nil, modernUA).Body.String()
	assert.Contains(t, dash, "https://cdn.example.com/news/manifest.mpd")

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/v1/playlist.m3u?protocol=rtmp", nil, "").Code)
}
