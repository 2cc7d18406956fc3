// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/clock"
	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/netmon"
	"github.com/ManuGH/tvplay/internal/resolver"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type engineCall struct {
	Op         string
	Protocol   sp.Protocol
	Generation uint64
}

// fakeEngine records every command and exposes four renditions.
type fakeEngine struct {
	mu      sync.Mutex
	calls   []engineCall
	levels  []QualityLevel
	caps    []int
	loadErr error
	playErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{levels: []QualityLevel{{Height: 240}, {Height: 480}, {Height: 720}, {Height: 1080}}}
}

func (e *fakeEngine) Load(_ context.Context, src resolver.Source, gen uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, engineCall{Op: "load", Protocol: src.Protocol, Generation: gen})
	return e.loadErr
}

func (e *fakeEngine) Play(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, engineCall{Op: "play"})
	return e.playErr
}

func (e *fakeEngine) Pause(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, engineCall{Op: "pause"})
	return nil
}

func (e *fakeEngine) QualityLevels() []QualityLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]QualityLevel(nil), e.levels...)
}

func (e *fakeEngine) SetLevelsEnabled(enabled []bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.levels {
		e.levels[i].Enabled = enabled[i]
	}
	return nil
}

func (e *fakeEngine) SetBandwidthCap(bps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caps = append(e.caps, bps)
	return nil
}

func (e *fakeEngine) enabled() []bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]bool, len(e.levels))
	for i, l := range e.levels {
		out[i] = l.Enabled
	}
	return out
}

func (e *fakeEngine) loads() []sp.Protocol {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []sp.Protocol
	for _, c := range e.calls {
		if c.Op == "load" {
			out = append(out, c.Protocol)
		}
	}
	return out
}

func (e *fakeEngine) count(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// fakeNetwork delivers samples synchronously.
type fakeNetwork struct {
	mu     sync.Mutex
	subs   []netmon.Subscriber
	latest netmon.Sample
}

func (n *fakeNetwork) Subscribe(fn netmon.Subscriber) netmon.Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, fn)
	return netmon.Subscription{}
}

func (n *fakeNetwork) Unsubscribe(netmon.Subscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = nil
}

func (n *fakeNetwork) Latest() netmon.Sample {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.latest
}

func (n *fakeNetwork) publish(s netmon.Sample) {
	n.mu.Lock()
	n.latest = s
	subs := append([]netmon.Subscriber(nil), n.subs...)
	n.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// recorder collects observer events.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnPlaybackEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, e := range r.events {
		if e.Type == EventTransition {
			out = append(out, e.To)
		}
	}
	return out
}

func (r *recorder) ofType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func allProtocolsChannel() channels.Channel {
	return channels.New("News One", "news", "https://cdn.example.com/news/fallback", map[sp.Protocol]string{
		sp.ProtocolHLS:  "https://cdn.example.com/news/index.m3u8",
		sp.ProtocolDASH: "https://cdn.example.com/news/manifest.mpd",
		sp.ProtocolFLV:  "https://cdn.example.com/news/live.flv",
	}, nil, true)
}

var (
	fullProfile        = device.MustProfile(sp.Protocols, false, 0)
	constrainedProfile = device.MustProfile(nil, true, 0)
)

type harness struct {
	ctl *Controller
	eng *fakeEngine
	clk *clock.Fake
	rec *recorder
	cfg Config
}

func newHarness(profile device.Profile, opts ...Option) *harness {
	h := &harness{eng: newFakeEngine(), clk: clock.NewFake(testEpoch), rec: &recorder{}, cfg: DefaultConfig()}
	all := append([]Option{WithClock(h.clk), WithObserver(h.rec)}, opts...)
	h.ctl = NewController(h.cfg, device.Static{P: profile}, h.eng, all...)
	return h
}

func (h *harness) fail() {
	snap := h.ctl.Snapshot()
	h.ctl.HandleEngineEvent(context.Background(), EngineEvent{Kind: EngineError, Generation: snap.Generation, Code: "MEDIA_ERR_NETWORK"})
}

func (h *harness) loaded() {
	snap := h.ctl.Snapshot()
	h.ctl.HandleEngineEvent(context.Background(), EngineEvent{Kind: EngineLoaded, Generation: snap.Generation})
}

// fireRetry advances the clock to the pending retry and returns its delay.
func (h *harness) fireRetry() (time.Duration, bool) {
	d, ok := h.clk.NextDeadline()
	if !ok {
		return 0, false
	}
	h.clk.Advance(d)
	return d, true
}

var errBoom = errors.New("boom")

func staticProfile(p device.Profile) device.Provider { return device.Static{P: p} }
