// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/tvplay/internal/clock"
	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/netmon"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	modernUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	legacyUA = "Mozilla/5.0 (iPad; CPU OS 9_3_5 like Mac OS X) AppleWebKit/601.1.46 (KHTML, like Gecko) Version/9.0 Mobile/13G36 Safari/601.1"
)

type journalEntry struct {
	session string
	event   Event
}

type memJournal struct {
	mu      sync.Mutex
	entries []journalEntry
}

func (j *memJournal) Record(_ context.Context, id string, e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, journalEntry{session: id, event: e})
}

func (j *memJournal) len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

func TestRegistry_CreateGetDelete(t *testing.T) {
	j := &memJournal{}
	r := NewRegistry(RegistryConfig{}, WithJournal(j), WithRegistryClock(clock.NewFake(testEpoch)))
	defer r.Close()
	ctx := context.Background()

	s, err := r.Create(ctx, CreateRequest{UserAgent: modernUA})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Nil(t, s.Monitor, "no monitor without a probe URL")
	assert.False(t, s.Profile.Constrained())
	assert.Equal(t, testEpoch, s.Created)
	assert.Equal(t, 1, r.Len())

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, got.Controller.SelectChannel(ctx, allProtocolsChannel()))
	assert.Positive(t, j.len())
	j.mu.Lock()
	assert.Equal(t, s.ID, j.entries[0].session)
	j.mu.Unlock()

	require.NoError(t, r.Delete(s.ID))
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, got.Controller.SelectChannel(ctx, allProtocolsChannel()), ErrClosed)

	_, err = r.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, r.Delete(s.ID), ErrSessionNotFound)
}

func TestRegistry_ConstrainedClientAndDefaults(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	s, err := r.Create(context.Background(), CreateRequest{
		UserAgent: legacyUA,
		Defaults:  SessionDefaults{Protocol: sp.ProtocolDASH, Quality: sp.QualityLow},
	})
	require.NoError(t, err)
	assert.True(t, s.Profile.Constrained())
	assert.Equal(t, []sp.Protocol{sp.ProtocolHLS}, s.Profile.Protocols())

	snap := s.Controller.Snapshot()
	assert.Equal(t, sp.ProtocolAuto, snap.RequestedProtocol, "unsupported default falls back to auto")
	assert.Equal(t, sp.QualityLow, snap.Quality)
}

func TestRegistry_HintsOverrideDetection(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	no := false
	s, err := r.Create(context.Background(), CreateRequest{
		UserAgent: modernUA,
		Hints:     device.Hints{DASH: &no},
	})
	require.NoError(t, err)
	assert.False(t, s.Profile.Supports(sp.ProtocolDASH))
}

func TestRegistry_MaxSessions(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxSessions: 1})
	defer r.Close()

	_, err := r.Create(context.Background(), CreateRequest{UserAgent: modernUA})
	require.NoError(t, err)
	_, err = r.Create(context.Background(), CreateRequest{UserAgent: modernUA})
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestRegistry_MaxSessionsUnderConcurrentCreate(t *testing.T) {
	r := NewRegistry(RegistryConfig{MaxSessions: 3})
	defer r.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Create(context.Background(), CreateRequest{UserAgent: modernUA}); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, created)
	assert.Equal(t, 3, r.Len())
}

func TestRegistry_GetDoesNotReviveDeletedSession(t *testing.T) {
	r := NewRegistry(RegistryConfig{})
	defer r.Close()

	for i := 0; i < 50; i++ {
		s, err := r.Create(context.Background(), CreateRequest{UserAgent: modernUA})
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Get(s.ID)
		}()
		go func() {
			defer wg.Done()
			_ = r.Delete(s.ID)
		}()
		wg.Wait()

		_, err = r.Get(s.ID)
		require.ErrorIs(t, err, ErrSessionNotFound)
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_SweepClosesExpiredSessions(t *testing.T) {
	r := NewRegistry(RegistryConfig{IdleTTL: 20 * time.Millisecond})
	defer r.Close()

	s, err := r.Create(context.Background(), CreateRequest{UserAgent: modernUA})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r.Sweep()
		return r.Len() == 0
	}, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, s.Controller.SetQuality(context.Background(), sp.QualityLow), ErrClosed)
}

func TestRegistry_SessionMonitorFeedsController(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	var probes int
	factory := func(url string, _ time.Duration) netmon.Prober {
		assert.Equal(t, "http://probe.invalid/ping", url)
		return netmon.ProberFunc(func(context.Context) (time.Duration, error) {
			probes++
			return 50 * time.Millisecond, nil
		})
	}
	r := NewRegistry(RegistryConfig{ProbeURL: "http://probe.invalid/ping"},
		WithRegistryClock(clk), WithProberFactory(factory))
	defer r.Close()
	ctx := context.Background()

	s, err := r.Create(ctx, CreateRequest{UserAgent: modernUA})
	require.NoError(t, err)
	require.NotNil(t, s.Monitor)
	assert.True(t, s.Monitor.Running())

	require.NoError(t, s.Controller.SelectChannel(ctx, allProtocolsChannel()))
	clk.Advance(0)
	assert.Equal(t, 1, probes)
	assert.Equal(t, netmon.SpeedFast, s.Monitor.Latest().Speed)
	assert.Equal(t, sp.QualityHigh, s.Controller.Snapshot().NetworkQuality)

	require.NoError(t, r.Delete(s.ID))
	assert.False(t, s.Monitor.Running())
}
