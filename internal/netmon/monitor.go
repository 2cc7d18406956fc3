// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package netmon samples connectivity and coarse latency, classifies it into
// a speed class and recommends a quality tier.
package netmon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/tvplay/internal/clock"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Subscriber receives every published sample.
type Subscriber func(Sample)

// Subscription identifies a registered subscriber.
type Subscription struct {
	id uint64
}

type subscriber struct {
	id uint64
	fn Subscriber
}

// Monitor keeps the latest Sample and notifies subscribers. All methods are
// safe for concurrent use. Subscribers run synchronously on the sampling
// goroutine in registration order; a sample superseded before delivery is not
// delivered.
type Monitor struct {
	cfg         Config
	constrained bool
	prober      Prober
	clock       clock.Clock
	logger      zerolog.Logger

	mu      sync.Mutex
	online  bool
	latest  Sample
	seq     uint64
	limiter *rate.Limiter
	subs    []subscriber
	nextSub uint64
	running bool
	epoch   uint64
	tick    clock.Timer
	settle  clock.Timer
	cancel  context.CancelFunc

	notifyMu  sync.Mutex
	delivered uint64
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// New creates a stopped monitor. The platform is assumed online until told
// otherwise.
func New(cfg Config, constrained bool, prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:         cfg.withDefaults(),
		constrained: constrained,
		prober:      prober,
		clock:       clock.Real{},
		logger:      log.WithComponent("netmon"),
		online:      true,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.latest = Sample{Online: true, Speed: SpeedUnknown, Timestamp: m.clock.Now()}
	m.limiter = rate.NewLimiter(rate.Every(m.cfg.MinSampleInterval), 1)
	return m
}

// Interval returns the periodic sampling interval for this device.
func (m *Monitor) Interval() time.Duration {
	if m.constrained {
		return m.cfg.ConstrainedInterval
	}
	return m.cfg.Interval
}

// Start begins periodic sampling with an immediate first sample. Calling it
// while running restarts sampling. Sampling stops when ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.epoch++
	epoch := m.epoch
	m.tick = m.clock.AfterFunc(0, func() { m.onTick(runCtx, epoch) })

	m.logger.Debug().
		Str(log.FieldEvent, "netmon.started").
		Dur("interval", m.Interval()).
		Msg("network sampling started")
}

// Stop cancels periodic sampling and any pending settle re-sample. It is safe
// to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.logger.Debug().Str(log.FieldEvent, "netmon.stopped").Msg("network sampling stopped")
	}
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	m.running = false
	m.epoch++
	if m.tick != nil {
		m.tick.Stop()
		m.tick = nil
	}
	if m.settle != nil {
		m.settle.Stop()
		m.settle = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// Running reports whether periodic sampling is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) current(ctx context.Context, epoch uint64) bool {
	return m.running && m.epoch == epoch && ctx.Err() == nil
}

func (m *Monitor) onTick(ctx context.Context, epoch uint64) {
	m.mu.Lock()
	ok := m.current(ctx, epoch)
	m.mu.Unlock()
	if !ok {
		return
	}

	m.SampleNow(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current(ctx, epoch) {
		m.tick = m.clock.AfterFunc(m.Interval(), func() { m.onTick(ctx, epoch) })
	}
}

// SampleNow takes one sample. If the previous sample is younger than the
// minimum sampling interval, or ctx is cancelled while probing, it returns the
// cached sample and false.
func (m *Monitor) SampleNow(ctx context.Context) (Sample, bool) {
	m.mu.Lock()
	now := m.clock.Now()
	if !m.limiter.AllowN(now, 1) {
		s := m.latest
		m.mu.Unlock()
		metrics.RecordSampleSuppressed()
		m.logger.Debug().Str(log.FieldEvent, "netmon.sample_debounced").Msg("sample suppressed")
		return s, false
	}
	if !m.online {
		s := Sample{Online: false, Speed: SpeedUnknown, Timestamp: now}
		seq := m.storeLocked(s)
		m.mu.Unlock()
		m.publish(seq, s)
		return s, true
	}
	m.mu.Unlock()

	pctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	rtt, err := m.prober.Probe(pctx)
	cancel()

	if ctx.Err() != nil {
		// Cancelled by Stop or a restart, not a transport failure.
		m.mu.Lock()
		s := m.latest
		m.mu.Unlock()
		m.logger.Debug().Str(log.FieldEvent, "netmon.sample_cancelled").Msg("sample discarded")
		return s, false
	}

	s := Sample{Online: true, Timestamp: m.clock.Now()}
	if err != nil {
		s.Speed = SpeedUnstable
		m.logger.Warn().Err(err).
			Str(log.FieldEvent, "netmon.probe_failed").
			Msg("network probe failed")
	} else {
		s.RTT = rtt
		s.Speed = m.cfg.Classify(rtt)
		metrics.ObserveProbe(rtt)
	}

	m.mu.Lock()
	if !m.online {
		// Went offline while probing; the offline sample stands.
		s = m.latest
		m.mu.Unlock()
		return s, true
	}
	seq := m.storeLocked(s)
	m.mu.Unlock()

	m.logger.Debug().
		Str(log.FieldEvent, "netmon.sampled").
		Str(log.FieldSpeed, string(s.Speed)).
		Dur(log.FieldRTT, s.RTT).
		Msg("network sampled")
	m.publish(seq, s)
	return s, true
}

// SetOnline records a platform connectivity signal. Transitions publish a
// sample immediately; repeated signals are ignored.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	s := Sample{Online: online, Speed: SpeedUnknown, Timestamp: m.clock.Now()}
	seq := m.storeLocked(s)
	m.mu.Unlock()

	m.logger.Info().
		Str(log.FieldEvent, "netmon.connectivity_changed").
		Bool(log.FieldOnline, online).
		Msg("connectivity changed")
	m.publish(seq, s)
}

// VisibilityRegained schedules a re-sample after the settle delay on
// constrained devices. It reports whether a re-sample was scheduled.
func (m *Monitor) VisibilityRegained(ctx context.Context) bool {
	if !m.constrained {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settle != nil {
		m.settle.Stop()
	}
	m.settle = m.clock.AfterFunc(m.cfg.SettleDelay, func() {
		if ctx.Err() != nil {
			return
		}
		m.SampleNow(ctx)
	})
	return true
}

// Latest returns the most recent sample.
func (m *Monitor) Latest() Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest
}

// Constrained reports whether the monitor samples for a constrained device.
func (m *Monitor) Constrained() bool { return m.constrained }

// Recommend returns the quality tier for the latest sample.
func (m *Monitor) Recommend() sp.Quality {
	return Recommend(m.Latest(), m.constrained)
}

// Subscribe registers fn. Subscribers are called in registration order.
func (m *Monitor) Subscribe(fn Subscriber) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	m.subs = append(m.subs, subscriber{id: m.nextSub, fn: fn})
	return Subscription{id: m.nextSub}
}

// Unsubscribe removes a subscriber. Unknown subscriptions are ignored.
func (m *Monitor) Unsubscribe(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subs {
		if s.id == sub.id {
			m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
			return
		}
	}
}

func (m *Monitor) storeLocked(s Sample) uint64 {
	m.latest = s
	m.seq++
	return m.seq
}

func (m *Monitor) publish(seq uint64, s Sample) {
	metrics.RecordNetworkSample(string(s.Speed))

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if seq <= m.delivered {
		return
	}
	m.delivered = seq

	m.mu.Lock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, sub := range subs {
		m.deliver(sub, s)
	}
}

func (m *Monitor) deliver(sub subscriber, s Sample) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordSubscriberPanic()
			m.logger.Error().
				Str(log.FieldEvent, "netmon.subscriber_panic").
				Str("panic", fmt.Sprint(r)).
				Uint64("subscriber", sub.id).
				Msg("network subscriber panicked")
		}
	}()
	sub.fn(s)
}
