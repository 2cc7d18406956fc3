// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package playback owns a playback session: it resolves the selected channel,
// drives the media engine and recovers from engine errors by retrying with a
// linear backoff and escalating through the protocols the device supports.
package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/clock"
	"github.com/ManuGH/tvplay/internal/device"
	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	"github.com/ManuGH/tvplay/internal/netmon"
	"github.com/ManuGH/tvplay/internal/resolver"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
	"github.com/ManuGH/tvplay/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ManuGH/tvplay/internal/playback"

// NetworkSource is the part of netmon.Monitor the controller consumes.
type NetworkSource interface {
	Subscribe(netmon.Subscriber) netmon.Subscription
	Unsubscribe(netmon.Subscription)
	Latest() netmon.Sample
}

// Controller is the adaptive playback state machine. All transitions are
// serialized; observer notifications are delivered in order after the
// transition that produced them.
type Controller struct {
	cfg     Config
	profile device.Profile
	engine  Engine
	network NetworkSource
	clock   clock.Clock
	logger  zerolog.Logger
	tracer  trace.Tracer
	baseCtx context.Context

	mu        sync.Mutex
	s         session
	retry     clock.Timer
	netSub    netmon.Subscription
	closed    bool
	outbox    []Event
	observers []Observer

	notifyMu sync.Mutex
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock used for retry timers.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithNetwork feeds quality recommendations into the controller.
func WithNetwork(n NetworkSource) Option {
	return func(ctl *Controller) { ctl.network = n }
}

// WithObserver registers an observer at construction.
func WithObserver(o Observer) Option {
	return func(ctl *Controller) { ctl.observers = append(ctl.observers, o) }
}

// WithLogger replaces the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = l }
}

// WithContext sets the context used for engine calls made from timers.
func WithContext(ctx context.Context) Option {
	return func(ctl *Controller) { ctl.baseCtx = ctx }
}

// NewController creates an idle controller. The device profile is read once.
func NewController(cfg Config, provider device.Provider, engine Engine, opts ...Option) *Controller {
	cfg = cfg.withDefaults()
	c := &Controller{
		cfg:     cfg,
		profile: provider.Profile(),
		engine:  engine,
		clock:   clock.Real{},
		logger:  log.WithComponent("playback"),
		tracer:  telemetry.Tracer(tracerName),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}

	quality := cfg.DefaultQuality
	if quality == sp.QualityAuto && !c.profile.AutoQuality() {
		quality = c.profile.DefaultQuality()
	}
	protocol := cfg.DefaultProtocol
	if protocol.Concrete() && !c.profile.Supports(protocol) {
		protocol = sp.ProtocolAuto
	}
	c.s = session{
		state:             StateIdle,
		requestedProtocol: protocol,
		requestedQuality:  quality,
	}

	if c.network != nil {
		c.netSub = c.network.Subscribe(c.onNetworkSample)
	}
	return c
}

// Profile returns the device profile the controller was built with.
func (c *Controller) Profile() device.Profile { return c.profile }

// Subscribe registers an observer.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s.snapshot()
}

// Close cancels any pending retry and detaches from the network monitor.
// Further mutating calls return ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelRetryLocked()
	c.mu.Unlock()

	if c.network != nil {
		c.network.Unsubscribe(c.netSub)
	}
}

// SelectChannel starts playback of ch from any state. Pending retries of the
// previous session are cancelled. Resolution failures move the controller to
// Failed and are returned wrapped in ErrResolution.
func (c *Controller) SelectChannel(ctx context.Context, ch channels.Channel) error {
	ctx, span := c.tracer.Start(ctx, "playback.select_channel",
		trace.WithAttributes(telemetry.PlaybackAttributes(ch.Name(), "", 0)...))
	defer span.End()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.cancelRetryLocked()
	c.s.channel = ch
	c.s.hasChannel = true
	c.s.generation++
	c.s.retryCount = 0
	c.s.tried = nil
	c.s.lastErr = nil
	c.s.coerced = false
	c.transitionLocked(EvSelectChannel)

	c.logger.Info().
		Str(log.FieldEvent, "playback.channel_selected").
		Str(log.FieldChannel, ch.Name()).
		Str(log.FieldProtocol, string(c.s.requestedProtocol)).
		Uint64(log.FieldGeneration, c.s.generation).
		Msg("channel selected")

	err := c.resolveAndLoadLocked(ctx, c.s.requestedProtocol)
	c.mu.Unlock()
	c.flush()

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(telemetry.ErrorAttributes(FailureReason(err))...)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// SetProtocol changes the requested protocol. If a channel is in flight it is
// re-resolved and reloaded with a fresh retry budget. Requesting the active
// protocol is a no-op.
func (c *Controller) SetProtocol(ctx context.Context, p sp.Protocol) error {
	if p == "" {
		p = sp.ProtocolAuto
	}
	if p != sp.ProtocolAuto && !p.Concrete() {
		return fmt.Errorf("%w: %q", ErrInvalidProtocol, p)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if p == c.s.requestedProtocol {
		c.mu.Unlock()
		return nil
	}
	active := c.s.state != StateIdle && c.s.state != StateFailed
	if active && p == c.s.protocol {
		// Already playing over p; only the preference changes.
		c.s.requestedProtocol = p
		c.mu.Unlock()
		return nil
	}
	c.s.requestedProtocol = p
	if !active {
		c.mu.Unlock()
		return nil
	}

	ctx, span := c.tracer.Start(ctx, "playback.set_protocol",
		trace.WithAttributes(attribute.String(telemetry.PlaybackRequestedKey, string(p))))
	defer span.End()

	c.cancelRetryLocked()
	c.s.generation++
	c.s.retryCount = 0
	c.s.tried = nil
	c.s.coerced = false
	c.transitionLocked(EvProtocolChanged)
	c.logger.Info().
		Str(log.FieldEvent, "playback.protocol_changed").
		Str(log.FieldProtocol, string(p)).
		Uint64(log.FieldGeneration, c.s.generation).
		Msg("protocol changed")

	err := c.resolveAndLoadLocked(ctx, p)
	c.mu.Unlock()
	c.flush()
	return err
}

// SetQuality changes the requested quality tier and applies it to the engine.
// Requesting the current tier is a no-op.
func (c *Controller) SetQuality(ctx context.Context, q sp.Quality) error {
	if q == "" {
		q = sp.QualityAuto
	}
	if _, err := sp.ParseQuality(string(q)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidQuality, q)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if q == c.s.requestedQuality {
		c.mu.Unlock()
		return nil
	}
	c.s.requestedQuality = q
	effective := q
	if q == sp.QualityAuto && !c.profile.AutoQuality() {
		effective = c.profile.DefaultQuality()
	}
	c.applyQualityLocked(ctx, effective)
	c.mu.Unlock()
	c.flush()
	return nil
}

// Pause pauses a playing session.
func (c *Controller) Pause(ctx context.Context) error {
	return c.toggle(ctx, EvPause, StatePaused, c.engine.Pause)
}

// Play resumes a paused session. On constrained devices, where playback does
// not start on its own, it also starts a freshly loaded session.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	state := c.s.state
	c.mu.Unlock()
	if state == StatePlaying {
		return nil
	}
	if state == StateLoading {
		if err := c.engine.Play(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrPlayback, err)
		}
		return nil
	}
	return c.toggle(ctx, EvPlay, StatePlaying, c.engine.Play)
}

func (c *Controller) toggle(ctx context.Context, ev EventKind, target State, call func(context.Context) error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.s.state == target {
		c.mu.Unlock()
		return nil
	}
	if _, ok := TransitionFor(c.s.state, ev); !ok {
		state := c.s.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, state)
	}
	if err := call(ctx); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	c.transitionLocked(ev)
	c.mu.Unlock()
	c.flush()
	return nil
}

// HandleEngineEvent feeds an engine notification into the state machine.
// Events tagged with a superseded generation are dropped.
func (c *Controller) HandleEngineEvent(ctx context.Context, ev EngineEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if ev.Generation != c.s.generation {
		c.logger.Debug().
			Str(log.FieldEvent, "playback.stale_event").
			Str("kind", string(ev.Kind)).
			Uint64(log.FieldGeneration, ev.Generation).
			Uint64("current_generation", c.s.generation).
			Msg("dropping stale engine event")
		c.mu.Unlock()
		metrics.RecordStaleEvent()
		return
	}

	switch ev.Kind {
	case EngineLoaded:
		if c.s.state == StateLoading {
			c.s.lastErr = nil
			c.transitionLocked(EvLoaded)
			c.applyQualityLocked(ctx, c.effectiveQualityLocked())
		}
	case EngineError:
		if _, ok := TransitionFor(c.s.state, EvEngineError); ok {
			cause := fmt.Errorf("%w: %s", ErrPlayback, engineErrorText(ev))
			c.s.lastErr = cause
			c.transitionLocked(EvEngineError)
			c.handleErrorLocked(ctx)
		}
	default:
		c.logger.Warn().
			Str(log.FieldEvent, "playback.unknown_engine_event").
			Str("kind", string(ev.Kind)).
			Msg("ignoring unknown engine event")
	}
	c.mu.Unlock()
	c.flush()
}

func engineErrorText(ev EngineEvent) string {
	switch {
	case ev.Code != "" && ev.Message != "":
		return ev.Code + ": " + ev.Message
	case ev.Code != "":
		return ev.Code
	case ev.Message != "":
		return ev.Message
	default:
		return "engine error"
	}
}

// resolveAndLoadLocked resolves the current channel under p and loads it.
// The controller must be in Resolving.
func (c *Controller) resolveAndLoadLocked(ctx context.Context, p sp.Protocol) error {
	src, err := resolver.Resolve(c.s.channel, c.profile, p)
	if err != nil {
		cause := fmt.Errorf("%w: %w", ErrResolution, err)
		c.failLocked(EvResolveFailed, cause)
		return cause
	}
	c.useSourceLocked(src)
	c.transitionLocked(EvResolved)
	c.loadLocked(ctx)
	return nil
}

func (c *Controller) useSourceLocked(src resolver.Source) {
	c.s.source = src
	c.s.hasSource = true
	c.s.protocol = src.Protocol
	if src.Coerced {
		c.s.coerced = true
		metrics.RecordCoercion(string(src.Requested), string(src.Protocol))
		c.logger.Warn().
			Str(log.FieldEvent, "playback.protocol_coerced").
			Str(log.FieldChannel, c.s.channel.Name()).
			Str("requested", string(src.Requested)).
			Str(log.FieldProtocol, string(src.Protocol)).
			Msg("requested protocol not usable on this device")
		c.emitLocked(Event{Type: EventCoerced, Protocol: src.Protocol})
	}
}

// loadLocked issues an engine load tagged with the current generation. A
// synchronous load failure is handled like an engine error event.
func (c *Controller) loadLocked(ctx context.Context) {
	metrics.RecordLoad(string(c.s.protocol))
	gen := c.s.generation
	if err := c.engine.Load(ctx, c.s.source, gen); err != nil {
		c.s.lastErr = fmt.Errorf("%w: %w", ErrPlayback, err)
		c.transitionLocked(EvEngineError)
		c.handleErrorLocked(ctx)
		return
	}
	if c.cfg.Autoplay && !c.profile.Constrained() {
		if err := c.engine.Play(ctx); err != nil {
			c.logger.Debug().Err(err).
				Str(log.FieldEvent, "playback.autoplay_failed").
				Msg("autoplay rejected by engine")
		}
	}
}

// handleErrorLocked applies the retry and escalation policy. The controller
// must be in Error.
func (c *Controller) handleErrorLocked(ctx context.Context) {
	if c.s.retryCount < c.cfg.MaxRetries {
		c.s.retryCount++
		delay := c.cfg.RetryDelay(c.s.retryCount)
		gen := c.s.generation
		c.retry = c.clock.AfterFunc(delay, func() { c.onRetryTimer(gen) })

		metrics.RecordRetry(string(c.s.protocol))
		c.logger.Warn().Err(c.s.lastErr).
			Str(log.FieldEvent, "playback.retry_scheduled").
			Str(log.FieldProtocol, string(c.s.protocol)).
			Int(log.FieldRetry, c.s.retryCount).
			Dur(log.FieldDelay, delay).
			Msg("playback failed, retry scheduled")
		c.emitLocked(Event{Type: EventRetryScheduled, Delay: delay, Protocol: c.s.protocol, Err: c.s.lastErr})
		return
	}

	from := c.s.protocol
	c.s.markTried(from)
	c.s.retryCount = 0

	if c.profile.Constrained() {
		c.failLocked(EvExhausted, fmt.Errorf("%w: %s failed on constrained device", ErrExhaustedProtocols, from))
		return
	}

	for {
		next, ok := c.nextProtocolLocked(from)
		if !ok {
			c.failLocked(EvExhausted, fmt.Errorf("%w: tried %v", ErrExhaustedProtocols, c.s.tried))
			return
		}
		src, err := resolver.Resolve(c.s.channel, c.profile, next)
		if err != nil {
			c.logger.Debug().Err(err).
				Str(log.FieldEvent, "playback.fallback_skipped").
				Str(log.FieldProtocol, string(next)).
				Msg("channel has no source for fallback protocol")
			c.s.markTried(next)
			from = next
			continue
		}

		metrics.RecordFallback(string(c.s.protocol), string(next))
		c.logger.Warn().
			Str(log.FieldEvent, "playback.protocol_fallback").
			Str("from", string(c.s.protocol)).
			Str(log.FieldProtocol, string(next)).
			Msg("retries exhausted, escalating protocol")
		c.emitLocked(Event{Type: EventFallback, Protocol: next, Err: c.s.lastErr})

		c.s.generation++
		c.transitionLocked(EvFallback)
		c.useSourceLocked(src)
		c.transitionLocked(EvResolved)
		c.loadLocked(ctx)
		return
	}
}

// nextProtocolLocked walks the fixed cycle from p and returns the first
// supported protocol not yet tried.
func (c *Controller) nextProtocolLocked(p sp.Protocol) (sp.Protocol, bool) {
	next := p
	for range sp.Protocols {
		next = next.Next()
		if c.profile.Supports(next) && !c.s.triedContains(next) {
			return next, true
		}
	}
	return "", false
}

func (c *Controller) onRetryTimer(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.s.generation || c.s.state != StateError {
		c.mu.Unlock()
		metrics.RecordStaleEvent()
		return
	}
	c.retry = nil
	c.s.generation++
	c.transitionLocked(EvRetry)
	c.logger.Info().
		Str(log.FieldEvent, "playback.retry").
		Str(log.FieldProtocol, string(c.s.protocol)).
		Int(log.FieldRetry, c.s.retryCount).
		Uint64(log.FieldGeneration, c.s.generation).
		Msg("retrying playback")
	c.loadLocked(c.baseCtx)
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) failLocked(ev EventKind, cause error) {
	c.cancelRetryLocked()
	c.s.lastErr = cause
	c.transitionLocked(ev)
	metrics.RecordFailure(FailureReason(cause))
	c.logger.Error().Err(cause).
		Str(log.FieldEvent, "playback.failed").
		Str(log.FieldChannel, c.s.channel.Name()).
		Msg("playback failed")
}

func (c *Controller) cancelRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

func (c *Controller) transitionLocked(ev EventKind) {
	tr, ok := TransitionFor(c.s.state, ev)
	if !ok {
		c.logger.Error().
			Str(log.FieldEvent, "playback.illegal_transition").
			Str(log.FieldOldState, string(c.s.state)).
			Str("trigger", string(ev)).
			Msg("illegal transition ignored")
		return
	}
	from := c.s.state
	c.s.state = tr.To
	metrics.RecordTransition(string(from), string(tr.To))
	c.logger.Debug().
		Str(log.FieldEvent, "playback.transition").
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(tr.To)).
		Str("trigger", string(ev)).
		Msg("state transition")
	c.emitLocked(Event{Type: EventTransition, From: from, To: tr.To, Trigger: ev, Err: c.s.lastErr})
}

func (c *Controller) effectiveQualityLocked() sp.Quality {
	if c.s.appliedQuality != "" {
		return c.s.appliedQuality
	}
	q := c.s.requestedQuality
	if q == sp.QualityAuto && !c.profile.AutoQuality() {
		q = c.profile.DefaultQuality()
	}
	return q
}

// applyQualityLocked enables the engine renditions of tier q and, on
// constrained devices, caps the bandwidth.
func (c *Controller) applyQualityLocked(_ context.Context, q sp.Quality) {
	if q == sp.QualityUnavailable {
		return
	}
	c.s.appliedQuality = q

	if lc, ok := c.engine.(LevelController); ok {
		levels := lc.QualityLevels()
		if len(levels) > 0 {
			enabled := make([]bool, len(levels))
			for i, l := range levels {
				enabled[i] = q.Enables(l.Height)
			}
			if err := lc.SetLevelsEnabled(enabled); err != nil {
				c.logger.Warn().Err(err).
					Str(log.FieldEvent, "playback.levels_failed").
					Str(log.FieldQuality, string(q)).
					Msg("engine rejected quality levels")
			}
		}
	}
	if c.profile.Constrained() {
		if bl, ok := c.engine.(BandwidthLimiter); ok {
			limit, _ := q.BandwidthCap()
			if err := bl.SetBandwidthCap(limit); err != nil {
				c.logger.Warn().Err(err).
					Str(log.FieldEvent, "playback.bandwidth_cap_failed").
					Msg("engine rejected bandwidth cap")
			}
		}
	} else {
		hint := c.s.networkQuality
		switch {
		case q != sp.QualityAuto:
			hint = ""
		case c.network != nil:
			if rec := netmon.Recommend(c.network.Latest(), false); rec != sp.QualityUnavailable {
				hint = rec
			}
		}
		c.setNetworkHintLocked(hint)
	}

	c.logger.Debug().
		Str(log.FieldEvent, "playback.quality_applied").
		Str(log.FieldQuality, string(q)).
		Msg("quality applied")
	c.emitLocked(Event{Type: EventQualityApplied, Quality: q})
}

// hintCap is the engine bitrate ceiling for a network recommendation under
// auto quality. Fast or unknown networks are not capped.
func hintCap(q sp.Quality) int {
	switch q {
	case sp.QualityMedium, sp.QualityLow:
		limit, _ := q.BandwidthCap()
		return limit
	default:
		return 0
	}
}

// setNetworkHintLocked records the network recommendation that steers auto
// quality and passes its ceiling to the engine when the ceiling changes. All
// renditions stay enabled; the engine picks among them under the ceiling.
func (c *Controller) setNetworkHintLocked(q sp.Quality) {
	if q == c.s.networkQuality {
		return
	}
	prev := c.s.networkQuality
	c.s.networkQuality = q
	if bl, ok := c.engine.(BandwidthLimiter); ok && hintCap(prev) != hintCap(q) {
		if err := bl.SetBandwidthCap(hintCap(q)); err != nil {
			c.logger.Warn().Err(err).
				Str(log.FieldEvent, "playback.bandwidth_cap_failed").
				Msg("engine rejected bandwidth cap")
		}
	}
	if q != "" {
		c.logger.Debug().
			Str(log.FieldEvent, "playback.network_hint").
			Str(log.FieldQuality, string(q)).
			Msg("network hint applied")
		c.emitLocked(Event{Type: EventNetworkHint, Quality: q})
	}
}

// onNetworkSample steers auto quality on devices that allow it. Offline
// samples keep the current hint so no upgrade happens while offline.
func (c *Controller) onNetworkSample(s netmon.Sample) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	rec := netmon.Recommend(s, c.profile.Constrained())
	switch {
	case rec == sp.QualityUnavailable:
		c.emitLocked(Event{Type: EventNetworkDegraded, Err: ErrNetworkUnavailable})
	case c.s.requestedQuality != sp.QualityAuto || !c.profile.AutoQuality():
	default:
		c.setNetworkHintLocked(rec)
	}
	c.mu.Unlock()
	c.flush()
}

// LevelsChanged re-applies the current quality after the engine reported a new
// rendition list. Before the load completes it does nothing; the quality is
// applied when the engine reports data.
func (c *Controller) LevelsChanged(ctx context.Context) {
	c.mu.Lock()
	if c.closed || (c.s.state != StatePlaying && c.s.state != StatePaused) {
		c.mu.Unlock()
		return
	}
	c.applyQualityLocked(ctx, c.effectiveQualityLocked())
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) emitLocked(e Event) {
	e.Snapshot = c.s.snapshot()
	e.At = c.clock.Now()
	c.outbox = append(c.outbox, e)
}

// flush delivers queued events. Only one goroutine delivers at a time; events
// queued by observers or by concurrent callers are picked up by the current
// deliverer before it returns.
func (c *Controller) flush() {
	for {
		if !c.notifyMu.TryLock() {
			return
		}
		for {
			c.mu.Lock()
			events := c.outbox
			c.outbox = nil
			observers := append([]Observer(nil), c.observers...)
			c.mu.Unlock()
			if len(events) == 0 {
				break
			}
			for _, e := range events {
				for _, w := range observers {
					c.deliver(w, e)
				}
			}
		}
		c.notifyMu.Unlock()

		c.mu.Lock()
		pending := len(c.outbox) > 0
		c.mu.Unlock()
		if !pending {
			return
		}
	}
}

func (c *Controller) deliver(w Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str(log.FieldEvent, "playback.observer_panic").
				Str("panic", fmt.Sprint(r)).
				Msg("playback observer panicked")
		}
	}()
	w.OnPlaybackEvent(e)
}
