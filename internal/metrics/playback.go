// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	playbackRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playback_retries_total",
		Help: "Scheduled playback retries by protocol",
	}, []string{"protocol"})

	playbackFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playback_protocol_fallbacks_total",
		Help: "Protocol escalations after retries were exhausted",
	}, []string{"from", "to"})

	playbackFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playback_failures_total",
		Help: "Terminal playback failures by reason",
	}, []string{"reason"}) // reason=resolution|exhausted|unknown

	playbackCoercionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playback_protocol_coercions_total",
		Help: "Requested protocols replaced by the resolver",
	}, []string{"requested", "resolved"})

	playbackTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playback_state_transitions_total",
		Help: "Controller state transitions",
	}, []string{"from", "to"})

	playbackLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tvplay_playback_loads_total",
		Help: "Engine load commands by protocol",
	}, []string{"protocol"})

	playbackStaleEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tvplay_playback_stale_events_total",
		Help: "Engine events dropped because their generation was superseded",
	})

	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tvplay_active_sessions",
		Help: "Playback sessions currently registered",
	})
)

// RecordRetry counts a scheduled retry.
func RecordRetry(protocol string) {
	playbackRetriesTotal.WithLabelValues(normalizeProtocolLabel(protocol)).Inc()
}

// RecordFallback counts a protocol escalation.
func RecordFallback(from, to string) {
	playbackFallbacksTotal.WithLabelValues(normalizeProtocolLabel(from), normalizeProtocolLabel(to)).Inc()
}

// RecordFailure counts a terminal failure.
func RecordFailure(reason string) {
	playbackFailuresTotal.WithLabelValues(normalizeFailureReasonLabel(reason)).Inc()
}

// RecordCoercion counts a protocol coercion.
func RecordCoercion(requested, resolved string) {
	playbackCoercionsTotal.WithLabelValues(normalizeProtocolLabel(requested), normalizeProtocolLabel(resolved)).Inc()
}

// RecordTransition counts a state transition.
func RecordTransition(from, to string) {
	playbackTransitionsTotal.WithLabelValues(normalizeStateLabel(from), normalizeStateLabel(to)).Inc()
}

// RecordLoad counts an engine load.
func RecordLoad(protocol string) {
	playbackLoadsTotal.WithLabelValues(normalizeProtocolLabel(protocol)).Inc()
}

// RecordStaleEvent counts a dropped stale engine event or timer fire.
func RecordStaleEvent() {
	playbackStaleEventsTotal.Inc()
}

// SetActiveSessions sets the registered session count.
func SetActiveSessions(n int) {
	activeSessions.Set(float64(n))
}

func normalizeProtocolLabel(p string) string {
	switch v := strings.ToLower(strings.TrimSpace(p)); v {
	case "hls", "dash", "flv", "auto":
		return v
	case "":
		return "none"
	default:
		return "unknown"
	}
}

func normalizeFailureReasonLabel(reason string) string {
	switch v := strings.ToLower(strings.TrimSpace(reason)); v {
	case "resolution", "exhausted":
		return v
	default:
		return "unknown"
	}
}

func normalizeStateLabel(state string) string {
	switch v := strings.ToLower(strings.TrimSpace(state)); v {
	case "idle", "resolving", "loading", "playing", "paused", "error", "failed":
		return v
	default:
		return "unknown"
	}
}
