// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by playback, network and API spans.
const (
	SessionIDKey = "tvplay.session_id"

	PlaybackChannelKey     = "playback.channel"
	PlaybackProtocolKey    = "playback.protocol"
	PlaybackRequestedKey   = "playback.requested_protocol"
	PlaybackQualityKey     = "playback.quality"
	PlaybackGenerationKey  = "playback.generation"
	PlaybackConstrainedKey = "playback.constrained"

	NetworkSpeedKey = "network.speed"
	NetworkRTTKey   = "network.rtt_ms"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// PlaybackAttributes describes a channel load. Empty values are omitted.
func PlaybackAttributes(channel, protocol string, generation uint64) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if channel != "" {
		attrs = append(attrs, attribute.String(PlaybackChannelKey, channel))
	}
	if protocol != "" {
		attrs = append(attrs, attribute.String(PlaybackProtocolKey, protocol))
	}
	if generation > 0 {
		attrs = append(attrs, attribute.Int64(PlaybackGenerationKey, int64(generation)))
	}
	return attrs
}

// SessionAttributes describes a client session.
func SessionAttributes(sessionID string, constrained bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SessionIDKey, sessionID),
		attribute.Bool(PlaybackConstrainedKey, constrained),
	}
}

// NetworkAttributes describes one connectivity sample.
func NetworkAttributes(speed string, rttMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(NetworkSpeedKey, speed),
		attribute.Int64(NetworkRTTKey, rttMS),
	}
}

// ErrorAttributes marks a span as failed with a classified error type.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
