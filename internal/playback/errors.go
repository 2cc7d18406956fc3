// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import "errors"

var (
	// ErrResolution means no URL could be produced for any supported protocol.
	// It is terminal for the selected channel.
	ErrResolution = errors.New("stream resolution failed")
	// ErrPlayback is an engine-reported failure; it is retried.
	ErrPlayback = errors.New("playback error")
	// ErrNetworkUnavailable is reported while the device is offline. It does not
	// trigger retries but blocks quality upgrades.
	ErrNetworkUnavailable = errors.New("network unavailable")
	// ErrExhaustedProtocols is terminal: every supported protocol failed.
	ErrExhaustedProtocols = errors.New("all protocols exhausted")

	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidQuality    = errors.New("invalid quality")
	ErrInvalidProtocol   = errors.New("invalid protocol")
	ErrClosed            = errors.New("controller closed")
	ErrSessionNotFound   = errors.New("session not found")
)

// FailureReason classifies a terminal error for metrics and API responses.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResolution):
		return "resolution"
	case errors.Is(err, ErrExhaustedProtocols):
		return "exhausted"
	default:
		return "unknown"
	}
}
