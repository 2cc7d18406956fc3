// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"time"

	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// EventType classifies controller notifications.
type EventType string

const (
	EventTransition      EventType = "transition"
	EventRetryScheduled  EventType = "retry_scheduled"
	EventFallback        EventType = "fallback"
	EventCoerced         EventType = "protocol_coerced"
	EventQualityApplied  EventType = "quality_applied"
	EventNetworkDegraded EventType = "network_unavailable"
	EventNetworkHint     EventType = "network_hint"
)

// Event is delivered to observers after the state change it describes.
type Event struct {
	Type     EventType     `json:"type"`
	From     State         `json:"from,omitempty"`
	To       State         `json:"to,omitempty"`
	Trigger  EventKind     `json:"trigger,omitempty"`
	Delay    time.Duration `json:"delay_ns,omitempty"`
	Protocol sp.Protocol   `json:"protocol,omitempty"`
	Quality  sp.Quality    `json:"quality,omitempty"`
	Err      error         `json:"-"`
	Snapshot Snapshot      `json:"snapshot"`
	At       time.Time     `json:"at"`
}

// Observer receives controller events in order. Observers may call back into
// the controller; such calls are delivered after the current event.
type Observer interface {
	OnPlaybackEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnPlaybackEvent(e Event) { f(e) }
