// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

// State is the controller lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateResolving State = "resolving"
	StateLoading   State = "loading"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateError     State = "error"
	StateFailed    State = "failed"
)

// Terminal reports whether no automatic transition leaves the state.
func (s State) Terminal() bool { return s == StateFailed }

// EventKind names what drives a transition.
type EventKind string

const (
	EvSelectChannel   EventKind = "select_channel"
	EvProtocolChanged EventKind = "protocol_changed"
	EvResolved        EventKind = "resolved"
	EvResolveFailed   EventKind = "resolve_failed"
	EvLoaded          EventKind = "loaded"
	EvEngineError     EventKind = "engine_error"
	EvRetry           EventKind = "retry"
	EvFallback        EventKind = "fallback"
	EvExhausted       EventKind = "exhausted"
	EvPause           EventKind = "pause"
	EvPlay            EventKind = "play"
)

// Transition is a single allowed edge of the state machine.
type Transition struct {
	From  State
	To    State
	Event EventKind
}

var allStates = []State{StateIdle, StateResolving, StateLoading, StatePlaying, StatePaused, StateError, StateFailed}

var transitionsTable = buildTransitions()

func buildTransitions() []Transition {
	table := []Transition{
		{From: StateResolving, To: StateLoading, Event: EvResolved},
		{From: StateResolving, To: StateFailed, Event: EvResolveFailed},

		{From: StateLoading, To: StatePlaying, Event: EvLoaded},
		{From: StateLoading, To: StateError, Event: EvEngineError},
		{From: StatePlaying, To: StateError, Event: EvEngineError},

		// Retry and escalation policy
		{From: StateError, To: StateLoading, Event: EvRetry},
		{From: StateError, To: StateResolving, Event: EvFallback},
		{From: StateError, To: StateFailed, Event: EvExhausted},

		{From: StatePlaying, To: StatePaused, Event: EvPause},
		{From: StatePaused, To: StatePlaying, Event: EvPlay},
	}

	// A channel selection is accepted from every state.
	for _, s := range allStates {
		table = append(table, Transition{From: s, To: StateResolving, Event: EvSelectChannel})
	}
	// A protocol change reloads a channel that is in flight.
	for _, s := range []State{StateResolving, StateLoading, StatePlaying, StatePaused, StateError} {
		table = append(table, Transition{From: s, To: StateResolving, Event: EvProtocolChanged})
	}
	return table
}

// TransitionFor returns the allowed transition for a given state and event.
func TransitionFor(from State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
