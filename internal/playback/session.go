// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/resolver"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// session is the mutable playback state owned by a Controller.
type session struct {
	channel    channels.Channel
	hasChannel bool

	protocol          sp.Protocol
	requestedProtocol sp.Protocol
	requestedQuality  sp.Quality
	appliedQuality    sp.Quality
	networkQuality    sp.Quality

	retryCount int
	state      State
	tried      []sp.Protocol
	generation uint64
	coerced    bool
	source     resolver.Source
	hasSource  bool
	lastErr    error
}

func (s *session) triedContains(p sp.Protocol) bool {
	for _, t := range s.tried {
		if t == p {
			return true
		}
	}
	return false
}

func (s *session) markTried(p sp.Protocol) {
	if !s.triedContains(p) {
		s.tried = append(s.tried, p)
	}
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	Channel           string           `json:"channel,omitempty"`
	State             State            `json:"state"`
	Protocol          sp.Protocol      `json:"protocol,omitempty"`
	RequestedProtocol sp.Protocol      `json:"requested_protocol"`
	Quality           sp.Quality       `json:"quality"`
	AppliedQuality    sp.Quality       `json:"applied_quality,omitempty"`
	NetworkQuality    sp.Quality       `json:"network_quality,omitempty"`
	RetryCount        int              `json:"retry_count"`
	TriedProtocols    []sp.Protocol    `json:"tried_protocols,omitempty"`
	Generation        uint64           `json:"generation"`
	Coerced           bool             `json:"coerced,omitempty"`
	Source            *resolver.Source `json:"source,omitempty"`
	Error             string           `json:"error,omitempty"`
	Err               error            `json:"-"`
}

func (s *session) snapshot() Snapshot {
	snap := Snapshot{
		State:             s.state,
		Protocol:          s.protocol,
		RequestedProtocol: s.requestedProtocol,
		Quality:           s.requestedQuality,
		AppliedQuality:    s.appliedQuality,
		NetworkQuality:    s.networkQuality,
		RetryCount:        s.retryCount,
		Generation:        s.generation,
		Coerced:           s.coerced,
		Err:               s.lastErr,
	}
	if s.hasChannel {
		snap.Channel = s.channel.Name()
	}
	if len(s.tried) > 0 {
		snap.TriedProtocols = append([]sp.Protocol(nil), s.tried...)
	}
	if s.hasSource {
		src := s.source
		snap.Source = &src
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}
