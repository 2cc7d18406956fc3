// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resolver maps a channel, a device profile and a requested protocol
// to a concrete stream source. It holds no state.
package resolver

import (
	"errors"
	"fmt"

	"github.com/ManuGH/tvplay/internal/channels"
	"github.com/ManuGH/tvplay/internal/device"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// ErrNoSource is returned when the channel defines no URL usable by the device.
var ErrNoSource = errors.New("no stream URL for channel")

// Source is a resolved stream.
type Source struct {
	Protocol sp.Protocol `json:"protocol"`
	URL      string      `json:"url"`
	MIMEType string      `json:"type"`
	// Requested is the protocol the caller asked for.
	Requested sp.Protocol `json:"requested"`
	// Coerced is set when a concrete request was replaced by another protocol.
	Coerced bool `json:"coerced,omitempty"`
	// Fallback is set when the channel's fallback URL was used.
	Fallback bool `json:"fallback,omitempty"`
}

// Resolve picks the stream for ch on profile.
//
// A concrete supported request uses the channel's stream for that protocol,
// then the fallback URL under the same protocol. Auto, or a request the device
// cannot honor, takes the first profile protocol the channel has a stream for,
// then the fallback URL under the profile's primary protocol. Constrained
// devices only ever get hls.
func Resolve(ch channels.Channel, profile device.Profile, requested sp.Protocol) (Source, error) {
	src := Source{Requested: requested}

	effective := requested
	if !effective.Concrete() {
		effective = sp.ProtocolAuto
	}
	if effective.Concrete() && ((profile.Constrained() && effective != sp.ProtocolHLS) || !profile.Supports(effective)) {
		src.Coerced = true
		effective = sp.ProtocolAuto
		if profile.Constrained() {
			effective = sp.ProtocolHLS
		}
	}

	if effective.Concrete() {
		if u, ok := ch.StreamURL(effective); ok {
			return src.with(effective, u, false), nil
		}
		if u := ch.FallbackURL(); u != "" {
			return src.with(effective, u, true), nil
		}
		return Source{}, fmt.Errorf("%w: %s via %s", ErrNoSource, ch.Name(), effective)
	}

	for _, p := range profile.Protocols() {
		if u, ok := ch.StreamURL(p); ok {
			return src.with(p, u, false), nil
		}
	}
	if u := ch.FallbackURL(); u != "" {
		return src.with(profile.Primary(), u, true), nil
	}
	return Source{}, fmt.Errorf("%w: %s", ErrNoSource, ch.Name())
}

func (s Source) with(p sp.Protocol, url string, fallback bool) Source {
	s.Protocol = p
	s.URL = url
	s.MIMEType = p.MIMEType()
	s.Fallback = fallback
	return s
}
