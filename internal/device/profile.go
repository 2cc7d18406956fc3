// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package device produces the capability snapshot the playback core consumes.
// Platform identifiers are classified here once; nothing downstream inspects
// raw user agents.
package device

import (
	"errors"
	"fmt"

	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// Buffer budgets in seconds.
const (
	DefaultBufferBudget     = 60
	ConstrainedBufferBudget = 30
)

var ErrNoProtocols = errors.New("device profile supports no protocols")

// Profile is an immutable capability snapshot.
type Profile struct {
	protocols    []sp.Protocol
	constrained  bool
	bufferBudget int
}

// NewProfile builds a normalized profile. Protocols are deduplicated and put
// in priority order; a constrained device is restricted to hls with a bounded
// buffer regardless of what it advertises.
func NewProfile(protocols []sp.Protocol, constrained bool, bufferBudget int) (Profile, error) {
	want := make(map[sp.Protocol]bool, len(protocols))
	for _, p := range protocols {
		if !p.Concrete() {
			return Profile{}, fmt.Errorf("device profile: invalid protocol %q", p)
		}
		want[p] = true
	}
	if constrained {
		want = map[sp.Protocol]bool{sp.ProtocolHLS: true}
	}

	ordered := make([]sp.Protocol, 0, len(want))
	for _, p := range sp.Protocols {
		if want[p] {
			ordered = append(ordered, p)
		}
	}
	if len(ordered) == 0 {
		return Profile{}, ErrNoProtocols
	}

	if bufferBudget <= 0 {
		bufferBudget = DefaultBufferBudget
	}
	if constrained && bufferBudget > ConstrainedBufferBudget {
		bufferBudget = ConstrainedBufferBudget
	}

	return Profile{protocols: ordered, constrained: constrained, bufferBudget: bufferBudget}, nil
}

// MustProfile is NewProfile for static tables; it panics on invalid input.
func MustProfile(protocols []sp.Protocol, constrained bool, bufferBudget int) Profile {
	p, err := NewProfile(protocols, constrained, bufferBudget)
	if err != nil {
		panic(err)
	}
	return p
}

// Unconstrained is the profile of a modern client supporting every protocol.
func Unconstrained() Profile {
	return MustProfile(sp.Protocols, false, DefaultBufferBudget)
}

// Protocols returns the supported protocols in priority order.
func (p Profile) Protocols() []sp.Protocol {
	out := make([]sp.Protocol, len(p.protocols))
	copy(out, p.protocols)
	return out
}

// Supports reports whether proto is in the supported set.
func (p Profile) Supports(proto sp.Protocol) bool {
	for _, s := range p.protocols {
		if s == proto {
			return true
		}
	}
	return false
}

// Primary is the highest-priority supported protocol.
func (p Profile) Primary() sp.Protocol {
	if len(p.protocols) == 0 {
		return sp.ProtocolHLS
	}
	return p.protocols[0]
}

func (p Profile) Constrained() bool { return p.constrained }

// BufferBudget is the buffering budget in seconds.
func (p Profile) BufferBudget() int { return p.bufferBudget }

// AutoQuality reports whether automatic quality switching may be used.
func (p Profile) AutoQuality() bool { return !p.constrained }

// DefaultQuality is the tier used when no network classification is known.
func (p Profile) DefaultQuality() sp.Quality {
	if p.constrained {
		return sp.QualityMedium
	}
	return sp.QualityAuto
}

// Provider hands out the profile once at controller construction.
type Provider interface {
	Profile() Profile
}

// Static is a Provider returning a fixed profile.
type Static struct {
	P Profile
}

func (s Static) Profile() Profile { return s.P }
