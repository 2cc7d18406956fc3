// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package device

import (
	"github.com/ManuGH/tvplay/internal/core/useragent"
	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// legacyIOSMajor is the newest iOS major version treated as constrained.
const legacyIOSMajor = 9

// Hints are capability answers reported by the client itself (canPlayType
// probes). A nil hint means "not reported".
type Hints struct {
	HLS          *bool `json:"hls,omitempty"`
	DASH         *bool `json:"dash,omitempty"`
	FLV          *bool `json:"flv,omitempty"`
	Constrained  *bool `json:"constrained,omitempty"`
	BufferBudget int   `json:"bufferBudget,omitempty"`
}

// Detector classifies a client into a Profile.
type Detector struct {
	// BufferBudget is used when the client reports none.
	BufferBudget int
}

// Detect maps a user agent plus optional hints to a Profile. Legacy iOS
// (major version <= 9) is constrained: HLS only, small buffer, no auto quality.
func (d Detector) Detect(userAgent string, hints Hints) Profile {
	constrained := false
	if major, _, ok := useragent.IOSVersion(userAgent); ok && major <= legacyIOSMajor {
		constrained = true
	}
	if hints.Constrained != nil {
		constrained = *hints.Constrained
	}

	supported := map[sp.Protocol]bool{
		sp.ProtocolHLS:  true,
		sp.ProtocolDASH: true,
		sp.ProtocolFLV:  true,
	}
	if useragent.IsNativeAppleClient(userAgent) {
		// AVFoundation only speaks HLS.
		supported[sp.ProtocolDASH] = false
		supported[sp.ProtocolFLV] = false
	}
	applyHint(supported, sp.ProtocolHLS, hints.HLS)
	applyHint(supported, sp.ProtocolDASH, hints.DASH)
	applyHint(supported, sp.ProtocolFLV, hints.FLV)

	protocols := make([]sp.Protocol, 0, len(supported))
	for _, p := range sp.Protocols {
		if supported[p] {
			protocols = append(protocols, p)
		}
	}

	budget := hints.BufferBudget
	if budget <= 0 {
		budget = d.BufferBudget
	}

	profile, err := NewProfile(protocols, constrained, budget)
	if err != nil {
		// Nothing playable was reported; HLS is the universal baseline.
		return MustProfile([]sp.Protocol{sp.ProtocolHLS}, constrained, budget)
	}
	return profile
}

func applyHint(supported map[sp.Protocol]bool, p sp.Protocol, hint *bool) {
	if hint != nil {
		supported[p] = *hint
	}
}

// UserAgentProvider is a Provider bound to one client's detection result.
type UserAgentProvider struct {
	profile Profile
}

// NewUserAgentProvider classifies the client once.
func NewUserAgentProvider(d Detector, userAgent string, hints Hints) UserAgentProvider {
	return UserAgentProvider{profile: d.Detect(userAgent, hints)}
}

func (p UserAgentProvider) Profile() Profile { return p.profile }
