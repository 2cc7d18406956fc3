// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package netmon

import (
	"time"

	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// Speed is a coarse network quality class.
type Speed string

const (
	SpeedFast     Speed = "fast"
	SpeedMedium   Speed = "medium"
	SpeedSlow     Speed = "slow"
	SpeedUnstable Speed = "unstable"
	SpeedUnknown  Speed = "unknown"
)

// Sample is the latest observation. Only one is retained.
type Sample struct {
	Online    bool          `json:"online"`
	Speed     Speed         `json:"speed"`
	RTT       time.Duration `json:"rtt_ns,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Recommend maps a sample to a quality tier. Offline yields QualityUnavailable;
// an unclassified sample falls back to medium on constrained devices and auto
// elsewhere.
func Recommend(s Sample, constrained bool) sp.Quality {
	if !s.Online {
		return sp.QualityUnavailable
	}
	switch s.Speed {
	case SpeedFast:
		return sp.QualityHigh
	case SpeedMedium:
		return sp.QualityMedium
	case SpeedSlow, SpeedUnstable:
		return sp.QualityLow
	default:
		if constrained {
			return sp.QualityMedium
		}
		return sp.QualityAuto
	}
}
