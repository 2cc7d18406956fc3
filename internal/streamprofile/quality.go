// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package streamprofile

import (
	"fmt"
	"strings"
)

// Quality is a coarse tier used to enable or disable engine quality levels.
type Quality string

const (
	QualityAuto   Quality = "auto"
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"

	// QualityUnavailable is the recommendation sentinel while offline.
	// It is never applied to an engine.
	QualityUnavailable Quality = "unavailable"
)

// Tier boundaries in vertical pixels.
const (
	HighMinHeight   = 720
	MediumMinHeight = 480
)

// Bandwidth ceilings applied on constrained devices, in bits per second.
const (
	BandwidthHigh   = 2000 * 1024
	BandwidthMedium = 1000 * 1024
	BandwidthLow    = 500 * 1024
)

// ParseQuality normalizes s into a selectable Quality. An empty string means auto.
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case "":
		return QualityAuto, nil
	case QualityAuto, QualityHigh, QualityMedium, QualityLow:
		return q, nil
	default:
		return "", fmt.Errorf("unknown quality %q", s)
	}
}

// Enables reports whether a rendition of the given height belongs to the tier.
func (q Quality) Enables(height int) bool {
	switch q {
	case QualityAuto:
		return true
	case QualityHigh:
		return height >= HighMinHeight
	case QualityMedium:
		return height >= MediumMinHeight && height < HighMinHeight
	case QualityLow:
		return height < MediumMinHeight
	default:
		return false
	}
}

// BandwidthCap returns the constrained-device ceiling for the tier. Auto and
// unknown tiers have no cap.
func (q Quality) BandwidthCap() (int, bool) {
	switch q {
	case QualityHigh:
		return BandwidthHigh, true
	case QualityMedium:
		return BandwidthMedium, true
	case QualityLow:
		return BandwidthLow, true
	default:
		return 0, false
	}
}

func (q Quality) String() string { return string(q) }
