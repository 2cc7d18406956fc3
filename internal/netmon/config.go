// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package netmon

import "time"

// Config holds sampling intervals and classification thresholds.
type Config struct {
	// Interval between periodic samples on regular devices. Default 30s.
	Interval time.Duration
	// ConstrainedInterval between periodic samples on constrained devices. Default 10s.
	ConstrainedInterval time.Duration
	// MinSampleInterval suppresses samples closer together than this. Default 5s.
	MinSampleInterval time.Duration
	// SettleDelay before re-sampling after visibility is regained. Default 1s.
	SettleDelay time.Duration
	// Probes faster than FastThreshold are fast. Default 100ms.
	FastThreshold time.Duration
	// Probes faster than MediumThreshold are medium, the rest slow. Default 500ms.
	MediumThreshold time.Duration
	// ProbeTimeout bounds one probe. Default 5s.
	ProbeTimeout time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Interval:            30 * time.Second,
		ConstrainedInterval: 10 * time.Second,
		MinSampleInterval:   5 * time.Second,
		SettleDelay:         time.Second,
		FastThreshold:       100 * time.Millisecond,
		MediumThreshold:     500 * time.Millisecond,
		ProbeTimeout:        5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.ConstrainedInterval <= 0 {
		c.ConstrainedInterval = d.ConstrainedInterval
	}
	if c.MinSampleInterval < 0 {
		c.MinSampleInterval = 0
	} else if c.MinSampleInterval == 0 {
		c.MinSampleInterval = d.MinSampleInterval
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.FastThreshold <= 0 {
		c.FastThreshold = d.FastThreshold
	}
	if c.MediumThreshold <= c.FastThreshold {
		c.MediumThreshold = d.MediumThreshold
		if c.MediumThreshold <= c.FastThreshold {
			c.MediumThreshold = c.FastThreshold * 5
		}
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = d.ProbeTimeout
	}
	return c
}

// Classify maps a successful probe duration to a speed class.
func (c Config) Classify(d time.Duration) Speed {
	switch {
	case d < c.FastThreshold:
		return SpeedFast
	case d < c.MediumThreshold:
		return SpeedMedium
	default:
		return SpeedSlow
	}
}
