// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"time"

	sp "github.com/ManuGH/tvplay/internal/streamprofile"
)

// Config holds the retry policy and session defaults.
type Config struct {
	// MaxRetries per protocol before escalating. Default 3.
	MaxRetries int
	// BaseRetryDelay is multiplied by the retry count. Default 2s.
	BaseRetryDelay time.Duration
	// DefaultProtocol for new sessions. Default auto.
	DefaultProtocol sp.Protocol
	// DefaultQuality for new sessions. Default auto.
	DefaultQuality sp.Quality
	// Autoplay issues Play after every successful Load on devices that allow
	// it. Constrained devices wait for an explicit Play.
	Autoplay bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseRetryDelay:  2 * time.Second,
		DefaultProtocol: sp.ProtocolAuto,
		DefaultQuality:  sp.QualityAuto,
		Autoplay:        true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = d.BaseRetryDelay
	}
	if c.DefaultProtocol == "" {
		c.DefaultProtocol = d.DefaultProtocol
	}
	if c.DefaultQuality == "" || c.DefaultQuality == sp.QualityUnavailable {
		c.DefaultQuality = d.DefaultQuality
	}
	return c
}

// RetryDelay returns the delay before retry number n (1-based).
func (c Config) RetryDelay(n int) time.Duration {
	return c.BaseRetryDelay * time.Duration(n)
}
