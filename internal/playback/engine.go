// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"

	"github.com/ManuGH/tvplay/internal/resolver"
)

// Engine is the media engine the controller drives. Load must not report
// events for the new generation before it returns.
type Engine interface {
	Load(ctx context.Context, src resolver.Source, generation uint64) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
}

// QualityLevel is one rendition the engine can switch to.
type QualityLevel struct {
	Height  int  `json:"height"`
	Enabled bool `json:"enabled"`
}

// LevelController is implemented by engines that expose their renditions.
type LevelController interface {
	QualityLevels() []QualityLevel
	// SetLevelsEnabled takes one flag per entry of QualityLevels.
	SetLevelsEnabled(enabled []bool) error
}

// BandwidthLimiter is implemented by engines that accept a bitrate ceiling.
type BandwidthLimiter interface {
	// SetBandwidthCap sets the ceiling in bits per second; 0 removes it.
	SetBandwidthCap(bps int) error
}

// EngineEventKind is the type of an engine notification.
type EngineEventKind string

const (
	// EngineLoaded signals that media data arrived.
	EngineLoaded EngineEventKind = "loaded"
	// EngineError signals a playback failure.
	EngineError EngineEventKind = "error"
)

// EngineEvent is reported by the engine for the load tagged Generation.
type EngineEvent struct {
	Kind       EngineEventKind `json:"kind"`
	Generation uint64          `json:"generation"`
	// Code is the engine's own error code, if any.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
