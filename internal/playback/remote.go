// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/tvplay/internal/clock"
	"github.com/ManuGH/tvplay/internal/resolver"
)

// CommandType names an engine command queued for a remote player.
type CommandType string

const (
	CmdLoad         CommandType = "load"
	CmdPlay         CommandType = "play"
	CmdPause        CommandType = "pause"
	CmdSetLevels    CommandType = "set_levels"
	CmdBandwidthCap CommandType = "bandwidth_cap"
)

// Command is one instruction for the client-side player.
type Command struct {
	Seq          uint64           `json:"seq"`
	Type         CommandType      `json:"type"`
	Generation   uint64           `json:"generation,omitempty"`
	Source       *resolver.Source `json:"source,omitempty"`
	Levels       []bool           `json:"levels,omitempty"`
	BandwidthCap int              `json:"bandwidthCap,omitempty"`
	At           time.Time        `json:"at"`
}

// defaultMaxQueue bounds commands kept for a client that stopped polling.
const defaultMaxQueue = 64

// RemoteEngine is an Engine whose player runs on the client. Commands are
// queued for the client to pull; the client reports engine events and its
// rendition list back.
type RemoteEngine struct {
	clock    clock.Clock
	maxQueue int

	mu     sync.Mutex
	seq    uint64
	queue  []Command
	levels []QualityLevel
}

// NewRemoteEngine creates an engine with a bounded command queue.
func NewRemoteEngine(clk clock.Clock, maxQueue int) *RemoteEngine {
	if clk == nil {
		clk = clock.Real{}
	}
	if maxQueue <= 0 {
		maxQueue = defaultMaxQueue
	}
	return &RemoteEngine{clock: clk, maxQueue: maxQueue}
}

func (e *RemoteEngine) enqueueLocked(cmd Command) {
	e.seq++
	cmd.Seq = e.seq
	cmd.At = e.clock.Now()
	e.queue = append(e.queue, cmd)
	if over := len(e.queue) - e.maxQueue; over > 0 {
		e.queue = append(e.queue[:0:0], e.queue[over:]...)
	}
}

// Load supersedes every queued command and forgets the previous renditions.
func (e *RemoteEngine) Load(_ context.Context, src resolver.Source, generation uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = nil
	e.levels = nil
	s := src
	e.enqueueLocked(Command{Type: CmdLoad, Generation: generation, Source: &s})
	return nil
}

func (e *RemoteEngine) Play(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueueLocked(Command{Type: CmdPlay})
	return nil
}

func (e *RemoteEngine) Pause(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueueLocked(Command{Type: CmdPause})
	return nil
}

// QualityLevels returns the renditions last reported by the client.
func (e *RemoteEngine) QualityLevels() []QualityLevel {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]QualityLevel(nil), e.levels...)
}

func (e *RemoteEngine) SetLevelsEnabled(enabled []bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.levels {
		if i < len(enabled) {
			e.levels[i].Enabled = enabled[i]
		}
	}
	e.enqueueLocked(Command{Type: CmdSetLevels, Levels: append([]bool(nil), enabled...)})
	return nil
}

func (e *RemoteEngine) SetBandwidthCap(bps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enqueueLocked(Command{Type: CmdBandwidthCap, BandwidthCap: bps})
	return nil
}

// ReportLevels stores the client's rendition list.
func (e *RemoteEngine) ReportLevels(levels []QualityLevel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.levels = append([]QualityLevel(nil), levels...)
}

// Drain returns and clears the queued commands.
func (e *RemoteEngine) Drain() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.queue
	e.queue = nil
	return out
}

// Pending returns the number of queued commands.
func (e *RemoteEngine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}
