// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"sync"
)

// Memory is a non-durable Store for tests and single-run deployments.
type Memory struct {
	maxEvents int

	mu       sync.RWMutex
	settings *Settings
	events   map[string][]Entry
}

// NewMemory creates an empty in-memory store.
func NewMemory(maxEvents int) *Memory {
	if maxEvents <= 0 {
		maxEvents = Config{}.withDefaults().MaxEvents
	}
	return &Memory{maxEvents: maxEvents, events: make(map[string][]Entry)}
}

func (m *Memory) LoadSettings(context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return DefaultSettings(), nil
	}
	return *m.settings, nil
}

func (m *Memory) SaveSettings(_ context.Context, s Settings) error {
	s, err := s.Normalize()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

func (m *Memory) ResetSettings(context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = nil
	return DefaultSettings(), nil
}

func (m *Memory) AppendEvent(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.events[e.SessionID], e)
	if over := len(list) - m.maxEvents; over > 0 {
		list = append(list[:0:0], list[over:]...)
	}
	m.events[e.SessionID] = list
	return nil
}

func (m *Memory) ListEvents(_ context.Context, sessionID string, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.events[sessionID]
	limit = clampLimit(limit, m.maxEvents)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]Entry(nil), list...), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
