// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package channels

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ManuGH/tvplay/internal/log"
	"github.com/google/renameio/v2"
)

// StateManager persists operator-disabled channels. Channels are enabled
// unless listed; only disabled keys are stored to keep the file small.
type StateManager struct {
	mu       sync.RWMutex
	filePath string
	disabled map[string]bool
}

// NewStateManager creates a manager storing channel-state.json in dataDir.
// An empty dataDir keeps state in memory only.
func NewStateManager(dataDir string) *StateManager {
	m := &StateManager{disabled: make(map[string]bool)}
	if dataDir != "" {
		m.filePath = filepath.Join(dataDir, "channel-state.json")
	}
	return m
}

// Load reads the persisted state. A missing file is not an error.
func (m *StateManager) Load() error {
	if m.filePath == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read channel state: %w", err)
	}

	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return fmt.Errorf("decode channel state: %w", err)
	}

	m.disabled = make(map[string]bool, len(keys))
	for _, k := range keys {
		m.disabled[Key(k)] = true
	}

	log.L().Info().
		Str(log.FieldEvent, "channels.state_loaded").
		Int("disabled_count", len(m.disabled)).
		Msg("loaded channel states")
	return nil
}

func (m *StateManager) save() error {
	if m.filePath == "" {
		return nil
	}
	m.mu.RLock()
	keys := make([]string, 0, len(m.disabled))
	for k := range m.disabled {
		keys = append(keys, k)
	}
	m.mu.RUnlock()
	sort.Strings(keys)

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(m.filePath, data, 0o600); err != nil {
		return fmt.Errorf("write channel state: %w", err)
	}
	return nil
}

// IsEnabled reports whether the named channel is enabled.
func (m *StateManager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.disabled[Key(name)]
}

// SetEnabled updates and persists the state of a channel.
func (m *StateManager) SetEnabled(name string, enabled bool) error {
	key := Key(name)
	m.mu.Lock()
	if enabled {
		delete(m.disabled, key)
	} else {
		m.disabled[key] = true
	}
	m.mu.Unlock()
	return m.save()
}

// DisabledCount returns the number of disabled channels.
func (m *StateManager) DisabledCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.disabled)
}

// Apply returns a list without disabled channels.
func (m *StateManager) Apply(l *List) *List {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.disabled) == 0 {
		return l
	}
	out := &List{
		index:      make(map[string]int, len(l.channels)),
		categories: l.categories,
		settings:   l.settings,
	}
	for _, ch := range l.channels {
		key := Key(ch.Name())
		if m.disabled[key] {
			continue
		}
		out.index[key] = len(out.channels)
		out.channels = append(out.channels, ch)
	}
	return out
}
