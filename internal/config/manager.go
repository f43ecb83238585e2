package config

import (
	"fmt"
	"sync"
)

// Manager guards a live Config behind a lock so the admin config editor
// can update settings while requests are in flight. Request handlers take
// a Snapshot once and pass it down the pipeline, so a single request
// never observes a half-applied update.
type Manager struct {
	mu   sync.RWMutex
	cfg  Config
	path string
}

// NewManager wraps a loaded configuration. path is where updates are
// persisted; it may be empty for in-memory use (tests).
func NewManager(cfg *Config, path string) *Manager {
	return &Manager{cfg: *cfg, path: path}
}

// Snapshot returns a copy of the current configuration.
func (m *Manager) Snapshot() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Update applies a mutation to the configuration, re-validates it and
// persists the result. The mutation is discarded if validation fails.
func (m *Manager) Update(mutate func(*Config)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.cfg
	mutate(&next)
	next.ApplyDefaults()
	if err := next.Validate(); err != nil {
		return fmt.Errorf("rejected config update: %w", err)
	}

	m.cfg = next
	if m.path != "" {
		if err := next.SaveToFile(m.path); err != nil {
			return fmt.Errorf("failed to persist config: %w", err)
		}
	}
	return nil
}
