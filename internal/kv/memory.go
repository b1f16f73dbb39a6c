package kv

import (
	"context"
	"sync"

	"github.com/campuslink/api/internal/notify"
)

// Memory is an in-memory Store used in tests and as a scratch backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
	hub     *notify.Hub
}

// NewMemory constructs an empty in-memory store publishing to hub.
func NewMemory(hub *notify.Hub) *Memory {
	return &Memory{entries: make(map[string][]byte), hub: hub}
}

// Get returns the stored value or ErrNoKey.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	value, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoKey
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Set stores value under key and broadcasts the change.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	m.entries[key] = stored
	m.mu.Unlock()
	if m.hub != nil {
		m.hub.Publish(key, value)
	}
	return nil
}

// Delete removes key and broadcasts the removal.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	if m.hub != nil {
		m.hub.Publish(key, nil)
	}
	return nil
}
