package layout

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process Backend for tests. Failures can be injected
// with SetError.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
	err     error
	saves   int
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Entry)}
}

// SetError makes every subsequent Load and Save fail with err.
func (m *MemoryBackend) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Saves returns the number of successful saves.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryBackend) Load(ctx context.Context, widgetID string) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Entry{}, false, m.err
	}
	e, ok := m.entries[widgetID]
	return e, ok, nil
}

func (m *MemoryBackend) Save(ctx context.Context, widgetID string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries[widgetID] = e
	m.saves++
	return nil
}
