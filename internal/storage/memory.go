package storage

import (
	"context"
	"sync"

	"plasmaLedger/internal/model"
)

// MemoryLog keeps events in memory, mainly for tests and reports.
type MemoryLog struct {
	mu     sync.RWMutex
	events []model.Event
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) PublishEvents(_ context.Context, events []model.Event) error {
	m.mu.Lock()
	m.events = append(m.events, events...)
	m.mu.Unlock()
	return nil
}

// Events returns a copy of every stored event.
func (m *MemoryLog) Events() []model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Event, len(m.events))
	copy(out, m.events)
	return out
}

// Filter returns the events of one pool with the given name.
func (m *MemoryLog) Filter(pool string, name model.EventName) []model.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Event
	for _, ev := range m.events {
		if ev.Pool == pool && ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}
