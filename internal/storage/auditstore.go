package storage

import (
	"sync"

	"github.com/example/taxi-admin/internal/models"
)

// AuditStore persists the assignment audit trail. The record store owns
// the live data; this trail exists so partial writes (hire patched,
// request acceptance lost) can be reconstructed after the fact.
type AuditStore interface {
	SaveAssignment(ev models.AssignmentEvent) error
}

type MemoryStore struct {
	mu     sync.RWMutex
	events []models.AssignmentEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveAssignment(ev models.AssignmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryStore) ByHire(hireID string) []models.AssignmentEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AssignmentEvent
	for _, ev := range m.events {
		if ev.HireID == hireID {
			out = append(out, ev)
		}
	}
	return out
}
