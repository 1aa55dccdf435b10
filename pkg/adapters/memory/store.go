package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

var _ ports.SessionStore = (*Store)(nil)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[domain.MachineID]domain.MachineSession
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[domain.MachineID]domain.MachineSession),
	}
}

// Save persists the session in memory. Sessions are values, so callers
// cannot mutate stored records afterwards.
func (s *Store) Save(ctx context.Context, workspace string, session domain.MachineSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.data[workspace]
	if !ok {
		ws = make(map[domain.MachineID]domain.MachineSession)
		s.data[workspace] = ws
	}
	ws[session.ID] = session
	return nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, workspace string, id domain.MachineID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[workspace], id)
	if len(s.data[workspace]) == 0 {
		delete(s.data, workspace)
	}
	return nil
}

// List returns the workspace's sessions ordered by ID.
func (s *Store) List(ctx context.Context, workspace string) ([]domain.MachineSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]domain.MachineSession, 0, len(s.data[workspace]))
	for _, session := range s.data[workspace] {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}
