package ports_test

import (
	"context"
	"sort"
	"testing"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

// MockStore is an in-memory implementation of SessionStore for testing purposes.
type MockStore struct {
	data map[string]map[domain.MachineID]domain.MachineSession
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]map[domain.MachineID]domain.MachineSession),
	}
}

func (m *MockStore) Save(ctx context.Context, workspace string, session domain.MachineSession) error {
	if m.data[workspace] == nil {
		m.data[workspace] = make(map[domain.MachineID]domain.MachineSession)
	}
	m.data[workspace][session.ID] = session
	return nil
}

func (m *MockStore) Delete(ctx context.Context, workspace string, id domain.MachineID) error {
	delete(m.data[workspace], id)
	return nil
}

func (m *MockStore) List(ctx context.Context, workspace string) ([]domain.MachineSession, error) {
	out := make([]domain.MachineSession, 0, len(m.data[workspace]))
	for _, s := range m.data[workspace] {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func TestSessionStore_Contract(t *testing.T) {
	// The mock doubles as an executable reference for adapter authors.
	ports.RunSessionStoreContract(t, NewMockStore())
}
