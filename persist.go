package foreman

import (
	"context"
	"time"

	"github.com/aretw0/foreman/pkg/domain"
)

const storeTimeout = 5 * time.Second

type storeOp struct {
	session domain.MachineSession
	remove  bool
}

// persist queues a snapshot of the session for the store. Runs on the loop;
// writes happen in order on a separate goroutine.
func (m *Manager) persist(id domain.MachineID) {
	if m.store == nil || id == "" {
		return
	}
	m.mu.RLock()
	_, ok := m.sessions[id]
	var snapshot domain.MachineSession
	if ok {
		snapshot = m.snapshotLocked(id)
	}
	m.mu.RUnlock()
	if ok {
		m.enqueue(storeOp{session: snapshot})
	}
}

// forget queues removal of a destroyed machine's session from the store.
func (m *Manager) forget(id domain.MachineID) {
	if m.store == nil {
		return
	}
	m.enqueue(storeOp{session: domain.MachineSession{ID: id}, remove: true})
}

func (m *Manager) enqueue(op storeOp) {
	select {
	case m.persistQ <- op:
	default:
		m.logger.Warn("Session store queue full, snapshot dropped", "machine_id", op.session.ID)
	}
}

func (m *Manager) persistLoop() {
	for op := range m.persistQ {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		var err error
		if op.remove {
			err = m.store.Delete(ctx, m.workspace, op.session.ID)
		} else {
			err = m.store.Save(ctx, m.workspace, op.session)
		}
		cancel()
		if err != nil {
			m.logger.Warn("Failed to persist session", "machine_id", op.session.ID, "err", err)
		}
	}
}
