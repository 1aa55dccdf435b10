package middleware

import (
	"context"
	"log/slog"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

type logged struct {
	next   ports.SessionStore
	logger *slog.Logger
}

// NewLoggingMiddleware logs writes at debug level and failures at warn.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next ports.SessionStore) ports.SessionStore {
		return &logged{next: next, logger: logger}
	}
}

func (m *logged) Save(ctx context.Context, workspace string, session domain.MachineSession) error {
	if err := m.next.Save(ctx, workspace, session); err != nil {
		m.logger.Warn("Session save failed", "workspace", workspace, "machine_id", session.ID, "err", err)
		return err
	}
	m.logger.Debug("Session saved", "workspace", workspace, "machine_id", session.ID, "phase", session.Phase, "is_current", session.IsCurrent)
	return nil
}

func (m *logged) Delete(ctx context.Context, workspace string, id domain.MachineID) error {
	if err := m.next.Delete(ctx, workspace, id); err != nil {
		m.logger.Warn("Session delete failed", "workspace", workspace, "machine_id", id, "err", err)
		return err
	}
	m.logger.Debug("Session deleted", "workspace", workspace, "machine_id", id)
	return nil
}

func (m *logged) List(ctx context.Context, workspace string) ([]domain.MachineSession, error) {
	sessions, err := m.next.List(ctx, workspace)
	if err != nil {
		m.logger.Warn("Session list failed", "workspace", workspace, "err", err)
	}
	return sessions, err
}
