package ports

import (
	"context"

	"github.com/aretw0/foreman/pkg/domain"
)

// SessionStore persists MachineSession snapshots per workspace so other
// processes (e.g. 'foreman sessions ls') can inspect them.
type SessionStore interface {
	// Save upserts the session under the workspace.
	Save(ctx context.Context, workspace string, session domain.MachineSession) error

	// Delete removes the session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, workspace string, id domain.MachineID) error

	// List returns all sessions in the workspace, ordered by machine ID.
	List(ctx context.Context, workspace string) ([]domain.MachineSession, error)
}
