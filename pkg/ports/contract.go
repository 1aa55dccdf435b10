package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	workspace := "contract-ws-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and List", func(t *testing.T) {
		// 1. Save two sessions out of order
		require.NoError(t, store.Save(ctx, workspace, domain.MachineSession{ID: "m-b", Phase: domain.PhaseStarting}))
		require.NoError(t, store.Save(ctx, workspace, domain.MachineSession{ID: "m-a", Phase: domain.PhaseRunning, IsCurrent: true}))

		// 2. List is ordered by ID
		sessions, err := store.List(ctx, workspace)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, domain.MachineID("m-a"), sessions[0].ID)
		assert.True(t, sessions[0].IsCurrent)
		assert.Equal(t, domain.PhaseRunning, sessions[0].Phase)
		assert.Equal(t, domain.MachineID("m-b"), sessions[1].ID)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, workspace, domain.MachineSession{ID: "m-b", Phase: domain.PhaseError}))

		sessions, err := store.List(ctx, workspace)
		require.NoError(t, err)
		require.Len(t, sessions, 2)
		assert.Equal(t, domain.PhaseError, sessions[1].Phase)
	})

	t.Run("Workspaces Are Isolated", func(t *testing.T) {
		sessions, err := store.List(ctx, workspace+"-other")
		require.NoError(t, err)
		assert.Empty(t, sessions)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, workspace, "m-a"))
		require.NoError(t, store.Delete(ctx, workspace, "m-unknown"), "deleting unknown sessions is not an error")

		sessions, err := store.List(ctx, workspace)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		assert.Equal(t, domain.MachineID("m-b"), sessions[0].ID)

		require.NoError(t, store.Delete(ctx, workspace, "m-b"))
	})
}
