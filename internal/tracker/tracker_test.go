package tracker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aretw0/foreman/internal/tracker"
	"github.com/aretw0/foreman/pkg/adapters/memory"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func publish(t *testing.T, bus *memory.Bus, id domain.MachineID, phase domain.Phase) {
	t.Helper()
	payload, err := json.Marshal(domain.StatusEvent{MachineID: id, Phase: phase})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), domain.StatusChannel(id), string(payload)))
}

func TestTracker_RunningFiresOnce(t *testing.T) {
	bus := memory.NewBus()
	tr := tracker.New(bus)
	ctx := context.Background()

	var fired []domain.MachineID
	require.NoError(t, tr.Track(ctx, "m1", func(id domain.MachineID) { fired = append(fired, id) }))

	// 1. Starting does nothing
	publish(t, bus, "m1", domain.PhaseStarting)
	assert.Empty(t, fired)

	// 2. Running fires once, redelivery does not
	publish(t, bus, "m1", domain.PhaseRunning)
	publish(t, bus, "m1", domain.PhaseRunning)
	assert.Equal(t, []domain.MachineID{"m1"}, fired)
	assert.True(t, tr.Tracked("m1"))
}

func TestTracker_LatestListenerWins(t *testing.T) {
	bus := memory.NewBus()
	tr := tracker.New(bus)
	ctx := context.Background()

	var first, second int
	require.NoError(t, tr.Track(ctx, "m1", func(domain.MachineID) { first++ }))
	require.NoError(t, tr.Track(ctx, "m1", func(domain.MachineID) { second++ }))
	assert.Equal(t, 1, bus.Channels(), "one status subscription per machine")

	publish(t, bus, "m1", domain.PhaseRunning)
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

func TestTracker_NilListenerClearsSlot(t *testing.T) {
	bus := memory.NewBus()
	tr := tracker.New(bus)
	ctx := context.Background()

	fired := false
	require.NoError(t, tr.Track(ctx, "m1", func(domain.MachineID) { fired = true }))
	require.NoError(t, tr.Track(ctx, "m1", nil))

	publish(t, bus, "m1", domain.PhaseRunning)
	assert.False(t, fired)
}

func TestTracker_ErrorDoesNotEndTracking(t *testing.T) {
	bus := memory.NewBus()
	var seen []domain.Phase
	tr := tracker.New(bus, tracker.WithObserver(func(e domain.StatusEvent) { seen = append(seen, e.Phase) }))
	ctx := context.Background()

	fired := 0
	require.NoError(t, tr.Track(ctx, "m1", func(domain.MachineID) { fired++ }))

	publish(t, bus, "m1", domain.PhaseError)
	publish(t, bus, "m1", domain.PhaseRunning)

	assert.Equal(t, 1, fired)
	assert.Equal(t, []domain.Phase{domain.PhaseError, domain.PhaseRunning}, seen)
}

func TestTracker_StopFiresDestroyedOnce(t *testing.T) {
	bus := memory.NewBus()
	tr := tracker.New(bus)
	ctx := context.Background()

	fired := false
	require.NoError(t, tr.Track(ctx, "m1", func(domain.MachineID) { fired = true }))

	var destroyed []domain.MachineID
	onDestroyed := func(id domain.MachineID) { destroyed = append(destroyed, id) }
	tr.Stop("m1", onDestroyed)
	tr.Stop("m1", onDestroyed)

	assert.Equal(t, []domain.MachineID{"m1"}, destroyed)
	assert.False(t, tr.Tracked("m1"))
	assert.False(t, bus.Subscribed(domain.StatusChannel("m1")))

	publish(t, bus, "m1", domain.PhaseRunning)
	assert.False(t, fired)

	// Untracked ids are a no-op
	tr.Stop("never", onDestroyed)
	assert.Len(t, destroyed, 1)
}

func TestTracker_DropsUndecodablePayloads(t *testing.T) {
	bus := memory.NewBus()
	var seen int
	tr := tracker.New(bus, tracker.WithObserver(func(domain.StatusEvent) { seen++ }))
	ctx := context.Background()

	require.NoError(t, tr.Track(ctx, "m1", nil))
	require.NoError(t, bus.Publish(ctx, domain.StatusChannel("m1"), "not-json"))
	require.NoError(t, bus.Publish(ctx, domain.StatusChannel("m1"), `{"phase":"exploded"}`))

	assert.Equal(t, 0, seen)
}

func TestTracker_SubscribeFailure(t *testing.T) {
	bus := memory.NewBus()
	bus.SetUnavailable(errors.New("down"))
	tr := tracker.New(bus)

	err := tr.Track(context.Background(), "m1", nil)
	var subErr *domain.SubscriptionError
	require.ErrorAs(t, err, &subErr)
	assert.False(t, tr.Tracked("m1"))
}

func TestTracker_Close(t *testing.T) {
	bus := memory.NewBus()
	tr := tracker.New(bus)
	ctx := context.Background()

	require.NoError(t, tr.Track(ctx, "m1", nil))
	require.NoError(t, tr.Track(ctx, "m2", nil))
	tr.Close()

	assert.Equal(t, 0, bus.Channels())
}
