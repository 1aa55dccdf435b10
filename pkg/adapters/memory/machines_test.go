package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/foreman/pkg/adapters/memory"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lines struct {
	mu  sync.Mutex
	got []string
}

func (l *lines) add(msg string) {
	l.mu.Lock()
	l.got = append(l.got, msg)
	l.mu.Unlock()
}

func (l *lines) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.got...)
}

func TestMachineService_CreateBootsToRunning(t *testing.T) {
	ctx := context.Background()
	bus := memory.NewBus()
	svc := memory.NewMachineService(bus, memory.WithStartDelay(50*time.Millisecond))

	output := domain.NewOutputChannel(domain.ChannelMachine)
	var out lines
	_, err := bus.Subscribe(ctx, output, out.add, nil)
	require.NoError(t, err)

	// 1. Create returns a starting machine
	desc, err := svc.CreateFromRecipe(ctx, domain.DockerRecipe("FROM alpine\nRUN true\n"), output)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseStarting, desc.Status)
	assert.NotEmpty(t, desc.ID)

	// 2. Watch the status channel and wait for the boot
	var status lines
	_, err = bus.Subscribe(ctx, domain.StatusChannel(desc.ID), status.add, nil)
	require.NoError(t, err)
	svc.Wait()

	require.Len(t, status.all(), 1)
	var event domain.StatusEvent
	require.NoError(t, json.Unmarshal([]byte(status.all()[0]), &event))
	assert.Equal(t, desc.ID, event.MachineID)
	assert.Equal(t, domain.PhaseRunning, event.Phase)

	// 3. Build output was streamed
	got := out.all()
	assert.Contains(t, got, "[build] FROM alpine")
	assert.Contains(t, got, "[build] RUN true")

	current, ok := svc.Machine(desc.ID)
	require.True(t, ok)
	assert.Equal(t, domain.PhaseRunning, current.Status)
}

func TestMachineService_RejectsNonDockerRecipe(t *testing.T) {
	svc := memory.NewMachineService(memory.NewBus())

	_, err := svc.CreateFromRecipe(context.Background(), domain.Recipe{Type: "vagrant"}, "machine:output:x")

	var remote *domain.RemoteCallError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "create", remote.Op)
}

func TestMachineService_BindAndList(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewMachineService(memory.NewBus(), memory.WithStartDelay(0))

	a, err := svc.CreateFromRecipe(ctx, domain.DockerRecipe("FROM alpine"), "machine:output:a")
	require.NoError(t, err)
	b, err := svc.CreateFromRecipe(ctx, domain.DockerRecipe("FROM alpine"), "machine:output:b")
	require.NoError(t, err)

	require.NoError(t, svc.BindProject(ctx, b.ID, "/projects/app"))
	require.NoError(t, svc.BindProject(ctx, a.ID, "/projects/app"))
	require.NoError(t, svc.BindProject(ctx, a.ID, "/projects/app"))

	listed, err := svc.ListMachines(ctx, "/projects/app")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, a.ID, listed[0].ID, "creation order")
	assert.Equal(t, []string{"/projects/app"}, listed[0].Projects)

	none, err := svc.ListMachines(ctx, "/projects/other")
	require.NoError(t, err)
	assert.Empty(t, none)

	err = svc.BindProject(ctx, "missing", "/projects/app")
	assert.ErrorIs(t, err, domain.ErrMachineNotFound)
	svc.Wait()
}

func TestMachineService_ExecuteEchoes(t *testing.T) {
	ctx := context.Background()
	bus := memory.NewBus()
	svc := memory.NewMachineService(bus, memory.WithStartDelay(0))

	desc, err := svc.CreateFromRecipe(ctx, domain.DockerRecipe("FROM alpine"), "machine:output:m")
	require.NoError(t, err)
	svc.Wait()

	channel := domain.NewOutputChannel(domain.ChannelProcess)
	var out lines
	_, err = bus.Subscribe(ctx, channel, out.add, nil)
	require.NoError(t, err)

	require.NoError(t, svc.ExecuteCommand(ctx, desc.ID, "mvn clean install", channel))
	svc.Wait()

	assert.Equal(t, []string{"$ mvn clean install", "[process exited with code 0]"}, out.all())
}

func TestMachineService_ExecuteRequiresRunning(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewMachineService(memory.NewBus(), memory.WithStartDelay(time.Hour))

	desc, err := svc.CreateFromRecipe(ctx, domain.DockerRecipe("FROM alpine"), "machine:output:m")
	require.NoError(t, err)

	err = svc.ExecuteCommand(ctx, desc.ID, "ls", "process:output:p")
	var remote *domain.RemoteCallError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, desc.ID, remote.MachineID)

	// Destroying a booting machine stops the boot from reporting running
	require.NoError(t, svc.Destroy(ctx, desc.ID))
	_, ok := svc.Machine(desc.ID)
	assert.False(t, ok)
}

func TestMachineService_DestroyPublishesStopped(t *testing.T) {
	ctx := context.Background()
	bus := memory.NewBus()
	svc := memory.NewMachineService(bus, memory.WithStartDelay(0))

	desc, err := svc.CreateFromRecipe(ctx, domain.DockerRecipe("FROM alpine"), "machine:output:m")
	require.NoError(t, err)
	svc.Wait()

	var status lines
	_, err = bus.Subscribe(ctx, domain.StatusChannel(desc.ID), status.add, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Destroy(ctx, desc.ID))
	require.Len(t, status.all(), 1)
	assert.JSONEq(t, `{"machine_id":"`+desc.ID.String()+`","phase":"stopped"}`, status.all()[0])

	err = svc.Destroy(ctx, desc.ID)
	assert.ErrorIs(t, err, domain.ErrMachineNotFound)
}

func TestMachineService_InjectedFailures(t *testing.T) {
	ctx := context.Background()
	svc := memory.NewMachineService(memory.NewBus())
	boom := errors.New("service unavailable")
	svc.ListErr = func(context.Context, string) error { return boom }

	_, err := svc.ListMachines(ctx, "/projects/app")
	assert.ErrorIs(t, err, boom)

	var remote *domain.RemoteCallError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "list", remote.Op)
}

func TestMachineService_Crash(t *testing.T) {
	ctx := context.Background()
	bus := memory.NewBus()
	svc := memory.NewMachineService(bus, memory.WithStartDelay(0))

	desc, err := svc.CreateFromRecipe(ctx, domain.DockerRecipe("FROM alpine"), "machine:output:m")
	require.NoError(t, err)
	svc.Wait()

	var status lines
	_, err = bus.Subscribe(ctx, domain.StatusChannel(desc.ID), status.add, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Crash(ctx, desc.ID, "out of memory"))
	var event domain.StatusEvent
	require.NoError(t, json.Unmarshal([]byte(status.all()[0]), &event))
	assert.Equal(t, domain.PhaseError, event.Phase)
	assert.Equal(t, "out of memory", event.Error)

	assert.ErrorIs(t, svc.Crash(ctx, "missing", "x"), domain.ErrMachineNotFound)
}
