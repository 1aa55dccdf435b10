package foreman_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/foreman"
	"github.com/aretw0/foreman/internal/fake"
	"github.com/aretw0/foreman/pkg/adapters/memory"
	"github.com/aretw0/foreman/pkg/command"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEnd_Simulator(t *testing.T) {
	bus := memory.NewBus()
	svc := memory.NewMachineService(bus, memory.WithStartDelay(50*time.Millisecond))
	store := memory.NewStore()
	rec := &fake.CallRecorder{}
	machine := fake.NewMachineConsole(rec)
	registry := fake.NewRegistry(rec)
	notes := fake.NewNotifier(rec)

	mgr := foreman.New(svc, bus,
		foreman.WithRecipe(domain.DockerRecipe("FROM alpine\nRUN apk add make")),
		foreman.WithMachineConsole(machine),
		foreman.WithConsoleRegistry(registry),
		foreman.WithConsoleFactory(registry.Factory),
		foreman.WithNotifier(notes),
		foreman.WithSessionStore(store),
		foreman.WithWorkspace("e2e"),
		foreman.WithCallTimeout(time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()

	// 1. Open a fresh project: a machine is created and becomes current once running
	_, err := mgr.OnProjectOpened(testProject).Wait(ctx)
	require.NoError(t, err)

	id, err := mgr.AwaitCurrent(ctx)
	require.NoError(t, err)
	assert.Contains(t, machine.Lines(), "[build] RUN apk add make")

	desc, ok := svc.Machine(id)
	require.True(t, ok)
	assert.Equal(t, []string{testProjectPath}, desc.Projects)

	// 2. Run a command and read its output
	exec, err := mgr.Execute(command.Configuration{
		Name:       "build",
		Type:       command.TypeMaven,
		Attributes: map[string]any{"goals": []string{"package"}, "offline": true},
	}).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mvn -o package", exec.CommandLine)

	require.Eventually(t, func() bool {
		consoles := registry.Consoles()
		return len(consoles) == 1 && len(consoles[0].Lines()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "$ mvn -o package", registry.Consoles()[0].Lines()[0])

	// 3. Reopening lists the bound machine instead of creating another
	_, err = mgr.OnProjectClosed(testProject).Wait(ctx)
	require.NoError(t, err)
	_, err = mgr.OnProjectOpened(testProject).Wait(ctx)
	require.NoError(t, err)
	again, err := mgr.AwaitCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	// 4. Destroy it
	_, err = mgr.DestroyMachine(id).Wait(ctx)
	require.NoError(t, err)
	_, ok = mgr.CurrentMachineID()
	assert.False(t, ok)
	_, ok = svc.Machine(id)
	assert.False(t, ok)

	assert.Eventually(t, func() bool {
		sessions, err := store.List(ctx, "e2e")
		return err == nil && len(sessions) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	svc.Wait()
	assert.Equal(t, 0, bus.Channels())
}
