package foreman_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/foreman"
	"github.com/aretw0/foreman/internal/fake"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/loop"
	"github.com/stretchr/testify/require"
)

const testProjectPath = "/projects/app"

var testProject = domain.Project{Name: "app", Path: testProjectPath}

type harness struct {
	rec      *fake.CallRecorder
	svc      *fake.MachineService
	tr       *fake.Transport
	notes    *fake.Notifier
	machine  *fake.MachineConsole
	registry *fake.Registry
	mgr      *foreman.Manager
	shutdown func()
}

func newHarness(t *testing.T, opts ...foreman.Option) *harness {
	t.Helper()
	rec := &fake.CallRecorder{}
	h := &harness{
		rec:      rec,
		svc:      fake.NewMachineService(rec),
		tr:       fake.NewTransport(rec),
		notes:    fake.NewNotifier(rec),
		machine:  fake.NewMachineConsole(rec),
		registry: fake.NewRegistry(rec),
	}

	base := []foreman.Option{
		foreman.WithNotifier(h.notes),
		foreman.WithMachineConsole(h.machine),
		foreman.WithConsoleRegistry(h.registry),
		foreman.WithConsoleFactory(h.registry.Factory),
		foreman.WithRecipe(domain.DockerRecipe("FROM alpine")),
		foreman.WithWorkspace("ws-test"),
	}
	h.mgr = foreman.New(h.svc, h.tr, append(base, opts...)...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.mgr.Run(ctx) }()
	var once sync.Once
	h.shutdown = func() {
		once.Do(func() {
			cancel()
			require.NoError(t, <-done)
		})
	}
	t.Cleanup(h.shutdown)
	return h
}

func await[T any](t *testing.T, f *loop.Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

// status delivers a status event for id on its status channel.
func (h *harness) status(t *testing.T, id domain.MachineID, phase domain.Phase) {
	t.Helper()
	payload, err := json.Marshal(domain.StatusEvent{MachineID: id, Phase: phase})
	require.NoError(t, err)
	require.True(t, h.tr.Deliver(domain.StatusChannel(id), string(payload)), "machine %s is not tracked", id)
}

// current waits until id is the current machine.
func (h *harness) current(t *testing.T, id domain.MachineID) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, ok := h.mgr.CurrentMachineID()
		return ok && got == id
	}, 2*time.Second, 5*time.Millisecond)
}

// openWithExisting opens the test project with listed machines, the first of
// which becomes current.
func (h *harness) openWithExisting(t *testing.T, ids ...domain.MachineID) {
	t.Helper()
	machines := make([]domain.MachineDescriptor, len(ids))
	for i, id := range ids {
		machines[i] = domain.MachineDescriptor{ID: id, Status: domain.PhaseRunning}
	}
	h.svc.Machines[testProjectPath] = machines
	_, err := await(t, h.mgr.OnProjectOpened(testProject))
	require.NoError(t, err)
	h.current(t, ids[0])
}

// settle flushes the loop: any task posted before it has run once it resolves.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	_, err := await(t, h.mgr.OnProjectClosing(testProject))
	require.NoError(t, err)
}

func countCurrent(sessions []domain.MachineSession) int {
	n := 0
	for _, s := range sessions {
		if s.IsCurrent {
			n++
		}
	}
	return n
}
