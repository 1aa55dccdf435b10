package tui_test

import (
	"bytes"
	"testing"

	"github.com/aretw0/foreman/internal/presentation/tui"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestMachinesTable(t *testing.T) {
	out := tui.MachinesTable([]domain.MachineDescriptor{
		{ID: "machine1", Name: "dev-machine-1", Status: domain.PhaseRunning, Recipe: "docker", Projects: []string{"/projects/app"}},
		{ID: "machine2", Name: "dev-machine-2", Status: domain.PhaseStarting, Recipe: "docker"},
	})

	for _, want := range []string{"ID", "PROJECTS", "machine1", "dev-machine-2", "running", "starting", "/projects/app"} {
		assert.Contains(t, out, want)
	}
}

func TestSessionsTable_MarksCurrent(t *testing.T) {
	out := tui.SessionsTable([]domain.MachineSession{
		{ID: "machine1", Phase: domain.PhaseRunning, IsCurrent: true, OutputChannel: "machine:output:abc"},
	})

	assert.Contains(t, out, "*")
	assert.Contains(t, out, "machine:output:abc")
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "1 machine", tui.Summary(1, "machine"))
	assert.Equal(t, "0 sessions", tui.Summary(0, "session"))
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "0.1.0\n")
	assert.Contains(t, buf.String(), "machine orchestration v0.1.0")
}
