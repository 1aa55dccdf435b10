package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func value(f *dto.MetricFamily, label string) float64 {
	for _, m := range f.GetMetric() {
		if label != "" {
			match := false
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		switch {
		case m.GetCounter() != nil:
			return m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			return m.GetGauge().GetValue()
		case m.GetHistogram() != nil:
			return float64(m.GetHistogram().GetSampleCount())
		}
	}
	return 0
}

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	hooks := observability.NewMetrics(reg).Hooks()
	ctx := context.Background()

	// 1. Two machines created, one destroyed
	hooks.OnMachineCreated(ctx, &domain.MachineEvent{MachineID: "m1"})
	hooks.OnMachineCreated(ctx, &domain.MachineEvent{MachineID: "m2"})
	hooks.OnMachineRunning(ctx, &domain.MachineEvent{MachineID: "m1"})
	hooks.OnCurrentChanged(ctx, &domain.MachineEvent{MachineID: "m1"})
	hooks.OnMachineDestroyed(ctx, &domain.MachineEvent{MachineID: "m2"})

	// 2. Commands and failures
	hooks.OnCommandExecuted(ctx, &domain.CommandEvent{Duration: 20 * time.Millisecond})
	hooks.OnCommandExecuted(ctx, &domain.CommandEvent{Duration: time.Second, IsError: true})
	hooks.OnFailure(ctx, &domain.FailureEvent{Op: "bind machine", Err: errors.New("x")})

	got := gather(t, reg)
	assert.Equal(t, 2.0, value(got["foreman_machines_created_total"], ""))
	assert.Equal(t, 1.0, value(got["foreman_machines_running_total"], ""))
	assert.Equal(t, 1.0, value(got["foreman_machines_destroyed_total"], ""))
	assert.Equal(t, 1.0, value(got["foreman_machines_active"], ""))
	assert.Equal(t, 1.0, value(got["foreman_current_machine_changes_total"], ""))
	assert.Equal(t, 1.0, value(got["foreman_commands_total"], "ok"))
	assert.Equal(t, 1.0, value(got["foreman_commands_total"], "error"))
	assert.Equal(t, 2.0, value(got["foreman_command_dispatch_seconds"], ""))
	assert.Equal(t, 1.0, value(got["foreman_failures_total"], "bind machine"))
}

func TestChain(t *testing.T) {
	var order []string
	first := domain.LifecycleHooks{
		OnMachineCreated: func(context.Context, *domain.MachineEvent) { order = append(order, "first") },
	}
	second := domain.LifecycleHooks{
		OnMachineCreated: func(context.Context, *domain.MachineEvent) { order = append(order, "second") },
		OnFailure:        func(context.Context, *domain.FailureEvent) { order = append(order, "failure") },
	}

	hooks := observability.Chain(first, domain.LifecycleHooks{}, second)
	hooks.OnMachineCreated(context.Background(), &domain.MachineEvent{})
	hooks.OnFailure(context.Background(), &domain.FailureEvent{})

	assert.Equal(t, []string{"first", "second", "failure"}, order)
	assert.Nil(t, hooks.OnMachineRunning)
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := observability.LogHooks(slog.New(slog.NewTextHandler(&buf, nil)))

	hooks.OnCurrentChanged(context.Background(), &domain.MachineEvent{MachineID: "m2", Previous: "m1"})

	assert.Contains(t, buf.String(), "msg=current_changed")
	assert.Contains(t, buf.String(), "machine_id=m2")
	assert.Contains(t, buf.String(), "previous=m1")
}
