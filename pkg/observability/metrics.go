package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the orchestrator's Prometheus collectors.
type Metrics struct {
	machinesCreated   prometheus.Counter
	machinesRunning   prometheus.Counter
	machinesDestroyed prometheus.Counter
	machinesActive    prometheus.Gauge
	currentChanges    prometheus.Counter
	commands          *prometheus.CounterVec
	commandDispatch   prometheus.Histogram
	failures          *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		machinesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foreman_machines_created_total",
			Help: "Total number of machines created",
		}),
		machinesRunning: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foreman_machines_running_total",
			Help: "Total number of machines observed reaching the running phase",
		}),
		machinesDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foreman_machines_destroyed_total",
			Help: "Total number of machines destroyed",
		}),
		machinesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "foreman_machines_active",
			Help: "Machines created by this process and not yet destroyed",
		}),
		currentChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foreman_current_machine_changes_total",
			Help: "Total number of current-machine binding changes",
		}),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foreman_commands_total",
				Help: "Total number of commands routed to a machine",
			},
			[]string{"result"},
		),
		commandDispatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "foreman_command_dispatch_seconds",
			Help:    "Latency of the remote execute call",
			Buckets: prometheus.DefBuckets,
		}),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foreman_failures_total",
				Help: "Total number of failed orchestration operations",
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(
		m.machinesCreated,
		m.machinesRunning,
		m.machinesDestroyed,
		m.machinesActive,
		m.currentChanges,
		m.commands,
		m.commandDispatch,
		m.failures,
	)
	return m
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnMachineCreated: func(_ context.Context, _ *domain.MachineEvent) {
			m.machinesCreated.Inc()
			m.machinesActive.Inc()
		},
		OnMachineRunning: func(_ context.Context, _ *domain.MachineEvent) {
			m.machinesRunning.Inc()
		},
		OnMachineDestroyed: func(_ context.Context, _ *domain.MachineEvent) {
			m.machinesDestroyed.Inc()
			m.machinesActive.Dec()
		},
		OnCurrentChanged: func(_ context.Context, _ *domain.MachineEvent) {
			m.currentChanges.Inc()
		},
		OnCommandExecuted: func(_ context.Context, e *domain.CommandEvent) {
			result := "ok"
			if e.IsError {
				result = "error"
			}
			m.commands.WithLabelValues(result).Inc()
			m.commandDispatch.Observe(e.Duration.Seconds())
		},
		OnFailure: func(_ context.Context, e *domain.FailureEvent) {
			m.failures.WithLabelValues(e.Op).Inc()
		},
	}
}

// LogHooks returns lifecycle hooks that log every event.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	machine := func(msg string) func(context.Context, *domain.MachineEvent) {
		return func(_ context.Context, e *domain.MachineEvent) {
			logger.Info(msg, "machine_id", e.MachineID, "phase", e.Phase, "workspace", e.Workspace)
		}
	}
	return domain.LifecycleHooks{
		OnMachineCreated:   machine("machine_created"),
		OnMachineRunning:   machine("machine_running"),
		OnMachineDestroyed: machine("machine_destroyed"),
		OnCurrentChanged: func(_ context.Context, e *domain.MachineEvent) {
			logger.Info("current_changed", "machine_id", e.MachineID, "previous", e.Previous, "workspace", e.Workspace)
		},
		OnCommandExecuted: func(_ context.Context, e *domain.CommandEvent) {
			logger.Info("command_executed",
				"machine_id", e.Execution.Machine,
				"channel", e.Execution.Channel,
				"duration", e.Duration,
				"is_error", e.IsError,
			)
		},
		OnFailure: func(_ context.Context, e *domain.FailureEvent) {
			logger.Warn("operation_failed", "op", e.Op, "err", e.Err)
		},
	}
}

// Chain combines hooks so every non-nil callback runs, in argument order.
func Chain(all ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range all {
		out.OnMachineCreated = chain(out.OnMachineCreated, h.OnMachineCreated)
		out.OnMachineRunning = chain(out.OnMachineRunning, h.OnMachineRunning)
		out.OnMachineDestroyed = chain(out.OnMachineDestroyed, h.OnMachineDestroyed)
		out.OnCurrentChanged = chain(out.OnCurrentChanged, h.OnCurrentChanged)
		out.OnCommandExecuted = chain(out.OnCommandExecuted, h.OnCommandExecuted)
		out.OnFailure = chain(out.OnFailure, h.OnFailure)
	}
	return out
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}
