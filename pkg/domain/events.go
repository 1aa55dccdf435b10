package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventMachineCreated   EventType = "machine_created"
	EventMachineRunning   EventType = "machine_running"
	EventMachineDestroyed EventType = "machine_destroyed"
	EventCurrentChanged   EventType = "current_changed"
	EventCommandExecuted  EventType = "command_executed"
	EventFailure          EventType = "failure"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Workspace string    `json:"workspace"`
}

// MachineEvent reports a change to a single machine.
type MachineEvent struct {
	EventBase
	MachineID MachineID `json:"machine_id"`
	Phase     Phase     `json:"phase,omitempty"`
	Previous  MachineID `json:"previous,omitempty"` // set for EventCurrentChanged
}

// CommandEvent reports a command routed to a machine.
type CommandEvent struct {
	EventBase
	Execution Execution     `json:"execution"`
	Duration  time.Duration `json:"duration"`
	IsError   bool          `json:"is_error,omitempty"`
}

// FailureEvent reports an operation that failed at the orchestration boundary.
type FailureEvent struct {
	EventBase
	Op  string `json:"op"`
	Err error  `json:"-"`
}

// LifecycleHooks defines callbacks for orchestrator observability.
// Every hook is optional and runs on the Manager's event loop.
type LifecycleHooks struct {
	OnMachineCreated   func(context.Context, *MachineEvent)
	OnMachineRunning   func(context.Context, *MachineEvent)
	OnMachineDestroyed func(context.Context, *MachineEvent)
	OnCurrentChanged   func(context.Context, *MachineEvent)
	OnCommandExecuted  func(context.Context, *CommandEvent)
	OnFailure          func(context.Context, *FailureEvent)
}
