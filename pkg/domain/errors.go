package domain

import (
	"errors"
	"fmt"
)

// ErrNoCurrentMachine is returned when a command is executed while no machine is bound.
var ErrNoCurrentMachine = errors.New("no current machine")

// ErrNoActiveProject is returned when an operation needs a project and none is open.
var ErrNoActiveProject = errors.New("no active project")

// ErrChannelInUse is returned when a second subscriber tries to attach to a live channel.
var ErrChannelInUse = errors.New("channel already has a subscriber")

// ErrLoopClosed is returned by futures whose task could not run because the loop stopped.
var ErrLoopClosed = errors.New("event loop closed")

// ErrMachineNotFound is returned when a machine ID is unknown to the machine service.
var ErrMachineNotFound = errors.New("machine not found")

// ErrMachineDestroyed is returned when a binding completes for a machine that was destroyed meanwhile.
var ErrMachineDestroyed = errors.New("machine destroyed")

// ErrUnknownCommandType is returned for command configurations with an unregistered type.
var ErrUnknownCommandType = errors.New("unknown command type")

// ErrLockAcquire is returned when a workspace lease cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire workspace lock")

// SubscriptionError reports that an output channel subscription could not be
// established or was dropped by the transport.
type SubscriptionError struct {
	Channel string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %q failed: %v", e.Channel, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// RemoteCallError reports that the machine service rejected or failed a call.
type RemoteCallError struct {
	Op        string
	MachineID MachineID
	Err       error
}

func (e *RemoteCallError) Error() string {
	if e.MachineID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.MachineID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }
