package ports

import (
	"context"

	"github.com/aretw0/foreman/pkg/domain"
)

// MachineService is the remote machine API. Every call may fail with a
// transport error or a *domain.RemoteCallError; callers must not retry
// mutating calls automatically.
type MachineService interface {
	// ListMachines returns the machines bound to the project at projectPath.
	ListMachines(ctx context.Context, projectPath string) ([]domain.MachineDescriptor, error)

	// CreateFromRecipe creates a machine. Build output is published on outputChannel,
	// which the caller must already be subscribed to.
	CreateFromRecipe(ctx context.Context, recipe domain.Recipe, outputChannel string) (domain.MachineDescriptor, error)

	// Destroy stops and removes the machine.
	Destroy(ctx context.Context, id domain.MachineID) error

	// BindProject binds the project at projectPath to the machine.
	BindProject(ctx context.Context, id domain.MachineID, projectPath string) error

	// ExecuteCommand runs commandLine on the machine, publishing output on outputChannel.
	ExecuteCommand(ctx context.Context, id domain.MachineID, commandLine string, outputChannel string) error
}
