/*
Package foreman orchestrates the lifecycle of remote execution environments
("machines") for a workspace and routes command execution to the machine bound
as current for the active project.

# Concept

A Manager owns every MachineSession of its workspace and the single
current-machine slot. All of its state changes happen on one event loop: each
public operation posts a task and returns a loop.Future, remote calls run off
the loop, and their continuations re-enter it. Two continuations never run at
the same time, so at most one session is ever current.

Machines are created from a recipe. The Manager subscribes to a fresh machine
output channel before issuing the creation request, follows the machine's
status channel through the tracker, and binds the machine as current when it
first reports running. Commands get their own process output channel, which is
subscribed and shown before the remote execute call is made.

No remote call is retried. Every failure is reported through the Notifier and
leaves the Manager in its previous state.

# Usage

	bus := memory.NewBus()
	svc := memory.NewMachineService(bus)

	mgr := foreman.New(svc, bus,
		foreman.WithRecipe(domain.DockerRecipe("FROM alpine")),
		foreman.WithNotifier(console.NewTermNotifier(os.Stdout)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	if err := mgr.OnProjectOpened(domain.Project{Name: "app", Path: "/projects/app"}).Err(ctx); err != nil {
		log.Fatal(err)
	}
	if _, err := mgr.AwaitCurrent(ctx); err != nil {
		log.Fatal(err)
	}

	exec, err := mgr.Execute(command.Configuration{
		Name: "build",
		Type: command.TypeCustom,
		Attributes: map[string]any{"command_line": "make"},
	}).Wait(ctx)
*/
package foreman
