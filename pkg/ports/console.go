package ports

import "github.com/aretw0/foreman/pkg/command"

// Console displays the output of one command.
type Console interface {
	Title() string
	Print(text string)
}

// MachineConsole displays machine build and lifecycle output.
type MachineConsole interface {
	Print(text string)
	Clear()
}

// ConsoleRegistry is the output container that accepts consoles for display.
type ConsoleRegistry interface {
	// Add registers the console with the container.
	Add(console Console)

	// Show surfaces the console to the user.
	Show(console Console)
}

// ConsoleFactory creates the console for a command configuration.
type ConsoleFactory func(cfg command.Configuration) Console
