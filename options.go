package foreman

import (
	"log/slog"
	"time"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

// Option defines a functional option for configuring the Manager.
type Option func(*Manager)

// WithLogger sets a custom structured logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithNotifier sets the user-facing notification sink.
// Defaults to a notifier that writes to the Manager's logger.
func WithNotifier(n ports.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithMachineConsole sets the console receiving machine build output.
func WithMachineConsole(c ports.MachineConsole) Option {
	return func(m *Manager) {
		m.machineConsole = c
	}
}

// WithConsoleRegistry sets the output container command consoles are added to.
func WithConsoleRegistry(r ports.ConsoleRegistry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithConsoleFactory sets how a console is built for each executed command.
func WithConsoleFactory(f ports.ConsoleFactory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithRecipe sets the recipe new machines are created from.
func WithRecipe(r domain.Recipe) Option {
	return func(m *Manager) {
		m.recipe = r
	}
}

// WithWorkspace names the workspace the Manager drives (default: "default").
func WithWorkspace(name string) Option {
	return func(m *Manager) {
		m.workspace = name
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithSessionStore persists session snapshots after every change.
func WithSessionStore(s ports.SessionStore) Option {
	return func(m *Manager) {
		m.store = s
	}
}

// WithLocker makes Run hold a lease on the workspace for its whole duration.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(m *Manager) {
		m.locker = l
		m.leaseTTL = ttl
	}
}

// WithCallTimeout bounds every remote call. Zero means no timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.callTimeout = d
	}
}
