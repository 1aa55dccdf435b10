package console

import (
	"sync"

	"github.com/aretw0/foreman/pkg/ports"
)

var _ ports.ConsoleRegistry = (*Container)(nil)

// Container is the output container: it keeps consoles in registration order
// and remembers which one was last shown.
type Container struct {
	mu       sync.RWMutex
	consoles []ports.Console
	active   ports.Console
	onShow   func(ports.Console)
}

// NewContainer creates an empty container. onShow, if set, runs each time a
// console is surfaced.
func NewContainer(onShow func(ports.Console)) *Container {
	return &Container{onShow: onShow}
}

func (c *Container) Add(console ports.Console) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consoles = append(c.consoles, console)
}

func (c *Container) Show(console ports.Console) {
	c.mu.Lock()
	c.active = console
	onShow := c.onShow
	c.mu.Unlock()

	if onShow != nil {
		onShow(console)
	}
}

// Consoles returns the registered consoles.
func (c *Container) Consoles() []ports.Console {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ports.Console(nil), c.consoles...)
}

// Active returns the last shown console, or nil.
func (c *Container) Active() ports.Console {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}
