package fake

import (
	"sync"

	"github.com/aretw0/foreman/pkg/command"
	"github.com/aretw0/foreman/pkg/ports"
)

// Notification is one message sent to the Notifier.
type Notification struct {
	Level   string
	Message string
}

// Notifier records notifications.
type Notifier struct {
	rec *CallRecorder
	mu  sync.Mutex
	log []Notification
}

// NewNotifier creates a notifier recording into rec.
func NewNotifier(rec *CallRecorder) *Notifier {
	return &Notifier{rec: rec}
}

func (n *Notifier) Info(msg string)    { n.add("info", msg) }
func (n *Notifier) Warning(msg string) { n.add("warning", msg) }
func (n *Notifier) Error(msg string)   { n.add("error", msg) }

func (n *Notifier) add(level, msg string) {
	n.rec.record("Notify", level, msg)
	n.mu.Lock()
	n.log = append(n.log, Notification{Level: level, Message: msg})
	n.mu.Unlock()
}

// All returns every notification in order.
func (n *Notifier) All() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.log...)
}

// Level returns the messages sent at level.
func (n *Notifier) Level(level string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, entry := range n.log {
		if entry.Level == level {
			out = append(out, entry.Message)
		}
	}
	return out
}

// Console records printed lines.
type Console struct {
	title string
	mu    sync.Mutex
	lines []string
}

// NewConsole creates a console with title.
func NewConsole(title string) *Console {
	return &Console{title: title}
}

func (c *Console) Title() string { return c.title }

func (c *Console) Print(text string) {
	c.mu.Lock()
	c.lines = append(c.lines, text)
	c.mu.Unlock()
}

// Lines returns the printed lines.
func (c *Console) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// MachineConsole records machine output and clears.
type MachineConsole struct {
	rec     *CallRecorder
	mu      sync.Mutex
	lines   []string
	cleared int
}

// NewMachineConsole creates a machine console recording into rec.
func NewMachineConsole(rec *CallRecorder) *MachineConsole {
	return &MachineConsole{rec: rec}
}

func (c *MachineConsole) Print(text string) {
	c.mu.Lock()
	c.lines = append(c.lines, text)
	c.mu.Unlock()
}

func (c *MachineConsole) Clear() {
	c.rec.record("ClearConsole")
	c.mu.Lock()
	c.lines = nil
	c.cleared++
	c.mu.Unlock()
}

// Lines returns the lines printed since the last Clear.
func (c *MachineConsole) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Cleared returns how many times Clear was called.
func (c *MachineConsole) Cleared() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleared
}

// Registry records Add and Show and builds consoles for commands.
type Registry struct {
	rec      *CallRecorder
	mu       sync.Mutex
	consoles []*Console
}

// NewRegistry creates a registry recording into rec.
func NewRegistry(rec *CallRecorder) *Registry {
	return &Registry{rec: rec}
}

func (r *Registry) Add(console ports.Console) {
	r.rec.record("AddConsole", console.Title())
}

func (r *Registry) Show(console ports.Console) {
	r.rec.record("ShowConsole", console.Title())
}

// Factory is a ports.ConsoleFactory producing recording consoles.
func (r *Registry) Factory(cfg command.Configuration) ports.Console {
	c := NewConsole(cfg.Name)
	r.mu.Lock()
	r.consoles = append(r.consoles, c)
	r.mu.Unlock()
	return c
}

// Consoles returns every console built by Factory.
func (r *Registry) Consoles() []*Console {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Console(nil), r.consoles...)
}
