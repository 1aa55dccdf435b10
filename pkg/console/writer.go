package console

import (
	"io"
	"strings"
	"sync"

	"github.com/aretw0/foreman/pkg/command"
	"github.com/aretw0/foreman/pkg/ports"
	"github.com/muesli/termenv"
)

var (
	_ ports.Console        = (*Writer)(nil)
	_ ports.MachineConsole = (*Writer)(nil)
)

// Writer prints each line to an io.Writer, prefixed with its coloured title.
// Safe for concurrent use.
type Writer struct {
	title  string
	color  string
	out    *termenv.Output
	mu     sync.Mutex
	prefix string
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithProfile forces a colour profile (e.g. termenv.Ascii for plain output).
func WithProfile(p termenv.Profile) WriterOption {
	return func(c *Writer) {
		c.out = termenv.NewOutput(c.out.Writer(), termenv.WithProfile(p))
	}
}

// WithColor sets the title colour as a hex string.
func WithColor(hex string) WriterOption {
	return func(c *Writer) {
		c.color = hex
	}
}

// NewWriter creates a console named title writing to w.
func NewWriter(w io.Writer, title string, opts ...WriterOption) *Writer {
	c := &Writer{
		title: title,
		color: "#22d3ee",
		out:   termenv.NewOutput(w),
	}
	for _, opt := range opts {
		opt(c)
	}
	if title != "" {
		c.prefix = c.out.String("["+title+"]").Foreground(c.out.Color(c.color)).String() + " "
	}
	return c
}

func (c *Writer) Title() string { return c.title }

// Print writes text, one prefixed line per line of input.
func (c *Writer) Print(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		_, _ = io.WriteString(c.out, c.prefix+line+"\n")
	}
}

// Clear clears the terminal screen. It is a no-op when the output is not a TTY
// colour profile.
func (c *Writer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out.Profile == termenv.Ascii {
		return
	}
	c.out.ClearScreen()
}

// WriterFactory returns a ports.ConsoleFactory building Writers titled after
// the command name.
func WriterFactory(w io.Writer, opts ...WriterOption) ports.ConsoleFactory {
	return func(cfg command.Configuration) ports.Console {
		return NewWriter(w, cfg.Name, opts...)
	}
}

// Discard is a console that drops everything.
type Discard struct {
	Name string
}

func (d Discard) Title() string { return d.Name }
func (Discard) Print(string)    {}
func (Discard) Clear()          {}

// DiscardFactory builds Discard consoles.
func DiscardFactory(cfg command.Configuration) ports.Console {
	return Discard{Name: cfg.Name}
}
