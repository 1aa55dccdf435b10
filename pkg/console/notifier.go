package console

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/aretw0/foreman/pkg/ports"
	"github.com/muesli/termenv"
)

var (
	_ ports.Notifier = (*LogNotifier)(nil)
	_ ports.Notifier = (*TermNotifier)(nil)
)

// LogNotifier forwards notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging through logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Info(msg string)    { n.logger.Info(msg) }
func (n *LogNotifier) Warning(msg string) { n.logger.Warn(msg) }
func (n *LogNotifier) Error(msg string)   { n.logger.Error(msg) }

// TermNotifier prints coloured notifications to a terminal.
type TermNotifier struct {
	out *termenv.Output
	mu  sync.Mutex
}

// NewTermNotifier creates a notifier writing to w.
func NewTermNotifier(w io.Writer, opts ...termenv.OutputOption) *TermNotifier {
	return &TermNotifier{out: termenv.NewOutput(w, opts...)}
}

func (n *TermNotifier) Info(msg string)    { n.print("info", "#4ade80", msg) }
func (n *TermNotifier) Warning(msg string) { n.print("warn", "#facc15", msg) }
func (n *TermNotifier) Error(msg string)   { n.print("error", "#f87171", msg) }

func (n *TermNotifier) print(level, color, msg string) {
	tag := n.out.String(level).Foreground(n.out.Color(color)).Bold()
	n.mu.Lock()
	defer n.mu.Unlock()
	_, _ = fmt.Fprintf(n.out, "%s %s\n", tag, msg)
}
