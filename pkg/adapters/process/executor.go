// Package process runs machine commands as local processes. It backs the
// development machine service when commands should really execute.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"time"

	"github.com/aretw0/foreman/internal/logging"
	"github.com/aretw0/foreman/pkg/ports"
)

// DefaultShell interprets command lines.
const DefaultShell = "/bin/sh"

const waitDelay = 500 * time.Millisecond

// Executor runs command lines through a shell and publishes each output line.
type Executor struct {
	publisher ports.Publisher
	shell     string
	baseDir   string
	env       []string
	logger    *slog.Logger
}

// Option configures the Executor.
type Option func(*Executor)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(e *Executor) {
		e.baseDir = dir
	}
}

// WithEnvironment adds variables to the inherited process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(e *Executor) {
		keys := make([]string, 0, len(vars))
		for k := range vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			e.env = append(e.env, k+"="+vars[k])
		}
	}
}

// WithShell replaces the shell used to interpret command lines.
func WithShell(path string) Option {
	return func(e *Executor) {
		e.shell = path
	}
}

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an Executor publishing output on publisher.
func NewExecutor(publisher ports.Publisher, opts ...Option) *Executor {
	e := &Executor{
		publisher: publisher,
		shell:     DefaultShell,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes line and blocks until it exits. The command line, every line of
// combined stdout and stderr, and a final exit line are published on channel
// in that order. A non-zero exit is not an error; the exit code is returned.
func (e *Executor) Run(ctx context.Context, line, channel string) (int, error) {
	cmd := exec.CommandContext(ctx, e.shell, "-c", line)
	cmd.Dir = e.baseDir
	cmd.Env = append(cmd.Environ(), e.env...)
	// Children that outlive the shell must not hold the output pipe open forever.
	cmd.WaitDelay = waitDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	e.publish(channel, "$ "+line)
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		e.publish(channel, fmt.Sprintf("[process failed to start: %v]", err))
		return -1, fmt.Errorf("failed to start process: %w", err)
	}

	streamed := make(chan struct{})
	go func() {
		defer close(streamed)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			e.publish(channel, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			e.logger.Warn("Process output truncated", "channel", channel, "err", err)
			_, _ = io.Copy(io.Discard, pr)
		}
	}()

	err := cmd.Wait()
	_ = pw.Close()
	<-streamed

	if ctxErr := ctx.Err(); ctxErr != nil {
		e.publish(channel, fmt.Sprintf("[process killed: %v]", ctxErr))
		return -1, ctxErr
	}

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return -1, fmt.Errorf("failed to wait for process: %w", err)
		}
		code = exitErr.ExitCode()
	}
	e.publish(channel, fmt.Sprintf("[process exited with code %d]", code))
	e.logger.Debug("Process exited", "channel", channel, "code", code)
	return code, nil
}

func (e *Executor) publish(channel, msg string) {
	if err := e.publisher.Publish(context.Background(), channel, msg); err != nil {
		e.logger.Warn("Failed to publish process output", "channel", channel, "err", err)
	}
}
