// Package loop provides the single-threaded cooperative scheduler the Manager
// runs on. Tasks posted to a Loop execute one at a time on the goroutine that
// called Run; blocking remote calls are issued through Await, which re-enters
// the loop with the result.
package loop

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/foreman/internal/logging"
)

// DefaultQueueSize is the number of tasks buffered before Post blocks.
const DefaultQueueSize = 256

// Loop runs posted tasks serially.
type Loop struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// Option configures the Loop.
type Option func(*Loop)

// WithLogger configures a logger for recovered task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithQueueSize sets the task buffer size.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.tasks = make(chan func(), n)
		}
	}
}

// New creates a Loop. It does nothing until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		tasks:  make(chan func(), DefaultQueueSize),
		done:   make(chan struct{}),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes tasks until ctx is done. Tasks still queued when ctx ends are
// dropped; their futures are never resolved by the loop, so callers should
// always wait with a context.
func (l *Loop) Run(ctx context.Context) error {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case task := <-l.tasks:
			l.exec(task)
		}
	}
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Loop task panicked", "panic", r)
		}
	}()
	task()
}

// Close stops the loop without running it. Later Posts return false; a Run
// already in progress keeps going until its context ends.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

// Done is closed once Run has returned or Close was called.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn for execution on the loop. It returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Await runs call on its own goroutine and posts the continuation back onto l.
// Exactly one of then or catch runs, always on the loop. If the loop stopped
// before the result arrived, catch is not called and the result is dropped.
func Await[T any](l *Loop, ctx context.Context, call func(context.Context) (T, error), then func(T), catch func(error)) {
	go func() {
		v, err := call(ctx)
		l.Post(func() {
			if err != nil {
				catch(err)
				return
			}
			then(v)
		})
	}()
}
