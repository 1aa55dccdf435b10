package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/foreman"
	"github.com/aretw0/foreman/internal/config"
	"github.com/aretw0/foreman/pkg/command"
	"github.com/aretw0/foreman/pkg/console"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/loop"
	"github.com/aretw0/foreman/pkg/observability"
	"github.com/aretw0/foreman/pkg/persistence/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// LeaseTTL is the workspace lease duration; the redis locker keeps it alive while the Manager runs.
const LeaseTTL = 30 * time.Second

// closeTimeout bounds the project-closed step when a session ends.
const closeTimeout = 5 * time.Second

// NewManager wires a Manager for cfg. Machine output, command output and
// notifications are written to out. Metrics are registered on reg when it is non-nil.
func NewManager(env *Env, cfg config.Config, out io.Writer, reg prometheus.Registerer) (*foreman.Manager, error) {
	recipe, err := cfg.MachineRecipe()
	if err != nil {
		return nil, err
	}

	hooks := observability.LogHooks(env.Logger)
	if reg != nil {
		hooks = observability.Chain(observability.NewMetrics(reg).Hooks(), hooks)
	}

	opts := []foreman.Option{
		foreman.WithLogger(env.Logger),
		foreman.WithNotifier(console.NewTermNotifier(out)),
		foreman.WithMachineConsole(console.NewWriter(out, "machine", console.WithColor("#38bdf8"))),
		foreman.WithConsoleFactory(console.WriterFactory(out)),
		foreman.WithRecipe(recipe),
		foreman.WithWorkspace(cfg.Workspace),
		foreman.WithLifecycleHooks(hooks),
	}
	if env.Store != nil {
		mws := []middleware.Middleware{middleware.NewLoggingMiddleware(env.Logger)}
		if reg != nil {
			mws = append(mws, middleware.NewMetricsMiddleware(reg))
		}
		opts = append(opts, foreman.WithSessionStore(middleware.Chain(env.Store, mws...)))
	}
	if env.Locker != nil {
		opts = append(opts, foreman.WithLocker(env.Locker, LeaseTTL))
	}
	return foreman.New(env.Service, env.Transport, opts...), nil
}

// Session runs a Manager for one project in the background.
type Session struct {
	mgr     *foreman.Manager
	project domain.Project
	stop    context.CancelFunc
	done    chan struct{}
	err     error
}

// StartSession starts mgr's event loop. Call Close to stop it.
func StartSession(mgr *foreman.Manager, project domain.Project) *Session {
	ctx, stop := context.WithCancel(context.Background())
	s := &Session{
		mgr:     mgr,
		project: project,
		stop:    stop,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		s.err = mgr.Run(ctx)
	}()
	return s
}

// Done is closed once the Manager has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Open opens the project and returns once the Manager has acted on it.
func (s *Session) Open(ctx context.Context) error {
	_, err := wait(ctx, s, s.mgr.OnProjectOpened(s.project))
	if err != nil {
		return fmt.Errorf("failed to open project %s: %w", s.project.Name, err)
	}
	return nil
}

// Exec waits for a current machine, then routes cfg to it.
func (s *Session) Exec(ctx context.Context, cfg command.Configuration) (domain.Execution, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.mgr.AwaitCurrent(ctx); err != nil {
		return domain.Execution{}, fmt.Errorf("no machine became current: %w", s.cause(err))
	}
	return wait(ctx, s, s.mgr.Execute(cfg))
}

// Close closes the project, stops the Manager and returns its Run error.
func (s *Session) Close() error {
	select {
	case <-s.done:
	default:
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		_, _ = wait(ctx, s, s.mgr.OnProjectClosed(s.project))
		cancel()
		s.stop()
		<-s.done
	}
	return s.err
}

// bound derives a context that also ends when the Manager stops.
func (s *Session) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// cause prefers the Manager's Run error over the context error it produced.
func (s *Session) cause(err error) error {
	select {
	case <-s.done:
		if s.err != nil {
			return s.err
		}
		return domain.ErrLoopClosed
	default:
		return err
	}
}

func wait[T any](ctx context.Context, s *Session, f *loop.Future[T]) (T, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	v, err := f.Wait(ctx)
	if errors.Is(err, domain.ErrLoopClosed) {
		// Run is returning; its error explains why.
		<-s.done
	}
	if err != nil {
		return v, s.cause(err)
	}
	return v, nil
}
