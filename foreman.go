package foreman

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/foreman/internal/logging"
	"github.com/aretw0/foreman/internal/tracker"
	"github.com/aretw0/foreman/pkg/command"
	"github.com/aretw0/foreman/pkg/console"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/loop"
	"github.com/aretw0/foreman/pkg/ports"
)

// DefaultWorkspace is used when no workspace name is configured.
const DefaultWorkspace = "default"

// Nothing is the value type of futures that carry no result.
type Nothing struct{}

// session is the Manager's private record of a machine.
type session struct {
	id      domain.MachineID
	phase   domain.Phase
	channel string
	output  ports.Subscription
}

// Manager is the machine orchestrator for one workspace.
// Construct it with New and drive it with Run.
type Manager struct {
	service        ports.MachineService
	transport      ports.Transport
	loop           *loop.Loop
	tracker        *tracker.Tracker
	logger         *slog.Logger
	notifier       ports.Notifier
	machineConsole ports.MachineConsole
	registry       ports.ConsoleRegistry
	factory        ports.ConsoleFactory
	recipe         domain.Recipe
	workspace      string
	hooks          domain.LifecycleHooks
	store          ports.SessionStore
	locker         ports.DistributedLocker
	leaseTTL       time.Duration
	callTimeout    time.Duration

	// ctx is set by Run before the loop starts and read only on the loop.
	ctx      context.Context
	persistQ chan storeOp

	// Written only by loop tasks; mu lets other goroutines read.
	mu        sync.RWMutex
	project   *domain.Project
	opened    uint64 // bumped on every project open and close
	current   domain.MachineID
	changed   chan struct{}
	sessions  map[domain.MachineID]*session
	destroyed map[domain.MachineID]struct{}
	commands  map[string]ports.Subscription
}

// New creates a Manager issuing remote calls to service and reading output
// channels from transport.
func New(service ports.MachineService, transport ports.Transport, opts ...Option) *Manager {
	m := &Manager{
		service:   service,
		transport: transport,
		logger:    logging.NewNop(),
		recipe:    domain.DockerRecipe(""),
		workspace: DefaultWorkspace,
		ctx:       context.Background(),
		changed:   make(chan struct{}),
		sessions:  make(map[domain.MachineID]*session),
		destroyed: make(map[domain.MachineID]struct{}),
		commands:  make(map[string]ports.Subscription),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.notifier == nil {
		m.notifier = console.NewLogNotifier(m.logger)
	}
	if m.machineConsole == nil {
		m.machineConsole = console.Discard{}
	}
	if m.registry == nil {
		m.registry = console.NewContainer(nil)
	}
	if m.factory == nil {
		m.factory = console.DiscardFactory
	}
	if m.store != nil {
		m.persistQ = make(chan storeOp, loop.DefaultQueueSize)
	}

	m.loop = loop.New(loop.WithLogger(m.logger))
	m.tracker = tracker.New(transport,
		tracker.WithLogger(m.logger),
		tracker.WithObserver(func(e domain.StatusEvent) {
			m.loop.Post(func() { m.observe(e) })
		}),
	)
	return m
}

// Run drives the event loop until ctx is done, then closes every channel the
// Manager owns. If a locker is configured the workspace lease is held for the
// duration of Run; if it cannot be acquired the Manager is stopped and every
// later operation fails with domain.ErrLoopClosed.
func (m *Manager) Run(ctx context.Context) error {
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, m.workspace, m.leaseTTL)
		if err != nil {
			m.loop.Close()
			return fmt.Errorf("failed to lease workspace %s: %w", m.workspace, err)
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				m.logger.Warn("Failed to release workspace lease", "workspace", m.workspace, "err", err)
			}
		}()
	}

	m.ctx = ctx
	var persisting sync.WaitGroup
	if m.store != nil {
		persisting.Add(1)
		go func() {
			defer persisting.Done()
			m.persistLoop()
		}()
	}

	m.logger.Info("Manager started", "workspace", m.workspace)
	err := m.loop.Run(ctx)
	m.teardown()
	if m.store != nil {
		close(m.persistQ)
		persisting.Wait()
	}
	m.logger.Info("Manager stopped", "workspace", m.workspace)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (m *Manager) teardown() {
	m.tracker.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.output != nil {
			_ = s.output.Close()
			s.output = nil
		}
	}
	for channel, sub := range m.commands {
		_ = sub.Close()
		delete(m.commands, channel)
	}
}

// submit posts task onto the loop, failing f if the loop has stopped.
func submit[T any](m *Manager, f *loop.Future[T], task func()) *loop.Future[T] {
	if !m.loop.Post(task) {
		f.Fail(domain.ErrLoopClosed)
	}
	return f
}

// call issues a remote call off the loop; then or catch runs on the loop.
func call[T any](m *Manager, fn func(context.Context) (T, error), then func(T), catch func(error)) {
	loop.Await(m.loop, m.ctx, func(ctx context.Context) (T, error) {
		if m.callTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.callTimeout)
			defer cancel()
		}
		return fn(ctx)
	}, then, catch)
}

// OnProjectOpened makes project the active project. If the machine service
// already has machines for it, the first one becomes current as listed;
// otherwise a new machine is started and bound once it is running.
func (m *Manager) OnProjectOpened(project domain.Project) *loop.Future[Nothing] {
	f := loop.NewFuture[Nothing]()
	return submit(m, f, func() {
		m.mu.Lock()
		m.project = &project
		m.opened++
		gen := m.opened
		m.mu.Unlock()
		m.logger.Info("Project opened", "project", project.Name, "path", project.Path)

		call(m, func(ctx context.Context) ([]domain.MachineDescriptor, error) {
			return m.service.ListMachines(ctx, project.Path)
		}, func(machines []domain.MachineDescriptor) {
			if !m.isOpen(gen) {
				m.logger.Info("Project closed before machines were listed", "path", project.Path)
				f.Resolve(Nothing{}, nil)
				return
			}
			if len(machines) == 0 {
				m.startMachine(true, func(_ domain.MachineID, err error) { f.Resolve(Nothing{}, err) })
				return
			}
			m.adopt(machines)
			f.Resolve(Nothing{}, nil)
		}, func(err error) {
			m.warn("list machines", "", err)
			f.Fail(err)
		})
	})
}

// adopt records sessions for listed machines and makes the first one current.
// The listing is trusted: the first machine is not checked for the running phase.
func (m *Manager) adopt(machines []domain.MachineDescriptor) {
	m.mu.Lock()
	for _, desc := range machines {
		if _, ok := m.sessions[desc.ID]; ok {
			continue
		}
		phase := desc.Status
		if !phase.Valid() {
			phase = domain.PhaseRunning
		}
		m.sessions[desc.ID] = &session{id: desc.ID, phase: phase}
		delete(m.destroyed, desc.ID)
	}
	m.mu.Unlock()

	for _, desc := range machines {
		if err := m.tracker.Track(m.ctx, desc.ID, nil); err != nil {
			m.failure("track machine", desc.ID, err)
		}
	}

	m.bind(machines[0].ID, false)
	for _, desc := range machines {
		m.persist(desc.ID)
	}
}

// OnProjectClosing is called before the active project closes. It is a no-op.
func (m *Manager) OnProjectClosing(project domain.Project) *loop.Future[Nothing] {
	f := loop.NewFuture[Nothing]()
	return submit(m, f, func() {
		m.logger.Debug("Project closing", "path", project.Path)
		f.Resolve(Nothing{}, nil)
	})
}

// OnProjectClosed clears the active project, the current-machine binding and
// the machine console. Remote machines are left running.
func (m *Manager) OnProjectClosed(project domain.Project) *loop.Future[Nothing] {
	f := loop.NewFuture[Nothing]()
	return submit(m, f, func() {
		m.mu.Lock()
		m.project = nil
		m.opened++
		ids := make([]domain.MachineID, 0, len(m.sessions))
		for id := range m.sessions {
			ids = append(ids, id)
		}
		m.mu.Unlock()

		// Stop caring about pending running notifications.
		for _, id := range ids {
			if m.tracker.Tracked(id) {
				_ = m.tracker.Track(m.ctx, id, nil)
			}
		}

		m.unbind()
		m.machineConsole.Clear()
		m.logger.Info("Project closed", "path", project.Path)
		f.Resolve(Nothing{}, nil)
	})
}

// StartMachine creates a machine from the configured recipe. When asCurrent is
// set the machine becomes current once it first reports running. The future
// resolves with the new machine's ID once the creation request succeeds.
func (m *Manager) StartMachine(asCurrent bool) *loop.Future[domain.MachineID] {
	f := loop.NewFuture[domain.MachineID]()
	return submit(m, f, func() {
		m.startMachine(asCurrent, f.Resolve)
	})
}

func (m *Manager) startMachine(asCurrent bool, done func(domain.MachineID, error)) {
	channel := domain.NewOutputChannel(domain.ChannelMachine)

	// The channel must be live before the service can write build output to it.
	sub, err := m.transport.Subscribe(m.ctx, channel, m.machineConsole.Print, func(err error) {
		m.loop.Post(func() { m.machineChannelLost(channel, err) })
	})
	if err != nil {
		m.failure("subscribe to machine output", "", err)
		done("", err)
		return
	}

	call(m, func(ctx context.Context) (domain.MachineDescriptor, error) {
		return m.service.CreateFromRecipe(ctx, m.recipe, channel)
	}, func(desc domain.MachineDescriptor) {
		m.mu.Lock()
		m.sessions[desc.ID] = &session{
			id:      desc.ID,
			phase:   domain.PhaseStarting,
			channel: channel,
			output:  sub,
		}
		m.mu.Unlock()
		m.logger.Info("Machine created", "machine_id", desc.ID, "channel", channel, "as_current", asCurrent)
		m.emitMachine(m.hooks.OnMachineCreated, domain.EventMachineCreated, desc.ID, domain.PhaseStarting, "")
		m.persist(desc.ID)

		var listener tracker.Listener
		if asCurrent {
			listener = func(id domain.MachineID) {
				m.loop.Post(func() { m.setCurrent(id, func(error) {}) })
			}
		}
		if err := m.tracker.Track(m.ctx, desc.ID, listener); err != nil {
			m.failure("track machine", desc.ID, err)
		}
		done(desc.ID, nil)
	}, func(err error) {
		// Nothing will ever be written to the channel now.
		_ = sub.Close()
		m.failure("create machine", "", err)
		done("", err)
	})
}

func (m *Manager) machineChannelLost(channel string, err error) {
	m.mu.Lock()
	for _, s := range m.sessions {
		if s.channel == channel {
			s.output = nil
		}
	}
	m.mu.Unlock()
	m.failure("stream machine output", "", err)
}

// DestroyMachine destroys the machine. On success its tracking stops, its
// session is marked stopped and, only if it was current, the binding is cleared.
func (m *Manager) DestroyMachine(id domain.MachineID) *loop.Future[Nothing] {
	f := loop.NewFuture[Nothing]()
	return submit(m, f, func() {
		call(m, func(ctx context.Context) (Nothing, error) {
			return Nothing{}, m.service.Destroy(ctx, id)
		}, func(Nothing) {
			m.tracker.Stop(id, func(id domain.MachineID) {
				m.emitMachine(m.hooks.OnMachineDestroyed, domain.EventMachineDestroyed, id, domain.PhaseStopped, "")
			})

			m.mu.Lock()
			m.destroyed[id] = struct{}{}
			if s, ok := m.sessions[id]; ok {
				s.phase = domain.PhaseStopped
				if s.output != nil {
					_ = s.output.Close()
					s.output = nil
				}
			}
			isCurrent := m.current == id
			m.mu.Unlock()

			if isCurrent {
				m.unbind()
			}
			m.logger.Info("Machine destroyed", "machine_id", id, "was_current", isCurrent)
			m.forget(id)
			f.Resolve(Nothing{}, nil)
		}, func(err error) {
			m.failure("destroy machine", id, err)
			f.Fail(err)
		})
	})
}

// CurrentMachineID returns the machine bound as current, if any.
func (m *Manager) CurrentMachineID() (domain.MachineID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.current != ""
}

// AwaitCurrent blocks until a machine is bound as current or ctx is done.
func (m *Manager) AwaitCurrent(ctx context.Context) (domain.MachineID, error) {
	for {
		m.mu.RLock()
		id, changed := m.current, m.changed
		m.mu.RUnlock()
		if id != "" {
			return id, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// SetCurrentMachineID binds the active project to id and, once the service
// accepts the binding, makes id current. Without an active project nothing
// happens and the future fails with domain.ErrNoActiveProject.
func (m *Manager) SetCurrentMachineID(id domain.MachineID) *loop.Future[Nothing] {
	f := loop.NewFuture[Nothing]()
	return submit(m, f, func() {
		m.setCurrent(id, func(err error) { f.Resolve(Nothing{}, err) })
	})
}

func (m *Manager) setCurrent(id domain.MachineID, done func(error)) {
	m.mu.RLock()
	project := m.project
	gen := m.opened
	m.mu.RUnlock()
	if project == nil {
		m.logger.Debug("No active project, binding skipped", "machine_id", id)
		done(domain.ErrNoActiveProject)
		return
	}

	call(m, func(ctx context.Context) (Nothing, error) {
		return Nothing{}, m.service.BindProject(ctx, id, project.Path)
	}, func(Nothing) {
		if m.isDestroyed(id) {
			m.notifier.Warning(fmt.Sprintf("machine %s was destroyed before it could become current", id))
			done(domain.ErrMachineDestroyed)
			return
		}
		if !m.isOpen(gen) {
			m.logger.Info("Project changed before binding completed", "machine_id", id, "path", project.Path)
			done(domain.ErrNoActiveProject)
			return
		}
		m.bind(id, true)
		done(nil)
	}, func(err error) {
		m.failure("bind machine", id, err)
		done(err)
	})
}

// bind makes id current, confirming the change through the notifier when
// announce is set. Callers are on the loop.
func (m *Manager) bind(id domain.MachineID, announce bool) {
	m.mu.Lock()
	previous := m.current
	if previous == id {
		m.mu.Unlock()
		return
	}
	m.current = id
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	if announce {
		m.notifier.Info(fmt.Sprintf("current machine changed to %s", id))
	}
	m.emitMachine(m.hooks.OnCurrentChanged, domain.EventCurrentChanged, id, "", previous)
	m.persist(previous)
	m.persist(id)
}

// unbind clears the current machine. Callers are on the loop.
func (m *Manager) unbind() {
	m.mu.Lock()
	previous := m.current
	if previous == "" {
		m.mu.Unlock()
		return
	}
	m.current = ""
	close(m.changed)
	m.changed = make(chan struct{})
	m.mu.Unlock()

	m.emitMachine(m.hooks.OnCurrentChanged, domain.EventCurrentChanged, "", "", previous)
	m.persist(previous)
}

// Execute runs the command on the current machine. A fresh process channel is
// subscribed, its console added and shown, and only then is the remote call
// made. Without a current machine no remote call is made.
func (m *Manager) Execute(cfg command.Configuration) *loop.Future[domain.Execution] {
	f := loop.NewFuture[domain.Execution]()
	return submit(m, f, func() {
		m.execute(cfg, f)
	})
}

func (m *Manager) execute(cfg command.Configuration, f *loop.Future[domain.Execution]) {
	m.mu.RLock()
	machine := m.current
	m.mu.RUnlock()
	if machine == "" {
		m.notifier.Warning(domain.ErrNoCurrentMachine.Error())
		f.Fail(domain.ErrNoCurrentMachine)
		return
	}

	line, err := cfg.CommandLine()
	if err != nil {
		m.warn("build command", machine, err)
		f.Fail(err)
		return
	}

	channel := domain.NewOutputChannel(domain.ChannelProcess)
	out := m.factory(cfg)
	sub, err := m.transport.Subscribe(m.ctx, channel, out.Print, func(err error) {
		m.loop.Post(func() { m.commandChannelLost(channel, err) })
	})
	if err != nil {
		m.failure("subscribe to command output", machine, err)
		f.Fail(err)
		return
	}

	m.mu.Lock()
	m.commands[channel] = sub
	m.mu.Unlock()

	m.registry.Add(out)
	m.registry.Show(out)

	exec := domain.Execution{CommandLine: line, Machine: machine, Channel: channel}
	started := time.Now()
	call(m, func(ctx context.Context) (Nothing, error) {
		return Nothing{}, m.service.ExecuteCommand(ctx, machine, line, channel)
	}, func(Nothing) {
		m.logger.Info("Command dispatched", "machine_id", machine, "channel", channel, "command", cfg.Name)
		m.emitCommand(exec, time.Since(started), false)
		f.Resolve(exec, nil)
	}, func(err error) {
		m.detach(channel)
		m.failure("execute command", machine, err)
		m.emitCommand(exec, time.Since(started), true)
		f.Fail(err)
	})
}

func (m *Manager) commandChannelLost(channel string, err error) {
	m.mu.Lock()
	delete(m.commands, channel)
	m.mu.Unlock()
	m.failure("stream command output", "", err)
}

// Detach closes a command output channel opened by Execute. Unknown or already
// closed channels are ignored.
func (m *Manager) Detach(channel string) *loop.Future[Nothing] {
	f := loop.NewFuture[Nothing]()
	return submit(m, f, func() {
		m.detach(channel)
		f.Resolve(Nothing{}, nil)
	})
}

func (m *Manager) detach(channel string) {
	m.mu.Lock()
	sub, ok := m.commands[channel]
	delete(m.commands, channel)
	m.mu.Unlock()
	if ok {
		if err := sub.Close(); err != nil {
			m.logger.Warn("Failed to close command channel", "channel", channel, "err", err)
		}
	}
}

// Sessions returns a snapshot of every session ordered by machine ID.
func (m *Manager) Sessions() []domain.MachineSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.MachineSession, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, m.snapshotLocked(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveProject returns the open project, if any.
func (m *Manager) ActiveProject() (domain.Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.project == nil {
		return domain.Project{}, false
	}
	return *m.project, true
}

// Workspace returns the workspace name.
func (m *Manager) Workspace() string {
	return m.workspace
}

// observe applies a status event to the session. Runs on the loop.
func (m *Manager) observe(e domain.StatusEvent) {
	m.mu.Lock()
	s, ok := m.sessions[e.MachineID]
	if !ok || !s.phase.CanTransition(e.Phase) {
		m.mu.Unlock()
		return
	}
	s.phase = e.Phase
	m.mu.Unlock()

	m.logger.Info("Machine phase changed", "machine_id", e.MachineID, "phase", e.Phase)
	switch e.Phase {
	case domain.PhaseRunning:
		m.emitMachine(m.hooks.OnMachineRunning, domain.EventMachineRunning, e.MachineID, e.Phase, "")
	case domain.PhaseError:
		msg := fmt.Sprintf("machine %s failed", e.MachineID)
		if e.Error != "" {
			msg += ": " + e.Error
		}
		m.notifier.Error(msg)
	}
	m.persist(e.MachineID)
}

// isOpen reports whether the project opened at generation gen is still the
// active one. A close, or a reopen of the same path, invalidates gen.
func (m *Manager) isOpen(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.project != nil && m.opened == gen
}

func (m *Manager) isDestroyed(id domain.MachineID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.destroyed[id]
	return ok
}

// snapshotLocked derives IsCurrent from the current slot; m.mu must be held.
func (m *Manager) snapshotLocked(id domain.MachineID) domain.MachineSession {
	s := m.sessions[id]
	return domain.MachineSession{
		ID:            s.id,
		Phase:         s.phase,
		IsCurrent:     s.id == m.current,
		OutputChannel: s.channel,
	}
}

// failure is the shared error terminus of every operation chain.
func (m *Manager) failure(op string, id domain.MachineID, err error) {
	m.notifier.Error(fmt.Sprintf("failed to %s: %v", op, err))
	m.report(op, id, err)
}

// warn is like failure for conditions surfaced as warnings.
func (m *Manager) warn(op string, id domain.MachineID, err error) {
	m.notifier.Warning(fmt.Sprintf("failed to %s: %v", op, err))
	m.report(op, id, err)
}

func (m *Manager) report(op string, id domain.MachineID, err error) {
	m.logger.Error("Operation failed", "op", op, "machine_id", id, "workspace", m.workspace, "err", err)
	if m.hooks.OnFailure != nil {
		m.hooks.OnFailure(m.ctx, &domain.FailureEvent{
			EventBase: m.eventBase(domain.EventFailure),
			Op:        op,
			Err:       err,
		})
	}
}

func (m *Manager) eventBase(t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: t, Workspace: m.workspace}
}

func (m *Manager) emitMachine(hook func(context.Context, *domain.MachineEvent), t domain.EventType, id domain.MachineID, phase domain.Phase, previous domain.MachineID) {
	if hook == nil {
		return
	}
	hook(m.ctx, &domain.MachineEvent{
		EventBase: m.eventBase(t),
		MachineID: id,
		Phase:     phase,
		Previous:  previous,
	})
}

func (m *Manager) emitCommand(exec domain.Execution, d time.Duration, isError bool) {
	if m.hooks.OnCommandExecuted == nil {
		return
	}
	m.hooks.OnCommandExecuted(m.ctx, &domain.CommandEvent{
		EventBase: m.eventBase(domain.EventCommandExecuted),
		Execution: exec,
		Duration:  d,
		IsError:   isError,
	})
}
