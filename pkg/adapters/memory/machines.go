package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/foreman/internal/logging"
	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
	"github.com/google/uuid"
)

var _ ports.MachineService = (*MachineService)(nil)

// DefaultStartDelay is how long a simulated machine stays in the starting phase.
const DefaultStartDelay = 100 * time.Millisecond

type machineRecord struct {
	desc domain.MachineDescriptor
	seq  int
}

// MachineService is an in-process machine service simulator. It publishes
// build output and status events on a Publisher the same way a remote
// workspace agent would, but never runs anything: commands are echoed.
// Safe for concurrent use.
type MachineService struct {
	mu         sync.Mutex
	machines   map[domain.MachineID]*machineRecord
	seq        int
	publisher  ports.Publisher
	startDelay time.Duration
	runner     CommandRunner
	logger     *slog.Logger
	wg         sync.WaitGroup

	// Optional per-operation failures, evaluated before the operation runs.
	ListErr    func(ctx context.Context, projectPath string) error
	CreateErr  func(ctx context.Context, recipe domain.Recipe) error
	DestroyErr func(ctx context.Context, id domain.MachineID) error
	BindErr    func(ctx context.Context, id domain.MachineID, projectPath string) error
	ExecuteErr func(ctx context.Context, id domain.MachineID, commandLine string) error
}

// CommandRunner executes a command line, publishing its output on channel.
type CommandRunner interface {
	Run(ctx context.Context, line, channel string) (int, error)
}

// MachineOption configures the simulator.
type MachineOption func(*MachineService)

// WithStartDelay sets how long new machines stay in the starting phase.
func WithStartDelay(d time.Duration) MachineOption {
	return func(s *MachineService) {
		s.startDelay = d
	}
}

// WithCommandRunner makes ExecuteCommand run commands through r instead of echoing them.
func WithCommandRunner(r CommandRunner) MachineOption {
	return func(s *MachineService) {
		s.runner = r
	}
}

// WithMachineLogger sets the simulator logger.
func WithMachineLogger(logger *slog.Logger) MachineOption {
	return func(s *MachineService) {
		s.logger = logger
	}
}

// NewMachineService creates a simulator publishing on publisher.
func NewMachineService(publisher ports.Publisher, opts ...MachineOption) *MachineService {
	s := &MachineService{
		machines:   make(map[domain.MachineID]*machineRecord),
		publisher:  publisher,
		startDelay: DefaultStartDelay,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListMachines returns machines bound to projectPath in creation order.
func (s *MachineService) ListMachines(ctx context.Context, projectPath string) ([]domain.MachineDescriptor, error) {
	if s.ListErr != nil {
		if err := s.ListErr(ctx, projectPath); err != nil {
			return nil, &domain.RemoteCallError{Op: "list", Err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*machineRecord, 0, len(s.machines))
	for _, rec := range s.machines {
		if projectPath == "" || slices.Contains(rec.desc.Projects, projectPath) {
			records = append(records, rec)
		}
	}
	slices.SortFunc(records, func(a, b *machineRecord) int { return a.seq - b.seq })

	out := make([]domain.MachineDescriptor, len(records))
	for i, rec := range records {
		out[i] = cloneDescriptor(rec.desc)
	}
	return out, nil
}

// CreateFromRecipe registers a machine in the starting phase and boots it in
// the background: build lines go to outputChannel, then a running event is
// published on the machine's status channel.
func (s *MachineService) CreateFromRecipe(ctx context.Context, recipe domain.Recipe, outputChannel string) (domain.MachineDescriptor, error) {
	if s.CreateErr != nil {
		if err := s.CreateErr(ctx, recipe); err != nil {
			return domain.MachineDescriptor{}, &domain.RemoteCallError{Op: "create", Err: err}
		}
	}
	if recipe.Type != domain.RecipeTypeDocker {
		return domain.MachineDescriptor{}, &domain.RemoteCallError{
			Op:  "create",
			Err: fmt.Errorf("unsupported recipe type %q", recipe.Type),
		}
	}

	id := domain.MachineID("machine" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16])

	s.mu.Lock()
	s.seq++
	rec := &machineRecord{
		seq: s.seq,
		desc: domain.MachineDescriptor{
			ID:     id,
			Name:   fmt.Sprintf("dev-machine-%d", s.seq),
			Status: domain.PhaseStarting,
			Recipe: recipe.Type,
		},
	}
	s.machines[id] = rec
	desc := cloneDescriptor(rec.desc)
	s.mu.Unlock()

	s.logger.Info("Machine created", "machine_id", id, "channel", outputChannel)

	s.wg.Add(1)
	go s.boot(id, recipe, outputChannel)

	return desc, nil
}

func (s *MachineService) boot(id domain.MachineID, recipe domain.Recipe, outputChannel string) {
	defer s.wg.Done()
	ctx := context.Background()

	s.emit(ctx, outputChannel, fmt.Sprintf("[build] creating machine %s from %s", id, recipe.Filename))
	for _, line := range strings.Split(recipe.Script, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			s.emit(ctx, outputChannel, "[build] "+line)
		}
	}

	time.Sleep(s.startDelay)

	if !s.transition(id, domain.PhaseRunning) {
		return
	}
	s.emit(ctx, outputChannel, fmt.Sprintf("[build] machine %s is running", id))
	s.publishStatus(ctx, domain.StatusEvent{MachineID: id, Phase: domain.PhaseRunning})
}

// Destroy removes the machine and publishes a stopped event.
func (s *MachineService) Destroy(ctx context.Context, id domain.MachineID) error {
	if s.DestroyErr != nil {
		if err := s.DestroyErr(ctx, id); err != nil {
			return &domain.RemoteCallError{Op: "destroy", MachineID: id, Err: err}
		}
	}

	s.mu.Lock()
	_, ok := s.machines[id]
	delete(s.machines, id)
	s.mu.Unlock()

	if !ok {
		return &domain.RemoteCallError{Op: "destroy", MachineID: id, Err: domain.ErrMachineNotFound}
	}

	s.logger.Info("Machine destroyed", "machine_id", id)
	s.publishStatus(ctx, domain.StatusEvent{MachineID: id, Phase: domain.PhaseStopped})
	return nil
}

// BindProject adds projectPath to the machine's bound projects.
func (s *MachineService) BindProject(ctx context.Context, id domain.MachineID, projectPath string) error {
	if s.BindErr != nil {
		if err := s.BindErr(ctx, id, projectPath); err != nil {
			return &domain.RemoteCallError{Op: "bind", MachineID: id, Err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.machines[id]
	if !ok {
		return &domain.RemoteCallError{Op: "bind", MachineID: id, Err: domain.ErrMachineNotFound}
	}
	if !slices.Contains(rec.desc.Projects, projectPath) {
		rec.desc.Projects = append(rec.desc.Projects, projectPath)
	}
	return nil
}

// ExecuteCommand echoes commandLine on outputChannel followed by an exit line,
// or runs it through the configured CommandRunner. The machine must be running.
func (s *MachineService) ExecuteCommand(ctx context.Context, id domain.MachineID, commandLine string, outputChannel string) error {
	if s.ExecuteErr != nil {
		if err := s.ExecuteErr(ctx, id, commandLine); err != nil {
			return &domain.RemoteCallError{Op: "execute", MachineID: id, Err: err}
		}
	}

	s.mu.Lock()
	rec, ok := s.machines[id]
	var phase domain.Phase
	if ok {
		phase = rec.desc.Status
	}
	s.mu.Unlock()

	if !ok {
		return &domain.RemoteCallError{Op: "execute", MachineID: id, Err: domain.ErrMachineNotFound}
	}
	if phase != domain.PhaseRunning {
		return &domain.RemoteCallError{Op: "execute", MachineID: id, Err: fmt.Errorf("machine is %s", phase)}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		bg := context.Background()
		if s.runner != nil {
			if _, err := s.runner.Run(bg, commandLine, outputChannel); err != nil {
				s.logger.Warn("Command failed", "machine_id", id, "channel", outputChannel, "err", err)
			}
			return
		}
		s.emit(bg, outputChannel, "$ "+commandLine)
		s.emit(bg, outputChannel, "[process exited with code 0]")
	}()
	return nil
}

// Crash moves a machine to the error phase and publishes the event with reason.
func (s *MachineService) Crash(ctx context.Context, id domain.MachineID, reason string) error {
	if !s.transition(id, domain.PhaseError) {
		return fmt.Errorf("failed to crash machine %s: %w", id, domain.ErrMachineNotFound)
	}
	s.publishStatus(ctx, domain.StatusEvent{MachineID: id, Phase: domain.PhaseError, Error: reason})
	return nil
}

// Machine returns a copy of the machine's descriptor.
func (s *MachineService) Machine(id domain.MachineID) (domain.MachineDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.machines[id]
	if !ok {
		return domain.MachineDescriptor{}, false
	}
	return cloneDescriptor(rec.desc), true
}

// Wait blocks until background boots and command echoes have finished.
func (s *MachineService) Wait() {
	s.wg.Wait()
}

// transition applies a phase change if the machine exists and the move is allowed.
func (s *MachineService) transition(id domain.MachineID, to domain.Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.machines[id]
	if !ok || !rec.desc.Status.CanTransition(to) {
		return false
	}
	rec.desc.Status = to
	return true
}

func (s *MachineService) publishStatus(ctx context.Context, event domain.StatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode status event", "machine_id", event.MachineID, "err", err)
		return
	}
	s.emit(ctx, domain.StatusChannel(event.MachineID), string(payload))
}

func (s *MachineService) emit(ctx context.Context, channel, msg string) {
	if err := s.publisher.Publish(ctx, channel, msg); err != nil {
		s.logger.Warn("Failed to publish", "channel", channel, "err", err)
	}
}

func cloneDescriptor(d domain.MachineDescriptor) domain.MachineDescriptor {
	d.Projects = slices.Clone(d.Projects)
	return d
}
