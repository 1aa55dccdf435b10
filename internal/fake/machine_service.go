package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/foreman/pkg/domain"
	"github.com/aretw0/foreman/pkg/ports"
)

var _ ports.MachineService = (*MachineService)(nil)

// MachineService is a scripted ports.MachineService. Results are configured
// through the exported fields; Hold pauses a method until released so tests can
// interleave completions.
type MachineService struct {
	rec *CallRecorder

	mu    sync.Mutex
	gates map[string]chan struct{}
	seq   int

	Machines   map[string][]domain.MachineDescriptor
	ListErr    func(ctx context.Context, projectPath string) error
	CreateErr  func(ctx context.Context, recipe domain.Recipe, channel string) error
	DestroyErr func(ctx context.Context, id domain.MachineID) error
	BindErr    func(ctx context.Context, id domain.MachineID, projectPath string) error
	ExecuteErr func(ctx context.Context, id domain.MachineID, commandLine, channel string) error
}

// NewMachineService creates a fake recording into rec.
func NewMachineService(rec *CallRecorder) *MachineService {
	return &MachineService{
		rec:      rec,
		gates:    make(map[string]chan struct{}),
		Machines: make(map[string][]domain.MachineDescriptor),
	}
}

// Hold blocks subsequent calls of method until the returned release is called.
func (s *MachineService) Hold(method string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[method] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[method] == gate {
				delete(s.gates, method)
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *MachineService) wait(ctx context.Context, method string) error {
	s.mu.Lock()
	gate := s.gates[method]
	s.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *MachineService) ListMachines(ctx context.Context, projectPath string) ([]domain.MachineDescriptor, error) {
	s.rec.record("ListMachines", projectPath)
	if err := s.wait(ctx, "ListMachines"); err != nil {
		return nil, err
	}
	if s.ListErr != nil {
		if err := s.ListErr(ctx, projectPath); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.MachineDescriptor(nil), s.Machines[projectPath]...), nil
}

func (s *MachineService) CreateFromRecipe(ctx context.Context, recipe domain.Recipe, outputChannel string) (domain.MachineDescriptor, error) {
	s.rec.record("CreateFromRecipe", recipe, outputChannel)
	if err := s.wait(ctx, "CreateFromRecipe"); err != nil {
		return domain.MachineDescriptor{}, err
	}
	if s.CreateErr != nil {
		if err := s.CreateErr(ctx, recipe, outputChannel); err != nil {
			return domain.MachineDescriptor{}, err
		}
	}
	s.mu.Lock()
	s.seq++
	id := domain.MachineID(fmt.Sprintf("m%d", s.seq))
	s.mu.Unlock()
	return domain.MachineDescriptor{ID: id, Status: domain.PhaseStarting, Recipe: recipe.Type}, nil
}

func (s *MachineService) Destroy(ctx context.Context, id domain.MachineID) error {
	s.rec.record("Destroy", id)
	if err := s.wait(ctx, "Destroy"); err != nil {
		return err
	}
	if s.DestroyErr != nil {
		return s.DestroyErr(ctx, id)
	}
	return nil
}

func (s *MachineService) BindProject(ctx context.Context, id domain.MachineID, projectPath string) error {
	s.rec.record("BindProject", id, projectPath)
	if err := s.wait(ctx, "BindProject"); err != nil {
		return err
	}
	if s.BindErr != nil {
		return s.BindErr(ctx, id, projectPath)
	}
	return nil
}

func (s *MachineService) ExecuteCommand(ctx context.Context, id domain.MachineID, commandLine string, outputChannel string) error {
	s.rec.record("ExecuteCommand", id, commandLine, outputChannel)
	if err := s.wait(ctx, "ExecuteCommand"); err != nil {
		return err
	}
	if s.ExecuteErr != nil {
		return s.ExecuteErr(ctx, id, commandLine, outputChannel)
	}
	return nil
}
