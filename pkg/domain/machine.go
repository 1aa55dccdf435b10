package domain

// MachineID is the opaque identifier issued by the machine service at creation time.
type MachineID string

func (id MachineID) String() string { return string(id) }

// Phase describes the lifecycle state of a machine.
type Phase string

const (
	PhaseStarting Phase = "starting"
	PhaseRunning  Phase = "running"
	PhaseError    Phase = "error"
	PhaseStopped  Phase = "stopped"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseStarting, PhaseRunning, PhaseError, PhaseStopped:
		return true
	}
	return false
}

// CanTransition reports whether a machine in phase p may move to phase to.
// Transitions only move forward; stopped is terminal.
func (p Phase) CanTransition(to Phase) bool {
	switch p {
	case PhaseStarting:
		return to == PhaseRunning || to == PhaseError || to == PhaseStopped
	case PhaseRunning:
		return to == PhaseError || to == PhaseStopped
	case PhaseError:
		return to == PhaseStopped
	default:
		return false
	}
}

// MachineDescriptor is a machine as reported by the machine service.
type MachineDescriptor struct {
	ID       MachineID `json:"id" yaml:"id"`
	Name     string    `json:"name,omitempty" yaml:"name,omitempty"`
	Status   Phase     `json:"status,omitempty" yaml:"status,omitempty"`
	Recipe   string    `json:"recipe,omitempty" yaml:"recipe,omitempty"`
	Projects []string  `json:"projects,omitempty" yaml:"projects,omitempty"`
}

// MachineSession is the Manager's record of one machine in its workspace.
// IsCurrent is computed from the Manager's single current-machine slot when a
// snapshot is taken.
type MachineSession struct {
	ID            MachineID `json:"id"`
	Phase         Phase     `json:"phase"`
	IsCurrent     bool      `json:"is_current"`
	OutputChannel string    `json:"output_channel,omitempty"`
}

// StatusEvent is the payload carried on a machine status channel.
type StatusEvent struct {
	MachineID MachineID `json:"machine_id"`
	Phase     Phase     `json:"phase"`
	Error     string    `json:"error,omitempty"`
}

// Project is the project currently opened in the workspace.
type Project struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Execution describes a command routed to a machine. It has no identity beyond
// its output channel.
type Execution struct {
	CommandLine string    `json:"command_line"`
	Machine     MachineID `json:"machine_id"`
	Channel     string    `json:"output_channel"`
}
