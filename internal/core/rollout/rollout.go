// Package rollout plans the cluster steps of a run.
//
// It holds the per-service state machine that the lifecycle orchestrator
// drives: which commands a service needs, in which order, and which state
// each successful command reaches. All functions are pure.
package rollout

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// =============================================================================
// Modes
// =============================================================================

// Mode selects what a run does.
type Mode string

const (
	// ModeGenerate translates and writes documents only.
	ModeGenerate Mode = "generate"
	// ModeUp writes documents and creates the resources on the cluster.
	ModeUp Mode = "up"
	// ModeDown deletes the resources of one service.
	ModeDown Mode = "down"
	// ModeDownAll deletes the resources of every service.
	ModeDownAll Mode = "down-all"
)

// TouchesCluster reports whether the mode invokes the cluster tool.
func (m Mode) TouchesCluster() bool {
	return m != ModeGenerate
}

// =============================================================================
// States
// =============================================================================

// State is the progress of one service unit.
type State string

const (
	StateIdle              State = "idle"
	StateLoginVerified     State = "login_verified"
	StateProjectSelected   State = "project_selected"
	StateDeploymentCreated State = "deployment_created"
	StateServiceCreated    State = "service_created"
	StateRouteExposed      State = "route_exposed"
	StateDeleted           State = "deleted"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// validTransitions defines the allowed state transitions.
var validTransitions = map[State][]State{
	StateIdle:              {StateLoginVerified, StateFailed},
	StateLoginVerified:     {StateProjectSelected, StateFailed},
	StateProjectSelected:   {StateDeploymentCreated, StateDeleted, StateFailed},
	StateDeploymentCreated: {StateServiceCreated, StateDone, StateFailed},
	StateServiceCreated:    {StateRouteExposed, StateFailed},
	StateRouteExposed:      {StateDone, StateFailed},
	StateDeleted:           {StateDone, StateFailed},
	StateDone:              {}, // Terminal state
	StateFailed:            {}, // Terminal state
}

// ValidateTransition checks if a state transition is valid.
func ValidateTransition(from, to State) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, from)
	}

	for _, s := range allowed {
		if s == to {
			return nil
		}
	}

	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// =============================================================================
// Steps
// =============================================================================

// Action is a single cluster command issued for a unit.
type Action string

const (
	ActionSelectProject    Action = "select_project"
	ActionCreateDeployment Action = "create_deployment"
	ActionCreateService    Action = "create_service"
	ActionExposeRoute      Action = "expose_route"
	ActionDelete           Action = "delete"
)

// Step pairs an action with the state its success reaches.
type Step struct {
	Action  Action
	Reaches State
}

// PlanCreate returns the steps that create one service's resources.
//
// Create path:
//   - project → deployment → done, when nothing is published
//   - project → deployment → service → route → done, otherwise
func PlanCreate(hasService bool) []Step {
	steps := []Step{
		{Action: ActionSelectProject, Reaches: StateProjectSelected},
		{Action: ActionCreateDeployment, Reaches: StateDeploymentCreated},
	}
	if hasService {
		steps = append(steps,
			Step{Action: ActionCreateService, Reaches: StateServiceCreated},
			Step{Action: ActionExposeRoute, Reaches: StateRouteExposed},
		)
	}
	return steps
}

// PlanDelete returns the steps that delete one service's resources.
func PlanDelete() []Step {
	return []Step{
		{Action: ActionSelectProject, Reaches: StateProjectSelected},
		{Action: ActionDelete, Reaches: StateDeleted},
	}
}

// =============================================================================
// Tracker
// =============================================================================

// Tracker follows one unit through the state machine.
// A Tracker is owned by a single goroutine.
type Tracker struct {
	state State
}

// NewTracker returns a tracker starting at state.
func NewTracker(state State) *Tracker {
	return &Tracker{state: state}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Advance moves to the next state if the transition is valid.
func (t *Tracker) Advance(to State) error {
	if err := ValidateTransition(t.state, to); err != nil {
		return err
	}
	t.state = to
	return nil
}

// Fail moves to StateFailed from any non-terminal state and returns the
// state the unit had reached.
func (t *Tracker) Fail() State {
	reached := t.state
	if !t.state.IsTerminal() {
		t.state = StateFailed
	}
	return reached
}
