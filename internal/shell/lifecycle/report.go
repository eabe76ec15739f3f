package lifecycle

import (
	"errors"

	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/google/uuid"
)

// Unit is one service acted on by a run.
type Unit struct {
	Service        string // Compose service name
	Name           string // Derived resource name
	DeploymentFile string // Path of the deployment document; unused by Down
	ServiceFile    string // Path of the service document; empty when none
}

// HasService reports whether the unit publishes ports.
func (u Unit) HasService() bool {
	return u.ServiceFile != ""
}

// UnitResult is the final outcome of one unit.
type UnitResult struct {
	Service string
	Name    string
	State   rollout.State // StateDone or StateFailed
	Reached rollout.State // Last state reached before finishing
	Err     error
}

// Report aggregates the outcome of a run.
type Report struct {
	RunID     string
	Mode      rollout.Mode
	Units     []UnitResult
	Routes    string // Route listing after an Up run
	RoutesErr error
}

// NewReport starts a report with a fresh run ID.
func NewReport(mode rollout.Mode) *Report {
	return &Report{
		RunID: uuid.NewString(),
		Mode:  mode,
	}
}

// Failed returns the units that did not finish.
func (r *Report) Failed() []UnitResult {
	var failed []UnitResult
	for _, u := range r.Units {
		if u.State != rollout.StateDone {
			failed = append(failed, u)
		}
	}
	return failed
}

// Err joins every unit failure and the route listing failure.
// It returns nil when the run fully succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, u := range r.Failed() {
		errs = append(errs, u.Err)
	}
	if r.RoutesErr != nil {
		errs = append(errs, r.RoutesErr)
	}
	return errors.Join(errs...)
}
