package lifecycle

import (
	"errors"
	"fmt"

	"github.com/artpar/composeshift/internal/core/rollout"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrAuthentication is returned when no cluster session can be established.
	ErrAuthentication = errors.New("cluster authentication failed")

	// ErrUnknownService is returned when a requested service is not in the manifest.
	ErrUnknownService = errors.New("unknown service")

	// ErrMissingProject is returned when a cluster run has no target project.
	ErrMissingProject = errors.New("target project is required")

	// ErrNoUnits is returned when a cluster run has nothing to act on.
	ErrNoUnits = errors.New("no services to process")
)

// UnitError records the step at which a unit failed.
type UnitError struct {
	Service string         // Compose service name
	Name    string         // Derived resource name
	Action  rollout.Action // Step that failed
	Err     error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Action, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}
