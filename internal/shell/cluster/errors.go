package cluster

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrLaunchFailed is returned when the cluster tool cannot be started.
	ErrLaunchFailed = errors.New("cluster command could not start")

	// ErrCommandFailed is returned when the cluster tool exits non-zero.
	ErrCommandFailed = errors.New("cluster command failed")
)

// CommandError wraps a failed cluster command with its diagnostic.
type CommandError struct {
	Command  string   // Binary that was run
	Args     []string // Arguments, secrets redacted
	ExitCode int      // -1 when the process never ran
	Message  string   // Tool diagnostic or launch error
	Err      error
}

func (e *CommandError) Error() string {
	cmd := strings.TrimSpace(e.Command + " " + strings.Join(e.Args, " "))
	if e.Message == "" {
		return fmt.Sprintf("%s: exit status %d", cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s: %s", cmd, e.Message)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, args []string, exitCode int, message string, err error) *CommandError {
	return &CommandError{
		Command:  command,
		Args:     args,
		ExitCode: exitCode,
		Message:  message,
		Err:      err,
	}
}
