// Package cluster runs the external cluster CLI.
//
// Runner executes one subprocess and folds every failure into an Outcome, so
// callers never see a panic or a bare exec error. Gateway maps the cluster
// verbs used by composeshift onto Runner calls.
package cluster

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
)

// Outcome is the result of one cluster command.
type Outcome struct {
	Args   []string // Arguments, secrets redacted
	Stdout string
	Err    error // nil on success; *CommandError otherwise
}

// OK reports whether the command succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Runner runs a command to completion.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) Outcome
}

// ExecRunner runs commands as local subprocesses.
type ExecRunner struct {
	logger *slog.Logger
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner creates a subprocess runner.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

// Run starts name with args, waits for it and captures stdout and stderr.
// A non-zero exit carries the trimmed stderr as the failure message.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) Outcome {
	shown := Redact(args)
	r.logger.Debug("running command", "command", name, "args", shown)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Outcome{Args: shown, Stdout: stdout.String()}
	if err == nil {
		r.logger.Debug("command finished", "command", name, "args", shown)
		return out
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		cause := ErrCommandFailed
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Killed by cancellation rather than a tool failure.
			cause = errors.Join(ErrCommandFailed, ctxErr)
			if msg == "" {
				msg = ctxErr.Error()
			}
		}
		out.Err = NewCommandError(name, shown, exitErr.ExitCode(), msg, cause)
	} else {
		out.Err = NewCommandError(name, shown, -1, err.Error(), errors.Join(ErrLaunchFailed, err))
	}
	r.logger.Debug("command failed", "command", name, "args", shown, "error", out.Err)
	return out
}

// secretFlags take the secret as their next argument or after "=".
var secretFlags = []string{"-p", "--password", "--token"}

// Redact returns a copy of args with secret flag values masked.
func Redact(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out); i++ {
		for _, flag := range secretFlags {
			if out[i] == flag && i+1 < len(out) {
				out[i+1] = "****"
				i++
				break
			}
			if strings.HasPrefix(out[i], flag+"=") {
				out[i] = flag + "=****"
				break
			}
		}
	}
	return out
}
