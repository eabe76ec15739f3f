// Package lifecycle drives service units through their cluster steps.
//
// A run verifies the cluster session once, then processes every unit in its
// own goroutine. A failing unit stops only itself; the run waits for every
// unit before listing routes and returning the aggregated report.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/artpar/composeshift/internal/core/manifest"
	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/artpar/composeshift/internal/shell/cluster"
	"github.com/artpar/composeshift/internal/shell/progress"
	"golang.org/x/sync/errgroup"
)

// Prompter asks the operator for decisions the run cannot make alone.
type Prompter interface {
	// SelectOne returns one of options.
	SelectOne(ctx context.Context, label string, options []string) (string, error)
	// Credentials asks for a login; server is the configured API server, possibly empty.
	Credentials(ctx context.Context, server string) (cluster.Credentials, error)
}

// Options configure an orchestrator.
type Options struct {
	Project string // Target project, selected before every unit's operations
	Server  string // API server passed to login
}

// DownOptions select what Down deletes.
type DownOptions struct {
	All     bool   // Delete every unit
	Service string // Compose service to delete when All is false; prompted when empty
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs create and delete plans against the cluster.
type Orchestrator struct {
	gateway  *cluster.Gateway
	prompter Prompter
	reporter progress.Reporter
	logger   *slog.Logger
	opts     Options

	sessionVerified bool
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(gateway *cluster.Gateway, prompter Prompter, reporter progress.Reporter, logger *slog.Logger, opts Options) *Orchestrator {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		gateway:  gateway,
		prompter: prompter,
		reporter: reporter,
		logger:   logger,
		opts:     opts,
	}
}

// =============================================================================
// Session
// =============================================================================

// EnsureSession verifies the cluster session, logging in when needed.
// It talks to the cluster at most once per orchestrator after success.
func (o *Orchestrator) EnsureSession(ctx context.Context) error {
	if o.sessionVerified {
		return nil
	}

	out := o.gateway.Status(ctx)
	if out.OK() {
		o.logger.Debug("cluster session active", "user", strings.TrimSpace(out.Stdout))
		o.sessionVerified = true
		return nil
	}
	// Only a tool that ran and refused counts as a missing session.
	if errors.Is(out.Err, cluster.ErrLaunchFailed) || ctx.Err() != nil {
		return fmt.Errorf("check session with %s: %w", o.gateway.Binary(), out.Err)
	}

	if o.prompter == nil {
		return fmt.Errorf("%w: no active session and no prompter", ErrAuthentication)
	}

	o.logger.Info("no active cluster session, logging in", "server", o.opts.Server)
	creds, err := o.prompter.Credentials(ctx, o.opts.Server)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if creds.Server == "" {
		creds.Server = o.opts.Server
	}

	if out := o.gateway.Login(ctx, creds); !out.OK() {
		return fmt.Errorf("%w: %w", ErrAuthentication, out.Err)
	}

	o.logger.Info("logged in", "user", creds.Username, "server", creds.Server)
	o.sessionVerified = true
	return nil
}

// =============================================================================
// Up
// =============================================================================

// Up creates the resources of every unit.
//
// The returned error is reserved for failures that stop the run before any
// unit starts (missing project, authentication). Unit failures are recorded
// in the report; see Report.Err.
func (o *Orchestrator) Up(ctx context.Context, units []Unit) (*Report, error) {
	if err := o.preflight(units); err != nil {
		return nil, err
	}
	if err := o.EnsureSession(ctx); err != nil {
		return nil, err
	}

	report := NewReport(rollout.ModeUp)
	o.logger.Info("creating resources", "run_id", report.RunID, "project", o.opts.Project, "units", len(units))

	report.Units = o.drain(ctx, units, func(u Unit) []rollout.Step {
		return rollout.PlanCreate(u.HasService())
	})

	out := o.gateway.Routes(ctx)
	if out.OK() {
		report.Routes = out.Stdout
	} else {
		o.logger.Warn("listing routes failed", "run_id", report.RunID, "error", out.Err)
		report.RoutesErr = fmt.Errorf("list routes: %w", out.Err)
	}

	o.reporter.Stop()
	o.logFinished(report)
	return report, nil
}

// =============================================================================
// Down
// =============================================================================

// Down deletes the resources of every unit, or of a single selected unit.
// Deletion matches resources by label on the cluster; local files are not read.
func (o *Orchestrator) Down(ctx context.Context, units []Unit, opts DownOptions) (*Report, error) {
	mode := rollout.ModeDownAll
	if !opts.All {
		mode = rollout.ModeDown
		selected, err := o.selectUnit(ctx, units, opts.Service)
		if err != nil {
			return nil, err
		}
		units = []Unit{selected}
	}

	if err := o.preflight(units); err != nil {
		return nil, err
	}
	if err := o.EnsureSession(ctx); err != nil {
		return nil, err
	}

	report := NewReport(mode)
	o.logger.Info("deleting resources", "run_id", report.RunID, "project", o.opts.Project, "units", len(units))

	report.Units = o.drain(ctx, units, func(Unit) []rollout.Step {
		return rollout.PlanDelete()
	})

	o.reporter.Stop()
	o.logFinished(report)
	return report, nil
}

func (o *Orchestrator) selectUnit(ctx context.Context, units []Unit, service string) (Unit, error) {
	if service == "" {
		if o.prompter == nil {
			return Unit{}, fmt.Errorf("%w: no service given", ErrUnknownService)
		}
		names := make([]string, len(units))
		for i, u := range units {
			names[i] = u.Service
		}
		chosen, err := o.prompter.SelectOne(ctx, "Service to delete", names)
		if err != nil {
			return Unit{}, err
		}
		service = chosen
	}

	for _, u := range units {
		if u.Service == service {
			return u, nil
		}
	}
	return Unit{}, fmt.Errorf("%w: %q", ErrUnknownService, service)
}

// =============================================================================
// Unit Execution
// =============================================================================

func (o *Orchestrator) preflight(units []Unit) error {
	if strings.TrimSpace(o.opts.Project) == "" {
		return ErrMissingProject
	}
	if len(units) == 0 {
		return ErrNoUnits
	}
	return nil
}

// drain runs every unit concurrently and waits for all of them.
// Results keep the order of units.
func (o *Orchestrator) drain(ctx context.Context, units []Unit, plan func(Unit) []rollout.Step) []UnitResult {
	results := make([]UnitResult, len(units))

	var g errgroup.Group
	for i, u := range units {
		g.Go(func() error {
			results[i] = o.runUnit(ctx, u, plan(u))
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *Orchestrator) runUnit(ctx context.Context, u Unit, steps []rollout.Step) UnitResult {
	logger := o.logger.With("service", u.Service, "name", u.Name)
	tracker := rollout.NewTracker(rollout.StateLoginVerified)
	o.reporter.Start(u.Name)

	fail := func(action rollout.Action, err error) UnitResult {
		reached := tracker.Fail()
		unitErr := &UnitError{Service: u.Service, Name: u.Name, Action: action, Err: err}
		logger.Error("unit failed", "step", action, "reached", reached, "error", err)
		o.reporter.Done(u.Name, err)
		return UnitResult{
			Service: u.Service,
			Name:    u.Name,
			State:   rollout.StateFailed,
			Reached: reached,
			Err:     unitErr,
		}
	}

	for _, step := range steps {
		out := o.apply(ctx, u, step.Action)
		if !out.OK() {
			return fail(step.Action, out.Err)
		}
		if err := tracker.Advance(step.Reaches); err != nil {
			return fail(step.Action, err)
		}
		logger.Debug("step completed", "step", step.Action, "state", step.Reaches)
		o.reporter.Step(u.Name, step.Reaches)
	}

	reached := tracker.State()
	if err := tracker.Advance(rollout.StateDone); err != nil {
		return fail("", err)
	}
	o.reporter.Done(u.Name, nil)
	logger.Info("unit completed", "reached", reached)

	return UnitResult{
		Service: u.Service,
		Name:    u.Name,
		State:   rollout.StateDone,
		Reached: reached,
	}
}

func (o *Orchestrator) apply(ctx context.Context, u Unit, action rollout.Action) cluster.Outcome {
	switch action {
	case rollout.ActionSelectProject:
		return o.gateway.Project(ctx, o.opts.Project)
	case rollout.ActionCreateDeployment:
		return o.gateway.Create(ctx, u.DeploymentFile)
	case rollout.ActionCreateService:
		return o.gateway.Create(ctx, u.ServiceFile)
	case rollout.ActionExposeRoute:
		return o.gateway.Expose(ctx, manifest.ServiceName(u.Name), manifest.RouteName(u.Name))
	case rollout.ActionDelete:
		return o.gateway.DeleteBySelector(ctx, manifest.Selector(u.Name))
	default:
		return cluster.Outcome{Err: fmt.Errorf("unsupported action %q", action)}
	}
}

func (o *Orchestrator) logFinished(report *Report) {
	failed := report.Failed()
	if len(failed) == 0 {
		o.logger.Info("run completed", "run_id", report.RunID, "mode", report.Mode, "units", len(report.Units))
		return
	}
	o.logger.Warn("run completed with failures",
		"run_id", report.RunID,
		"mode", report.Mode,
		"units", len(report.Units),
		"failed", len(failed),
	)
}
