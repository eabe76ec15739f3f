package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/composeshift/internal/core/compose"
	"github.com/artpar/composeshift/internal/core/manifest"
	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/artpar/composeshift/internal/shell/cluster"
	"github.com/artpar/composeshift/internal/shell/discovery"
	"github.com/artpar/composeshift/internal/shell/journal"
	"github.com/artpar/composeshift/internal/shell/lifecycle"
	"github.com/artpar/composeshift/internal/shell/manifests"
	"github.com/artpar/composeshift/internal/shell/progress"
	"github.com/artpar/composeshift/internal/shell/prompt"
	"golang.org/x/term"
)

// ErrNoDescriptor is returned when no compose file is given or found.
var ErrNoDescriptor = errors.New("no compose file given and none found in the current directory")

// deps are the collaborators a command line runs with.
// Nil fields fall back to the real terminal and subprocess implementations.
type deps struct {
	stdout   io.Writer
	stderr   io.Writer
	runner   cluster.Runner
	prompter lifecycle.Prompter
	reporter progress.Reporter
	environ  func() []string
}

func defaultDeps() deps {
	return deps{
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		environ: os.Environ,
	}
}

// app carries the state of one invocation.
type app struct {
	deps
	configPath string
	cfg        *Config
	logger     *slog.Logger
}

func newApp(d deps) *app {
	if d.stdout == nil {
		d.stdout = os.Stdout
	}
	if d.stderr == nil {
		d.stderr = os.Stderr
	}
	if d.environ == nil {
		d.environ = os.Environ
	}
	return &app{deps: d, logger: slog.Default()}
}

// setup loads configuration and the logger. Called before every command.
func (a *app) setup(cfg *Config) {
	a.cfg = cfg
	a.logger = SetupLogger(cfg, a.stderr)
}

// =============================================================================
// Collaborators
// =============================================================================

func (a *app) operator() lifecycle.Prompter {
	if a.prompter == nil {
		a.prompter = prompt.NewTerminal(a.stderr)
	}
	return a.prompter
}

func (a *app) progressReporter() progress.Reporter {
	if a.reporter != nil {
		return a.reporter
	}
	if f, ok := a.stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return progress.NewSpinner(a.stderr)
	}
	return progress.Nop{}
}

func (a *app) orchestrator() *lifecycle.Orchestrator {
	runner := a.runner
	if runner == nil {
		runner = cluster.NewExecRunner(a.logger)
	}
	gateway := cluster.NewGateway(runner, a.cfg.Cluster.Binary, a.logger)
	return lifecycle.NewOrchestrator(gateway, a.operator(), a.progressReporter(), a.logger, lifecycle.Options{
		Project: a.cfg.Project,
		Server:  a.cfg.Cluster.Server,
	})
}

// openJournal returns nil when the journal is disabled.
func (a *app) openJournal() (*journal.Store, error) {
	path := a.cfg.Journal.Path
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, journal.NewStoreError("Open", "", err.Error(), journal.ErrConnectionFailed)
		}
	}
	return journal.Open(path)
}

// =============================================================================
// Pipeline
// =============================================================================

// loadDescriptor reads and parses the compose descriptor. Without an
// argument the current directory is searched; several candidates are
// offered to the operator.
func (a *app) loadDescriptor(ctx context.Context, args []string) (string, *compose.ParsedSpec, error) {
	var path string
	if len(args) > 0 {
		path = args[0]
	} else {
		found, err := discovery.Find(".")
		if err != nil {
			return "", nil, err
		}
		switch len(found) {
		case 0:
			return "", nil, ErrNoDescriptor
		case 1:
			path = found[0]
		default:
			if path, err = a.operator().SelectOne(ctx, "Compose file", found); err != nil {
				return "", nil, err
			}
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read compose file: %w", err)
	}

	env := envMap(a.environ())
	for _, name := range compose.MissingVariables(string(data), env) {
		a.logger.Warn("variable is not set, using empty value", "variable", name)
	}

	spec, err := compose.ParseComposeSpec(string(data), compose.ParseOptions{Environment: env})
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}

	a.logger.Debug("compose file loaded", "path", path, "services", spec.Names())
	return path, spec, nil
}

// generate translates every service and writes its documents.
func (a *app) generate(spec *compose.ParsedSpec) ([]manifest.Result, []manifests.Files, error) {
	templates, err := manifests.LoadTemplates(a.cfg.TemplatesDir)
	if err != nil {
		return nil, nil, err
	}

	results, err := manifest.TranslateAll(spec, manifest.NamingContext{Prefix: a.cfg.Prefix}, templates)
	if err != nil {
		return nil, nil, err
	}

	writer := manifests.NewWriter(a.cfg.OutputDir, a.logger)
	files, err := writer.WriteAll(results)
	if err != nil {
		return nil, nil, err
	}
	a.logger.Info("manifests written", "dir", writer.Dir(), "services", len(results))
	return results, files, nil
}

// finish records the run and turns unit failures into the command error.
// A journal failure only surfaces when the run itself succeeded.
func (a *app) finish(ctx context.Context, report *lifecycle.Report, descriptor string, started time.Time) error {
	for _, u := range report.Failed() {
		fmt.Fprintf(a.stderr, "✗ %s: %v\n", u.Service, u.Err)
	}

	runErr := report.Err()
	if runErr != nil {
		runErr = fmt.Errorf("%d of %d services failed: %w", len(report.Failed()), len(report.Units), runErr)
	}

	journalErr := a.record(ctx, report, descriptor, started)
	if journalErr != nil {
		if runErr != nil {
			a.logger.Error("failed to record run", "run_id", report.RunID, "error", journalErr)
			return runErr
		}
		return journalErr
	}
	return runErr
}

func (a *app) record(ctx context.Context, report *lifecycle.Report, descriptor string, started time.Time) error {
	store, err := a.openJournal()
	if err != nil || store == nil {
		return err
	}
	defer store.Close()

	run := journal.FromReport(report, journal.RunInfo{
		Project:    a.cfg.Project,
		Prefix:     a.cfg.Prefix,
		Descriptor: descriptor,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	if err := store.RecordRun(ctx, run); err != nil {
		return err
	}
	a.logger.Debug("run recorded", "run_id", run.ID)
	return nil
}

// units pairs translation results with the files written for them.
func units(results []manifest.Result, files []manifests.Files) []lifecycle.Unit {
	out := make([]lifecycle.Unit, len(results))
	for i, r := range results {
		out[i] = lifecycle.Unit{
			Service:        r.ServiceName,
			Name:           r.Name,
			DeploymentFile: files[i].Deployment,
			ServiceFile:    files[i].Service,
		}
	}
	return out
}

// deletionUnits derives names only; deletion never reads documents.
func deletionUnits(spec *compose.ParsedSpec, naming manifest.NamingContext) []lifecycle.Unit {
	out := make([]lifecycle.Unit, len(spec.Services))
	for i, svc := range spec.Services {
		out[i] = lifecycle.Unit{Service: svc.Name, Name: naming.Name(svc.Name)}
	}
	return out
}

func envMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}

func downMode(all bool) rollout.Mode {
	if all {
		return rollout.ModeDownAll
	}
	return rollout.ModeDown
}
