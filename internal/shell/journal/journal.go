// Package journal keeps a local history of cluster runs.
//
// Every up and down run is recorded with the outcome of each of
// its units, so an operator can see later what was created or deleted and
// which steps failed.
package journal

import (
	"time"

	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/artpar/composeshift/internal/shell/lifecycle"
)

// Run is one recorded run.
type Run struct {
	ID         string
	Mode       rollout.Mode
	Project    string
	Prefix     string
	Descriptor string // Path of the compose descriptor
	Succeeded  bool
	Routes     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Summary counts, filled by ListRuns and GetRun.
	UnitCount   int
	FailedCount int

	// Units are filled by GetRun only.
	Units []Unit
}

// Unit is the recorded outcome of one service in a run.
type Unit struct {
	Service string
	Name    string
	State   rollout.State
	Reached rollout.State
	Error   string
}

// RunInfo carries the run context that the report does not hold.
type RunInfo struct {
	Project    string
	Prefix     string
	Descriptor string
	StartedAt  time.Time
	FinishedAt time.Time
}

// FromReport converts a lifecycle report into a journal run.
func FromReport(report *lifecycle.Report, info RunInfo) *Run {
	run := &Run{
		ID:         report.RunID,
		Mode:       report.Mode,
		Project:    info.Project,
		Prefix:     info.Prefix,
		Descriptor: info.Descriptor,
		Routes:     report.Routes,
		StartedAt:  info.StartedAt,
		FinishedAt: info.FinishedAt,
		Units:      make([]Unit, 0, len(report.Units)),
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	err := report.Err()
	run.Succeeded = err == nil
	if err != nil {
		run.Error = err.Error()
	}

	for _, u := range report.Units {
		unit := Unit{
			Service: u.Service,
			Name:    u.Name,
			State:   u.State,
			Reached: u.Reached,
		}
		if u.Err != nil {
			unit.Error = u.Err.Error()
		}
		run.Units = append(run.Units, unit)
		if u.State != rollout.StateDone {
			run.FailedCount++
		}
	}
	run.UnitCount = len(run.Units)
	return run
}
