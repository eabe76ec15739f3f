// Package progress displays per-service progress while a run talks to the cluster.
package progress

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/briandowns/spinner"
)

// Reporter receives unit progress from the lifecycle orchestrator.
// Implementations must be safe for concurrent use.
type Reporter interface {
	// Start announces a unit.
	Start(unit string)
	// Step records the state a unit has reached.
	Step(unit string, state rollout.State)
	// Done marks a unit finished; err is nil on success.
	Done(unit string, err error)
	// Stop releases the display.
	Stop()
}

// Nop discards all progress.
type Nop struct{}

var _ Reporter = Nop{}

func (Nop) Start(string)               {}
func (Nop) Step(string, rollout.State) {}
func (Nop) Done(string, error)         {}
func (Nop) Stop()                      {}

// =============================================================================
// Spinner Reporter
// =============================================================================

// Spinner shows a spinner with the units still running and prints one line
// per finished unit.
type Spinner struct {
	mu      sync.Mutex
	out     io.Writer
	spinner *spinner.Spinner
	active  map[string]rollout.State
	done    int
	total   int
}

var _ Reporter = (*Spinner)(nil)

// NewSpinner creates a spinner reporter writing to w.
// The animation only runs when w is a terminal.
func NewSpinner(w io.Writer) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Prefix = " "
	return &Spinner{
		out:     w,
		spinner: s,
		active:  make(map[string]rollout.State),
	}
}

func (r *Spinner) Start(unit string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[unit] = rollout.StateIdle
	r.total++
	r.refresh()
	r.spinner.Start()
}

func (r *Spinner) Step(unit string, state rollout.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[unit]; !ok {
		return
	}
	r.active[unit] = state
	r.refresh()
}

func (r *Spinner) Done(unit string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.active[unit]
	delete(r.active, unit)
	r.done++

	r.spinner.Stop()
	if err != nil {
		fmt.Fprintf(r.out, "✗ %s failed after %s: %v\n", unit, state, err)
	} else {
		fmt.Fprintf(r.out, "✓ %s\n", unit)
	}
	if len(r.active) > 0 {
		r.refresh()
		r.spinner.Start()
	}
}

func (r *Spinner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spinner.Stop()
}

// refresh rewrites the spinner suffix. Caller holds mu.
func (r *Spinner) refresh() {
	names := make([]string, 0, len(r.active))
	for name, state := range r.active {
		names = append(names, fmt.Sprintf("%s (%s)", name, state))
	}
	sort.Strings(names)
	r.spinner.Suffix = fmt.Sprintf(" [%d/%d] %s", r.done, r.total, strings.Join(names, ", "))
}
