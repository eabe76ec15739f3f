package cluster

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Call is one command recorded by FakeRunner.
type Call struct {
	Name string
	Args []string
}

// String returns the arguments joined by spaces, without the binary name.
func (c Call) String() string {
	return strings.Join(c.Args, " ")
}

type fakeRule struct {
	contains string
	stdout   string
	err      error
}

// FakeRunner records calls and replays scripted outcomes.
// Commands that match no rule succeed with empty output.
// It is safe for concurrent use.
type FakeRunner struct {
	mu    sync.Mutex
	calls []Call
	rules []fakeRule
}

var _ Runner = (*FakeRunner)(nil)

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On scripts the outcome of every command whose joined arguments contain
// the given text. A nil err makes the command succeed with stdout; otherwise
// the command fails with err as its diagnostic, like a non-zero exit.
// An err wrapping ErrLaunchFailed fails as if the binary could not start.
// The first matching rule wins.
func (f *FakeRunner) On(contains, stdout string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, fakeRule{contains: contains, stdout: stdout, err: err})
	return f
}

// Run records the call and returns the scripted outcome.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) Outcome {
	shown := Redact(args)
	call := Call{Name: name, Args: shown}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	rules := f.rules
	f.mu.Unlock()

	joined := strings.Join(args, " ")
	for _, rule := range rules {
		if !strings.Contains(joined, rule.contains) {
			continue
		}
		if errors.Is(rule.err, ErrLaunchFailed) {
			return Outcome{
				Args: shown,
				Err:  NewCommandError(name, shown, -1, rule.err.Error(), rule.err),
			}
		}
		if rule.err != nil {
			return Outcome{
				Args: shown,
				Err:  NewCommandError(name, shown, 1, rule.err.Error(), errors.Join(ErrCommandFailed, rule.err)),
			}
		}
		return Outcome{Args: shown, Stdout: rule.stdout}
	}
	return Outcome{Args: shown}
}

// Calls returns a copy of the recorded calls in arrival order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsMatching returns the recorded calls whose joined arguments contain text.
func (f *FakeRunner) CallsMatching(text string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if strings.Contains(c.String(), text) {
			out = append(out, c)
		}
	}
	return out
}
