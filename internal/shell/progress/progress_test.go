package progress

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/artpar/composeshift/internal/core/rollout"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Spinner Reporter Tests
// =============================================================================

func TestSpinner_PrintsOneLinePerUnit(t *testing.T) {
	var buf bytes.Buffer
	r := NewSpinner(&buf)

	r.Start("demo-web")
	r.Start("demo-db")
	r.Step("demo-web", rollout.StateDeploymentCreated)
	r.Step("demo-db", rollout.StateProjectSelected)
	r.Done("demo-web", nil)
	r.Done("demo-db", errors.New("quota exceeded"))
	r.Stop()

	out := buf.String()
	assert.Contains(t, out, "✓ demo-web\n")
	assert.Contains(t, out, "✗ demo-db failed after project_selected: quota exceeded\n")
}

func TestSpinner_SuffixListsActiveUnits(t *testing.T) {
	var buf bytes.Buffer
	r := NewSpinner(&buf)

	r.Start("demo-web")
	r.Start("demo-api")
	r.Step("demo-web", rollout.StateServiceCreated)

	assert.Equal(t, " [0/2] demo-api (idle), demo-web (service_created)", r.spinner.Suffix)
	r.Stop()
}

func TestSpinner_StepUnknownUnitIgnored(t *testing.T) {
	var buf bytes.Buffer
	r := NewSpinner(&buf)

	r.Step("ghost", rollout.StateDone)
	assert.Empty(t, r.active)
	r.Stop()
}

func TestSpinner_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	r := NewSpinner(&buf)

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			r.Start(name)
			r.Step(name, rollout.StateProjectSelected)
			r.Done(name, nil)
		}(name)
	}
	wg.Wait()
	r.Stop()

	assert.Equal(t, 4, r.done)
	assert.Empty(t, r.active)
}

func TestNop(t *testing.T) {
	var r Reporter = Nop{}
	r.Start("x")
	r.Step("x", rollout.StateDone)
	r.Done("x", nil)
	r.Stop()
}
