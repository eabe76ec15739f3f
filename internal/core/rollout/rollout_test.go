package rollout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mode Tests
// =============================================================================

func TestMode_Flags(t *testing.T) {
	assert.False(t, ModeGenerate.TouchesCluster())
	assert.True(t, ModeUp.TouchesCluster())
	assert.True(t, ModeDown.TouchesCluster())
	assert.True(t, ModeDownAll.TouchesCluster())
}

// =============================================================================
// Plan Tests
// =============================================================================

func TestPlanCreate_WithService(t *testing.T) {
	steps := PlanCreate(true)

	assert.Equal(t, []Step{
		{Action: ActionSelectProject, Reaches: StateProjectSelected},
		{Action: ActionCreateDeployment, Reaches: StateDeploymentCreated},
		{Action: ActionCreateService, Reaches: StateServiceCreated},
		{Action: ActionExposeRoute, Reaches: StateRouteExposed},
	}, steps)
}

func TestPlanCreate_WithoutService(t *testing.T) {
	steps := PlanCreate(false)

	assert.Equal(t, []Step{
		{Action: ActionSelectProject, Reaches: StateProjectSelected},
		{Action: ActionCreateDeployment, Reaches: StateDeploymentCreated},
	}, steps)
}

func TestPlanDelete(t *testing.T) {
	assert.Equal(t, []Step{
		{Action: ActionSelectProject, Reaches: StateProjectSelected},
		{Action: ActionDelete, Reaches: StateDeleted},
	}, PlanDelete())
}

func TestPlans_WalkStateMachine(t *testing.T) {
	for _, steps := range [][]Step{PlanCreate(true), PlanCreate(false), PlanDelete()} {
		tracker := NewTracker(StateLoginVerified)
		for _, step := range steps {
			require.NoError(t, tracker.Advance(step.Reaches), step.Action)
		}
		require.NoError(t, tracker.Advance(StateDone))
		assert.True(t, tracker.State().IsTerminal())
	}
}

// =============================================================================
// Transition Tests
// =============================================================================

func TestValidateTransition_Invalid(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{StateIdle, StateDeploymentCreated},
		{StateLoginVerified, StateDone},
		{StateServiceCreated, StateDone},
		{StateDone, StateFailed},
		{StateFailed, StateIdle},
		{State("bogus"), StateDone},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.ErrorIs(t, ValidateTransition(tt.from, tt.to), ErrInvalidTransition)
		})
	}
}

func TestTracker_Fail(t *testing.T) {
	tracker := NewTracker(StateLoginVerified)
	require.NoError(t, tracker.Advance(StateProjectSelected))

	reached := tracker.Fail()
	assert.Equal(t, StateProjectSelected, reached)
	assert.Equal(t, StateFailed, tracker.State())

	// Failing again keeps the terminal state
	assert.Equal(t, StateFailed, tracker.Fail())
	assert.Equal(t, StateFailed, tracker.State())
}

func TestTracker_AdvanceRejectsSkips(t *testing.T) {
	tracker := NewTracker(StateLoginVerified)
	err := tracker.Advance(StateRouteExposed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateLoginVerified, tracker.State())
}
