package workerstate

import (
	"testing"

	"github.com/heron-streaming/tam/pkg/types"
	"github.com/stretchr/testify/assert"
)

func newPending(id int) *types.LogicalWorker {
	return types.NewLogicalWorker(id, types.RequiredResource{RAM: 1 << 20, CPU: 1})
}

func TestHappyPathTransitions(t *testing.T) {
	w := newPending(1)
	assert.Equal(t, types.StatePending, w.State)

	Schedule(w)
	assert.Equal(t, types.StateRequested, w.State)

	Bind(w)
	assert.Equal(t, types.StateBound, w.State)
	assert.True(t, IsBound(w))

	SubmitContext(w)
	assert.Equal(t, types.StateBound, w.State)

	ContextActive(w)
	assert.Equal(t, types.StateContextReady, w.State)

	SubmitTask(w)
	assert.Equal(t, types.StateRunning, w.State)
	assert.True(t, IsBound(w))
}

func TestTaskFaultStaysRunning(t *testing.T) {
	w := newPending(1)
	w.State = types.StateRunning

	TaskFault(w)
	assert.Equal(t, types.StateRunning, w.State)
}

func TestAllocationFaultReturnsToRequested(t *testing.T) {
	for _, s := range []types.WorkerState{types.StateBound, types.StateContextReady, types.StateRunning} {
		w := newPending(1)
		w.State = s
		AllocationFault(w)
		assert.Equal(t, types.StateRequested, w.State)
		assert.False(t, IsBound(w))
	}
}

func TestKillFromAnyState(t *testing.T) {
	for _, s := range []types.WorkerState{types.StatePending, types.StateRequested, types.StateBound, types.StateContextReady, types.StateRunning} {
		w := newPending(1)
		w.State = s
		Kill(w)
		assert.Equal(t, types.StateGone, w.State)
	}
}
