package sim

import (
	"testing"

	"github.com/heron-streaming/tam/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDispatcher struct {
	allocated         []types.AllocationHandle
	allocationFailed  []types.AllocationHandle
	contextActive     []types.ContextHandle
	taskFailed        []string
	taskCompleted     []string
}

func (d *recordingDispatcher) OnStart()                                       {}
func (d *recordingDispatcher) OnAllocated(a types.AllocationHandle)           { d.allocated = append(d.allocated, a) }
func (d *recordingDispatcher) OnAllocationFailed(a types.AllocationHandle)    { d.allocationFailed = append(d.allocationFailed, a) }
func (d *recordingDispatcher) OnContextActive(c types.ContextHandle)         { d.contextActive = append(d.contextActive, c) }
func (d *recordingDispatcher) OnTaskRunning(id string)                        {}
func (d *recordingDispatcher) OnTaskFailed(id string)                         { d.taskFailed = append(d.taskFailed, id) }
func (d *recordingDispatcher) OnTaskCompleted(id string)                      { d.taskCompleted = append(d.taskCompleted, id) }

func TestGrantDeliversAllocation(t *testing.T) {
	s := New()
	d := &recordingDispatcher{}
	s.Bind(d)

	h := s.Grant(1<<30, 1)
	require.Len(t, d.allocated, 1)
	assert.Equal(t, h.AllocationID(), d.allocated[0].AllocationID())
}

func TestCloseIsIdempotentInObservation(t *testing.T) {
	s := New()
	s.Bind(&recordingDispatcher{})
	h := s.Grant(1<<30, 1)

	assert.NoError(t, h.Close())
	assert.NoError(t, h.Close())
	assert.Equal(t, []string{h.AllocationID()}, s.ClosedAllocations())
}

func TestSubmitContextThenActivate(t *testing.T) {
	s := New()
	d := &recordingDispatcher{}
	s.Bind(d)
	h := s.Grant(1<<30, 1)

	require.NoError(t, h.SubmitContext(&types.TaskConfig{ContainerID: "1"}))
	assert.Equal(t, []string{"1"}, s.SubmittedContexts())

	s.ActivateContext("1")
	require.Len(t, d.contextActive, 1)
	assert.Equal(t, "1", d.contextActive[0].ContextID())
}

func TestActivateUnknownContextStillDelivers(t *testing.T) {
	s := New()
	d := &recordingDispatcher{}
	s.Bind(d)

	s.ActivateContext("99")
	require.Len(t, d.contextActive, 1)
	assert.Equal(t, "99", d.contextActive[0].ContextID())
}

func TestRequestsRecordsSubmissions(t *testing.T) {
	s := New()
	require.NoError(t, s.Submit(types.EvaluatorRequest{Count: 1, MemoryMB: 1024, Cores: 1}))
	require.NoError(t, s.Submit(types.EvaluatorRequest{Count: 1, MemoryMB: 2048, Cores: 2}))

	reqs := s.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, int64(2048), reqs[1].MemoryMB)
}
