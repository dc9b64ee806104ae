package registry

import (
	"testing"

	"github.com/heron-streaming/tam/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAllocation struct {
	id string
}

func (f *fakeAllocation) AllocationID() string                        { return f.id }
func (f *fakeAllocation) GrantedMem() int64                           { return 0 }
func (f *fakeAllocation) GrantedCores() int                           { return 0 }
func (f *fakeAllocation) SubmitContext(cfg *types.TaskConfig) error   { return nil }
func (f *fakeAllocation) Close() error                                { return nil }

func TestAssignIsBidirectional(t *testing.T) {
	r := New()
	w := types.NewLogicalWorker(1, types.RequiredResource{RAM: 1, CPU: 1})
	a := &fakeAllocation{id: "alloc-1"}

	r.Assign(w, a)

	assert.Same(t, w, r.LookupByID(1))
	assert.Same(t, w, r.LookupByAllocationID("alloc-1"))
	assert.Same(t, a, w.Allocation)
}

func TestDetachClearsBothIndices(t *testing.T) {
	r := New()
	w := types.NewLogicalWorker(1, types.RequiredResource{RAM: 1, CPU: 1})
	a := &fakeAllocation{id: "alloc-1"}
	r.Assign(w, a)

	got := r.Detach(w)

	assert.Same(t, a, got)
	assert.Nil(t, w.Allocation)
	assert.Nil(t, r.LookupByID(1))
	assert.Nil(t, r.LookupByAllocationID("alloc-1"))
}

func TestDetachUnboundPanics(t *testing.T) {
	r := New()
	w := types.NewLogicalWorker(1, types.RequiredResource{RAM: 1, CPU: 1})
	assert.Panics(t, func() { r.Detach(w) })
}

func TestReassignDropsStaleAllocationKey(t *testing.T) {
	r := New()
	w := types.NewLogicalWorker(1, types.RequiredResource{RAM: 1, CPU: 1})
	r.Assign(w, &fakeAllocation{id: "alloc-1"})
	r.Assign(w, &fakeAllocation{id: "alloc-2"})

	assert.Nil(t, r.LookupByAllocationID("alloc-1"))
	assert.Same(t, w, r.LookupByAllocationID("alloc-2"))
}

func TestSnapshotIsStableCopy(t *testing.T) {
	r := New()
	r.Put(types.NewLogicalWorker(1, types.RequiredResource{RAM: 1, CPU: 1}))
	r.Put(types.NewLogicalWorker(2, types.RequiredResource{RAM: 1, CPU: 1}))

	snap := r.Snapshot()
	require.Len(t, snap, 2)

	r.Remove(1)
	assert.Len(t, snap, 2, "snapshot must not observe later mutation")
	assert.Equal(t, 1, r.Len())
}

func TestRemoveUnboundWorker(t *testing.T) {
	r := New()
	r.Put(types.NewLogicalWorker(1, types.RequiredResource{RAM: 1, CPU: 1}))
	r.Remove(1)
	assert.Nil(t, r.LookupByID(1))
}
