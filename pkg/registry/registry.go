// Package registry implements the Worker Registry (C1): the bidirectional
// index from logical worker id to allocation handle that the Allocation
// Coordinator and Lifecycle Controller mutate on every bind/detach.
//
// The registry is pure bookkeeping. It performs no I/O and holds a single
// mutex for the duration of every operation, so no reader ever observes an
// intermediate state in which only one of the two indices has been updated.
package registry

import (
	"fmt"
	"sync"

	"github.com/heron-streaming/tam/pkg/types"
)

// Registry is the C1 Worker Registry.
type Registry struct {
	mu           sync.Mutex
	byID         map[int]*types.LogicalWorker
	byAllocation map[string]*types.LogicalWorker
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		byID:         make(map[int]*types.LogicalWorker),
		byAllocation: make(map[string]*types.LogicalWorker),
	}
}

// Assign binds worker to allocation, updating both indices atomically. If
// worker was already bound to a different allocation, the stale
// allocation-keyed entry is removed first.
func (r *Registry) Assign(worker *types.LogicalWorker, allocation types.AllocationHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if worker.Allocation != nil {
		delete(r.byAllocation, worker.Allocation.AllocationID())
	}
	worker.Allocation = allocation
	r.byID[worker.ID] = worker
	r.byAllocation[allocation.AllocationID()] = worker
}

// Put inserts worker into the id-keyed index only, without an allocation,
// for a worker that has been created but not yet bound.
func (r *Registry) Put(worker *types.LogicalWorker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[worker.ID] = worker
}

// LookupByID returns the LogicalWorker for id, or nil.
func (r *Registry) LookupByID(id int) *types.LogicalWorker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

// LookupByAllocationID returns the LogicalWorker bound to aid, or nil.
func (r *Registry) LookupByAllocationID(aid string) *types.LogicalWorker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byAllocation[aid]
}

// Detach removes worker from both indices and returns its allocation
// handle, clearing it from the worker. Detach panics if worker is not
// bound: calling it on an unbound worker is a programmer error, per §4.1.
func (r *Registry) Detach(worker *types.LogicalWorker) types.AllocationHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if worker.Allocation == nil {
		panic(fmt.Sprintf("registry: detach of unbound worker %d", worker.ID))
	}

	allocation := worker.Allocation
	delete(r.byAllocation, allocation.AllocationID())
	delete(r.byID, worker.ID)
	worker.Allocation = nil
	return allocation
}

// Remove deletes worker from the id-keyed index (and the allocation-keyed
// index, if bound) without requiring it to be bound. Removing an id that
// is not registered is a no-op.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	worker, ok := r.byID[id]
	if !ok {
		return
	}
	if worker.Allocation != nil {
		delete(r.byAllocation, worker.Allocation.AllocationID())
	}
	delete(r.byID, id)
}

// Snapshot returns a stable copy of every LogicalWorker currently
// registered, safe to iterate without holding the registry's lock.
func (r *Registry) Snapshot() []*types.LogicalWorker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*types.LogicalWorker, 0, len(r.byID))
	for _, w := range r.byID {
		out = append(out, w)
	}
	return out
}

// Len returns the number of registered workers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
