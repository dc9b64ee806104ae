// Package sim is an in-memory resource manager simulator: it implements
// resourcemanager.Client and the types.AllocationHandle/types.ContextHandle
// interfaces, and lets a test or the `tam simulate` CLI command drive the
// event stream described in §6 by hand — granting allocations, failing
// them, activating contexts, failing or completing tasks — while recording
// every Submit/Close/SubmitTask call for assertions.
//
// It stands in for the real in-cluster client library, which is an
// external collaborator per §1 and out of scope for this repository.
package sim

import (
	"sync"

	"github.com/google/uuid"
	"github.com/heron-streaming/tam/pkg/resourcemanager"
	"github.com/heron-streaming/tam/pkg/types"
)

// Sim is the simulator. The zero value is not usable; construct with New.
type Sim struct {
	mu         sync.Mutex
	dispatcher resourcemanager.Dispatcher

	requests []types.EvaluatorRequest

	allocations map[string]*allocationHandle
	contexts    map[string]*contextHandle

	closedAllocations []string
	submittedContexts []string
	submittedTasks    []string
}

// New returns an empty Sim with no bound dispatcher.
func New() *Sim {
	return &Sim{
		allocations: make(map[string]*allocationHandle),
		contexts:    make(map[string]*contextHandle),
	}
}

// Bind registers the dispatcher that Grant/FailAllocation/ActivateContext/
// FailTask/CompleteTask deliver events to — normally the TAM's Lifecycle
// Controller (pkg/tam.Controller).
func (s *Sim) Bind(d resourcemanager.Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// Submit implements resourcemanager.Client: it records the request for
// test assertions and otherwise does nothing — the simulator never
// auto-grants a matching allocation, since the spec explicitly forbids
// assuming request N corresponds to allocation N.
func (s *Sim) Submit(req types.EvaluatorRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return nil
}

// Requests returns every EvaluatorRequest submitted so far, in submission
// order.
func (s *Sim) Requests() []types.EvaluatorRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.EvaluatorRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Grant manufactures a new allocation of the given shape and delivers it
// via OnAllocated. memBytes and cores are the *granted* size, which may
// exceed what any outstanding request asked for.
func (s *Sim) Grant(memBytes int64, cores int) *allocationHandle {
	h := &allocationHandle{sim: s, id: uuid.NewString(), mem: memBytes, cores: cores}

	s.mu.Lock()
	s.allocations[h.id] = h
	d := s.dispatcher
	s.mu.Unlock()

	d.OnAllocated(h)
	return h
}

// FailAllocation delivers OnAllocationFailed for a previously granted
// allocation id. It is a no-op if the id is unknown (e.g. already closed).
func (s *Sim) FailAllocation(allocationID string) {
	s.mu.Lock()
	h := s.allocations[allocationID]
	d := s.dispatcher
	s.mu.Unlock()

	if h == nil {
		return
	}
	d.OnAllocationFailed(h)
}

// ActivateContext delivers OnContextActive for the context submitted
// under contextID (a worker id's decimal string). If no context was ever
// submitted for that id, it still delivers a ContextHandle so the
// coordinator's "unknown worker id" edge case (§4.3) can be exercised.
func (s *Sim) ActivateContext(contextID string) {
	s.mu.Lock()
	c, ok := s.contexts[contextID]
	d := s.dispatcher
	s.mu.Unlock()

	if !ok {
		c = &contextHandle{sim: s, id: contextID}
	}
	d.OnContextActive(c)
}

// FailTask delivers OnTaskFailed for taskID.
func (s *Sim) FailTask(taskID string) {
	s.mu.Lock()
	d := s.dispatcher
	s.mu.Unlock()
	d.OnTaskFailed(taskID)
}

// CompleteTask delivers OnTaskCompleted for taskID.
func (s *Sim) CompleteTask(taskID string) {
	s.mu.Lock()
	d := s.dispatcher
	s.mu.Unlock()
	d.OnTaskCompleted(taskID)
}

// ClosedAllocations returns the ids of every allocation Close has been
// called on, in call order. Each allocation appears at most once: a
// repeated Close on the same allocation is not recorded again.
func (s *Sim) ClosedAllocations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.closedAllocations))
	copy(out, s.closedAllocations)
	return out
}

// SubmittedContexts returns the container ids that SubmitContext has been
// called with, in call order.
func (s *Sim) SubmittedContexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.submittedContexts))
	copy(out, s.submittedContexts)
	return out
}

// SubmittedTasks returns the container ids that SubmitTask has been called
// with, in call order.
func (s *Sim) SubmittedTasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.submittedTasks))
	copy(out, s.submittedTasks)
	return out
}

type allocationHandle struct {
	sim    *Sim
	id     string
	mem    int64
	cores  int
	closed bool
}

func (a *allocationHandle) AllocationID() string { return a.id }
func (a *allocationHandle) GrantedMem() int64    { return a.mem }
func (a *allocationHandle) GrantedCores() int    { return a.cores }

func (a *allocationHandle) SubmitContext(cfg *types.TaskConfig) error {
	a.sim.mu.Lock()
	defer a.sim.mu.Unlock()
	a.sim.contexts[cfg.ContainerID] = &contextHandle{sim: a.sim, id: cfg.ContainerID, allocationID: a.id}
	a.sim.submittedContexts = append(a.sim.submittedContexts, cfg.ContainerID)
	return nil
}

func (a *allocationHandle) Close() error {
	a.sim.mu.Lock()
	defer a.sim.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.sim.closedAllocations = append(a.sim.closedAllocations, a.id)
	return nil
}

type contextHandle struct {
	sim          *Sim
	id           string
	allocationID string
	closed       bool
}

func (c *contextHandle) ContextID() string { return c.id }

func (c *contextHandle) SubmitTask(cfg *types.TaskConfig) error {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	c.sim.submittedTasks = append(c.sim.submittedTasks, cfg.ContainerID)
	return nil
}

func (c *contextHandle) Close() error {
	c.sim.mu.Lock()
	defer c.sim.mu.Unlock()
	c.closed = true
	return nil
}
