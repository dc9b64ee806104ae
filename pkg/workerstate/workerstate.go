// Package workerstate implements the Worker State Machine (C3): the
// per-logical-worker transitions described in §4.3. Each exported
// transition function sets the worker's State to the edge's target state;
// it does not check the worker's current state and returns nothing. The
// callers (the Allocation Coordinator, C4, and the Lifecycle Controller,
// C6) perform the accompanying I/O themselves — submitting a context,
// submitting a task, requesting a new container.
package workerstate

import (
	"github.com/heron-streaming/tam/pkg/types"
)

// Schedule transitions a freshly created worker from PENDING to REQUESTED,
// the effect of scheduleWorkers admitting it.
func Schedule(w *types.LogicalWorker) {
	w.State = types.StateRequested
}

// Bind transitions a REQUESTED worker to BOUND when a fit is found for it,
// per "REQUESTED --AllocationGranted(fit found)--> BOUND". Binding the
// registry entry is the caller's job (C1); this only advances the state.
func Bind(w *types.LogicalWorker) {
	w.State = types.StateBound
}

// SubmitContext transitions a BOUND worker into the (unnamed, "awaiting")
// intermediate state once its context configuration has been submitted to
// the allocation. The spec leaves this state nameless ("awaiting"); it is
// represented here simply as remaining BOUND until ContextActive arrives,
// since no externally observable transition happens in between.
func SubmitContext(w *types.LogicalWorker) {
	// No-op on State: BOUND already denotes "allocated, context submission
	// in flight." CONTEXT_READY only appears once onContextActive fires.
}

// ContextActive transitions an awaiting worker to CONTEXT_READY, per
// "awaiting --ContextActive--> CONTEXT_READY." Callers must have already
// checked for the killed-topology and unknown-worker edge cases (§4.3); this
// function assumes both checks passed.
func ContextActive(w *types.LogicalWorker) {
	w.State = types.StateContextReady
}

// SubmitTask transitions a CONTEXT_READY worker to RUNNING once its task
// has been submitted on the context.
func SubmitTask(w *types.LogicalWorker) {
	w.State = types.StateRunning
}

// TaskFault handles onTaskFailed/onTaskCompleted, which are treated
// identically per §4.3: the worker is not expected to terminate, so it
// stays RUNNING and the caller resubmits the task on the existing context.
// No new container is requested.
func TaskFault(w *types.LogicalWorker) {
	w.State = types.StateRunning
}

// AllocationFault handles onAllocationFailed from any bound state,
// transitioning the worker back to REQUESTED. The caller is responsible
// for detaching the stale allocation (C1) and issuing a fresh container
// request (C4) before or after calling this.
func AllocationFault(w *types.LogicalWorker) {
	w.State = types.StateRequested
}

// Kill transitions a worker to GONE from any state, the effect of
// killWorker/killTopology.
func Kill(w *types.LogicalWorker) {
	w.State = types.StateGone
}

// IsBound reports whether w currently holds a physical allocation — any
// state from BOUND through RUNNING.
func IsBound(w *types.LogicalWorker) bool {
	switch w.State {
	case types.StateBound, types.StateContextReady, types.StateRunning:
		return true
	default:
		return false
	}
}
