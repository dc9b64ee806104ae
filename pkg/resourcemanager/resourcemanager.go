// Package resourcemanager defines the external boundary described in §6:
// the asynchronous event callbacks the cluster resource manager's client
// library invokes on the TAM, and the Client the TAM submits container
// requests through.
//
// Nothing in this package talks to a real cluster — that client is an
// external collaborator per §1 and is out of scope. This package exists so
// the boundary has a concrete Go shape: production wiring supplies a real
// implementation of Client and drives Dispatcher from its own event loop;
// the sim subpackage supplies an in-memory stand-in for tests and the
// `tam simulate` CLI command.
package resourcemanager

import "github.com/heron-streaming/tam/pkg/types"

// Dispatcher is the set of event callbacks the resource manager client
// invokes. The TAM's Lifecycle Controller (pkg/tam.Controller) implements
// this interface; each method is synchronous relative to its caller, per
// §9's dispatch note.
type Dispatcher interface {
	OnStart()
	OnAllocated(allocation types.AllocationHandle)
	OnAllocationFailed(allocation types.AllocationHandle)
	OnContextActive(ctx types.ContextHandle)
	OnTaskRunning(taskID string)
	OnTaskFailed(taskID string)
	OnTaskCompleted(taskID string)
}

// Client is the resource manager client's submission surface: one
// container request at a time, per §4.4's "requests are issued serially."
type Client interface {
	Submit(req types.EvaluatorRequest) error
}
