// Package tam implements the Lifecycle Controller (C6): the public
// operations exposed to the scheduler plugin that embeds the Topology
// Application Master, and the resource-manager event dispatcher that
// drives the Allocation Coordinator, Worker Registry, and Worker State
// Machine under a single mutex.
//
// Controller owns mutex M (§5): it guards {plannedWorkers, registry} and
// serialises operator-invoked lifecycle calls against the resource
// manager's event stream. The Allocation Coordinator (pkg/scheduler) is
// deliberately lock-agnostic; Controller holds M for the full duration of
// every call into it, per §4.4.
package tam

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-set/v3"
	"github.com/heron-streaming/tam/pkg/events"
	"github.com/heron-streaming/tam/pkg/log"
	"github.com/heron-streaming/tam/pkg/metrics"
	"github.com/heron-streaming/tam/pkg/registry"
	"github.com/heron-streaming/tam/pkg/resourcemanager"
	"github.com/heron-streaming/tam/pkg/scheduler"
	"github.com/heron-streaming/tam/pkg/supervisor"
	"github.com/heron-streaming/tam/pkg/tamerror"
	"github.com/heron-streaming/tam/pkg/types"
	"github.com/heron-streaming/tam/pkg/workerstate"
	"github.com/rs/zerolog"
)

// TMWorkerID is the logical id reserved for the Topology Master, per §3.
const TMWorkerID = 0

// Config carries the topology-wide fields that go into every worker's
// TaskConfig and don't vary per worker, per §6 ("Outputs to workers").
type Config struct {
	TopologyName        string
	TopologyJARPath      string
	TopologyPackageName  string
	CorePackageName      string
	Role                 string
	Environment          string
	Cluster              string
	Verbose              bool
}

// Controller is the C6 Lifecycle Controller. It also implements
// resourcemanager.Dispatcher.
type Controller struct {
	cfg    Config
	client resourcemanager.Client
	logger zerolog.Logger
	broker *events.Broker

	coordinator *scheduler.Coordinator
	supervisor  *supervisor.Supervisor

	killed atomic.Bool

	mu              sync.Mutex // M: guards plannedWorkers and registry
	plannedWorkers  map[int]*types.ContainerPlan
	componentRamMap types.ComponentRAMMap
	registry        *registry.Registry
}

// New builds a Controller that submits container requests through client.
// Delivering resource-manager events to the Controller (its
// resourcemanager.Dispatcher methods) is left to the caller.
func New(client resourcemanager.Client, cfg Config, logger zerolog.Logger, broker *events.Broker) *Controller {
	logger = log.WithTopologyName(logger.With().Str("component", "tam-controller").Logger(), cfg.TopologyName)
	return &Controller{
		cfg:            cfg,
		client:         client,
		logger:         logger,
		broker:         broker,
		coordinator:    scheduler.New(client, logger),
		plannedWorkers: make(map[int]*types.ContainerPlan),
		registry:       registry.New(),
	}
}

// Registry exposes the Controller's Worker Registry for read-only
// consumers such as the metrics Collector; it is never mutated outside
// the Controller's own locked operations.
func (c *Controller) Registry() *registry.Registry {
	return c.registry
}

func (c *Controller) publish(typ events.EventType, msg string, meta map[string]string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{Type: typ, Message: msg, Metadata: meta})
}

// ScheduleWorkers stores the plan's component-ram map, admits every
// container in ascending id order, and issues one container request per
// worker. No plannedWorkers entries are mutated if any id in the plan
// already exists, per §4.6.
func (c *Controller) ScheduleWorkers(plan *types.PackingPlan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, cp := range plan.Containers {
		if _, exists := c.plannedWorkers[cp.ID]; exists {
			return tamerror.New(tamerror.DuplicateAllocation, fmt.Errorf("worker %d already planned", cp.ID))
		}
	}

	c.componentRamMap = plan.ComponentRAMMap
	workers := make([]*types.LogicalWorker, 0, len(plan.Containers))
	for _, cp := range plan.Containers {
		c.plannedWorkers[cp.ID] = cp
		w := types.NewLogicalWorker(cp.ID, cp.Resource)
		workerstate.Schedule(w)
		workers = append(workers, w)
	}

	if err := c.coordinator.RequestWorkers(workers); err != nil {
		return err
	}
	c.publish(events.EventWorkerScheduled, "workers scheduled", map[string]string{"count": strconv.Itoa(len(workers))})
	return nil
}

// LaunchTM launches the Topology Master via the TM Supervisor. It must be
// called after ScheduleWorkers, and is a no-op if the topology has
// already been killed, per invariant 5.
func (c *Controller) LaunchTM(ctx context.Context, run supervisor.RunFunc) {
	if c.killed.Load() {
		c.logger.Warn().Msg("launchTM called after topology killed, ignoring")
		return
	}
	c.mu.Lock()
	c.supervisor = supervisor.New(run, c.logger, supervisor.DefaultMaxRetries, c.publish)
	c.mu.Unlock()

	c.supervisor.Launch(ctx)
	c.publish(events.EventTMLaunched, "topology master launched", nil)
}

// KillWorkers removes each plan from plannedWorkers and, where the
// registry holds a bound worker for it, detaches and closes its
// allocation.
func (c *Controller) KillWorkers(plans []*types.ContainerPlan) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error
	for _, plan := range plans {
		if w := c.registry.LookupByID(plan.ID); w != nil && workerstate.IsBound(w) {
			alloc := c.registry.Detach(w)
			if err := alloc.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("close allocation for worker %d: %w", plan.ID, err))
			}
			workerstate.Kill(w)
			c.publish(events.EventWorkerKilled, "worker killed", map[string]string{"worker_id": strconv.Itoa(plan.ID)})
		}
		delete(c.plannedWorkers, plan.ID)
	}
	return result.ErrorOrNil()
}

// KillTopology sets the killed flag, kills the TM, and detaches and
// closes every bound allocation. It is idempotent: a second call finds
// an already-empty registry and a supervisor that no-ops its own Kill.
func (c *Controller) KillTopology() error {
	c.killed.Store(true)

	c.mu.Lock()
	sup := c.supervisor
	snapshot := c.registry.Snapshot()
	var result *multierror.Error
	for _, w := range snapshot {
		if workerstate.IsBound(w) {
			alloc := c.registry.Detach(w)
			if err := alloc.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("close allocation for worker %d: %w", w.ID, err))
			}
		}
		workerstate.Kill(w)
		c.publish(events.EventWorkerKilled, "worker killed", map[string]string{"worker_id": strconv.Itoa(w.ID)})
	}
	c.plannedWorkers = make(map[int]*types.ContainerPlan)
	c.mu.Unlock()

	if sup != nil {
		sup.Kill()
	}
	c.publish(events.EventTopologyKilled, "topology killed", nil)
	return result.ErrorOrNil()
}

// RestartWorker recycles the given worker's allocation, if bound, or
// builds a fresh LogicalWorker from its planned resource, and issues a
// new container request in either case, per §4.6.
func (c *Controller) RestartWorker(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restartWorkerLocked(id)
}

func (c *Controller) restartWorkerLocked(id int) error {
	var worker *types.LogicalWorker

	if w := c.registry.LookupByID(id); w != nil && workerstate.IsBound(w) {
		alloc := c.registry.Detach(w)
		if err := alloc.Close(); err != nil {
			log.WithWorkerID(c.logger, id).Error().Err(err).Msg("close allocation during restart failed")
		}
		workerstate.AllocationFault(w)
		worker = w
	} else {
		plan, ok := c.plannedWorkers[id]
		if !ok {
			return tamerror.New(tamerror.UnknownWorker, fmt.Errorf("worker %d is not planned", id))
		}
		log.WithWorkerID(c.logger, id).Warn().Msg("restart of unbound worker, building a fresh logical worker")
		worker = types.NewLogicalWorker(id, plan.Resource)
		workerstate.Schedule(worker)
	}

	return c.coordinator.RequestWorkers([]*types.LogicalWorker{worker})
}

// RestartTopology restarts every worker currently in the registry
// snapshot.
func (c *Controller) RestartTopology() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *multierror.Error
	for _, w := range c.registry.Snapshot() {
		if err := c.restartWorkerLocked(w.ID); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// taskConfig builds the TaskConfig for a worker id from the Controller's
// stored topology-wide fields, per §6.
func (c *Controller) taskConfig(workerID int) *types.TaskConfig {
	return &types.TaskConfig{
		TopologyName:        c.cfg.TopologyName,
		TopologyJARPath:     c.cfg.TopologyJARPath,
		TopologyPackageName: c.cfg.TopologyPackageName,
		CorePackageName:     c.cfg.CorePackageName,
		Role:                c.cfg.Role,
		Environment:         c.cfg.Environment,
		Cluster:             c.cfg.Cluster,
		ComponentRAMMap:     c.componentRamMap,
		ContainerID:         strconv.Itoa(workerID),
		Verbose:             c.cfg.Verbose,
	}
}

// --- resourcemanager.Dispatcher ---

// OnStart triggers package extraction and scheduler start in the real
// deployment; out of scope here (§1), retained as a no-op hook so
// Controller satisfies resourcemanager.Dispatcher end to end.
func (c *Controller) OnStart() {
	c.logger.Info().Msg("resource manager reported start")
}

// OnAllocated is the hot path: §4.4 steps 1-5, executed while holding M.
func (c *Controller) OnAllocated(allocation types.AllocationHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killed.Load() {
		_ = allocation.Close()
		return
	}

	awaiting := set.New[*types.LogicalWorker](len(c.plannedWorkers))
	for id, plan := range c.plannedWorkers {
		if c.registry.LookupByID(id) == nil {
			awaiting.Insert(types.NewLogicalWorker(id, plan.Resource))
		}
	}

	winner := c.coordinator.OnAllocationGranted(allocation, awaiting, c.registry, c.taskConfig)
	if winner != nil {
		c.publish(events.EventWorkerBound, "worker bound to allocation", map[string]string{
			"worker_id":     strconv.Itoa(winner.ID),
			"allocation_id": allocation.AllocationID(),
		})
	}
}

// OnAllocationFailed detaches the affected worker, if any, and issues a
// fresh container request for the same logical id, per §4.3.
func (c *Controller) OnAllocationFailed(allocation types.AllocationHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killed.Load() {
		return
	}

	w := c.registry.LookupByAllocationID(allocation.AllocationID())
	if w == nil {
		log.WithAllocationID(c.logger, allocation.AllocationID()).Warn().Msg("allocation failure for unknown allocation, ignoring")
		return
	}

	c.registry.Detach(w)
	workerstate.AllocationFault(w)
	metrics.ContainerFaultsTotal.Inc()
	c.publish(events.EventContainerFault, "container allocation failed", map[string]string{"worker_id": strconv.Itoa(w.ID)})

	if err := c.coordinator.RequestWorkers([]*types.LogicalWorker{w}); err != nil {
		log.WithWorkerID(c.logger, w.ID).Error().Err(err).Msg("re-request after allocation failure failed")
	}
}

// OnContextActive binds the context to its worker and submits the task,
// unless the topology is killed or the worker id is unknown, per §4.3.
func (c *Controller) OnContextActive(ctx types.ContextHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killed.Load() {
		_ = ctx.Close()
		return
	}

	id, err := strconv.Atoi(ctx.ContextID())
	if err != nil {
		c.logger.Warn().Str("context_id", ctx.ContextID()).Msg("context id is not a worker id, closing")
		_ = ctx.Close()
		return
	}

	w := c.registry.LookupByID(id)
	if w == nil {
		log.WithWorkerID(c.logger, id).Warn().Msg("context active for unknown worker, closing")
		_ = ctx.Close()
		return
	}

	w.Context = ctx
	workerstate.ContextActive(w)

	if err := ctx.SubmitTask(c.taskConfig(w.ID)); err != nil {
		log.WithWorkerID(c.logger, w.ID).Error().Err(err).Msg("submitTask failed")
		return
	}
	workerstate.SubmitTask(w)
	c.publish(events.EventWorkerRunning, "worker task submitted", map[string]string{"worker_id": strconv.Itoa(w.ID)})
}

// OnTaskRunning is purely observational: the state machine already moved
// to RUNNING locally when the task was submitted (§4.3).
func (c *Controller) OnTaskRunning(taskID string) {
	c.logger.Debug().Str("task_id", taskID).Msg("task reported running")
}

// OnTaskFailed and OnTaskCompleted are handled identically per §4.3: the
// task is resubmitted on the existing context, unless the topology is
// killed.
func (c *Controller) OnTaskFailed(taskID string) {
	c.onTaskFault(taskID, "failed")
}

func (c *Controller) OnTaskCompleted(taskID string) {
	c.onTaskFault(taskID, "completed")
}

func (c *Controller) onTaskFault(taskID, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.killed.Load() {
		return
	}

	id, err := strconv.Atoi(taskID)
	if err != nil || id == TMWorkerID {
		return
	}

	w := c.registry.LookupByID(id)
	if w == nil {
		c.logger.Warn().Str("task_id", taskID).Msg("task fault for unknown worker, ignoring")
		return
	}

	metrics.TaskFaultsTotal.WithLabelValues(kind).Inc()
	workerstate.TaskFault(w)

	workerLogger := log.WithWorkerID(c.logger, w.ID)
	if w.Context == nil {
		workerLogger.Error().Msg("task fault but worker has no context to resubmit on")
		return
	}
	if err := w.Context.SubmitTask(c.taskConfig(w.ID)); err != nil {
		workerLogger.Error().Err(err).Msg("task resubmission failed")
	}
}
