// Package scheduler implements the Allocation Coordinator (C4): it issues
// container requests and, on the hot path, decides which pending logical
// worker a granted allocation satisfies.
//
// The Coordinator does not own the {plannedWorkers, registry} mutex M —
// per §5, M is owned by the Lifecycle Controller (pkg/tam), since it also
// guards operator-invoked kill/restart calls. Every exported method here
// assumes the caller already holds M for the duration of the call; the
// Coordinator itself performs no locking beyond what the registry already
// guarantees on its own calls.
package scheduler

import (
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-set/v3"
	"github.com/heron-streaming/tam/pkg/fitting"
	"github.com/heron-streaming/tam/pkg/log"
	"github.com/heron-streaming/tam/pkg/metrics"
	"github.com/heron-streaming/tam/pkg/registry"
	"github.com/heron-streaming/tam/pkg/resourcemanager"
	"github.com/heron-streaming/tam/pkg/tamerror"
	"github.com/heron-streaming/tam/pkg/types"
	"github.com/heron-streaming/tam/pkg/workerstate"
	"github.com/rs/zerolog"
)

// Coordinator is the C4 Allocation Coordinator.
type Coordinator struct {
	client resourcemanager.Client
	logger zerolog.Logger
}

// New builds a Coordinator that submits container requests through
// client.
func New(client resourcemanager.Client, logger zerolog.Logger) *Coordinator {
	return &Coordinator{client: client, logger: logger.With().Str("component", "scheduler").Logger()}
}

// RequestWorkers submits one container request per worker, in ascending id
// order, per §4.4 ("Requests are issued serially to avoid the resource
// manager coalescing requests from the same tick"). The resource manager
// makes no guarantee that allocation N satisfies request N — callers must
// not assume any correlation.
func (c *Coordinator) RequestWorkers(workers []*types.LogicalWorker) error {
	sorted := make([]*types.LogicalWorker, len(workers))
	copy(sorted, workers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, w := range sorted {
		req := types.EvaluatorRequest{
			Count:    1,
			MemoryMB: bytesToMB(w.RequiredMem),
			Cores:    w.RequiredCores,
		}
		if err := c.client.Submit(req); err != nil {
			return tamerror.New(tamerror.ContainerAllocation, fmt.Errorf("submit request for worker %d: %w", w.ID, err))
		}
		metrics.ContainerRequestsTotal.Inc()
		log.WithWorkerID(c.logger, w.ID).Debug().Int64("mem_mb", req.MemoryMB).Int("cores", req.Cores).Msg("container request submitted")
	}
	return nil
}

// TaskConfigFunc builds the TaskConfig for a worker id, supplied by the
// caller (it knows the topology-wide fields that don't vary per worker).
type TaskConfigFunc func(workerID int) *types.TaskConfig

// OnAllocationGranted is the hot path (§4.4 steps 1-5). awaiting is the set
// of LogicalWorkers freshly constructed by the caller for every planned id
// absent from reg; it is empty when nothing is outstanding. The caller
// (pkg/tam.Controller) holds mutex M for the full duration of this call.
//
// It returns the worker that was bound, or nil if the allocation matched
// nothing (in which case it has already been closed).
func (c *Coordinator) OnAllocationGranted(
	allocation types.AllocationHandle,
	awaiting *set.Set[*types.LogicalWorker],
	reg *registry.Registry,
	taskConfig TaskConfigFunc,
) *types.LogicalWorker {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.FitDecisionDuration)

	metrics.AllocationsGrantedTotal.Inc()

	if awaiting.Empty() {
		_ = allocation.Close()
		log.WithAllocationID(c.logger, allocation.AllocationID()).Debug().Msg("no outstanding worker, allocation released")
		return nil
	}

	granted := fitting.Granted{Mem: allocation.GrantedMem(), Cores: allocation.GrantedCores()}
	winner := fitting.Fit(granted, awaiting, true)
	if winner == nil {
		metrics.AllocationFitMissTotal.Inc()
		log.WithAllocationID(c.logger, allocation.AllocationID()).Warn().
			Int64("granted_mem", granted.Mem).
			Int("granted_cores", granted.Cores).
			Msg("no pending worker fits granted allocation, releasing it")
		_ = allocation.Close()
		return nil
	}

	reg.Assign(winner, allocation)
	workerstate.Bind(winner)

	cfg := taskConfig(winner.ID)
	workerLogger := log.WithWorkerID(c.logger, winner.ID)
	if err := allocation.SubmitContext(cfg); err != nil {
		workerLogger.Error().Err(err).Msg("submitContext failed")
	} else {
		workerstate.SubmitContext(winner)
	}

	log.WithAllocationID(workerLogger, allocation.AllocationID()).Info().Msg("worker bound to allocation")

	return winner
}

// bytesToMB rounds up to the nearest whole megabyte, per §4.4
// ("requiredMem rounded to MB").
func bytesToMB(b int64) int64 {
	const mb = 1 << 20
	return int64(math.Ceil(float64(b) / mb))
}
