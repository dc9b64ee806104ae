package scheduler

import (
	"strconv"
	"testing"

	"github.com/hashicorp/go-set/v3"
	"github.com/heron-streaming/tam/pkg/registry"
	"github.com/heron-streaming/tam/pkg/resourcemanager/sim"
	"github.com/heron-streaming/tam/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(id int) *types.TaskConfig {
	return &types.TaskConfig{ContainerID: strconv.Itoa(id)}
}

func TestRequestWorkersIsAscendingAndRoundsMB(t *testing.T) {
	s := sim.New()
	c := New(s, zerolog.Nop())

	w2 := types.NewLogicalWorker(2, types.RequiredResource{RAM: 1, CPU: 1})
	w1 := types.NewLogicalWorker(1, types.RequiredResource{RAM: (1 << 20) + 1, CPU: 0.1})

	require.NoError(t, c.RequestWorkers([]*types.LogicalWorker{w2, w1}))

	reqs := s.Requests()
	require.Len(t, reqs, 2)
	assert.EqualValues(t, 1, reqs[0].Cores, "worker 1 requested first (ascending id)")
	assert.EqualValues(t, 2, reqs[0].MemoryMB, "1MB+1byte rounds up to 2MB")
	assert.EqualValues(t, 1, reqs[1].MemoryMB)
}

func TestOnAllocationGrantedBindsLargestFit(t *testing.T) {
	s := sim.New()
	c := New(s, zerolog.Nop())
	reg := registry.New()

	w1 := types.NewLogicalWorker(1, types.RequiredResource{RAM: 1 << 30, CPU: 1})
	w2 := types.NewLogicalWorker(2, types.RequiredResource{RAM: 2 << 30, CPU: 2})
	awaiting := set.From([]*types.LogicalWorker{w1, w2})

	alloc := s.Grant(2<<30, 2)
	winner := c.OnAllocationGranted(alloc, awaiting, reg, testConfig)

	require.NotNil(t, winner)
	assert.Equal(t, 2, winner.ID)
	assert.Equal(t, types.StateBound, winner.State)
	assert.Same(t, winner, reg.LookupByID(2))
}

func TestOnAllocationGrantedNoFitClosesAllocation(t *testing.T) {
	s := sim.New()
	c := New(s, zerolog.Nop())
	reg := registry.New()

	w1 := types.NewLogicalWorker(1, types.RequiredResource{RAM: 4 << 30, CPU: 1})
	awaiting := set.From([]*types.LogicalWorker{w1})

	alloc := s.Grant(2<<30, 1)
	winner := c.OnAllocationGranted(alloc, awaiting, reg, testConfig)

	assert.Nil(t, winner)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, []string{alloc.AllocationID()}, s.ClosedAllocations())
}

func TestOnAllocationGrantedEmptyAwaitingClosesAllocation(t *testing.T) {
	s := sim.New()
	c := New(s, zerolog.Nop())
	reg := registry.New()

	alloc := s.Grant(1<<30, 1)
	winner := c.OnAllocationGranted(alloc, set.New[*types.LogicalWorker](0), reg, testConfig)

	assert.Nil(t, winner)
	assert.Equal(t, []string{alloc.AllocationID()}, s.ClosedAllocations())
}
