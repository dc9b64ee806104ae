package fitting

import (
	"testing"

	"github.com/hashicorp/go-set/v3"
	"github.com/heron-streaming/tam/pkg/types"
	"github.com/stretchr/testify/assert"
)

func worker(id int, mem int64, cores int) *types.LogicalWorker {
	return &types.LogicalWorker{ID: id, RequiredMem: mem, RequiredCores: cores}
}

func TestFitExactMatch(t *testing.T) {
	w1 := worker(1, 1<<30, 1)
	w2 := worker(2, 2<<30, 2)
	candidates := set.From([]*types.LogicalWorker{w1, w2})

	got := Fit(Granted{Mem: 1 << 30, Cores: 1}, candidates, false)
	assert.Same(t, w1, got)
}

func TestFitPicksLargestSurvivor(t *testing.T) {
	w1 := worker(1, 1<<30, 1)
	w2 := worker(2, 2<<30, 2)
	candidates := set.From([]*types.LogicalWorker{w1, w2})

	got := Fit(Granted{Mem: 2 << 30, Cores: 2}, candidates, false)
	assert.Same(t, w2, got)
}

func TestFitNoCandidateFits(t *testing.T) {
	w1 := worker(1, 4<<30, 1)
	candidates := set.From([]*types.LogicalWorker{w1})

	got := Fit(Granted{Mem: 2 << 30, Cores: 1}, candidates, false)
	assert.Nil(t, got)
}

func TestFitIgnoreCpuRelaxesCoreBound(t *testing.T) {
	w1 := worker(1, 1<<30, 4)
	candidates := set.From([]*types.LogicalWorker{w1})

	assert.Nil(t, Fit(Granted{Mem: 1 << 30, Cores: 1}, candidates, false))
	assert.Same(t, w1, Fit(Granted{Mem: 1 << 30, Cores: 1}, candidates, true))
}

func TestFitMemoryIsNeverRelaxed(t *testing.T) {
	w1 := worker(1, 4<<30, 1)
	candidates := set.From([]*types.LogicalWorker{w1})

	assert.Nil(t, Fit(Granted{Mem: 1 << 30, Cores: 99}, candidates, true))
}

func TestFitEmptyCandidateSet(t *testing.T) {
	candidates := set.New[*types.LogicalWorker](0)
	assert.Nil(t, Fit(Granted{Mem: 1 << 30, Cores: 1}, candidates, false))
}
