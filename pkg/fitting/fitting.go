// Package fitting implements the Fitting Policy (C2): given a granted
// allocation's shape and the set of unassigned logical workers, choose the
// largest one that fits.
package fitting

import (
	"github.com/hashicorp/go-set/v3"
	"github.com/heron-streaming/tam/pkg/types"
)

// Granted is the shape of a physical allocation returned by the resource
// manager — possibly larger than any single request.
type Granted struct {
	Mem   int64
	Cores int
}

// Fit chooses the candidate that maximises (requiredMem, requiredCores)
// among those that fit granted, per §4.2.
//
// The dominance rule is intentionally asymmetric and not a total order: a
// candidate A replaces the current winner B unless A is strictly smaller
// than B on some dimension (A.Mem < B.Mem or A.Cores < B.Cores). Two
// candidates that are incomparable — one ahead on memory, the other ahead
// on cores — do not have a single correct answer; this preserves that
// behavior rather than imposing a tie-break the source doesn't have. The
// set's iteration order decides ties, which is why the contract only
// promises "the first survivor encountered," not a deterministic winner
// across incomparable candidates.
//
// ignoreCpu relaxes the core-count constraint: some cluster configurations
// disable CPU scheduling and report a default core count on every
// allocation, which would otherwise make every candidate requiring more
// than that default unfittable. Memory is never relaxed.
func Fit(granted Granted, candidates *set.Set[*types.LogicalWorker], ignoreCpu bool) *types.LogicalWorker {
	var winner *types.LogicalWorker

	for _, c := range candidates.Slice() {
		if c.RequiredMem > granted.Mem {
			continue
		}
		if !ignoreCpu && c.RequiredCores > granted.Cores {
			continue
		}

		if winner == nil {
			winner = c
			continue
		}

		if smallerOnSomeDimension(c, winner) {
			continue
		}
		winner = c
	}

	return winner
}

// smallerOnSomeDimension reports whether a is strictly smaller than b on
// memory or cores — the condition under which a must NOT replace b.
func smallerOnSomeDimension(a, b *types.LogicalWorker) bool {
	return a.RequiredMem < b.RequiredMem || a.RequiredCores < b.RequiredCores
}
