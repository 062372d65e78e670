package workflow

import (
	"sort"

	"github.com/gudastudio/maw/internal/errors"
)

// computeStages groups phase indices into sequential stages using the
// Inputs/Outputs artifact edges. A phase that consumes another phase's
// output lands in a strictly later stage. Within a stage, indices stay in
// declared order so scheduling is deterministic.
//
// BFS over in-degrees, level by level. A cycle leaves phases unplaced and
// is reported as an error.
func computeStages(phases []Phase) ([][]int, error) {
	if len(phases) == 0 {
		return nil, nil
	}

	// Map each artifact name to the phases that produce it.
	producers := make(map[string][]int)
	for i, p := range phases {
		for _, out := range p.Outputs {
			producers[out] = append(producers[out], i)
		}
	}

	inDegree := make([]int, len(phases))
	dependents := make(map[int][]int)
	for i, p := range phases {
		seen := make(map[int]bool)
		for _, in := range p.Inputs {
			for _, producer := range producers[in] {
				if producer == i || seen[producer] {
					continue
				}
				seen[producer] = true
				inDegree[i]++
				dependents[producer] = append(dependents[producer], i)
			}
		}
	}

	var stages [][]int
	var current []int
	for i, deg := range inDegree {
		if deg == 0 {
			current = append(current, i)
		}
	}

	placed := 0
	for len(current) > 0 {
		sort.Ints(current)
		stages = append(stages, current)
		placed += len(current)

		var next []int
		for _, i := range current {
			for _, dep := range dependents[i] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		current = next
	}

	if placed != len(phases) {
		return nil, errors.NewWorkflowError("phases form a cycle", errors.ErrDependencyCycle)
	}
	return stages, nil
}

// sequentialStages places each phase in its own stage, in declared order.
func sequentialStages(phases []Phase) [][]int {
	stages := make([][]int, len(phases))
	for i := range phases {
		stages[i] = []int{i}
	}
	return stages
}
