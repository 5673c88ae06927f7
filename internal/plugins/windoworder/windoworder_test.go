package windoworder

import "testing"

func TestWeightForExactKeyWins(t *testing.T) {
	weights := map[string]uint32{"firefox": 10, "fire": 5}
	if got := weightFor("firefox", weights, 1); got != 10 {
		t.Errorf("weightFor(exact) = %d, want 10", got)
	}
}

func TestWeightForSubstringFallback(t *testing.T) {
	weights := map[string]uint32{"fire": 5}
	if got := weightFor("firefox", weights, 1); got != 5 {
		t.Errorf("weightFor(substring) = %d, want 5", got)
	}
}

func TestWeightForDefault(t *testing.T) {
	weights := map[string]uint32{"chrome": 5}
	if got := weightFor("firefox", weights, 3); got != 3 {
		t.Errorf("weightFor(default) = %d, want 3", got)
	}
}

func TestComputeTargetColumnsStableOnTies(t *testing.T) {
	items := []item{
		{id: 1, column: 0, weight: 5, inputIx: 0},
		{id: 2, column: 1, weight: 5, inputIx: 1},
		{id: 3, column: 2, weight: 5, inputIx: 2},
	}
	target := computeTargetColumns(items)
	if target[1] != 0 || target[2] != 1 || target[3] != 2 {
		t.Errorf("equal-weight permutation changed order: %+v", target)
	}
}

func TestComputeTargetColumnsHigherWeightLeftward(t *testing.T) {
	items := []item{
		{id: 1, column: 0, weight: 1},
		{id: 2, column: 1, weight: 10},
	}
	target := computeTargetColumns(items)
	if target[2] != 0 || target[1] != 1 {
		t.Errorf("higher weight did not move leftward: %+v", target)
	}
}

func TestGreedyMoveSimulationConvergesWithinCap(t *testing.T) {
	current := map[uint64]int{1: 0, 2: 1, 3: 2}
	target := map[uint64]int{1: 2, 2: 1, 3: 0}

	for i := 0; i < maxIterations && !permutationMatches(current, target); i++ {
		bestID, bestFrom, bestTo, bestScore := uint64(0), 0, 0, -1
		found := false
		for id, from := range current {
			to := target[id]
			if from == to {
				continue
			}
			sim := simulateMove(current, id, from, to)
			score := scoreAgainstTarget(sim, target)
			if score > bestScore {
				bestID, bestFrom, bestTo, bestScore = id, from, to, score
				found = true
			}
		}
		if !found {
			break
		}
		current = simulateMove(current, bestID, bestFrom, bestTo)
	}
	if !permutationMatches(current, target) {
		t.Errorf("did not converge: %+v vs %+v", current, target)
	}
}

func TestAllEqualWeightsZeroMoves(t *testing.T) {
	items := []item{
		{id: 1, column: 0, weight: 5},
		{id: 2, column: 1, weight: 5},
		{id: 3, column: 2, weight: 5},
	}
	target := computeTargetColumns(items)
	current := map[uint64]int{1: 0, 2: 1, 3: 2}
	if !permutationMatches(current, target) {
		t.Errorf("equal weights should already match target: current=%+v target=%+v", current, target)
	}
}
