package localsearch

import (
	"strings"
	"testing"

	"golang.org/x/exp/rand"

	"reassign/pkg/problem"
	"reassign/pkg/solution"
)

// fourProcessInstance gives every local-search variant a
// badly-concentrated starting point: four single-process services,
// all four processes piling onto machine 0 (usage 16), past both its
// safety capacity (3) and its capacity (10), so the start is infeasible,
// with every other machine empty and zero move cost -- so
// there is real, cost-free load-balancing headroom to find.
const fourProcessInstance = `1
0 1
4
0 0 10 3 0 0 0 0
0 1 10 3 0 0 0 0
0 2 10 3 0 0 0 0
0 3 10 3 0 0 0 0
4
1 0
1 0
1 0
1 0
4
0 4 0
1 4 0
2 4 0
3 4 0
0
1 1 1
`

func loadFourProcess(t *testing.T) (*problem.Problem, []int) {
	t.Helper()
	p, err := problem.Parse(strings.NewReader(fourProcessInstance))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	initial := []int{0, 0, 0, 0}
	return p, initial
}

func neverInterrupt() bool { return false }

func assertFeasibleAndConsistent(t *testing.T, x *solution.Info) {
	t.Helper()
	bv := solution.NewBatchVerifier(x)
	if !bv.Feasible() {
		t.Fatalf("solution infeasible after search")
	}
	if ok, diff := x.AssertConsistent(); !ok {
		t.Fatalf("inconsistent state after search: %s", diff)
	}
}

func TestRandomLocalSearchOnlyImproves(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.New(p, initial, []int{0, 0, 0, 0})
	before := x.Objective()

	r := &Random{Rng: rand.New(rand.NewSource(1)), MaxTrials: 200}
	r.Search(x, neverInterrupt)

	if x.Objective() > before {
		t.Fatalf("local search must never worsen the objective: before=%d after=%d", before, x.Objective())
	}
	assertFeasibleAndConsistent(t, x)
}

func TestDeepLocalSearchOnlyImproves(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.New(p, initial, []int{0, 0, 0, 0})
	before := x.Objective()

	d := &Deep{Rng: rand.New(rand.NewSource(2)), MaxTrials: 200, MaxSamples: 8}
	d.Search(x, neverInterrupt)

	if x.Objective() > before {
		t.Fatalf("local search must never worsen the objective: before=%d after=%d", before, x.Objective())
	}
	assertFeasibleAndConsistent(t, x)
}

func TestSequentialLocalSearchOnlyImproves(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.New(p, initial, []int{0, 0, 0, 0})
	before := x.Objective()

	s := &Sequential{Rng: rand.New(rand.NewSource(3)), MaxSamples: 8, ReseedEvery: 4}
	s.Search(x, neverInterrupt)

	if x.Objective() > before {
		t.Fatalf("local search must never worsen the objective: before=%d after=%d", before, x.Objective())
	}
	assertFeasibleAndConsistent(t, x)
}

func TestSmartLocalSearchOnlyImproves(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.New(p, initial, []int{0, 0, 0, 0})
	before := x.Objective()

	sm := &Smart{Rng: rand.New(rand.NewSource(4)), MaxTrials: 200, MaxSamples: 8}
	sm.Search(x, neverInterrupt)

	if x.Objective() > before {
		t.Fatalf("local search must never worsen the objective: before=%d after=%d", before, x.Objective())
	}
	assertFeasibleAndConsistent(t, x)
}

func TestLocalSearchIdempotentAtLocalOptimum(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.New(p, initial, []int{0, 1, 2, 3})

	r := &Random{Rng: rand.New(rand.NewSource(5)), MaxTrials: 50}
	r.Search(x, neverInterrupt)

	before := append([]int(nil), x.Solution()...)
	beforeObj := x.Objective()

	r2 := &Random{Rng: rand.New(rand.NewSource(5)), MaxTrials: 50}
	r2.Search(x, neverInterrupt)

	if x.Objective() != beforeObj {
		t.Fatalf("search from a local optimum should not change the objective: before=%d after=%d", beforeObj, x.Objective())
	}
	for i, m := range before {
		if x.Solution()[i] != m {
			t.Fatalf("search from a local optimum should leave the assignment unchanged at process %d: before=%d after=%d", i, m, x.Solution()[i])
		}
	}
}

func TestRandomLocalSearchRespectsInterrupt(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.New(p, initial, []int{0, 0, 0, 0})

	calls := 0
	interrupt := func() bool {
		calls++
		return calls > 1
	}

	r := &Random{Rng: rand.New(rand.NewSource(6)), MaxTrials: 1000000}
	r.Search(x, interrupt)

	if calls <= 1 {
		t.Fatalf("expected interrupt to be polled at least twice, got %d", calls)
	}
}
