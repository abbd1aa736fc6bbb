package relink

import (
	"strings"
	"testing"

	"golang.org/x/exp/rand"

	"reassign/pkg/pool"
	"reassign/pkg/problem"
	"reassign/pkg/search/localsearch"
	"reassign/pkg/solution"
)

// concentratedInstance mirrors the VNS test fixture: four single-process
// services, cheap to relocate, with real load-cost headroom between a
// concentrated and a spread-out assignment.
const concentratedInstance = `1
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

func loadConcentrated(t *testing.T) *problem.Problem {
	t.Helper()
	p, err := problem.Parse(strings.NewReader(concentratedInstance))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestWalkNeverWorsensTheBetterEndpoint(t *testing.T) {
	p := loadConcentrated(t)
	initial := []int{0, 0, 0, 0}

	s1 := []int{0, 1, 2, 3} // spread out, near-optimal
	s2 := []int{0, 0, 0, 0} // concentrated, far from optimal

	r := &Relinker{Cfg: DefaultConfig(), Rng: rand.New(rand.NewSource(1))}
	sol, obj := r.walk(p, initial, s1, s2, func() bool { return false })

	s1Obj := solution.New(p, initial, s1).Objective()
	if obj > s1Obj {
		t.Fatalf("path relinking must find something at least as good as the better endpoint: walked=%d endpoint=%d", obj, s1Obj)
	}
	if sol == nil {
		t.Fatalf("expected a non-nil walked solution")
	}
	check := solution.New(p, initial, sol)
	if check.Objective() != obj {
		t.Fatalf("returned objective %d does not match the returned solution's actual objective %d", obj, check.Objective())
	}
}

func TestRelinkOnceDoesNotRegressPoolBest(t *testing.T) {
	p := loadConcentrated(t)
	initial := []int{0, 0, 0, 0}
	start := solution.NewFromInitial(p, initial)

	pl := pool.New(pool.DefaultConfig(), 2, start.Objective(), start.Solution())
	// Push a second, spread-out (and better) solution so RandomHighQuality
	// has more than one candidate and Best() reflects the improvement.
	better := []int{0, 1, 2, 3}
	betterObj := solution.New(p, initial, better).Objective()
	pl.Push(betterObj, better)

	r := New(DefaultConfig(), 3, pl, &localsearch.Random{Rng: rand.New(rand.NewSource(4))})
	r.relinkOnce(p, initial, func() bool { return false })

	best, ok := pl.Best()
	if !ok {
		t.Fatalf("expected a best entry in the pool")
	}
	if best.Objective > betterObj {
		t.Fatalf("pool best must not regress below what was already pushed: best=%d pushedBetter=%d", best.Objective, betterObj)
	}
}

func TestRelinkOnceSkipsWhenEndpointsAreTooClose(t *testing.T) {
	p := loadConcentrated(t)
	initial := []int{0, 0, 0, 0}
	start := solution.NewFromInitial(p, initial)

	pl := pool.New(pool.DefaultConfig(), 5, start.Objective(), start.Solution())
	r := New(DefaultConfig(), 6, pl, &localsearch.Random{Rng: rand.New(rand.NewSource(7))})

	// With only the initial solution in the pool, RandomHighQuality and
	// Best() return the same entry: Hamming distance 0, below the
	// relinking threshold, so relinkOnce must be a no-op.
	before, _ := pl.Best()
	r.relinkOnce(p, initial, func() bool { return false })
	after, _ := pl.Best()

	if before.Objective != after.Objective {
		t.Fatalf("relinkOnce should not have found two distinct endpoints to walk between: before=%d after=%d", before.Objective, after.Objective)
	}
}
