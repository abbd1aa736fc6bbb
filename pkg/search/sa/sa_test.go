package sa

import (
	"strings"
	"testing"

	"reassign/pkg/pool"
	"reassign/pkg/problem"
	"reassign/pkg/solution"
)

const fourProcessInstance = `1
0 1
4
0 0 10 10 0 1 1 1
0 1 10 10 1 0 1 1
0 2 10 10 1 1 0 1
0 3 10 10 1 1 1 0
1
1 0
4
0 2 5
0 2 5
0 2 5
0 2 5
0
1 1 1
`

func countingInterrupt(n int) func() bool {
	count := 0
	return func() bool {
		count++
		return count > n
	}
}

func TestSimulatedAnnealingStaysFeasibleAndImproves(t *testing.T) {
	p, err := problem.Parse(strings.NewReader(fourProcessInstance))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	initial := []int{0, 1, 2, 3}
	x := solution.NewFromInitial(p, initial)
	before := x.Objective()

	pl := pool.New(pool.DefaultConfig(), 1, before, initial)
	s := New(DefaultConfig(), 7, pl)
	s.Run(x, countingInterrupt(20))

	if ok, diff := x.AssertConsistent(); !ok {
		t.Fatalf("inconsistent state after SimulatedAnnealing.Run: %s", diff)
	}
	bv := solution.NewBatchVerifier(x)
	if !bv.Feasible() {
		t.Fatalf("solution infeasible after SimulatedAnnealing.Run")
	}
	if x.Objective() > before {
		t.Fatalf("objective %d regressed from %d", x.Objective(), before)
	}
}

func TestPMoveMonotonicInTemperature(t *testing.T) {
	s := &SimulatedAnnealing{Cfg: DefaultConfig()}
	low := s.pMove(1e-3, 100, 1e-3)
	high := s.pMove(100, 100, 1e-3)
	if low > high {
		t.Fatalf("pMove(tMin)=%v should not exceed pMove(tMax)=%v", low, high)
	}
	if low < s.Cfg.PMin-1e-9 || high > s.Cfg.PMax+1e-9 {
		t.Fatalf("pMove out of [PMin,PMax] bounds: low=%v high=%v", low, high)
	}
}
