package shake

import (
	"strings"
	"testing"

	"golang.org/x/exp/rand"

	"reassign/pkg/problem"
	"reassign/pkg/solution"
)

// fourProcessInstance gives every shake variant enough machines and
// processes to have real moves and exchanges to pick from.
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

func loadFourProcess(t *testing.T) (*problem.Problem, []int) {
	t.Helper()
	p, err := problem.Parse(strings.NewReader(fourProcessInstance))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	initial := []int{0, 1, 2, 3}
	return p, initial
}

func TestRandomShakeStaysFeasible(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.NewFromInitial(p, initial)
	r := &Random{Rng: rand.New(rand.NewSource(1))}
	r.Shake(x, 10)
	bv := solution.NewBatchVerifier(x)
	if !bv.Feasible() {
		t.Fatalf("solution infeasible after Random.Shake")
	}
	if ok, diff := x.AssertConsistent(); !ok {
		t.Fatalf("inconsistent state after Random.Shake: %s", diff)
	}
}

func TestDeepShakeStaysFeasible(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.NewFromInitial(p, initial)
	d := &Deep{Rng: rand.New(rand.NewSource(2)), Samples: 4}
	d.Shake(x, 6)
	bv := solution.NewBatchVerifier(x)
	if !bv.Feasible() {
		t.Fatalf("solution infeasible after Deep.Shake")
	}
	if ok, diff := x.AssertConsistent(); !ok {
		t.Fatalf("inconsistent state after Deep.Shake: %s", diff)
	}
}

func TestSmartShakeRepairsOrRollsBack(t *testing.T) {
	p, initial := loadFourProcess(t)
	x := solution.NewFromInitial(p, initial)
	s := &Smart{Rng: rand.New(rand.NewSource(3))}
	s.Shake(x, 8)
	bv := solution.NewBatchVerifier(x)
	if !bv.Feasible() {
		t.Fatalf("Smart.Shake must always leave a feasible solution, even when a retry exhausts itself")
	}
	if ok, diff := x.AssertConsistent(); !ok {
		t.Fatalf("inconsistent state after Smart.Shake: %s", diff)
	}
}
