package solution

import (
	"strings"
	"testing"

	"reassign/pkg/problem"
)

// conflictInstance is a tiny two-machine instance whose single service
// has two processes; stacking both onto machine 0 violates conflict --
// used to exercise move feasibility and deltas.
const conflictInstance = `1
0 1
2
0 0 10 10 0 1
0 1 10 10 1 0
1
1 0
2
0 3 5
0 3 5
0
1 1 1
`

// transientInstance has one transient resource and three single-process
// services; it exercises the rule that a process returning to its
// initial machine does not contribute to that machine's transient load.
const transientInstance = `1
1 1
2
0 0 10 10 0 0
0 0 10 10 0 0
3
1 0
1 0
1 0
3
0 6 0
1 4 0
2 1 0
0
1 0 0
`

// dependencyInstance has two neighborhoods and a service edge s0 -> s1:
// every neighborhood hosting a process of s0 must also host one of s1.
const dependencyInstance = `1
0 1
2
0 0 10 10 0 0
1 1 10 10 0 0
2
1 1 1
1 0
2
0 1 0
1 1 0
0
1 1 1
`

// twoServiceInstance has two single-process services on two machines;
// exchanging the processes moves both away from their initial machines
// at once, so the service-move cost rises by exactly one even though two
// services' moved counts change.
const twoServiceInstance = `1
0 1
2
0 0 10 10 0 1
0 0 10 10 1 0
2
1 0
1 0
2
0 1 0
1 1 0
0
1 1 1
`

func parseInstance(t *testing.T, raw string) *problem.Problem {
	t.Helper()
	p, err := problem.Parse(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

// infoWith builds a SolutionInfo directly from an assignment vector,
// bypassing feasibility checks -- tests need this to set up states a
// verifier's Feasible() would reject as a starting point.
func infoWith(p *problem.Problem, initial, sol []int) *Info {
	return New(p, append([]int(nil), initial...), sol)
}

func TestMoveFeasibilityResolvesConflict(t *testing.T) {
	p := parseInstance(t, conflictInstance)
	info := infoWith(p, []int{0, 0}, []int{0, 0})
	mv := NewMoveVerifier(info)

	move := Move{P: 1, Src: 0, Dst: 1}
	if !mv.Feasible(move) {
		t.Fatalf("expected move to machine 1 to be feasible")
	}
	obj := mv.Objective(move)
	mv.Commit(move)
	if info.Objective() != obj {
		t.Fatalf("commit objective %d != evaluated objective %d", info.Objective(), obj)
	}
	// process_move=5 + service_move=1 + machine_move=1, load/balance = 0.
	if obj != 7 {
		t.Fatalf("objective = %d, want 7", obj)
	}
	if info.Solution()[1] != 1 {
		t.Fatalf("process 1 should now be on machine 1")
	}
}

func TestMoveSelfIsNoop(t *testing.T) {
	p := parseInstance(t, conflictInstance)
	info := infoWith(p, []int{0, 1}, []int{0, 1})
	mv := NewMoveVerifier(info)
	before := info.Objective()
	move := Move{P: 0, Src: 0, Dst: 0}
	if !mv.Feasible(move) {
		t.Fatalf("self-move must be feasible")
	}
	if mv.Objective(move) != before {
		t.Fatalf("self-move objective must equal current objective")
	}
	mv.Commit(move)
	if info.Objective() != before {
		t.Fatalf("self-move commit must be a no-op")
	}
}

func TestMoveCommitThenReverseReturnsToStart(t *testing.T) {
	p := parseInstance(t, twoServiceInstance)
	info := infoWith(p, []int{0, 1}, []int{0, 1})
	mv := NewMoveVerifier(info)
	snapshot := info.Clone()

	move := Move{P: 0, Src: 0, Dst: 1}
	if !mv.Feasible(move) {
		t.Fatalf("move should be feasible")
	}
	mv.Commit(move)
	mv.Commit(Move{P: 0, Src: 1, Dst: 0})

	ok, diff := equalInfo(info, snapshot)
	if !ok {
		t.Fatalf("commit+reverse did not return to start: %s", diff)
	}
}

func TestExchangeCommitThenReverseReturnsToStart(t *testing.T) {
	p := parseInstance(t, conflictInstance)
	info := infoWith(p, []int{0, 1}, []int{0, 1})
	ev := NewExchangeVerifier(info)
	snapshot := info.Clone()

	ex := Exchange{M1: 0, P1: 0, M2: 1, P2: 1}
	ev.Commit(ex)
	ev.Commit(ex.Reverse())

	ok, diff := equalInfo(info, snapshot)
	if !ok {
		t.Fatalf("exchange commit+reverse did not return to start: %s", diff)
	}
}

func TestExchangeServiceMoveCostRisesByOneNotTwo(t *testing.T) {
	p := parseInstance(t, twoServiceInstance)
	info := infoWith(p, []int{0, 1}, []int{0, 1})
	ev := NewExchangeVerifier(info)

	ex := Exchange{M1: 0, P1: 0, M2: 1, P2: 1}
	if !ev.Feasible(ex) {
		t.Fatalf("expected the exchange to be feasible")
	}
	obj := ev.Objective(ex)
	ev.Commit(ex)

	if info.Objective() != obj {
		t.Fatalf("commit objective %d != evaluated objective %d", info.Objective(), obj)
	}
	// Both services' moved counts go 0 -> 1, but the maximum across
	// services only rises from 0 to 1.
	if info.ServiceMoveCost() != 1 {
		t.Fatalf("service move cost = %d, want 1", info.ServiceMoveCost())
	}
	if ok, diff := info.AssertConsistent(); !ok {
		t.Fatalf("inconsistent after exchange: %s", diff)
	}
}

func TestTransientReturnToInitialIsExempt(t *testing.T) {
	p := parseInstance(t, transientInstance)
	// Process 0 (req 6) started on machine 0 and currently sits on
	// machine 1, so machine 0 carries 6 units of transient load on top
	// of process 1's 4 units of usage: exactly at capacity 10.
	initial := []int{0, 0, 1}
	info := infoWith(p, initial, []int{1, 0, 1})
	mv := NewMoveVerifier(info)

	if info.Transient(0, 0) != 6 {
		t.Fatalf("transient usage on machine 0 = %d, want 6", info.Transient(0, 0))
	}

	// Returning process 0 to its initial machine adds no transient
	// requirement, so 4 + 6 + 0 <= 10 holds.
	back := Move{P: 0, Src: 1, Dst: 0}
	if !mv.Feasible(back) {
		t.Fatalf("returning to the initial machine must not count against transient capacity")
	}

	// Any other process entering machine 0 does contribute: 4 + 6 + 1 > 10.
	in := Move{P: 2, Src: 1, Dst: 0}
	if mv.Feasible(in) {
		t.Fatalf("expected transient capacity to reject a non-returning arrival")
	}
}

func TestMoveDependencyConstraints(t *testing.T) {
	p := parseInstance(t, dependencyInstance)
	// Both processes in neighborhood 0; service 0 depends on service 1.
	info := infoWith(p, []int{0, 0}, []int{0, 0})
	mv := NewMoveVerifier(info)

	// Moving the dependee out would strand service 0 in neighborhood 0.
	if mv.Feasible(Move{P: 1, Src: 0, Dst: 1}) {
		t.Fatalf("expected dependency check to reject emptying neighborhood 0 of service 1")
	}
	// Moving the depender into a neighborhood without its dependee.
	if mv.Feasible(Move{P: 0, Src: 0, Dst: 1}) {
		t.Fatalf("expected dependency check to reject entering a neighborhood without service 1")
	}
}

func TestAssertConsistentAfterCommit(t *testing.T) {
	p := parseInstance(t, conflictInstance)
	info := infoWith(p, []int{0, 0}, []int{0, 0})
	mv := NewMoveVerifier(info)
	mv.Commit(Move{P: 1, Src: 0, Dst: 1})
	if ok, diff := info.AssertConsistent(); !ok {
		t.Fatalf("inconsistent after commit: %s", diff)
	}
}

func TestBatchVerifierTracksConflictViolation(t *testing.T) {
	p := parseInstance(t, conflictInstance)
	info := infoWith(p, []int{0, 1}, []int{0, 1})
	bv := NewBatchVerifier(info)
	if !bv.Feasible() {
		t.Fatalf("starting solution should be feasible")
	}
	bv.Update(Move{P: 1, Src: 1, Dst: 0})
	if bv.Feasible() {
		t.Fatalf("expected conflict violation after moving both processes onto machine 0")
	}
	if _, ok := bv.ConflictViolations()[ConflictViolation{Service: 0, Machine: 0}]; !ok {
		t.Fatalf("expected a tracked conflict violation for service 0 on machine 0")
	}
	bv.Rollback(Move{P: 1, Src: 1, Dst: 0})
	if !bv.Feasible() {
		t.Fatalf("expected feasibility restored after rollback")
	}
}

func TestBatchVerifierObjectiveMatchesRecompute(t *testing.T) {
	p := parseInstance(t, conflictInstance)
	info := infoWith(p, []int{0, 1}, []int{0, 1})
	bv := NewBatchVerifier(info)

	moves := []Move{
		{P: 0, Src: 0, Dst: 1},
		{P: 1, Src: 1, Dst: 0},
	}
	bv.UpdateBatch(moves)

	fresh := New(p, info.Initial(), info.Solution())
	if bv.Objective() != fresh.Objective() {
		t.Fatalf("batch objective %d != recomputed objective %d", bv.Objective(), fresh.Objective())
	}

	bv.RollbackBatch(moves)
	fresh = New(p, info.Initial(), info.Solution())
	if bv.Objective() != fresh.Objective() {
		t.Fatalf("batch objective after rollback %d != recomputed objective %d", bv.Objective(), fresh.Objective())
	}
}
