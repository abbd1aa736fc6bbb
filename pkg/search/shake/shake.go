// Package shake implements the perturbation routines that escape the
// current basin before a local-search routine descends again. Every
// variant shares the contract
// Shake(x *solution.Info, k uint64) applying k accepted steps, or fewer
// if it cannot find a feasible perturbation.
package shake

import (
	"golang.org/x/exp/rand"

	"reassign/pkg/solution"
)

// Routine is the uniform capability every shake variant presents,
// mirroring the closed, small family of local-search routines: a plain
// interface rather than a heavier plugin mechanism.
type Routine interface {
	Shake(x *solution.Info, k uint64)
}

type proposer struct {
	rng *rand.Rand
	mv  *solution.MoveVerifier
	ev  *solution.ExchangeVerifier
}

func newProposer(x *solution.Info, rng *rand.Rand) *proposer {
	return &proposer{rng: rng, mv: solution.NewMoveVerifier(x), ev: solution.NewExchangeVerifier(x)}
}

func (pr *proposer) randomMove(x *solution.Info) solution.Move {
	p := pr.rng.Intn(len(x.Solution()))
	m := pr.rng.Intn(len(x.Problem().Machines))
	return solution.Move{P: p, Src: x.Solution()[p], Dst: m}
}

func (pr *proposer) randomExchange(x *solution.Info) solution.Exchange {
	sol := x.Solution()
	p1 := pr.rng.Intn(len(sol))
	p2 := pr.rng.Intn(len(sol))
	for p2 == p1 {
		p2 = pr.rng.Intn(len(sol))
	}
	return solution.Exchange{M1: sol[p1], P1: p1, M2: sol[p2], P2: p2}
}

// tryStep proposes a single move or exchange (chosen with equal
// probability) and commits it if feasible, regardless of whether it
// improves the objective -- shaking accepts any feasible perturbation.
func (pr *proposer) tryStep(x *solution.Info) bool {
	if pr.rng.Intn(2) == 0 {
		mv := pr.randomMove(x)
		if mv.Src == mv.Dst || !pr.mv.Feasible(mv) {
			return false
		}
		pr.mv.Commit(mv)
		return true
	}
	ex := pr.randomExchange(x)
	if ex.P1 == ex.P2 || !pr.ev.Feasible(ex) {
		return false
	}
	pr.ev.Commit(ex)
	return true
}

// DefaultMaxTrials bounds the number of proposals attempted per step
// before giving up on that step.
const DefaultMaxTrials = 100

// Random alternates move and exchange proposals, accepting the first
// feasible one per step regardless of objective; it stops early if a
// step exhausts MaxTrials without finding one.
type Random struct {
	Rng       *rand.Rand
	MaxTrials int
}

func (r *Random) Shake(x *solution.Info, k uint64) {
	pr := newProposer(x, r.Rng)
	maxTrials := r.MaxTrials
	if maxTrials <= 0 {
		maxTrials = DefaultMaxTrials
	}
	for step := uint64(0); step < k; step++ {
		ok := false
		for t := 0; t < maxTrials; t++ {
			if pr.tryStep(x) {
				ok = true
				break
			}
		}
		if !ok {
			return
		}
	}
}

// Deep runs Samples independent random shakes of length k from a
// snapshot of x and keeps the one with the smallest resulting objective.
type Deep struct {
	Rng       *rand.Rand
	MaxTrials int
	Samples   int
}

func (d *Deep) Shake(x *solution.Info, k uint64) {
	samples := d.Samples
	if samples <= 0 {
		samples = 5
	}
	base := x.Clone()
	var bestSol []int
	bestObj := x.Objective()
	hasBest := false

	for i := 0; i < samples; i++ {
		trial := base.Clone()
		r := Random{Rng: d.Rng, MaxTrials: d.MaxTrials}
		r.Shake(trial, k)
		if obj := trial.Objective(); !hasBest || obj < bestObj {
			bestObj = obj
			bestSol = append([]int(nil), trial.Solution()...)
			hasBest = true
		}
	}
	if !hasBest {
		return
	}
	replaceInPlace(x, bestSol)
}

// replaceInPlace rebuilds x's derived state for the new assignment,
// mirroring the "recompute from scratch" verifier since a shake result
// bears no useful delta relationship to the original x.
func replaceInPlace(x *solution.Info, sol []int) {
	fresh := solution.New(x.Problem(), x.Initial(), sol)
	*x = *fresh
}
