// Package relink implements path relinking: a pool consumer that,
// on each notification, walks a path between two high-quality solutions
// by greedily closing their differences, tracks the best objective seen
// along the way, refines it with a local search, and republishes it if
// it is close enough to the pool's current best.
package relink

import (
	"golang.org/x/exp/rand"

	"reassign/pkg/pool"
	"reassign/pkg/problem"
	"reassign/pkg/search/localsearch"
	"reassign/pkg/solution"
)

// Config tunes the publish threshold: a relinked-and-refined solution is
// only republished if its objective is within PublishRatio of the pool's
// best, avoiding flooding the pool with mediocre path midpoints.
type Config struct {
	PublishRatio float64
}

// DefaultConfig uses a 1.1x publish threshold; it is a tunable, not a
// principled constant.
func DefaultConfig() Config { return Config{PublishRatio: 1.1} }

// Relinker is one worker's path-relinking consumer loop.
type Relinker struct {
	Cfg         Config
	Rng         *rand.Rand
	Pool        *pool.Pool
	Sub         *pool.Subscription
	LocalSearch localsearch.Routine

	// OnIteration, if set, is called once per processed pool
	// notification (this worker's outer loop), for the engine's metrics.
	OnIteration func()
}

// New subscribes to p and builds a Relinker ready to Run.
func New(cfg Config, seed uint64, p *pool.Pool, ls localsearch.Routine) *Relinker {
	return &Relinker{
		Cfg:         cfg,
		Rng:         rand.New(rand.NewSource(seed)),
		Pool:        p,
		Sub:         p.Subscribe(32),
		LocalSearch: ls,
	}
}

// Run blocks on the subscription until it delivers a terminal event (the
// pool has been shut down) or interrupt reports true. prob and initial
// are needed to rebuild Info values for candidate paths.
func (r *Relinker) Run(prob *problem.Problem, initial []int, interrupt func() bool) {
	for {
		if interrupt != nil && interrupt() {
			return
		}
		event, ok := r.Sub.Wait()
		if !ok || event.Terminal {
			return
		}
		r.relinkOnce(prob, initial, interrupt)
		if r.OnIteration != nil {
			r.OnIteration()
		}
	}
}

func (r *Relinker) relinkOnce(prob *problem.Problem, initial []int, interrupt func() bool) {
	s2Entry, ok := r.Pool.Best()
	if !ok {
		return
	}
	s1Entry, ok := r.Pool.RandomHighQuality()
	if !ok {
		return
	}

	if hamming(s1Entry.Solution, s2Entry.Solution) < 2 {
		return
	}

	bestSol, bestObj := r.walk(prob, initial, s1Entry.Solution, s2Entry.Solution, interrupt)
	if bestSol == nil {
		return
	}

	refined := solution.New(prob, initial, bestSol)
	if r.LocalSearch != nil {
		r.LocalSearch.Search(refined, interrupt)
	}
	if refined.Objective() < bestObj {
		bestObj = refined.Objective()
		bestSol = refined.Solution()
	}

	poolBest, ok := r.Pool.Best()
	ratio := r.Cfg.PublishRatio
	if ratio <= 0 {
		ratio = 1.1
	}
	if !ok || float64(bestObj) <= ratio*float64(poolBest.Objective) {
		r.Pool.Push(bestObj, bestSol)
	}
}

// pathWalker is one side of an alternating path-relinking walk: a
// SolutionInfo that starts at start and greedily closes its remaining
// differences against target, one move at a time.
type pathWalker struct {
	x      *solution.Info
	mv     *solution.MoveVerifier
	target []int
	diff   map[int]bool
}

func newPathWalker(prob *problem.Problem, initial, start, target []int) *pathWalker {
	x := solution.New(prob, initial, append([]int(nil), start...))
	diff := make(map[int]bool)
	for pid := range start {
		if start[pid] != target[pid] {
			diff[pid] = true
		}
	}
	return &pathWalker{x: x, mv: solution.NewMoveVerifier(x), target: target, diff: diff}
}

// step applies the single feasible move -- among this walker's still
// differing processes -- with the best resulting objective, committing
// it and reporting true. Processes already sitting on their target
// machine are dropped from diff without counting as a step. It reports
// false once nothing in diff admits a feasible move, meaning this side
// of the path is exhausted.
func (w *pathWalker) step() bool {
	for len(w.diff) > 0 {
		bestPid, bestObj := -1, uint64(0)
		found, trivial := false, false
		for pid := range w.diff {
			mvp := solution.Move{P: pid, Src: w.x.Solution()[pid], Dst: w.target[pid]}
			if mvp.Src == mvp.Dst {
				delete(w.diff, pid)
				trivial = true
				continue
			}
			if !w.mv.Feasible(mvp) {
				continue
			}
			obj := w.mv.Objective(mvp)
			if !found || obj < bestObj {
				found = true
				bestObj = obj
				bestPid = pid
			}
		}
		if found {
			mvp := solution.Move{P: bestPid, Src: w.x.Solution()[bestPid], Dst: w.target[bestPid]}
			w.mv.Commit(mvp)
			delete(w.diff, bestPid)
			return true
		}
		if trivial {
			continue
		}
		return false
	}
	return false
}

// walk performs an alternating path relink: two walkers, one
// starting from s1 and closing towards s2, the other starting from s2
// and closing towards s1, take turns applying one greedy step each,
// producing the intermediate solutions of both directions rather than
// a single one-sided greedy walk. The best objective seen on either
// walker's path is tracked -- it may beat both endpoints.
func (r *Relinker) walk(prob *problem.Problem, initial []int, s1, s2 []int, interrupt func() bool) ([]int, uint64) {
	fwd := newPathWalker(prob, initial, s1, s2)
	back := newPathWalker(prob, initial, s2, s1)

	bestObj := fwd.x.Objective()
	bestSol := append([]int(nil), fwd.x.Solution()...)
	if obj := back.x.Objective(); obj < bestObj {
		bestObj = obj
		bestSol = append([]int(nil), back.x.Solution()...)
	}

	walkers := [2]*pathWalker{fwd, back}
	turn := 0
	for len(fwd.diff) > 0 || len(back.diff) > 0 {
		if interrupt != nil && interrupt() {
			break
		}
		w := walkers[turn%2]
		turn++
		if len(w.diff) == 0 {
			continue
		}
		if !w.step() {
			// This side can't find any further feasible move: treat it
			// as exhausted so the loop converges on the other side.
			w.diff = map[int]bool{}
			continue
		}
		if obj := w.x.Objective(); obj < bestObj {
			bestObj = obj
			bestSol = append([]int(nil), w.x.Solution()...)
		}
	}

	return bestSol, bestObj
}

func hamming(a, b []int) int {
	d := 0
	for i := range a {
		if a[i] != b[i] {
			d++
		}
	}
	return d
}
