// Package localsearch implements the strict-descent refinement
// routines: random, deep, sequential and smart/optimized variants, all
// sharing the same "propose move or exchange, accept only if strictly
// improving and feasible" contract.
package localsearch

import (
	"math"

	"golang.org/x/exp/rand"

	"reassign/pkg/solution"
)

// Routine runs until either interrupt() returns true or its own
// termination criterion triggers. It never returns a value: improvements
// live in x. The set of variants is closed and small, so this is a plain
// interface rather than a heavier plugin mechanism.
type Routine interface {
	Search(x *solution.Info, interrupt func() bool)
}

// DefaultMaxTrials is the |P|*(log10|P|+log10|M|) default for the
// number of consecutive non-improving trials before a random-family
// routine gives up.
func DefaultMaxTrials(processCount, machineCount int) int {
	if processCount < 1 {
		processCount = 1
	}
	if machineCount < 1 {
		machineCount = 1
	}
	n := float64(processCount) * (math.Log10(float64(processCount)) + math.Log10(float64(machineCount)))
	if n < 1 {
		n = 1
	}
	return int(n)
}

// proposer samples candidate moves and exchanges, choosing uniformly
// between the two families.
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

// sampleImproving evaluates a random move or exchange (chosen with equal
// probability) and reports whether it strictly improves the objective and
// is feasible, along with the commit closure and resulting objective.
func (pr *proposer) sampleImproving(x *solution.Info, cur uint64) (commit func(), newObj uint64, ok bool) {
	if pr.rng.Intn(2) == 0 {
		mv := pr.randomMove(x)
		if mv.Src == mv.Dst || !pr.mv.Feasible(mv) {
			return nil, 0, false
		}
		obj := pr.mv.Objective(mv)
		if obj >= cur {
			return nil, 0, false
		}
		return func() { pr.mv.Commit(mv) }, obj, true
	}
	ex := pr.randomExchange(x)
	if ex.P1 == ex.P2 || !pr.ev.Feasible(ex) {
		return nil, 0, false
	}
	obj := pr.ev.Objective(ex)
	if obj >= cur {
		return nil, 0, false
	}
	return func() { pr.ev.Commit(ex) }, obj, true
}

// Random is the first-improvement random local search: it alternates
// between random moves and random exchanges, accepting the first
// improving feasible proposal it finds, and stops once maxTrials
// consecutive trials fail to improve.
type Random struct {
	Rng       *rand.Rand
	MaxTrials int
}

func (r *Random) Search(x *solution.Info, interrupt func() bool) {
	pr := newProposer(x, r.Rng)
	maxTrials := r.MaxTrials
	if maxTrials <= 0 {
		maxTrials = DefaultMaxTrials(len(x.Solution()), len(x.Problem().Machines))
	}
	failures := 0
	for failures < maxTrials {
		if interrupt != nil && interrupt() {
			return
		}
		cur := x.Objective()
		commit, _, ok := pr.sampleImproving(x, cur)
		if !ok {
			failures++
			continue
		}
		commit()
		failures = 0
	}
}

// Deep collects up to maxSamples improving feasible candidates within at
// most maxTrials sampling attempts and commits the best one found as a
// single iteration, repeating until an entire batch yields nothing.
type Deep struct {
	Rng        *rand.Rand
	MaxTrials  int
	MaxSamples int
}

type sample struct {
	commit func()
	obj    uint64
}

func (d *Deep) Search(x *solution.Info, interrupt func() bool) {
	pr := newProposer(x, d.Rng)
	maxTrials := d.MaxTrials
	if maxTrials <= 0 {
		maxTrials = DefaultMaxTrials(len(x.Solution()), len(x.Problem().Machines))
	}
	maxSamples := d.MaxSamples
	if maxSamples <= 0 {
		maxSamples = 32
	}
	for {
		if interrupt != nil && interrupt() {
			return
		}
		cur := x.Objective()
		var best *sample
		found := 0
		for trial := 0; trial < maxTrials && found < maxSamples; trial++ {
			commit, obj, ok := pr.sampleImproving(x, cur)
			if !ok {
				continue
			}
			found++
			if best == nil || obj < best.obj {
				best = &sample{commit: commit, obj: obj}
			}
		}
		if best == nil {
			return
		}
		best.commit()
	}
}

// Sequential sweeps (p, m) pairs in a wrapping arithmetic progression
// instead of sampling uniformly, periodically re-randomizing its starting
// offsets; it otherwise follows the same batched best-of-sample
// acceptance rule as Deep.
type Sequential struct {
	Rng         *rand.Rand
	MaxSamples  int
	ReseedEvery int
}

func (s *Sequential) Search(x *solution.Info, interrupt func() bool) {
	mv := solution.NewMoveVerifier(x)
	ev := solution.NewExchangeVerifier(x)
	pCount := len(x.Solution())
	mCount := len(x.Problem().Machines)
	if pCount == 0 || mCount == 0 {
		return
	}
	maxSamples := s.MaxSamples
	if maxSamples <= 0 {
		maxSamples = 32
	}
	reseedEvery := s.ReseedEvery
	if reseedEvery <= 0 {
		reseedEvery = 256
	}

	pOff, mOff := s.Rng.Intn(pCount), s.Rng.Intn(mCount)
	pStep, mStep := 1+s.Rng.Intn(pCount), 1+s.Rng.Intn(mCount)
	iter := 0

	for {
		if interrupt != nil && interrupt() {
			return
		}
		cur := x.Objective()
		var best *sample
		count, found := 0, 0
		for count < pCount*mCount && found < maxSamples {
			p := (pOff + count*pStep) % pCount
			m := (mOff + count*mStep) % mCount
			count++
			iter++
			if iter%reseedEvery == 0 {
				pOff, mOff = s.Rng.Intn(pCount), s.Rng.Intn(mCount)
			}

			// Even steps sweep moves of (p, m); odd steps try exchanging
			// p with process (p+1+m) mod |P|, wherever the two currently
			// sit, skipping pairs already on the same machine.
			if count%2 == 0 {
				mvp := solution.Move{P: p, Src: x.Solution()[p], Dst: m}
				if mvp.Src == mvp.Dst || !mv.Feasible(mvp) {
					continue
				}
				obj := mv.Objective(mvp)
				if obj >= cur {
					continue
				}
				found++
				if best == nil || obj < best.obj {
					mvCopy := mvp
					best = &sample{commit: func() { mv.Commit(mvCopy) }, obj: obj}
				}
				continue
			}

			p2 := (p + 1 + m) % pCount
			if p2 == p {
				continue
			}
			exp := solution.Exchange{M1: x.Solution()[p], P1: p, M2: x.Solution()[p2], P2: p2}
			if exp.M1 == exp.M2 || !ev.Feasible(exp) {
				continue
			}
			obj := ev.Objective(exp)
			if obj >= cur {
				continue
			}
			found++
			if best == nil || obj < best.obj {
				expCopy := exp
				best = &sample{commit: func() { ev.Commit(expCopy) }, obj: obj}
			}
		}
		if best == nil {
			return
		}
		best.commit()
	}
}

// Smart (also called Optimized) pre-generates its random process and
// machine indices in blocks, amortizing the per-draw overhead of the
// RNG across an entire batch; acceptance is the same batched
// best-of-sample rule as Deep's.
type Smart struct {
	Rng        *rand.Rand
	MaxTrials  int
	MaxSamples int
	BlockSize  int
}

func (sm *Smart) Search(x *solution.Info, interrupt func() bool) {
	mv := solution.NewMoveVerifier(x)
	ev := solution.NewExchangeVerifier(x)
	pCount := len(x.Solution())
	mCount := len(x.Problem().Machines)
	if pCount == 0 || mCount == 0 {
		return
	}
	maxTrials := sm.MaxTrials
	if maxTrials <= 0 {
		maxTrials = DefaultMaxTrials(pCount, mCount)
	}
	maxSamples := sm.MaxSamples
	if maxSamples <= 0 {
		maxSamples = 32
	}
	blockSize := sm.BlockSize
	if blockSize <= 0 {
		blockSize = 1024
	}

	pBlock := make([]int, blockSize)
	mBlock := make([]int, blockSize)
	blockAt := blockSize

	next := func() (int, int) {
		if blockAt == blockSize {
			for i := range pBlock {
				pBlock[i] = sm.Rng.Intn(pCount)
				mBlock[i] = sm.Rng.Intn(mCount)
			}
			blockAt = 0
		}
		p, m := pBlock[blockAt], mBlock[blockAt]
		blockAt++
		return p, m
	}

	for {
		if interrupt != nil && interrupt() {
			return
		}
		cur := x.Objective()
		var best *sample
		found := 0
		for trial := 0; trial < maxTrials && found < maxSamples; trial++ {
			p, m := next()
			// Alternate move and exchange proposals, reusing the block's
			// machine draw as the second process index for exchanges.
			if trial%2 == 0 {
				mvp := solution.Move{P: p, Src: x.Solution()[p], Dst: m}
				if mvp.Src == mvp.Dst || !mv.Feasible(mvp) {
					continue
				}
				obj := mv.Objective(mvp)
				if obj >= cur {
					continue
				}
				found++
				if best == nil || obj < best.obj {
					mvCopy := mvp
					best = &sample{commit: func() { mv.Commit(mvCopy) }, obj: obj}
				}
				continue
			}
			p2 := m % pCount
			if p2 == p {
				continue
			}
			ex := solution.Exchange{M1: x.Solution()[p], P1: p, M2: x.Solution()[p2], P2: p2}
			if ex.M1 == ex.M2 || !ev.Feasible(ex) {
				continue
			}
			obj := ev.Objective(ex)
			if obj >= cur {
				continue
			}
			found++
			if best == nil || obj < best.obj {
				exCopy := ex
				best = &sample{commit: func() { ev.Commit(exCopy) }, obj: obj}
			}
		}
		if best == nil {
			return
		}
		best.commit()
	}
}
