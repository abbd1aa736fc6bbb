// Package vns implements the Variable-Neighborhood Search heuristic:
// clone the current best, shake it by a growing neighborhood size,
// descend with a local search, and keep the result only if it beats
// best, periodically syncing against the shared pool.
package vns

import (
	"golang.org/x/exp/rand"

	"reassign/pkg/pool"
	"reassign/pkg/search/costopt"
	"reassign/pkg/search/localsearch"
	"reassign/pkg/search/shake"
	"reassign/pkg/solution"
)

// Config tunes the neighborhood-size schedule and pool sync cadence.
type Config struct {
	KMin, KMax, KStep int
	SyncPeriod        int
	PreOptimize       bool // run the cost optimizers once before the main loop
}

// DefaultConfig returns the standard neighborhood schedule.
func DefaultConfig() Config {
	return Config{KMin: 1, KMax: 100, KStep: 1, SyncPeriod: 10}
}

// VNS is one worker's variable-neighborhood search run.
type VNS struct {
	Cfg         Config
	Rng         *rand.Rand
	Pool        *pool.Pool
	Shaker      shake.Routine
	LocalSearch localsearch.Routine

	// OnIteration, if set, is called once per outer-loop pass (one
	// shake+local-search+accept cycle), for the engine's metrics.
	OnIteration func()
}

// New builds a VNS heuristic with the given shake and local-search
// routines, bound to pool and seeded from seed.
func New(cfg Config, seed uint64, p *pool.Pool, shaker shake.Routine, ls localsearch.Routine) *VNS {
	return &VNS{Cfg: cfg, Rng: rand.New(rand.NewSource(seed)), Pool: p, Shaker: shaker, LocalSearch: ls}
}

// Run executes the outer VNS loop starting from x until interrupt
// reports true. x ends up holding the best solution found.
func (v *VNS) Run(x *solution.Info, interrupt func() bool) {
	kMin, kMax, kStep := v.Cfg.KMin, v.Cfg.KMax, v.Cfg.KStep
	if kMin <= 0 {
		kMin = 1
	}
	if kMax <= 0 {
		kMax = 100
	}
	if kStep <= 0 {
		kStep = 1
	}
	syncPeriod := v.Cfg.SyncPeriod
	if syncPeriod <= 0 {
		syncPeriod = 10
	}

	if v.Cfg.PreOptimize {
		costopt.LoadCostOptimizer{}.Run(x)
		costopt.BalanceCostOptimizer{}.Run(x)
	}

	best := x.Clone()
	bestObj := best.Objective()
	v.Pool.Push(bestObj, best.Solution())

	k := kMin
	iteration := 0

	for {
		if interrupt != nil && interrupt() {
			break
		}

		current := best.Clone()
		v.Shaker.Shake(current, uint64(k))
		v.LocalSearch.Search(current, interrupt)

		if obj := current.Objective(); obj < bestObj {
			bestObj = obj
			best = current
			v.Pool.Push(bestObj, best.Solution())
			k = kMin
		} else {
			k += kStep
			if k > kMax {
				k = kMin
			}
		}

		iteration++
		if v.OnIteration != nil {
			v.OnIteration()
		}
		if iteration%syncPeriod == 0 {
			if entry, ok := v.Pool.Best(); ok && entry.Objective < bestObj {
				best = solution.New(x.Problem(), x.Initial(), entry.Solution)
				bestObj = entry.Objective
				k = kMin
			}
		}
	}

	*x = *best
}
