// Package sa implements the Simulated Annealing heuristic: a
// trajectory search that accepts worsening moves with a
// temperature-dependent probability, cooling (or reheating) as it goes,
// and periodically publishes its best solution to the shared pool.
package sa

import (
	"math"

	"golang.org/x/exp/rand"

	"reassign/pkg/pool"
	"reassign/pkg/solution"
)

// Config tunes the annealing schedule; zero values fall back to the
// named defaults.
type Config struct {
	TMin                        float64
	Rho                         float64 // temperature reduction factor per batch, default 0.97
	PMin, PMax                  float64 // bounds on the move-vs-exchange probability
	ReheatAfterBatches          int     // consecutive ratio>1 batches before reheating, default 15
	TemperatureFloorLog2Divisor int     // T_max / 2^this is the cooling floor, default 100
}

// DefaultConfig returns the standard annealing schedule.
func DefaultConfig() Config {
	return Config{
		TMin:                        1e-3,
		Rho:                         0.97,
		PMin:                        0.2,
		PMax:                        0.8,
		ReheatAfterBatches:          15,
		TemperatureFloorLog2Divisor: 100,
	}
}

// MaxProblemSize is the |P|*|M| guard: above this, the heuristic
// refuses to run and signals completion immediately rather than spend
// its budget thrashing on an instance its per-inner-iteration cost
// cannot amortize.
const MaxProblemSize = 50_000_000

// SimulatedAnnealing is one worker's SA run. It owns its Info exclusively
// and publishes snapshots of its running best to Pool.
type SimulatedAnnealing struct {
	Cfg  Config
	Rng  *rand.Rand
	Pool *pool.Pool

	// OnIteration, if set, is called once per outer-loop batch (one pass
	// of n inner moves followed by a temperature update), for the
	// engine's metrics.
	OnIteration func()

	tMax, tMin float64
}

// New builds a SimulatedAnnealing heuristic bound to the given pool and
// seeded from seed.
func New(cfg Config, seed uint64, p *pool.Pool) *SimulatedAnnealing {
	return &SimulatedAnnealing{Cfg: cfg, Rng: rand.New(rand.NewSource(seed)), Pool: p}
}

// Run executes the outer annealing loop starting from x until interrupt
// reports true. x is mutated in place; the caller retains ownership.
func (sa *SimulatedAnnealing) Run(x *solution.Info, interrupt func() bool) {
	prob := x.Problem()
	if len(x.Solution())*len(prob.Machines) > MaxProblemSize {
		return
	}

	n := innerIterations(len(x.Solution()), len(prob.Machines))
	tMax := sa.calibrateTMax(x)
	tMin := sa.Cfg.TMin
	if tMin <= 0 {
		tMin = 1e-3
	}
	if tMax <= tMin {
		tMax = tMin * 10
	}
	sa.tMax, sa.tMin = tMax, tMin

	mv := solution.NewMoveVerifier(x)
	ev := solution.NewExchangeVerifier(x)

	best := x.Clone()
	bestObj := best.Objective()

	T := tMax
	resetT := tMax
	overRatioBatches := 0
	lastObj := x.Objective()

	floorDivisor := sa.Cfg.TemperatureFloorLog2Divisor
	if floorDivisor <= 0 {
		floorDivisor = 100
	}
	floor := tMax / math.Pow(2, float64(floorDivisor))
	reheatAfter := sa.Cfg.ReheatAfterBatches
	if reheatAfter <= 0 {
		reheatAfter = 15
	}
	rho := sa.Cfg.Rho
	if rho <= 0 || rho >= 1 {
		rho = 0.97
	}

	pIdx, mIdx := 0, 0

	for {
		if interrupt != nil && interrupt() {
			break
		}

		for i := 0; i < n; i++ {
			if interrupt != nil && i%256 == 0 && interrupt() {
				break
			}
			pIdx, mIdx = sa.step(x, mv, ev, T, pIdx, mIdx)
		}

		if sa.OnIteration != nil {
			sa.OnIteration()
		}

		cur := x.Objective()
		if cur < bestObj {
			bestObj = cur
			best = x.Clone()
		}
		// Published every batch; the pool's admission rules drop entries
		// that bring nothing new.
		sa.Pool.Push(bestObj, best.Solution())

		ratio := 1.0
		if bestObj > 0 {
			ratio = float64(lastObj) / float64(bestObj)
		}
		if ratio > 1 {
			overRatioBatches++
		} else {
			overRatioBatches = 0
		}
		if overRatioBatches > reheatAfter {
			resetT /= 2
			if resetT < tMin {
				resetT = tMin
			}
			T = resetT
			overRatioBatches = 0
		} else if T > floor {
			T *= rho
		}
		lastObj = cur
	}

	*x = *best
}

// innerIterations implements N = ceil(|P|*(log10|P|+log10|M|)).
func innerIterations(processCount, machineCount int) int {
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
	return int(math.Ceil(n))
}

// calibrateTMax samples feasible neighbors and returns the largest
// objective delta encountered, falling back to the current objective if
// no feasible sample was found.
func (sa *SimulatedAnnealing) calibrateTMax(x *solution.Info) float64 {
	mv := solution.NewMoveVerifier(x)
	ev := solution.NewExchangeVerifier(x)
	cur := x.Objective()
	maxDelta := 0.0
	found := false

	const samples = 200
	for i := 0; i < samples; i++ {
		if sa.Rng.Intn(2) == 0 {
			mv2 := randomMove(x, sa.Rng)
			if mv2.Src == mv2.Dst || !mv.Feasible(mv2) {
				continue
			}
			d := math.Abs(float64(mv.Objective(mv2)) - float64(cur))
			if d > maxDelta {
				maxDelta = d
			}
			found = true
		} else {
			ex := randomExchange(x, sa.Rng)
			if ex.P1 == ex.P2 || !ev.Feasible(ex) {
				continue
			}
			d := math.Abs(float64(ev.Objective(ex)) - float64(cur))
			if d > maxDelta {
				maxDelta = d
			}
			found = true
		}
	}
	if !found {
		return float64(cur)
	}
	return maxDelta
}

func randomMove(x *solution.Info, rng *rand.Rand) solution.Move {
	p := rng.Intn(len(x.Solution()))
	m := rng.Intn(len(x.Problem().Machines))
	return solution.Move{P: p, Src: x.Solution()[p], Dst: m}
}

func randomExchange(x *solution.Info, rng *rand.Rand) solution.Exchange {
	sol := x.Solution()
	p1 := rng.Intn(len(sol))
	p2 := rng.Intn(len(sol))
	for p2 == p1 {
		p2 = rng.Intn(len(sol))
	}
	return solution.Exchange{M1: sol[p1], P1: p1, M2: sol[p2], P2: p2}
}

// pMove implements p_move(T) = max(p_min, p_max * log(T/T_min) / log(T_max/T_min)).
func (sa *SimulatedAnnealing) pMove(T, tMax, tMin float64) float64 {
	pMin, pMax := sa.Cfg.PMin, sa.Cfg.PMax
	if pMax <= 0 {
		pMax = 0.8
	}
	if pMin <= 0 {
		pMin = 0.2
	}
	if tMax <= tMin || T <= tMin {
		return pMin
	}
	v := pMax * math.Log(T/tMin) / math.Log(tMax/tMin)
	if v < pMin {
		return pMin
	}
	if v > pMax {
		return pMax
	}
	return v
}

// step advances the sequential process/machine indices by one candidate
// and evaluates either a move or an exchange, accepting it per the
// Metropolis criterion. It returns the advanced indices so the caller
// can thread them across calls; the sequential sweep covers the
// neighborhood faster than uniform resampling.
func (sa *SimulatedAnnealing) step(x *solution.Info, mv *solution.MoveVerifier, ev *solution.ExchangeVerifier, T float64, pIdx, mIdx int) (int, int) {
	prob := x.Problem()
	pCount := len(x.Solution())
	mCount := len(prob.Machines)
	if pCount == 0 || mCount == 0 {
		return pIdx, mIdx
	}

	useMove := sa.Rng.Float64() < sa.pMove(T, sa.tMax, sa.tMin)

	pIdx = (pIdx + 1) % pCount
	mIdx = (mIdx + 1) % mCount

	cur := x.Objective()

	if useMove {
		m := solution.Move{P: pIdx, Src: x.Solution()[pIdx], Dst: mIdx}
		if m.Src == m.Dst || !mv.Feasible(m) {
			return pIdx, mIdx
		}
		obj := mv.Objective(m)
		if sa.accept(obj, cur, T) {
			mv.Commit(m)
		}
		return pIdx, mIdx
	}

	p2 := (pIdx + mIdx + 1) % pCount
	if p2 == pIdx {
		return pIdx, mIdx
	}
	ex := solution.Exchange{M1: x.Solution()[pIdx], P1: pIdx, M2: x.Solution()[p2], P2: p2}
	if ex.P1 == ex.P2 || !ev.Feasible(ex) {
		return pIdx, mIdx
	}
	obj := ev.Objective(ex)
	if sa.accept(obj, cur, T) {
		ev.Commit(ex)
	}
	return pIdx, mIdx
}

// accept implements the Metropolis criterion: always accept strictly
// improving candidates, otherwise accept with probability exp(-delta/T).
func (sa *SimulatedAnnealing) accept(newObj, curObj uint64, T float64) bool {
	if newObj < curObj {
		return true
	}
	delta := float64(newObj) - float64(curObj)
	if T <= 0 {
		return false
	}
	prob := math.Exp(-delta / T)
	return sa.Rng.Float64() < prob
}
