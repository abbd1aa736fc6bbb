// Package solution implements the mutable derived state of a candidate
// assignment (SolutionInfo) together with the delta-evaluation verifiers
// that keep it up to date in O(|R|+|B|) per move or exchange.
package solution

import (
	"fmt"

	"reassign/pkg/problem"
)

// Info is the mutable, incrementally-maintained state of one candidate
// assignment. It is owned exclusively by whichever heuristic goroutine is
// currently working on it; the pool only ever stores immutable snapshots
// of the assignment vector, never an Info value itself.
type Info struct {
	prob    *problem.Problem
	initial []int

	sol []int

	usage     [][]uint32 // usage[m][r]
	transient [][]uint32 // transient[m][r], meaningful only for transient r

	machinePresence     [][]uint32 // machinePresence[s][m]
	boolMachinePresence [][]bool   // boolMachinePresence[s][m]
	locationPresence    [][]uint32 // locationPresence[s][l]
	neighborPresence    [][]uint32 // neighborPresence[s][n]
	spread              []int      // spread[s]
	movedProcesses      []int      // movedProcesses[s]

	loadCost    []uint64 // loadCost[r]
	balanceCost []uint64 // balanceCost[b]

	processMoveCost uint64
	serviceMoveCost uint64
	machineMoveCost uint64
}

// Problem returns the immutable instance this Info was built from.
func (x *Info) Problem() *problem.Problem { return x.prob }

// Initial returns the immutable starting assignment vector.
func (x *Info) Initial() []int { return x.initial }

// Solution returns the current assignment vector. Callers must not
// mutate it directly; go through a verifier's Commit instead.
func (x *Info) Solution() []int { return x.sol }

// Usage returns the usage of resource r on machine m.
func (x *Info) Usage(m, r int) uint32 { return x.usage[m][r] }

// Transient returns the transient usage of resource r on machine m.
func (x *Info) Transient(m, r int) uint32 { return x.transient[m][r] }

// MachinePresence returns the number of processes of service s on machine m.
func (x *Info) MachinePresence(s, m int) uint32 { return x.machinePresence[s][m] }

// BoolMachinePresence reports whether any process of service s sits on machine m.
func (x *Info) BoolMachinePresence(s, m int) bool { return x.boolMachinePresence[s][m] }

// LocationPresence returns the number of processes of service s in location l.
func (x *Info) LocationPresence(s, l int) uint32 { return x.locationPresence[s][l] }

// NeighborhoodPresence returns the number of processes of service s in neighborhood n.
func (x *Info) NeighborhoodPresence(s, n int) uint32 { return x.neighborPresence[s][n] }

// Spread returns the number of distinct locations hosting a process of service s.
func (x *Info) Spread(s int) int { return x.spread[s] }

// MovedProcesses returns the number of processes of service s moved from their initial machine.
func (x *Info) MovedProcesses(s int) int { return x.movedProcesses[s] }

// LoadCost returns the per-resource load cost.
func (x *Info) LoadCost(r int) uint64 { return x.loadCost[r] }

// BalanceCost returns the per-term balance cost.
func (x *Info) BalanceCost(b int) uint64 { return x.balanceCost[b] }

// ProcessMoveCost returns the sum of movement costs of moved processes.
func (x *Info) ProcessMoveCost() uint64 { return x.processMoveCost }

// ServiceMoveCost returns the maximum moved-process count across services.
func (x *Info) ServiceMoveCost() uint64 { return x.serviceMoveCost }

// MachineMoveCost returns the total machine-move cost.
func (x *Info) MachineMoveCost() uint64 { return x.machineMoveCost }

// TotalLoadCost returns the weighted sum of all per-resource load costs.
func (x *Info) TotalLoadCost() uint64 {
	var total uint64
	for r, res := range x.prob.Resources {
		total += res.WeightLoadCost * x.loadCost[r]
	}
	return total
}

// TotalBalanceCost returns the weighted sum of all balance-term costs.
func (x *Info) TotalBalanceCost() uint64 {
	var total uint64
	for b, term := range x.prob.BalanceTerms {
		total += term.Weight * x.balanceCost[b]
	}
	return total
}

// TotalMoveCost returns the weighted sum of process/service/machine move costs.
func (x *Info) TotalMoveCost() uint64 {
	return x.prob.WeightProcessMove*x.processMoveCost +
		x.prob.WeightServiceMove*x.serviceMoveCost +
		x.prob.WeightMachineMove*x.machineMoveCost
}

// Objective returns the full weighted objective value.
func (x *Info) Objective() uint64 {
	return x.TotalLoadCost() + x.TotalBalanceCost() + x.TotalMoveCost()
}

// FractionLoadCost, FractionBalanceCost and FractionMoveCost report the
// share each term contributes to the current objective.
func (x *Info) FractionLoadCost() float64 {
	tlc, tbc, tmc := float64(x.TotalLoadCost()), float64(x.TotalBalanceCost()), float64(x.TotalMoveCost())
	return tlc / (tlc + tbc + tmc)
}

func (x *Info) FractionBalanceCost() float64 {
	tlc, tbc, tmc := float64(x.TotalLoadCost()), float64(x.TotalBalanceCost()), float64(x.TotalMoveCost())
	return tbc / (tlc + tbc + tmc)
}

func (x *Info) FractionMoveCost() float64 {
	tlc, tbc, tmc := float64(x.TotalLoadCost()), float64(x.TotalBalanceCost()), float64(x.TotalMoveCost())
	return tmc / (tlc + tbc + tmc)
}

// New builds a SolutionInfo for the given assignment vector, computing
// every derived field from scratch. It is the "recompute from scratch"
// verifier referenced by the debug cross-checks: O(|P|*|R|), called at
// construction, in assertion mode, and where a whole new assignment
// replaces the current one (deep shake, VNS pool sync, path relinking),
// never per move.
func New(p *problem.Problem, initial []int, sol []int) *Info {
	x := &Info{prob: p, initial: initial}
	x.sol = append([]int(nil), sol...)
	x.recompute()
	return x
}

// NewFromInitial builds a SolutionInfo whose assignment equals initial.
func NewFromInitial(p *problem.Problem, initial []int) *Info {
	return New(p, initial, initial)
}

// Clone returns a deep, independent copy -- used when the engine snapshots
// a "best" solution before handing it to the pool, and by heuristics that
// need to branch from a shared current state (e.g. VNS's shake-from-best).
func (x *Info) Clone() *Info {
	y := &Info{prob: x.prob, initial: x.initial}
	y.sol = append([]int(nil), x.sol...)
	y.usage = cloneU32Matrix(x.usage)
	y.transient = cloneU32Matrix(x.transient)
	y.machinePresence = cloneU32Matrix(x.machinePresence)
	y.locationPresence = cloneU32Matrix(x.locationPresence)
	y.neighborPresence = cloneU32Matrix(x.neighborPresence)
	y.boolMachinePresence = make([][]bool, len(x.boolMachinePresence))
	for i, row := range x.boolMachinePresence {
		y.boolMachinePresence[i] = append([]bool(nil), row...)
	}
	y.spread = append([]int(nil), x.spread...)
	y.movedProcesses = append([]int(nil), x.movedProcesses...)
	y.loadCost = append([]uint64(nil), x.loadCost...)
	// Built from make so an empty slice stays non-nil, as recompute leaves it.
	y.balanceCost = append(make([]uint64, 0, len(x.balanceCost)), x.balanceCost...)
	y.processMoveCost = x.processMoveCost
	y.serviceMoveCost = x.serviceMoveCost
	y.machineMoveCost = x.machineMoveCost
	return y
}

func cloneU32Matrix(m [][]uint32) [][]uint32 {
	out := make([][]uint32, len(m))
	for i, row := range m {
		out[i] = append([]uint32(nil), row...)
	}
	return out
}

// recompute rebuilds every field of Info from x.sol, from scratch.
func (x *Info) recompute() {
	p := x.prob
	rCount, mCount, sCount, lCount, nCount, bCount := len(p.Resources), len(p.Machines), len(p.Services), p.LocationCount, p.NeighborhoodCount, len(p.BalanceTerms)

	x.usage = make([][]uint32, mCount)
	x.transient = make([][]uint32, mCount)
	for m := 0; m < mCount; m++ {
		x.usage[m] = make([]uint32, rCount)
		x.transient[m] = make([]uint32, rCount)
	}
	x.machinePresence = make([][]uint32, sCount)
	x.boolMachinePresence = make([][]bool, sCount)
	x.locationPresence = make([][]uint32, sCount)
	x.neighborPresence = make([][]uint32, sCount)
	for s := 0; s < sCount; s++ {
		x.machinePresence[s] = make([]uint32, mCount)
		x.boolMachinePresence[s] = make([]bool, mCount)
		x.locationPresence[s] = make([]uint32, lCount)
		x.neighborPresence[s] = make([]uint32, nCount)
	}
	x.spread = make([]int, sCount)
	x.movedProcesses = make([]int, sCount)

	for pid, proc := range p.Processes {
		m := x.sol[pid]
		for r := 0; r < rCount; r++ {
			x.usage[m][r] += proc.Requirement[r]
		}
		x.machinePresence[proc.Service][m]++
		x.boolMachinePresence[proc.Service][m] = true
		loc := p.Machines[m].Location
		if x.locationPresence[proc.Service][loc] == 0 {
			x.spread[proc.Service]++
		}
		x.locationPresence[proc.Service][loc]++
		x.neighborPresence[proc.Service][p.Machines[m].Neighborhood]++

		im := x.initial[pid]
		if m != im {
			x.movedProcesses[proc.Service]++
			for r := 0; r < rCount; r++ {
				if p.Resources[r].Transient {
					x.transient[im][r] += proc.Requirement[r]
				}
			}
			x.processMoveCost += uint64(proc.MovementCost)
			x.machineMoveCost += p.MachineMoveCost(im, m)
		}
	}

	x.loadCost = make([]uint64, rCount)
	for r := 0; r < rCount; r++ {
		var total uint64
		for m := 0; m < mCount; m++ {
			total += clamp0u(x.usage[m][r], p.Machines[m].SafetyCapacity[r])
		}
		x.loadCost[r] = total
	}

	x.balanceCost = make([]uint64, bCount)
	for b, term := range p.BalanceTerms {
		var total uint64
		for m := 0; m < mCount; m++ {
			total += balanceCostAt(term, p.Machines[m], x.usage[m][term.Resource1], x.usage[m][term.Resource2])
		}
		x.balanceCost[b] = total
	}

	max := 0
	for s := 0; s < sCount; s++ {
		if x.movedProcesses[s] > max {
			max = x.movedProcesses[s]
		}
	}
	x.serviceMoveCost = uint64(max)
}

func clamp0u(usage, safety uint32) uint64 {
	if usage <= safety {
		return 0
	}
	return uint64(usage - safety)
}

func balanceCostAt(term problem.BalanceTerm, m problem.Machine, u1, u2 uint32) uint64 {
	a1 := int64(m.Capacity[term.Resource1]) - int64(u1)
	a2 := int64(m.Capacity[term.Resource2]) - int64(u2)
	v := int64(term.Target)*a1 - a2
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// AssertConsistent recomputes every field from scratch and compares it to
// the incrementally-maintained state. It is intended for debug-mode
// verification only -- callers that enable it pay the full O(|P|*|R|)
// recomputation cost on every call. A mismatch is a programming bug in a
// verifier's delta math, so it reports rather than silently tolerating.
func (x *Info) AssertConsistent() (ok bool, diff string) {
	fresh := New(x.prob, x.initial, x.sol)
	return equalInfo(x, fresh)
}

// checkDebug is a no-op unless x.prob.Debug is set (the engine's -debug
// flag), in which case every verifier Commit calls it: it recomputes x
// from scratch and panics with the go-cmp diff on any mismatch. A worker
// panicking here is recovered by the engine into a failed HeuristicResult
// rather than corrupting the shared pool with a wrong objective.
func (x *Info) checkDebug() {
	if !x.prob.Debug {
		return
	}
	if ok, diff := x.AssertConsistent(); !ok {
		panic(fmt.Sprintf("solution.Info: incremental state diverged from recompute: %s", diff))
	}
}
