package solution

import "reassign/pkg/problem"

// ExchangeVerifier evaluates and commits two-process swaps against one
// SolutionInfo. Feasibility and cost deltas are derived from the same
// invariants as MoveVerifier but account for both processes moving at
// once: every check is expressed against the state *after* both halves
// of the exchange apply, so a process entering a neighborhood the other
// process is simultaneously vacating (or vice versa) is judged correctly
// without special-casing each combination by hand.
type ExchangeVerifier struct {
	info *Info

	diffLoad    []int64
	diffBalance []int64
	diffProcess int64
	diffService int64
	diffMachine int64
}

// NewExchangeVerifier returns a verifier bound to info.
func NewExchangeVerifier(info *Info) *ExchangeVerifier {
	p := info.prob
	return &ExchangeVerifier{
		info:        info,
		diffLoad:    make([]int64, len(p.Resources)),
		diffBalance: make([]int64, len(p.BalanceTerms)),
	}
}

// Info returns the SolutionInfo this verifier evaluates and commits against.
func (v *ExchangeVerifier) Info() *Info { return v.info }

// Feasible reports whether applying ex preserves every constraint,
// assuming the current SolutionInfo is itself feasible.
func (v *ExchangeVerifier) Feasible(ex Exchange) bool {
	if ex.P1 == ex.P2 || ex.M1 == ex.M2 {
		return true
	}
	x := v.info
	p := x.prob
	proc1, proc2 := p.Processes[ex.P1], p.Processes[ex.P2]
	s1, s2 := proc1.Service, proc2.Service
	im1, im2 := x.initial[ex.P1], x.initial[ex.P2]
	m1, m2 := ex.M1, ex.M2

	for _, r := range p.NonTransientResources {
		u1 := int64(x.usage[m1][r]) - int64(proc1.Requirement[r]) + int64(proc2.Requirement[r])
		if u1 > int64(p.Machines[m1].Capacity[r]) {
			return false
		}
		u2 := int64(x.usage[m2][r]) - int64(proc2.Requirement[r]) + int64(proc1.Requirement[r])
		if u2 > int64(p.Machines[m2].Capacity[r]) {
			return false
		}
	}

	for _, r := range p.TransientResources {
		t1 := int64(x.transient[m1][r])
		if im1 == m1 {
			t1 += int64(proc1.Requirement[r])
		}
		if im2 == m1 {
			t1 -= int64(proc2.Requirement[r])
		}
		u1 := int64(x.usage[m1][r]) - int64(proc1.Requirement[r]) + int64(proc2.Requirement[r])
		if u1+t1 > int64(p.Machines[m1].Capacity[r]) {
			return false
		}

		t2 := int64(x.transient[m2][r])
		if im2 == m2 {
			t2 += int64(proc2.Requirement[r])
		}
		if im1 == m2 {
			t2 -= int64(proc1.Requirement[r])
		}
		u2 := int64(x.usage[m2][r]) - int64(proc2.Requirement[r]) + int64(proc1.Requirement[r])
		if u2+t2 > int64(p.Machines[m2].Capacity[r]) {
			return false
		}
	}

	sameService := s1 == s2
	if !sameService {
		if !p.ServiceHasSingleProcess[s1] && x.boolMachinePresence[s1][m2] {
			return false
		}
		if !p.ServiceHasSingleProcess[s2] && x.boolMachinePresence[s2][m1] {
			return false
		}

		loc1, loc2 := p.Machines[m1].Location, p.Machines[m2].Location
		if loc1 != loc2 {
			if !p.ServiceHasSingleProcess[s1] &&
				x.spread[s1] == int(p.Services[s1].SpreadMin) &&
				x.locationPresence[s1][loc1] == 1 &&
				x.locationPresence[s1][loc2] > 0 {
				return false
			}
			if !p.ServiceHasSingleProcess[s2] &&
				x.spread[s2] == int(p.Services[s2].SpreadMin) &&
				x.locationPresence[s2][loc2] == 1 &&
				x.locationPresence[s2][loc1] > 0 {
				return false
			}
		}
	}

	return v.dependenciesOK(ex, s1, s2, im1, im2)
}

type presenceKey struct {
	s, n int
}

// dependenciesOK checks the dependency constraint for both movers against
// the neighborhood presence state *after* the exchange, computed as a
// sparse delta over the at-most-two neighborhoods involved.
func (v *ExchangeVerifier) dependenciesOK(ex Exchange, s1, s2, im1, im2 int) bool {
	x := v.info
	p := x.prob
	n1, n2 := p.Machines[ex.M1].Neighborhood, p.Machines[ex.M2].Neighborhood
	if n1 == n2 {
		return true
	}

	delta := map[presenceKey]int64{}
	delta[presenceKey{s1, n1}]--
	delta[presenceKey{s1, n2}]++
	delta[presenceKey{s2, n2}]--
	delta[presenceKey{s2, n1}]++

	after := func(s, n int) int64 {
		return int64(x.neighborPresence[s][n]) + delta[presenceKey{s, n}]
	}

	check := func(s, nsrc, ndst int) bool {
		for _, out := range p.DepOut[s] {
			if after(out, ndst) <= 0 {
				return false
			}
		}
		if after(s, nsrc) == 0 {
			for _, in := range p.DepIn[s] {
				if after(in, nsrc) > 0 {
					return false
				}
			}
		}
		return true
	}

	return check(s1, n1, n2) && check(s2, n2, n1)
}

func (v *ExchangeVerifier) computeDiffs(ex Exchange) {
	x := v.info
	p := x.prob
	proc1, proc2 := p.Processes[ex.P1], p.Processes[ex.P2]
	m1, m2 := ex.M1, ex.M2

	for r := range v.diffLoad {
		req1, req2 := int64(proc1.Requirement[r]), int64(proc2.Requirement[r])
		before := clampI(int64(x.usage[m1][r]), p.Machines[m1].SafetyCapacity[r]) +
			clampI(int64(x.usage[m2][r]), p.Machines[m2].SafetyCapacity[r])
		after := clampI(int64(x.usage[m1][r])-req1+req2, p.Machines[m1].SafetyCapacity[r]) +
			clampI(int64(x.usage[m2][r])-req2+req1, p.Machines[m2].SafetyCapacity[r])
		v.diffLoad[r] = after - before
	}

	for b, term := range p.BalanceTerms {
		before := balanceCostAt(term, p.Machines[m1], x.usage[m1][term.Resource1], x.usage[m1][term.Resource2]) +
			balanceCostAt(term, p.Machines[m2], x.usage[m2][term.Resource1], x.usage[m2][term.Resource2])
		u1r1 := int64(x.usage[m1][term.Resource1]) - int64(proc1.Requirement[term.Resource1]) + int64(proc2.Requirement[term.Resource1])
		u1r2 := int64(x.usage[m1][term.Resource2]) - int64(proc1.Requirement[term.Resource2]) + int64(proc2.Requirement[term.Resource2])
		u2r1 := int64(x.usage[m2][term.Resource1]) - int64(proc2.Requirement[term.Resource1]) + int64(proc1.Requirement[term.Resource1])
		u2r2 := int64(x.usage[m2][term.Resource2]) - int64(proc2.Requirement[term.Resource2]) + int64(proc1.Requirement[term.Resource2])
		after := balanceCostAtRaw(term, p.Machines[m1], u1r1, u1r2) + balanceCostAtRaw(term, p.Machines[m2], u2r1, u2r2)
		v.diffBalance[b] = int64(after) - int64(before)
	}

	im1, im2 := x.initial[ex.P1], x.initial[ex.P2]
	v.diffProcess = 0
	v.diffProcess += processMoveDelta(proc1.MovementCost, im1, m1, m2)
	v.diffProcess += processMoveDelta(proc2.MovementCost, im2, m2, m1)

	v.diffMachine = int64(p.MachineMoveCost(im1, m2)) - int64(p.MachineMoveCost(im1, m1)) +
		int64(p.MachineMoveCost(im2, m1)) - int64(p.MachineMoveCost(im2, m2))

	v.diffService = pairedServiceMoveDelta(x,
		proc1.Service, movedDelta(im1, m1, m2),
		proc2.Service, movedDelta(im2, m2, m1))
}

// processMoveDelta returns the process-move-cost contribution of one
// mover leaving src for dst, given its initial machine im.
func processMoveDelta(cost uint32, im, src, dst int) int64 {
	if dst == im {
		return -int64(cost)
	}
	if src == im {
		return int64(cost)
	}
	return 0
}

// Objective computes the post-exchange total without mutating Info.
func (v *ExchangeVerifier) Objective(ex Exchange) uint64 {
	if ex.P1 == ex.P2 || ex.M1 == ex.M2 {
		return v.info.Objective()
	}
	v.computeDiffs(ex)
	x := v.info
	p := x.prob
	var obj uint64
	for r, res := range p.Resources {
		obj += res.WeightLoadCost * uint64(int64(x.loadCost[r])+v.diffLoad[r])
	}
	for b, term := range p.BalanceTerms {
		obj += term.Weight * uint64(int64(x.balanceCost[b])+v.diffBalance[b])
	}
	obj += p.WeightProcessMove * uint64(int64(x.processMoveCost)+v.diffProcess)
	obj += p.WeightServiceMove * uint64(int64(x.serviceMoveCost)+v.diffService)
	obj += p.WeightMachineMove * uint64(int64(x.machineMoveCost)+v.diffMachine)
	return obj
}

// Commit applies ex to the bound SolutionInfo.
func (v *ExchangeVerifier) Commit(ex Exchange) {
	if ex.P1 == ex.P2 || ex.M1 == ex.M2 {
		return
	}
	v.computeDiffs(ex)
	x := v.info
	p := x.prob
	proc1, proc2 := p.Processes[ex.P1], p.Processes[ex.P2]
	m1, m2 := ex.M1, ex.M2
	im1, im2 := x.initial[ex.P1], x.initial[ex.P2]

	for r := 0; r < len(p.Resources); r++ {
		x.usage[m1][r] = x.usage[m1][r] - proc1.Requirement[r] + proc2.Requirement[r]
		x.usage[m2][r] = x.usage[m2][r] - proc2.Requirement[r] + proc1.Requirement[r]
	}
	for _, r := range p.TransientResources {
		if im1 == m1 {
			x.transient[m1][r] += proc1.Requirement[r]
		}
		if im2 == m1 {
			x.transient[m1][r] -= proc2.Requirement[r]
		}
		if im2 == m2 {
			x.transient[m2][r] += proc2.Requirement[r]
		}
		if im1 == m2 {
			x.transient[m2][r] -= proc1.Requirement[r]
		}
	}

	moveProcess(x, p, ex.P1, proc1, m1, m2)
	moveProcess(x, p, ex.P2, proc2, m2, m1)

	if m2 == im1 {
		x.movedProcesses[proc1.Service]--
	} else if m1 == im1 {
		x.movedProcesses[proc1.Service]++
	}
	if m1 == im2 {
		x.movedProcesses[proc2.Service]--
	} else if m2 == im2 {
		x.movedProcesses[proc2.Service]++
	}

	for r := range v.diffLoad {
		x.loadCost[r] = uint64(int64(x.loadCost[r]) + v.diffLoad[r])
	}
	for b := range v.diffBalance {
		x.balanceCost[b] = uint64(int64(x.balanceCost[b]) + v.diffBalance[b])
	}
	x.processMoveCost = uint64(int64(x.processMoveCost) + v.diffProcess)
	x.serviceMoveCost = uint64(int64(x.serviceMoveCost) + v.diffService)
	x.machineMoveCost = uint64(int64(x.machineMoveCost) + v.diffMachine)

	x.sol[ex.P1] = m2
	x.sol[ex.P2] = m1

	x.checkDebug()
}

// moveProcess updates the presence/spread/neighborhood bookkeeping for
// one half of an exchange, the same way MoveVerifier.Commit would for an
// isolated move of that process.
func moveProcess(x *Info, p *problem.Problem, pid int, proc problem.Process, src, dst int) {
	s := proc.Service
	x.machinePresence[s][src]--
	x.machinePresence[s][dst]++
	x.boolMachinePresence[s][src] = x.machinePresence[s][src] > 0
	x.boolMachinePresence[s][dst] = true

	srcLoc, dstLoc := p.Machines[src].Location, p.Machines[dst].Location
	x.setLocationPresence(s, srcLoc, x.locationPresence[s][srcLoc]-1)
	x.setLocationPresence(s, dstLoc, x.locationPresence[s][dstLoc]+1)

	srcN, dstN := p.Machines[src].Neighborhood, p.Machines[dst].Neighborhood
	x.neighborPresence[s][srcN]--
	x.neighborPresence[s][dstN]++
}
