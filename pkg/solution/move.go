package solution

import "reassign/pkg/problem"

// Move represents the reassignment of process P from machine Src to
// machine Dst. It is evaluated against a SolutionInfo in which
// Solution()[P] == Src.
type Move struct {
	P   int
	Src int
	Dst int
}

// Reverse returns the move that undoes m, given it was just committed.
func (m Move) Reverse() Move { return Move{P: m.P, Src: m.Dst, Dst: m.Src} }

// MoveVerifier evaluates and commits single-process moves against one
// SolutionInfo, in O(|R|+|B|) per call. Objective and Commit each compute
// the move's deltas afresh; nothing is carried over between calls.
type MoveVerifier struct {
	info *Info

	diffLoad    []int64
	diffBalance []int64
	diffProcess int64
	diffService int64
	diffMachine int64
}

// NewMoveVerifier returns a verifier bound to info.
func NewMoveVerifier(info *Info) *MoveVerifier {
	p := info.prob
	return &MoveVerifier{
		info:        info,
		diffLoad:    make([]int64, len(p.Resources)),
		diffBalance: make([]int64, len(p.BalanceTerms)),
	}
}

// Info returns the SolutionInfo this verifier evaluates and commits against.
func (v *MoveVerifier) Info() *Info { return v.info }

// Feasible reports whether applying move preserves every constraint,
// assuming the current SolutionInfo is itself feasible.
func (v *MoveVerifier) Feasible(move Move) bool {
	if move.Src == move.Dst {
		return true
	}
	p := v.info.prob
	proc := p.Processes[move.P]
	s := proc.Service

	for _, r := range p.NonTransientResources {
		if v.info.usage[move.Dst][r]+proc.Requirement[r] > p.Machines[move.Dst].Capacity[r] {
			return false
		}
	}
	for _, r := range p.TransientResources {
		add := uint32(0)
		if move.Dst != v.info.initial[move.P] {
			add = proc.Requirement[r]
		}
		if v.info.usage[move.Dst][r]+v.info.transient[move.Dst][r]+add > p.Machines[move.Dst].Capacity[r] {
			return false
		}
	}

	if !p.ServiceHasSingleProcess[s] {
		if v.info.boolMachinePresence[s][move.Dst] {
			return false
		}
	}

	srcLoc := p.Machines[move.Src].Location
	dstLoc := p.Machines[move.Dst].Location
	if !p.ServiceHasSingleProcess[s] && srcLoc != dstLoc {
		if v.info.spread[s] == int(p.Services[s].SpreadMin) &&
			v.info.locationPresence[s][srcLoc] == 1 &&
			v.info.locationPresence[s][dstLoc] > 0 {
			return false
		}
	}

	srcN := p.Machines[move.Src].Neighborhood
	dstN := p.Machines[move.Dst].Neighborhood
	if srcN != dstN {
		for _, s2 := range p.DepOut[s] {
			if v.info.neighborPresence[s2][dstN] == 0 {
				return false
			}
		}
		if v.info.neighborPresence[s][srcN] == 1 {
			for _, s1 := range p.DepIn[s] {
				if v.info.neighborPresence[s1][srcN] > 0 {
					return false
				}
			}
		}
	}

	return true
}

func clampI(usage int64, safety uint32) int64 {
	d := usage - int64(safety)
	if d < 0 {
		return 0
	}
	return d
}

func (v *MoveVerifier) computeDiffs(move Move) {
	p := v.info.prob
	proc := p.Processes[move.P]
	src, dst := move.Src, move.Dst

	for r := range v.diffLoad {
		uSrc := int64(v.info.usage[src][r])
		uDst := int64(v.info.usage[dst][r])
		req := int64(proc.Requirement[r])
		before := clampI(uSrc, p.Machines[src].SafetyCapacity[r]) + clampI(uDst, p.Machines[dst].SafetyCapacity[r])
		after := clampI(uSrc-req, p.Machines[src].SafetyCapacity[r]) + clampI(uDst+req, p.Machines[dst].SafetyCapacity[r])
		v.diffLoad[r] = after - before
	}

	for b, term := range p.BalanceTerms {
		req1 := int64(proc.Requirement[term.Resource1])
		req2 := int64(proc.Requirement[term.Resource2])
		before := balanceCostAt(term, p.Machines[src], v.info.usage[src][term.Resource1], v.info.usage[src][term.Resource2]) +
			balanceCostAt(term, p.Machines[dst], v.info.usage[dst][term.Resource1], v.info.usage[dst][term.Resource2])
		afterSrc := balanceCostAtRaw(term, p.Machines[src], int64(v.info.usage[src][term.Resource1])-req1, int64(v.info.usage[src][term.Resource2])-req2)
		afterDst := balanceCostAtRaw(term, p.Machines[dst], int64(v.info.usage[dst][term.Resource1])+req1, int64(v.info.usage[dst][term.Resource2])+req2)
		v.diffBalance[b] = int64(afterSrc+afterDst) - int64(before)
	}

	v.diffProcess = 0
	if dst == v.info.initial[move.P] {
		v.diffProcess = -int64(proc.MovementCost)
	} else if src == v.info.initial[move.P] {
		v.diffProcess = int64(proc.MovementCost)
	}

	v.diffService = computeServiceMoveDelta(v.info, proc.Service, v.info.initial[move.P], src, dst)

	v.diffMachine = int64(p.MachineMoveCost(v.info.initial[move.P], dst)) - int64(p.MachineMoveCost(v.info.initial[move.P], src))
}

// computeServiceMoveDelta derives the change to serviceMoveCost =
// max_s movedProcesses[s] caused by process p of service s moving from
// src to dst, given p's initial machine im.
func computeServiceMoveDelta(x *Info, s, im, src, dst int) int64 {
	if src == dst {
		return 0
	}
	return pairedServiceMoveDelta(x, s, movedDelta(im, src, dst), -1, 0)
}

// movedDelta is the change to movedProcesses[service(p)] when p leaves
// src for dst, given its initial machine im. src != dst is assumed.
func movedDelta(im, src, dst int) int {
	if dst == im {
		return -1
	}
	if src == im {
		return 1
	}
	return 0
}

// pairedServiceMoveDelta derives the change to serviceMoveCost when the
// moved-process counts of up to two services change at once (a move
// touches one, an exchange up to two). It re-derives the value from the
// invariant serviceMoveCost = max_s movedProcesses[s] rather than
// special-casing a tie-break heuristic: increases can only raise the
// maximum through the adjusted services themselves, so that path is
// O(1); a decrease at a maximum holder needs a scan for the new maximum.
func pairedServiceMoveDelta(x *Info, s1, d1, s2, d2 int) int64 {
	if s1 == s2 {
		d1 += d2
		d2 = 0
		s2 = -1
	}
	if d1 == 0 && d2 == 0 {
		return 0
	}
	curMax := int(x.serviceMoveCost)

	if d1 >= 0 && d2 >= 0 {
		newMax := curMax
		if c := x.movedProcesses[s1] + d1; c > newMax {
			newMax = c
		}
		if s2 >= 0 {
			if c := x.movedProcesses[s2] + d2; c > newMax {
				newMax = c
			}
		}
		return int64(newMax - curMax)
	}

	newMax := 0
	for s, v := range x.movedProcesses {
		if s == s1 {
			v += d1
		} else if s == s2 {
			v += d2
		}
		if v > newMax {
			newMax = v
		}
	}
	return int64(newMax - curMax)
}

func balanceCostAtRaw(term problem.BalanceTerm, m problem.Machine, u1, u2 int64) uint64 {
	a1 := int64(m.Capacity[term.Resource1]) - u1
	a2 := int64(m.Capacity[term.Resource2]) - u2
	v := int64(term.Target)*a1 - a2
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// Objective computes the post-move total without mutating Info.
func (v *MoveVerifier) Objective(move Move) uint64 {
	if move.Src == move.Dst {
		return v.info.Objective()
	}
	v.computeDiffs(move)
	return v.applyToTotal()
}

func (v *MoveVerifier) applyToTotal() uint64 {
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

// Commit applies move to the bound SolutionInfo, updating every derived
// field in place.
func (v *MoveVerifier) Commit(move Move) {
	if move.Src == move.Dst {
		return
	}
	v.computeDiffs(move)
	x := v.info
	p := x.prob
	proc := p.Processes[move.P]
	src, dst := move.Src, move.Dst

	for r := 0; r < len(p.Resources); r++ {
		x.usage[src][r] -= proc.Requirement[r]
		x.usage[dst][r] += proc.Requirement[r]
	}
	im := x.initial[move.P]
	for _, r := range p.TransientResources {
		// transient[m] tracks requirement of processes whose *initial*
		// machine is m but current machine is not m.
		if im == src {
			x.transient[src][r] += proc.Requirement[r]
		}
		if im == dst {
			x.transient[dst][r] -= proc.Requirement[r]
		}
	}

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

	if dst == im {
		x.movedProcesses[s]--
	} else if src == im {
		x.movedProcesses[s]++
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

	x.sol[move.P] = dst

	x.checkDebug()
}

func (x *Info) setLocationPresence(s, l int, value uint32) {
	old := x.locationPresence[s][l]
	x.locationPresence[s][l] = value
	if old == 0 && value != 0 {
		x.spread[s]++
	} else if old != 0 && value == 0 {
		x.spread[s]--
	}
}
