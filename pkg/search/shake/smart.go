package shake

import (
	"golang.org/x/exp/rand"

	"reassign/pkg/solution"
)

// Smart is the repairing shaker: it traverses infeasible states for
// up to MaxInfeasibleSteps consecutive steps using a BatchVerifier,
// picking repair moves by inspecting whichever violation set is
// nonempty, and rolls the whole batch back if it cannot restore
// feasibility.
type Smart struct {
	Rng                *rand.Rand
	MaxInfeasibleSteps int
	MaxRetries         int
}

const (
	defaultMaxInfeasibleSteps = 50
	defaultMaxRetries         = 10
)

// Shake applies k random feasible perturbation steps to x, routing
// through infeasible intermediate states when a repair heuristic can
// restore feasibility within MaxInfeasibleSteps; if a whole attempt
// cannot be repaired it is rolled back and retried.
func (s *Smart) Shake(x *solution.Info, k uint64) {
	maxInfeasible := s.MaxInfeasibleSteps
	if maxInfeasible <= 0 {
		maxInfeasible = defaultMaxInfeasibleSteps
	}
	maxRetries := s.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for retry := 0; retry < maxRetries; retry++ {
		bv := solution.NewBatchVerifier(x)
		var applied []solution.Move
		ok := true

		for step := uint64(0); step < k; step++ {
			mv, found := s.pickStep(x, bv)
			if !found {
				ok = false
				break
			}
			bv.Update(mv)
			applied = append(applied, mv)

			if !bv.Feasible() {
				if !s.repairToFeasible(x, bv, &applied, maxInfeasible) {
					ok = false
					break
				}
			}
		}

		if ok && bv.Feasible() {
			return
		}
		bv.RollbackBatch(applied)
	}
}

// pickStep proposes a single random move (shake steps are move-only so
// the repair logic only ever has to reason about one process moving at
// a time).
func (s *Smart) pickStep(x *solution.Info, bv *solution.BatchVerifier) (solution.Move, bool) {
	pCount := len(x.Solution())
	mCount := len(x.Problem().Machines)
	if pCount == 0 || mCount == 0 {
		return solution.Move{}, false
	}
	p := s.Rng.Intn(pCount)
	m := s.Rng.Intn(mCount)
	return solution.Move{P: p, Src: x.Solution()[p], Dst: m}, true
}

// repairToFeasible applies repair moves chosen from the first nonempty
// violation set until the batch is feasible or maxSteps is exhausted.
func (s *Smart) repairToFeasible(x *solution.Info, bv *solution.BatchVerifier, applied *[]solution.Move, maxSteps int) bool {
	for step := 0; step < maxSteps; step++ {
		if bv.Feasible() {
			return true
		}
		mv, ok := s.repairMove(x, bv)
		if !ok {
			return false
		}
		bv.Update(mv)
		*applied = append(*applied, mv)
	}
	return bv.Feasible()
}

// repairMove picks one repair step by inspecting, in order, capacity,
// transient-capacity, conflict, spread and dependency violations -- the
// first nonempty set determines the repair heuristic.
func (s *Smart) repairMove(x *solution.Info, bv *solution.BatchVerifier) (solution.Move, bool) {
	for m := range bv.CapacityViolations() {
		if mv, ok := s.reduceUsage(x, m); ok {
			return mv, true
		}
	}
	for m := range bv.TransientViolations() {
		if mv, ok := s.reduceUsage(x, m); ok {
			return mv, true
		}
	}
	for v := range bv.ConflictViolations() {
		if mv, ok := s.resolveConflict(x, v.Service, v.Machine); ok {
			return mv, true
		}
	}
	for s2 := range bv.SpreadViolations() {
		if mv, ok := s.repairSpread(x, s2); ok {
			return mv, true
		}
	}
	for v := range bv.DependencyViolations() {
		if mv, ok := s.repairDependency(x, v); ok {
			return mv, true
		}
	}
	return solution.Move{}, false
}

// reduceUsage moves one process currently on the overloaded machine m to
// a randomly-chosen other machine, reducing m's load.
func (s *Smart) reduceUsage(x *solution.Info, m int) (solution.Move, bool) {
	p := x.Problem()
	var candidates []int
	for pid, mi := range x.Solution() {
		if mi == m {
			candidates = append(candidates, pid)
		}
	}
	if len(candidates) == 0 {
		return solution.Move{}, false
	}
	pid := candidates[s.Rng.Intn(len(candidates))]
	dst := s.Rng.Intn(len(p.Machines))
	for dst == m && len(p.Machines) > 1 {
		dst = s.Rng.Intn(len(p.Machines))
	}
	return solution.Move{P: pid, Src: m, Dst: dst}, true
}

// resolveConflict moves one of the conflicting processes of service s on
// machine m to a machine in m's location that does not host the service;
// if there is none, it picks a random machine, which may host the
// service or be m itself.
func (s *Smart) resolveConflict(x *solution.Info, svc, m int) (solution.Move, bool) {
	p := x.Problem()
	var candidates []int
	for _, pid := range p.ProcessesByService[svc] {
		if x.Solution()[pid] == m {
			candidates = append(candidates, pid)
		}
	}
	if len(candidates) < 2 {
		return solution.Move{}, false
	}
	pid := candidates[s.Rng.Intn(len(candidates))]
	for _, dst := range p.MachinesByLocation[p.Machines[m].Location] {
		if !x.BoolMachinePresence(svc, dst) {
			return solution.Move{P: pid, Src: m, Dst: dst}, true
		}
	}
	dst := s.Rng.Intn(len(p.Machines))
	return solution.Move{P: pid, Src: m, Dst: dst}, true
}

// repairSpread moves a process of service svc to a machine in a location
// the service does not yet occupy.
func (s *Smart) repairSpread(x *solution.Info, svc int) (solution.Move, bool) {
	p := x.Problem()
	procs := p.ProcessesByService[svc]
	if len(procs) == 0 {
		return solution.Move{}, false
	}
	for _, l := range s.Rng.Perm(p.LocationCount) {
		if x.LocationPresence(svc, l) > 0 {
			continue
		}
		for _, m := range p.MachinesByLocation[l] {
			pid := procs[s.Rng.Intn(len(procs))]
			return solution.Move{P: pid, Src: x.Solution()[pid], Dst: m}, true
		}
	}
	return solution.Move{}, false
}

// repairDependency addresses a violated edge by either moving a process
// of the dependee service (v.To) into the offending neighborhood, or
// moving the last process of v.From out of it.
func (s *Smart) repairDependency(x *solution.Info, v solution.DependencyViolation) (solution.Move, bool) {
	p := x.Problem()
	if procs := p.ProcessesByService[v.To]; len(procs) > 0 {
		machines := p.MachinesByNeighborhood[v.Neighborhood]
		if len(machines) > 0 {
			pid := procs[s.Rng.Intn(len(procs))]
			dst := machines[s.Rng.Intn(len(machines))]
			return solution.Move{P: pid, Src: x.Solution()[pid], Dst: dst}, true
		}
	}
	if procs := p.ProcessesByService[v.From]; len(procs) > 0 {
		for _, pid := range procs {
			if p.Machines[x.Solution()[pid]].Neighborhood == v.Neighborhood {
				dst := s.Rng.Intn(len(p.Machines))
				return solution.Move{P: pid, Src: x.Solution()[pid], Dst: dst}, true
			}
		}
	}
	return solution.Move{}, false
}
