package solution

// BatchVerifier applies a sequence of moves that may pass through
// infeasible solutions -- the vehicle the "smart shaker" uses to repair
// its way back to feasibility. It maintains five bounded violation sets
// incrementally, touching only the machines/services/neighborhoods a move
// actually affects, and recomputes the objective lazily on demand.
type BatchVerifier struct {
	info *Info
	mv   *MoveVerifier

	capacity   map[int]struct{}
	transient  map[int]struct{}
	conflict   map[ConflictViolation]struct{}
	spread     map[int]struct{}
	dependency map[DependencyViolation]struct{}

	objCached bool
	obj       uint64
}

// NewBatchVerifier builds a verifier over info, scanning it once to seed
// the violation sets (normally empty, since heuristics only start
// shaking from a feasible solution, but the scan makes no such
// assumption).
func NewBatchVerifier(info *Info) *BatchVerifier {
	b := &BatchVerifier{
		info:       info,
		mv:         NewMoveVerifier(info),
		capacity:   map[int]struct{}{},
		transient:  map[int]struct{}{},
		conflict:   map[ConflictViolation]struct{}{},
		spread:     map[int]struct{}{},
		dependency: map[DependencyViolation]struct{}{},
	}
	p := info.prob
	for m := range p.Machines {
		b.recheckMachine(m)
	}
	for s := range p.Services {
		b.recheckServiceSpread(s)
		for m := range p.Machines {
			b.recheckConflict(s, m)
		}
	}
	for s := range p.Services {
		for n := 0; n < p.NeighborhoodCount; n++ {
			b.recheckDependencyEdges(s, n)
		}
	}
	return b
}

// Info returns the underlying SolutionInfo.
func (b *BatchVerifier) Info() *Info { return b.info }

// CapacityViolations returns the set of machines currently overloaded on
// at least one non-transient resource.
func (b *BatchVerifier) CapacityViolations() map[int]struct{} { return b.capacity }

// TransientViolations returns the set of machines currently overloaded
// once transient usage is accounted for.
func (b *BatchVerifier) TransientViolations() map[int]struct{} { return b.transient }

// ConflictViolations returns the set of (service, machine) pairs hosting
// more than one process of the service.
func (b *BatchVerifier) ConflictViolations() map[ConflictViolation]struct{} { return b.conflict }

// SpreadViolations returns the set of services below their spread minimum.
func (b *BatchVerifier) SpreadViolations() map[int]struct{} { return b.spread }

// DependencyViolations returns the set of violated (from, to, neighborhood) edges.
func (b *BatchVerifier) DependencyViolations() map[DependencyViolation]struct{} {
	return b.dependency
}

// Feasible reports whether every violation set is empty.
func (b *BatchVerifier) Feasible() bool {
	return len(b.capacity) == 0 && len(b.transient) == 0 && len(b.conflict) == 0 &&
		len(b.spread) == 0 && len(b.dependency) == 0
}

// Objective returns the (possibly infeasible) current objective,
// computed once and cached until the next Update/Rollback.
func (b *BatchVerifier) Objective() uint64 {
	if !b.objCached {
		b.obj = b.info.Objective()
		b.objCached = true
	}
	return b.obj
}

// Update applies move unconditionally (it may leave the solution
// infeasible) and refreshes the violation sets for every machine,
// service and neighborhood it touched.
func (b *BatchVerifier) Update(move Move) {
	b.objCached = false
	if move.Src == move.Dst {
		return
	}
	p := b.info.prob
	s := p.Processes[move.P].Service
	srcN, dstN := p.Machines[move.Src].Neighborhood, p.Machines[move.Dst].Neighborhood

	b.mv.Commit(move)

	b.recheckMachine(move.Src)
	b.recheckMachine(move.Dst)
	b.recheckConflict(s, move.Src)
	b.recheckConflict(s, move.Dst)
	b.recheckServiceSpread(s)
	b.recheckDependencyEdges(s, srcN)
	if dstN != srcN {
		b.recheckDependencyEdges(s, dstN)
	}
}

// UpdateBatch applies a sequence of moves in order.
func (b *BatchVerifier) UpdateBatch(moves []Move) {
	for _, m := range moves {
		b.Update(m)
	}
}

// Rollback undoes a single move by applying its reverse.
func (b *BatchVerifier) Rollback(move Move) {
	b.Update(move.Reverse())
}

// RollbackBatch undoes a sequence of moves in reverse order.
func (b *BatchVerifier) RollbackBatch(moves []Move) {
	for i := len(moves) - 1; i >= 0; i-- {
		b.Rollback(moves[i])
	}
}

func (b *BatchVerifier) recheckMachine(m int) {
	p := b.info.prob
	overCap := false
	for _, r := range p.NonTransientResources {
		if b.info.usage[m][r] > p.Machines[m].Capacity[r] {
			overCap = true
			break
		}
	}
	setMembership(b.capacity, m, overCap)

	overTransient := false
	for _, r := range p.TransientResources {
		if b.info.usage[m][r]+b.info.transient[m][r] > p.Machines[m].Capacity[r] {
			overTransient = true
			break
		}
	}
	setMembership(b.transient, m, overTransient)
}

func (b *BatchVerifier) recheckConflict(s, m int) {
	v := ConflictViolation{Service: s, Machine: m}
	violated := b.info.machinePresence[s][m] > 1
	if violated {
		b.conflict[v] = struct{}{}
	} else {
		delete(b.conflict, v)
	}
}

func (b *BatchVerifier) recheckServiceSpread(s int) {
	p := b.info.prob
	violated := b.info.spread[s] < int(p.Services[s].SpreadMin)
	setMembership(b.spread, s, violated)
}

func (b *BatchVerifier) recheckDependencyEdges(s, n int) {
	p := b.info.prob
	for _, to := range p.DepOut[s] {
		b.checkEdge(s, to, n)
	}
	for _, from := range p.DepIn[s] {
		b.checkEdge(from, s, n)
	}
}

func (b *BatchVerifier) checkEdge(from, to, n int) {
	v := DependencyViolation{From: from, To: to, Neighborhood: n}
	violated := b.info.neighborPresence[from][n] > 0 && b.info.neighborPresence[to][n] == 0
	if violated {
		b.dependency[v] = struct{}{}
	} else {
		delete(b.dependency, v)
	}
}

func setMembership(set map[int]struct{}, key int, present bool) {
	if present {
		set[key] = struct{}{}
	} else {
		delete(set, key)
	}
}
