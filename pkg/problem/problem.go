// Package problem holds the immutable input of a machine-reassignment
// instance: resources, machines, services, processes, balance-cost terms
// and the global move-cost weights, along with the indices derived from
// them at parse time.
package problem

import "math"

// Resource is a computation resource shared by machines and consumed by
// processes. Transient resources additionally constrain the machine that
// a moving process is leaving, for the duration of the move.
type Resource struct {
	Transient      bool
	WeightLoadCost uint64
}

// Machine hosts processes. Capacity and SafetyCapacity are indexed by
// ResourceID; SafetyCapacity never exceeds Capacity.
type Machine struct {
	Neighborhood   int
	Location       int
	Capacity       []uint32
	SafetyCapacity []uint32
}

// Service groups processes that share a spread requirement and that may
// depend on other services through the dependency graph.
type Service struct {
	SpreadMin uint32
}

// Process is a single unit of work with a per-resource requirement and a
// cost incurred if it is moved away from its initial machine.
type Process struct {
	Service      int
	Requirement  []uint32
	MovementCost uint32
}

// BalanceTerm defines a per-machine cost shaping the slack of two
// resources towards a target ratio: max(0, target*(cap(r1)-u(r1)) - (cap(r2)-u(r2))).
type BalanceTerm struct {
	Resource1 int
	Resource2 int
	Target    uint32
	Weight    uint64
}

// Problem is the immutable instance shared by every heuristic worker.
type Problem struct {
	LocationCount     int
	NeighborhoodCount int

	Resources    []Resource
	Machines     []Machine
	Services     []Service
	Processes    []Process
	BalanceTerms []BalanceTerm

	WeightProcessMove uint64
	WeightServiceMove uint64
	WeightMachineMove uint64

	// Dependency graph among services: edge s -> s' means every
	// neighborhood containing a process of s must also contain one of s'.
	DepOut [][]int // out[s] = services that s depends on
	DepIn  [][]int // in[s]  = services that depend on s

	ServiceHasSingleProcess []bool
	ServiceHasNoInDep       []bool
	ServiceHasNoOutDep      []bool

	ProcessesByService    [][]int
	MachinesByLocation    [][]int
	MachinesByNeighborhood [][]int

	NonTransientResources []int
	TransientResources    []int

	// Debug enables the debug-only AssertConsistent cross-check after
	// every verifier commit. It is never set by Parse -- the engine
	// turns it on, once, before starting any heuristic goroutine, the
	// same publish-on-init moment that applies to the rest of Problem.
	Debug bool

	// Machine-move-cost table, stored compactly as bytes when every
	// entry fits in [0,255] -- chosen once at parse time, mirroring how
	// a dense |M|^2 table is kept cache-friendly for large instances.
	smallMoveCost []uint8
	wideMoveCost  []uint32
	useSmallCost  bool

	lbLoadCost    []uint64
	lbBalanceCost []uint64
}

// MachineMoveCost returns the cost of moving a process that started on m1
// to a solution where it currently sits on m2 (the table is addressed
// [initial machine, current machine]).
func (p *Problem) MachineMoveCost(m1, m2 int) uint64 {
	idx := m1*len(p.Machines) + m2
	if p.useSmallCost {
		return uint64(p.smallMoveCost[idx])
	}
	return uint64(p.wideMoveCost[idx])
}

func (p *Problem) setMachineMoveCostTable(table []uint32) {
	max := uint32(0)
	for _, v := range table {
		if v > max {
			max = v
		}
	}
	if max <= math.MaxUint8 {
		p.useSmallCost = true
		p.smallMoveCost = make([]uint8, len(table))
		for i, v := range table {
			p.smallMoveCost[i] = uint8(v)
		}
		return
	}
	p.useSmallCost = false
	p.wideMoveCost = table
}

// LowerBoundLoadCost returns the instance-wide lower bound on load cost
// for resource r (sum, over machines, of the unavoidable excess of total
// process requirement over safety capacity when every process fits).
func (p *Problem) LowerBoundLoadCost(r int) uint64 { return p.lbLoadCost[r] }

// LowerBoundBalanceCost returns the lower bound for balance term b.
func (p *Problem) LowerBoundBalanceCost(b int) uint64 { return p.lbBalanceCost[b] }

// LowerBoundObjective sums the weighted per-term lower bounds; useful as
// a sanity floor when reporting progress, never as a termination test.
func (p *Problem) LowerBoundObjective() uint64 {
	var lb uint64
	for r, res := range p.Resources {
		lb += p.LowerBoundLoadCost(r) * res.WeightLoadCost
	}
	for b, bt := range p.BalanceTerms {
		lb += p.LowerBoundBalanceCost(b) * bt.Weight
	}
	return lb
}

func clamp0(x int64) uint64 {
	if x < 0 {
		return 0
	}
	return uint64(x)
}

func computeLoadCost(usage, safety uint32) uint64 {
	return clamp0(int64(usage) - int64(safety))
}

func computeBalanceCost(term BalanceTerm, m Machine, usage1, usage2 uint32) uint64 {
	a1 := int64(m.Capacity[term.Resource1]) - int64(usage1)
	a2 := int64(m.Capacity[term.Resource2]) - int64(usage2)
	return clamp0(int64(term.Target)*a1 - a2)
}

// buildIndices fills in every field derived from the raw resources,
// machines, services and processes; it must run once, right after the
// raw slices are populated by a parser or test fixture.
func (p *Problem) buildIndices(moveCostTable []uint32) {
	rCount := len(p.Resources)
	sCount := len(p.Services)

	p.setMachineMoveCostTable(moveCostTable)

	p.ProcessesByService = make([][]int, sCount)
	for pid, proc := range p.Processes {
		p.ProcessesByService[proc.Service] = append(p.ProcessesByService[proc.Service], pid)
	}

	p.MachinesByLocation = make([][]int, p.LocationCount)
	p.MachinesByNeighborhood = make([][]int, p.NeighborhoodCount)
	for mid, m := range p.Machines {
		p.MachinesByLocation[m.Location] = append(p.MachinesByLocation[m.Location], mid)
		p.MachinesByNeighborhood[m.Neighborhood] = append(p.MachinesByNeighborhood[m.Neighborhood], mid)
	}

	p.ServiceHasSingleProcess = make([]bool, sCount)
	for s := 0; s < sCount; s++ {
		p.ServiceHasSingleProcess[s] = len(p.ProcessesByService[s]) <= 1
	}

	p.ServiceHasNoInDep = make([]bool, sCount)
	p.ServiceHasNoOutDep = make([]bool, sCount)
	for s := 0; s < sCount; s++ {
		p.ServiceHasNoInDep[s] = len(p.DepIn[s]) == 0
		p.ServiceHasNoOutDep[s] = len(p.DepOut[s]) == 0
	}

	for r := 0; r < rCount; r++ {
		if p.Resources[r].Transient {
			p.TransientResources = append(p.TransientResources, r)
		} else {
			p.NonTransientResources = append(p.NonTransientResources, r)
		}
	}

	p.lbLoadCost = make([]uint64, rCount)
	for r := 0; r < rCount; r++ {
		var totalReq, totalSafety int64
		for _, proc := range p.Processes {
			totalReq += int64(proc.Requirement[r])
		}
		for _, m := range p.Machines {
			totalSafety += int64(m.SafetyCapacity[r])
		}
		p.lbLoadCost[r] = clamp0(totalReq - totalSafety)
	}
	p.lbBalanceCost = make([]uint64, len(p.BalanceTerms))
}
