// Package costopt implements the optional VNS pre-pass: two greedy
// optimizers that target load cost (first-improvement moves) and
// balance cost (best-improvement exchanges) specifically, each ordered
// to work on the highest-weighted-cost term first.
package costopt

import (
	"sort"

	"reassign/pkg/problem"
	"reassign/pkg/solution"
)

// LoadCostOptimizer walks resources in descending order of weighted load
// cost; for each machine with positive load cost on that resource, it
// tries to move the machine's processes to low-load machines, committing
// strictly-improving first-improvement moves until no further
// improvement is found at that machine.
type LoadCostOptimizer struct{}

// Run performs one pass over every resource and machine.
func (LoadCostOptimizer) Run(x *solution.Info) {
	p := x.Problem()
	mv := solution.NewMoveVerifier(x)

	resources := append([]int(nil), rangeN(len(p.Resources))...)
	sort.Slice(resources, func(i, j int) bool {
		return p.Resources[resources[i]].WeightLoadCost > p.Resources[resources[j]].WeightLoadCost
	})

	for _, r := range resources {
		if p.Resources[r].WeightLoadCost == 0 {
			continue
		}
		lowLoad := lowLoadMachines(x, p, r)
		for m := range p.Machines {
			for x.Usage(m, r) > p.Machines[m].SafetyCapacity[r] {
				before := x.Usage(m, r)
				if !improveOneMove(x, mv, p, m, lowLoad) || x.Usage(m, r) >= before {
					break
				}
			}
		}
	}
}

// lowLoadMachines returns machines sorted by ascending usage of r, the
// preferred destinations for processes leaving an overloaded machine.
func lowLoadMachines(x *solution.Info, p *problem.Problem, r int) []int {
	ms := rangeN(len(p.Machines))
	sort.Slice(ms, func(i, j int) bool { return x.Usage(ms[i], r) < x.Usage(ms[j], r) })
	return ms
}

// improveOneMove tries to relocate one process off src to one of the
// candidate destinations, committing the first strictly-improving
// feasible move it finds.
func improveOneMove(x *solution.Info, mv *solution.MoveVerifier, p *problem.Problem, src int, candidates []int) bool {
	cur := x.Objective()
	var procs []int
	for pid, m := range x.Solution() {
		if m == src {
			procs = append(procs, pid)
		}
	}
	for _, pid := range procs {
		for _, dst := range candidates {
			if dst == src {
				continue
			}
			m := solution.Move{P: pid, Src: src, Dst: dst}
			if !mv.Feasible(m) {
				continue
			}
			if obj := mv.Objective(m); obj < cur {
				mv.Commit(m)
				return true
			}
		}
	}
	return false
}

func rangeN(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// BalanceCostOptimizer walks balance terms in descending order of
// weighted cost; for each it forms "positive" and "negative" machine
// sets by sign of the term's per-machine contribution and attempts
// exchanges between them that reduce target*slack(r1) - slack(r2),
// committing strictly-improving feasible exchanges.
type BalanceCostOptimizer struct{}

// Run performs one pass over every balance term.
func (BalanceCostOptimizer) Run(x *solution.Info) {
	p := x.Problem()
	if len(p.BalanceTerms) == 0 {
		return
	}
	ev := solution.NewExchangeVerifier(x)

	terms := rangeN(len(p.BalanceTerms))
	sort.Slice(terms, func(i, j int) bool {
		ti, tj := p.BalanceTerms[terms[i]], p.BalanceTerms[terms[j]]
		return ti.Weight*x.BalanceCost(terms[i]) > tj.Weight*x.BalanceCost(terms[j])
	})

	for _, b := range terms {
		term := p.BalanceTerms[b]
		if term.Weight == 0 {
			continue
		}
		improveBalanceTerm(x, ev, p, term)
	}
}

// improveBalanceTerm repeatedly exchanges a process from a positive-cost
// machine with one from a negative-cost machine (w.r.t. the term's
// contribution) until no strictly-improving feasible exchange remains.
func improveBalanceTerm(x *solution.Info, ev *solution.ExchangeVerifier, p *problem.Problem, term problem.BalanceTerm) {
	for {
		pos, neg := splitBySign(x, p, term)
		if len(pos) == 0 || len(neg) == 0 {
			return
		}
		if !tryBestExchange(x, ev, pos, neg) {
			return
		}
	}
}

// splitBySign partitions machines into those currently contributing
// positively to the term's cost and those with spare slack to absorb an
// exchange.
func splitBySign(x *solution.Info, p *problem.Problem, term problem.BalanceTerm) (pos, neg []int) {
	for m := range p.Machines {
		a1 := int64(p.Machines[m].Capacity[term.Resource1]) - int64(x.Usage(m, term.Resource1))
		a2 := int64(p.Machines[m].Capacity[term.Resource2]) - int64(x.Usage(m, term.Resource2))
		v := int64(term.Target)*a1 - a2
		if v > 0 {
			pos = append(pos, m)
		} else {
			neg = append(neg, m)
		}
	}
	return pos, neg
}

// tryBestExchange looks for the best strictly-improving feasible
// exchange between a process on a positive machine and one on a negative
// machine, committing it if found.
func tryBestExchange(x *solution.Info, ev *solution.ExchangeVerifier, pos, neg []int) bool {
	cur := x.Objective()
	var bestEx solution.Exchange
	bestObj := cur
	found := false

	for _, m1 := range pos {
		p1s := processesOn(x, m1)
		for _, m2 := range neg {
			p2s := processesOn(x, m2)
			for _, p1 := range p1s {
				for _, p2 := range p2s {
					ex := solution.Exchange{M1: m1, P1: p1, M2: m2, P2: p2}
					if !ev.Feasible(ex) {
						continue
					}
					if obj := ev.Objective(ex); obj < bestObj {
						bestObj = obj
						bestEx = ex
						found = true
					}
				}
			}
		}
	}
	if found {
		ev.Commit(bestEx)
	}
	return found
}

func processesOn(x *solution.Info, m int) []int {
	var out []int
	for pid, mi := range x.Solution() {
		if mi == m {
			out = append(out, pid)
		}
	}
	return out
}
