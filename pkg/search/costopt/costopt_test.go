package costopt

import (
	"strings"
	"testing"

	"reassign/pkg/problem"
	"reassign/pkg/solution"
)

// overloadedInstance puts both processes on machine 0, which exceeds its
// safety capacity of 4 on the single resource; machine 1 has headroom.
const overloadedInstance = `1
0 1
2
0 0 10 4 0 1
0 0 10 10 1 0
1
1 0
2
0 3 1
0 3 1
0
1 1 1
`

func TestLoadCostOptimizerReducesOverload(t *testing.T) {
	p, err := problem.Parse(strings.NewReader(overloadedInstance))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	initial := []int{0, 0}
	x := solution.NewFromInitial(p, initial)
	before := x.Objective()

	var opt LoadCostOptimizer
	opt.Run(x)

	if ok, diff := x.AssertConsistent(); !ok {
		t.Fatalf("inconsistent state after LoadCostOptimizer.Run: %s", diff)
	}
	if x.Objective() >= before {
		t.Fatalf("objective %d did not improve from %d", x.Objective(), before)
	}
	if x.Usage(0, 0) > p.Machines[0].SafetyCapacity[0] {
		t.Fatalf("machine 0 still over its safety capacity after optimization: usage=%d safety=%d",
			x.Usage(0, 0), p.Machines[0].SafetyCapacity[0])
	}
}

// balancedInstance gives one balance term (target=1 between r0 and r1)
// that machine 1 violates (cost 8) while machine 0 sits below the target
// and could absorb an exchange.
const balancedInstance = `2
0 1
0 1
2
0 0 10 10 10 10 0 1
0 0 10 10 10 10 1 0
1
1 0
2
0 9 1 5
0 1 9 5
1
0 1 1 2
1 1 1
`

func TestBalanceCostOptimizerImprovesOrNoOps(t *testing.T) {
	p, err := problem.Parse(strings.NewReader(balancedInstance))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	initial := []int{0, 1}
	x := solution.NewFromInitial(p, initial)
	before := x.Objective()

	var opt BalanceCostOptimizer
	opt.Run(x)

	if ok, diff := x.AssertConsistent(); !ok {
		t.Fatalf("inconsistent state after BalanceCostOptimizer.Run: %s", diff)
	}
	if x.Objective() > before {
		t.Fatalf("objective %d regressed from %d", x.Objective(), before)
	}
}
