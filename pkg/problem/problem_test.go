package problem

import (
	"strings"
	"testing"
)

// minimalInstance is the smallest interesting input: 1 resource,
// 2 machines, 1 service, 2 processes, no balance terms.
const minimalInstance = `1
0 1
2
0 0 10 10 0 1
0 0 10 10 1 0
1
1 0
2
0 3 5
0 3 5
0
1 1 1
`

func TestParseMinimalInstance(t *testing.T) {
	p, err := Parse(strings.NewReader(minimalInstance))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Resources) != 1 || len(p.Machines) != 2 || len(p.Services) != 1 || len(p.Processes) != 2 {
		t.Fatalf("unexpected counts: %+v", p)
	}
	if p.Resources[0].Transient {
		t.Fatalf("resource 0 should be non-transient")
	}
	if got := p.MachineMoveCost(0, 1); got != 1 {
		t.Fatalf("MachineMoveCost(0,1) = %d, want 1", got)
	}
	if got := p.MachineMoveCost(0, 0); got != 0 {
		t.Fatalf("MachineMoveCost(0,0) = %d, want 0", got)
	}
	if p.ServiceHasSingleProcess[0] {
		t.Fatalf("service 0 has 2 processes, should not be single-process")
	}
	if p.WeightProcessMove != 1 || p.WeightServiceMove != 1 || p.WeightMachineMove != 1 {
		t.Fatalf("unexpected weights: %+v", p)
	}
}

func TestParseTrailingDataRejected(t *testing.T) {
	if _, err := Parse(strings.NewReader(minimalInstance + "\n7\n")); err == nil {
		t.Fatalf("expected trailing-data error")
	}
}

func TestParseTruncatedRejected(t *testing.T) {
	truncated := "1\n0 1\n2\n0 0 10 10\n"
	if _, err := Parse(strings.NewReader(truncated)); err == nil {
		t.Fatalf("expected malformed-instance error on truncated input")
	}
}

func TestReadWriteAssignmentRoundTrip(t *testing.T) {
	sol := []int{0, 1, 1, 0}
	var buf strings.Builder
	if err := WriteAssignment(&buf, sol); err != nil {
		t.Fatalf("WriteAssignment: %v", err)
	}
	got, err := ReadAssignment(strings.NewReader(buf.String()), len(sol), 2)
	if err != nil {
		t.Fatalf("ReadAssignment: %v", err)
	}
	for i := range sol {
		if got[i] != sol[i] {
			t.Fatalf("round trip mismatch at %d: got %d want %d", i, got[i], sol[i])
		}
	}
}

func TestReadAssignmentRejectsOutOfRangeMachine(t *testing.T) {
	if _, err := ReadAssignment(strings.NewReader("0 1 2"), 3, 2); err == nil {
		t.Fatalf("expected an error for a machine index beyond machineCount")
	}
}
