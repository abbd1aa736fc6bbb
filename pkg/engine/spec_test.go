package engine

import (
	"errors"
	"testing"
)

func TestParseHeuristicSpecsDefault(t *testing.T) {
	specs, err := ParseHeuristicSpecs(DefaultHeuristicSpec)
	if err != nil {
		t.Fatalf("ParseHeuristicSpecs: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2: %+v", len(specs), specs)
	}
	if specs[0].Name != "vns3" {
		t.Fatalf("specs[0].Name = %q, want vns3", specs[0].Name)
	}
	if v := specs[0].StringParam("ls", ""); v != "optimized" {
		t.Fatalf("ls param = %q, want optimized", v)
	}
	n, err := specs[0].IntParam("ls@maxSamples", 0)
	if err != nil || n != 10000 {
		t.Fatalf("ls@maxSamples = %d, %v, want 10000, nil", n, err)
	}
	if specs[1].Name != "simulated_annealing" {
		t.Fatalf("specs[1].Name = %q, want simulated_annealing", specs[1].Name)
	}
}

func TestParseHeuristicSpecsMalformed(t *testing.T) {
	cases := []string{"", "  ", "name#", "name#k", "name#k=v:k=w2", ",vns"}
	for _, c := range cases {
		if _, err := ParseHeuristicSpecs(c); err == nil {
			t.Errorf("ParseHeuristicSpecs(%q): expected error, got nil", c)
		} else if !errors.Is(err, ErrHeuristicSpecParse) {
			t.Errorf("ParseHeuristicSpecs(%q): error %v is not ErrHeuristicSpecParse", c, err)
		}
	}
}

func TestHeuristicSpecParamDefaults(t *testing.T) {
	spec := HeuristicSpec{Name: "sa", Params: map[string]string{"rho": "0.9"}}
	f, err := spec.FloatParam("rho", 0.97)
	if err != nil || f != 0.9 {
		t.Fatalf("rho = %v, %v, want 0.9, nil", f, err)
	}
	f, err = spec.FloatParam("tMin", 0.5)
	if err != nil || f != 0.5 {
		t.Fatalf("tMin default = %v, %v, want 0.5, nil", f, err)
	}
	if _, err := spec.FloatParam("rho", 0); err != nil {
		t.Fatalf("unexpected error reparsing rho: %v", err)
	}
	bad := HeuristicSpec{Name: "sa", Params: map[string]string{"rho": "oops"}}
	if _, err := bad.FloatParam("rho", 0); !errors.Is(err, ErrHeuristicInit) {
		t.Fatalf("expected ErrHeuristicInit for unparseable float, got %v", err)
	}
}
