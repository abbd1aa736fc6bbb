package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// HeuristicSpec is one parsed element of the `-h/--heuristic` CLI
// argument: a heuristic name plus a flat set of key=value parameters,
// some of which may be namespaced onto a sub-component with `sub@key`
// (e.g. `ls@maxSamples=10000` configures the `maxSamples` parameter of
// whichever local-search variant the `ls` parameter selected).
type HeuristicSpec struct {
	Name   string
	Params map[string]string
}

// Param returns the named parameter and whether it was set.
func (s HeuristicSpec) Param(key string) (string, bool) {
	v, ok := s.Params[key]
	return v, ok
}

// IntParam returns the named parameter parsed as an int, or def if unset;
// a value that is not an integer is reported as an ErrHeuristicInit error.
func (s HeuristicSpec) IntParam(key string, def int) (int, error) {
	v, ok := s.Params[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %q=%q is not an integer", ErrHeuristicInit, key, v)
	}
	return n, nil
}

// FloatParam returns the named parameter parsed as a float64, or def if unset.
func (s HeuristicSpec) FloatParam(key string, def float64) (float64, error) {
	v, ok := s.Params[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %q=%q is not a number", ErrHeuristicInit, key, v)
	}
	return f, nil
}

// StringParam returns the named parameter, or def if unset.
func (s HeuristicSpec) StringParam(key, def string) string {
	if v, ok := s.Params[key]; ok {
		return v
	}
	return def
}

// ParseHeuristicSpecs parses the comma-separated `name[#k1=v1:k2=v2]`
// mini-language of the -h/--heuristic argument. An empty segment, a `#`
// followed by no parameters, a parameter with no `=`, or a duplicate key
// within one item is a parse error.
func ParseHeuristicSpecs(raw string) ([]HeuristicSpec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty heuristic spec", ErrHeuristicSpecParse)
	}
	items := strings.Split(raw, ",")
	specs := make([]HeuristicSpec, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			return nil, fmt.Errorf("%w: empty heuristic item", ErrHeuristicSpecParse)
		}
		spec, err := parseOneSpec(item)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseOneSpec(item string) (HeuristicSpec, error) {
	name, rest, hasParams := strings.Cut(item, "#")
	name = strings.TrimSpace(name)
	if name == "" {
		return HeuristicSpec{}, fmt.Errorf("%w: missing heuristic name in %q", ErrHeuristicSpecParse, item)
	}
	spec := HeuristicSpec{Name: name, Params: map[string]string{}}
	if !hasParams {
		return spec, nil
	}
	if strings.TrimSpace(rest) == "" {
		return HeuristicSpec{}, fmt.Errorf("%w: empty parameter list in %q", ErrHeuristicSpecParse, item)
	}
	for _, kv := range strings.Split(rest, ":") {
		if kv == "" {
			continue
		}
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return HeuristicSpec{}, fmt.Errorf("%w: malformed parameter %q in %q", ErrHeuristicSpecParse, kv, item)
		}
		if _, dup := spec.Params[key]; dup {
			return HeuristicSpec{}, fmt.Errorf("%w: duplicate parameter %q in %q", ErrHeuristicSpecParse, key, item)
		}
		spec.Params[key] = value
	}
	return spec, nil
}

// DefaultHeuristicSpec is the engine's out-of-the-box configuration: a
// VNS worker using the optimized local search with a raised sample cap,
// running alongside an independent simulated-annealing worker.
const DefaultHeuristicSpec = "vns3#ls=optimized:ls@maxSamples=10000,simulated_annealing"
