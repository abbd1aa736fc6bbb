package engine

import "errors"

// Sentinel error classes, distinguishing failure kinds with errors.Is
// rather than string matching. The driver maps these onto process exit
// codes.
var (
	ErrInput              = errors.New("input error")
	ErrHeuristicSpecParse = errors.New("heuristic spec parse error")
	ErrHeuristicInit      = errors.New("heuristic init error")
	ErrHeuristicRun       = errors.New("heuristic run error")
	ErrNoFeasibleSolution = errors.New("no feasible solution in pool at exit")
	ErrUnknownHeuristic   = errors.New("unknown heuristic name")
)
