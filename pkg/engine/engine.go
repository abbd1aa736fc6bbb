// Package engine wires the heuristic-spec mini-language, the shared
// SolutionPool and a fixed set of parallel heuristic workers into the
// top-level search orchestrator: it starts every configured heuristic
// on its own goroutine around the shared pool, waits until a deadline,
// signals cancellation, and returns the best pool entry.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reassign/pkg/pool"
	"reassign/pkg/problem"
	"reassign/pkg/solution"
)

// Config bundles the knobs the driver gathers from the CLI and passes
// down to the engine.
type Config struct {
	Seed          uint64
	HeuristicSpec string
	Pool          pool.Config
	Debug         bool

	// Metrics, if non-nil, is sampled on a ticker for the pool-derived
	// gauges and incremented once per outer-loop iteration by every
	// worker, for the `-metrics-addr` Prometheus endpoint.
	Metrics *Metrics
}

// HeuristicResult records one worker's terminal state for the driver's
// post-run error check. A failed heuristic does not abort the run; the
// other heuristics' pool contributions still count.
type HeuristicResult struct {
	Name string
	Err  error
}

// Engine runs a fixed set of heuristic workers concurrently around one
// shared SolutionPool until a deadline, then returns the best solution
// found.
type Engine struct {
	cfg     Config
	prob    *problem.Problem
	initial []int
	pool    *pool.Pool
	specs   []HeuristicSpec

	mu      sync.Mutex
	results []HeuristicResult
}

// New validates and builds an Engine; a malformed heuristic spec, an
// unknown heuristic name or an infeasible initial solution is reported
// immediately as a heuristic-spec, unknown-heuristic or input error,
// before any goroutine starts.
func New(cfg Config, prob *problem.Problem, initial []int) (*Engine, error) {
	if err := validateInitial(prob, initial); err != nil {
		return nil, err
	}
	prob.Debug = cfg.Debug
	if !isFeasibleInitial(prob, initial) {
		return nil, fmt.Errorf("%w: initial solution violates a constraint", ErrInput)
	}
	specRaw := cfg.HeuristicSpec
	if specRaw == "" {
		specRaw = DefaultHeuristicSpec
	}
	specs, err := ParseHeuristicSpecs(specRaw)
	if err != nil {
		return nil, err
	}
	for _, spec := range specs {
		switch spec.Name {
		case "vns", "vns3", "simulated_annealing", "sa", "path_relinking", "relink":
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownHeuristic, spec.Name)
		}
	}

	initObj := solution.NewFromInitial(prob, initial).Objective()
	poolCfg := cfg.Pool
	if poolCfg.MaxHQ == 0 && poolCfg.MaxHD == 0 {
		poolCfg = pool.DefaultConfig()
	}
	p := pool.New(poolCfg, cfg.Seed, initObj, initial)

	e := &Engine{cfg: cfg, prob: prob, initial: initial, pool: p, specs: specs}
	return e, nil
}

// validateInitial rejects, before any SolutionInfo is built, an initial
// vector whose length or machine indices don't match prob -- the same
// out-of-range check Parse and ReadAssignment apply to the instance and
// solution files, repeated here as a last line of defense against any
// caller that bypasses those (e.g. a test or future front-end) handing
// Info.recompute an index that would panic.
func validateInitial(prob *problem.Problem, initial []int) error {
	if len(initial) != len(prob.Processes) {
		return fmt.Errorf("%w: initial solution has %d entries, want %d", ErrInput, len(initial), len(prob.Processes))
	}
	mCount := len(prob.Machines)
	for pid, m := range initial {
		if m < 0 || m >= mCount {
			return fmt.Errorf("%w: process %d assigned to out-of-range machine %d", ErrInput, pid, m)
		}
	}
	return nil
}

// isFeasibleInitial recomputes SolutionInfo from the initial vector and
// reports whether every constraint already holds; the engine refuses to
// start local search from an infeasible starting point.
func isFeasibleInitial(prob *problem.Problem, initial []int) bool {
	x := solution.NewFromInitial(prob, initial)
	bv := solution.NewBatchVerifier(x)
	return bv.Feasible()
}

// Run starts every configured heuristic on its own goroutine, waits
// until the earliest of (all heuristics completed, ctx done), signals
// cancellation, joins every worker, and returns the best pool entry.
func (e *Engine) Run(ctx context.Context, deadline time.Time) ([]int, uint64, error) {
	interrupt := func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
		}
		return timeExpired(deadline)
	}

	// Every worker is built before any is started so an init failure
	// never leaves already-running goroutines behind.
	workers := make([]Worker, len(e.specs))
	for i, spec := range e.specs {
		worker, err := BuildWorker(spec, i, e.cfg.Seed, e.pool, e.prob, e.initial, e.cfg.Metrics)
		if err != nil {
			return nil, 0, err
		}
		workers[i] = worker
	}

	var wg sync.WaitGroup
	for _, worker := range workers {
		x := solution.NewFromInitial(e.prob, e.initial)
		wg.Add(1)
		go func(w Worker, x *solution.Info) {
			defer wg.Done()
			e.runWorker(w, x, interrupt)
		}(worker, x)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if e.cfg.Metrics != nil {
		go e.sampleMetrics(done)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
	case <-ctx.Done():
	}
	e.pool.Shutdown()
	<-done

	if err := e.firstError(); err != nil {
		return nil, 0, err
	}

	best, ok := e.pool.Best()
	if !ok {
		return nil, 0, ErrNoFeasibleSolution
	}
	return best.Solution, best.Objective, nil
}

// runWorker executes one worker, recovering a panic (e.g. a debug-mode
// AssertConsistent failure) into a recorded HeuristicResult rather than
// bringing down the whole engine.
func (e *Engine) runWorker(w Worker, x *solution.Info, interrupt func() bool) {
	result := HeuristicResult{Name: w.Name()}
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("%w: %s panicked: %v", ErrHeuristicRun, w.Name(), r)
		}
		e.mu.Lock()
		e.results = append(e.results, result)
		e.mu.Unlock()
	}()
	w.Run(x, interrupt)
}

// sampleMetrics refreshes the pool-derived gauges on a ticker until done
// closes, giving `-metrics-addr` a live view of a long-running search.
func (e *Engine) sampleMetrics(done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			e.cfg.Metrics.Sample(e)
			return
		case <-ticker.C:
			e.cfg.Metrics.Sample(e)
		}
	}
}

func (e *Engine) firstError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range e.results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Results returns a snapshot of every worker's terminal state, for the
// driver to log even on a successful run.
func (e *Engine) Results() []HeuristicResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]HeuristicResult(nil), e.results...)
}

// Pool exposes the shared pool for the analyze/metrics surfaces.
func (e *Engine) Pool() *pool.Pool { return e.pool }

func timeExpired(deadline time.Time) bool { return !time.Now().Before(deadline) }
