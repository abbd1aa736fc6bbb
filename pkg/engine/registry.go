package engine

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/rand"

	"reassign/pkg/pool"
	"reassign/pkg/problem"
	"reassign/pkg/search/localsearch"
	"reassign/pkg/search/relink"
	"reassign/pkg/search/sa"
	"reassign/pkg/search/shake"
	"reassign/pkg/search/vns"
	"reassign/pkg/solution"
)

// Worker is one heuristic's runnable unit: it owns its SolutionInfo and
// runs until interrupt reports true.
type Worker interface {
	Name() string
	Run(x *solution.Info, interrupt func() bool)
}

// buildLocalSearch selects a local-search routine by name from the `ls`
// parameter, applying any `ls@key=value` namespaced overrides.
func buildLocalSearch(spec HeuristicSpec, rng *rand.Rand) (localsearch.Routine, error) {
	name := spec.StringParam("ls", "random")
	maxTrials, err := namespacedInt(spec, "ls", "maxTrials", 0)
	if err != nil {
		return nil, err
	}
	maxSamples, err := namespacedInt(spec, "ls", "maxSamples", 0)
	if err != nil {
		return nil, err
	}

	switch name {
	case "random":
		return &localsearch.Random{Rng: rng, MaxTrials: maxTrials}, nil
	case "deep":
		return &localsearch.Deep{Rng: rng, MaxTrials: maxTrials, MaxSamples: maxSamples}, nil
	case "sequential":
		return &localsearch.Sequential{Rng: rng, MaxSamples: maxSamples}, nil
	case "smart", "optimized":
		return &localsearch.Smart{Rng: rng, MaxTrials: maxTrials, MaxSamples: maxSamples}, nil
	default:
		return nil, fmt.Errorf("%w: unknown local-search variant %q", ErrHeuristicInit, name)
	}
}

// buildShaker selects a shake routine by name from the `shake` parameter.
func buildShaker(spec HeuristicSpec, rng *rand.Rand) (shake.Routine, error) {
	name := spec.StringParam("shake", "smart")
	switch name {
	case "random":
		return &shake.Random{Rng: rng}, nil
	case "deep":
		samples, err := namespacedInt(spec, "shake", "samples", 0)
		if err != nil {
			return nil, err
		}
		return &shake.Deep{Rng: rng, Samples: samples}, nil
	case "smart":
		return &shake.Smart{Rng: rng}, nil
	default:
		return nil, fmt.Errorf("%w: unknown shake variant %q", ErrHeuristicInit, name)
	}
}

// onIteration returns a callback suitable for a heuristic's OnIteration
// field, or nil if metrics is disabled -- a nil Worker callback is a
// cheaper no-op than calling through to Metrics.IncIterations's own nil
// check on every outer-loop iteration.
func onIteration(metrics *Metrics, name string) func() {
	if metrics == nil {
		return nil
	}
	return func() { metrics.IncIterations(name) }
}

// namespacedInt reads `prefix@key` falling back to def; a present but
// unparseable value is a heuristic-init error.
func namespacedInt(spec HeuristicSpec, prefix, key string, def int) (int, error) {
	fullKey := prefix + "@" + key
	v, ok := spec.Params[fullKey]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: parameter %q=%q is not an integer", ErrHeuristicInit, fullKey, v)
	}
	return n, nil
}

type vnsWorker struct {
	name string
	v    *vns.VNS
}

func (w *vnsWorker) Name() string { return w.name }
func (w *vnsWorker) Run(x *solution.Info, interrupt func() bool) { w.v.Run(x, interrupt) }

type saWorker struct {
	name string
	s    *sa.SimulatedAnnealing
}

func (w *saWorker) Name() string { return w.name }
func (w *saWorker) Run(x *solution.Info, interrupt func() bool) { w.s.Run(x, interrupt) }

type relinkWorker struct {
	name    string
	r       *relink.Relinker
	prob    *problem.Problem
	initial []int
}

func (w *relinkWorker) Name() string { return w.name }
func (w *relinkWorker) Run(_ *solution.Info, interrupt func() bool) {
	w.r.Run(w.prob, w.initial, interrupt)
}

// BuildWorker constructs the worker named by spec.Name, seeded
// deterministically from seed (`seed + k*100` for the k-th heuristic in
// the list). Unknown names and malformed parameter
// values are reported as sentinel errors the driver maps to exit codes.
func BuildWorker(spec HeuristicSpec, index int, seed uint64, p *pool.Pool, prob *problem.Problem, initial []int, metrics *Metrics) (Worker, error) {
	workerSeed := seed + uint64(index)*100
	rng := rand.New(rand.NewSource(workerSeed))

	switch spec.Name {
	case "vns", "vns3":
		ls, err := buildLocalSearch(spec, rng)
		if err != nil {
			return nil, err
		}
		shaker, err := buildShaker(spec, rng)
		if err != nil {
			return nil, err
		}
		cfg := vns.DefaultConfig()
		if v, err := spec.IntParam("kMin", cfg.KMin); err != nil {
			return nil, err
		} else {
			cfg.KMin = v
		}
		if v, err := spec.IntParam("kMax", cfg.KMax); err != nil {
			return nil, err
		} else {
			cfg.KMax = v
		}
		if v, err := spec.IntParam("kStep", cfg.KStep); err != nil {
			return nil, err
		} else {
			cfg.KStep = v
		}
		if v, err := spec.IntParam("syncPeriod", cfg.SyncPeriod); err != nil {
			return nil, err
		} else {
			cfg.SyncPeriod = v
		}
		_, preOpt := spec.Param("preOptimize")
		cfg.PreOptimize = preOpt
		vnsH := vns.New(cfg, workerSeed, p, shaker, ls)
		vnsH.OnIteration = onIteration(metrics, spec.Name)
		return &vnsWorker{name: spec.Name, v: vnsH}, nil

	case "simulated_annealing", "sa":
		cfg := sa.DefaultConfig()
		if v, err := spec.FloatParam("tMin", cfg.TMin); err != nil {
			return nil, err
		} else {
			cfg.TMin = v
		}
		if v, err := spec.FloatParam("rho", cfg.Rho); err != nil {
			return nil, err
		} else {
			cfg.Rho = v
		}
		saH := sa.New(cfg, workerSeed, p)
		saH.OnIteration = onIteration(metrics, spec.Name)
		return &saWorker{name: spec.Name, s: saH}, nil

	case "path_relinking", "relink":
		ls, err := buildLocalSearch(spec, rng)
		if err != nil {
			return nil, err
		}
		cfg := relink.DefaultConfig()
		if v, err := spec.FloatParam("publishRatio", cfg.PublishRatio); err != nil {
			return nil, err
		} else {
			cfg.PublishRatio = v
		}
		relinkH := relink.New(cfg, workerSeed, p, ls)
		relinkH.OnIteration = onIteration(metrics, spec.Name)
		return &relinkWorker{
			name:    spec.Name,
			r:       relinkH,
			prob:    prob,
			initial: initial,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHeuristic, spec.Name)
	}
}
