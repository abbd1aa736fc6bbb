// Package app builds the cobra root command for the reassign driver and
// maps engine-reported sentinel errors onto process exit codes.
package app

import (
	"context"
	"errors"
	goflag "flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"reassign/pkg/engine"
	"reassign/pkg/pool"
	"reassign/pkg/problem"
)

// Exit codes: 0 on success, negative codes distinguishing the fatal
// error classes.
const (
	ExitOK                 = 0
	ExitInputError         = -1
	ExitHeuristicSpecError = -2
	ExitHeuristicInitError = -3
	ExitHeuristicRunError  = -4
	ExitNoFeasibleSolution = -5
)

// TeamName is the fixed identifier `-n/--name` prints.
const TeamName = "reassign"

type options struct {
	timeLimit   float64
	problemPath string
	inputPath   string
	outputPath  string
	seed        uint64
	name        bool
	heuristic   string
	analyze     bool
	analyzePlot string
	metricsAddr string
	debug       bool
}

// Execute parses argv and runs the driver, returning the process exit
// code and any error that should be printed to stderr.
func Execute(ctx context.Context, argv []string) (int, error) {
	// `-name` as the only argument prints the team id and exits 0. It has
	// to be handled before pflag sees it: a single-dash multi-letter token
	// would otherwise be parsed as a shorthand cluster.
	if len(argv) == 1 && (argv[0] == "-n" || argv[0] == "--name" || argv[0] == "-name") {
		fmt.Println(TeamName)
		return ExitOK, nil
	}

	var o options
	cmd := &cobra.Command{
		Use:           "reassign",
		Short:         "Search for a lower-cost feasible reassignment of processes to machines.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.Flags()
	flags.Float64VarP(&o.timeLimit, "time-limit", "t", 0, "overall wall-clock budget in seconds")
	flags.StringVarP(&o.problemPath, "problem-instance", "p", "", "path to the problem instance file")
	flags.StringVarP(&o.inputPath, "input-solution", "i", "", "path to the initial solution file")
	flags.StringVarP(&o.outputPath, "output-solution", "o", "", "path to write the best solution found")
	flags.Uint64VarP(&o.seed, "seed", "s", 0, "PRNG seed")
	flags.BoolVarP(&o.name, "name", "n", false, "print the team identifier")

	// -h belongs to the heuristic spec, so the help flag is registered
	// first, without a shorthand, keeping cobra's InitDefaultHelpFlag
	// from claiming -h itself.
	flags.Bool("help", false, "show usage")
	flags.Lookup("help").Hidden = true
	flags.StringVarP(&o.heuristic, "heuristic", "h", "", "comma-separated heuristic spec")

	flags.BoolVarP(&o.analyze, "analyze", "a", false, "print statistics for the input solution and exit")
	flags.StringVar(&o.analyzePlot, "analyze-plot", "", "optional HTML path for a trajectory chart of the run")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "optional loopback address to serve Prometheus metrics on")
	flags.BoolVar(&o.debug, "debug", false, "enable debug-mode consistency cross-checks")
	addKlogFlags(flags)

	var runErr error
	exitCode := ExitOK
	cmd.RunE = func(c *cobra.Command, args []string) error {
		code, err := runDriver(ctx, o, args)
		exitCode = code
		runErr = err
		return err
	}
	cmd.SetArgs(argv)

	if err := cmd.Execute(); err != nil {
		if exitCode == ExitOK {
			exitCode = ExitInputError
		}
		return exitCode, err
	}
	return exitCode, runErr
}

// addKlogFlags binds klog's standard flags (-v and friends) onto the
// command's flag set so verbosity is controlled the usual way.
func addKlogFlags(fs *pflag.FlagSet) {
	klogFlags := goflag.NewFlagSet("klog", goflag.ContinueOnError)
	klog.InitFlags(klogFlags)
	fs.AddGoFlagSet(klogFlags)
}

func runDriver(ctx context.Context, o options, args []string) (int, error) {
	if o.name {
		fmt.Println(TeamName)
	}

	if o.analyze {
		return runAnalyze(o)
	}

	if o.timeLimit <= 0 {
		return ExitInputError, fmt.Errorf("%w: -t/--time-limit is required", engine.ErrInput)
	}
	if o.problemPath == "" || o.inputPath == "" || o.outputPath == "" {
		return ExitInputError, fmt.Errorf("%w: -p, -i and -o are all required", engine.ErrInput)
	}

	prob, initial, err := loadInstance(o.problemPath, o.inputPath)
	if err != nil {
		return ExitInputError, err
	}

	logger := klog.Background()

	deadline := time.Now().Add(time.Duration(o.timeLimit*1000)*time.Millisecond - safetyGap)
	runCtx, cancel := context.WithDeadline(ctx, deadline.Add(safetyGap))
	defer cancel()

	var metrics *engine.Metrics
	if o.metricsAddr != "" {
		metrics = engine.NewMetrics()
		go func() {
			if err := metrics.Serve(runCtx, o.metricsAddr, logger); err != nil {
				logger.Error(err, "metrics server stopped")
			}
		}()
	}

	eng, err := engine.New(engine.Config{
		Seed:          o.seed,
		HeuristicSpec: o.heuristic,
		Pool:          pool.DefaultConfig(),
		Debug:         o.debug,
		Metrics:       metrics,
	}, prob, initial)
	if err != nil {
		return exitCodeFor(err), err
	}

	var collector *trajectoryCollector
	if o.analyzePlot != "" {
		collector = startTrajectoryCollector(eng)
		defer collector.Stop()
	}

	best, obj, err := eng.Run(runCtx, deadline)
	if err != nil {
		return exitCodeFor(err), err
	}
	logger.Info("search finished", "objective", obj)

	if collector != nil {
		if trajectory := collector.Stop(); len(trajectory) > 0 {
			if err := engine.PlotTrajectory(trajectory, o.analyzePlot); err != nil {
				logger.Error(err, "failed to render analyze plot")
			}
		}
	}

	for _, r := range eng.Results() {
		if r.Err != nil {
			logger.Error(r.Err, "heuristic failed", "heuristic", r.Name)
		}
	}

	f, err := os.Create(o.outputPath)
	if err != nil {
		return ExitInputError, fmt.Errorf("%w: %v", engine.ErrInput, err)
	}
	defer f.Close()
	if err := problem.WriteAssignment(f, best); err != nil {
		return ExitInputError, fmt.Errorf("%w: %v", engine.ErrInput, err)
	}

	return ExitOK, nil
}

// trajectoryCollector samples the engine's pool on a ticker from its own
// goroutine and hands the accumulated samples back to the caller on Stop,
// under a mutex so the sampling goroutine and the reader never race on
// the slice.
type trajectoryCollector struct {
	mu      sync.Mutex
	samples []engine.TrajectorySample
	stop    chan struct{}
	done    chan struct{}
}

func startTrajectoryCollector(eng *engine.Engine) *trajectoryCollector {
	c := &trajectoryCollector{stop: make(chan struct{}), done: make(chan struct{})}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				hq, hd := eng.Pool().Len()
				sample := engine.TrajectorySample{HQSize: float64(hq), HDSize: float64(hd)}
				if best, ok := eng.Pool().Best(); ok {
					sample.BestObjective = float64(best.Objective)
				}
				c.mu.Lock()
				c.samples = append(c.samples, sample)
				c.mu.Unlock()
			}
		}
	}()
	return c
}

// Stop halts sampling and returns the collected samples; it is safe to
// call more than once, returning nil after the first call.
func (c *trajectoryCollector) Stop() []engine.TrajectorySample {
	select {
	case <-c.stop:
		return nil
	default:
		close(c.stop)
	}
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples
}

// safetyGap is subtracted from the requested time limit before computing
// the absolute deadline, so the process has time to join workers and
// flush the output file before the budget runs out.
const safetyGap = 500 * time.Millisecond

func loadInstance(problemPath, inputPath string) (*problem.Problem, []int, error) {
	pf, err := os.Open(problemPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", engine.ErrInput, err)
	}
	defer pf.Close()
	prob, err := problem.Parse(pf)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", engine.ErrInput, err)
	}

	sf, err := os.Open(inputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", engine.ErrInput, err)
	}
	defer sf.Close()
	initial, err := problem.ReadAssignment(sf, len(prob.Processes), len(prob.Machines))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", engine.ErrInput, err)
	}

	return prob, initial, nil
}

func runAnalyze(o options) (int, error) {
	if o.problemPath == "" || o.inputPath == "" {
		return ExitInputError, fmt.Errorf("%w: -p and -i are required for -a/--analyze", engine.ErrInput)
	}
	prob, initial, err := loadInstance(o.problemPath, o.inputPath)
	if err != nil {
		return ExitInputError, err
	}
	stats := engine.Analyze(prob, initial)
	engine.WriteReport(os.Stdout, stats)
	return ExitOK, nil
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrInput):
		return ExitInputError
	case errors.Is(err, engine.ErrHeuristicSpecParse):
		return ExitHeuristicSpecError
	case errors.Is(err, engine.ErrHeuristicInit), errors.Is(err, engine.ErrUnknownHeuristic):
		return ExitHeuristicInitError
	case errors.Is(err, engine.ErrHeuristicRun):
		return ExitHeuristicRunError
	case errors.Is(err, engine.ErrNoFeasibleSolution):
		return ExitNoFeasibleSolution
	default:
		return ExitInputError
	}
}
