package engine

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"reassign/pkg/problem"
	"reassign/pkg/solution"
)

// Stats is the `-a/--analyze` report: a static snapshot of one
// assignment's composition and feasibility, computed without running any
// heuristic.
type Stats struct {
	ProcessCount int
	MachineCount int
	ServiceCount int

	Objective       uint64
	LoadCost        uint64
	BalanceCost     uint64
	ProcessMoveCost uint64
	ServiceMoveCost uint64
	MachineMoveCost uint64

	LoadCostByResource []uint64
	WorstMachines      []MachineLoad
}

// MachineLoad names one machine's aggregate load-cost contribution,
// used to rank the worst-loaded machines in the report.
type MachineLoad struct {
	Machine int
	Cost    uint64
}

// Analyze builds a Stats report for sol against prob without mutating
// anything or running a heuristic; it never requires sol to be feasible
// so it can also be used to diagnose why an input was rejected.
func Analyze(prob *problem.Problem, sol []int) Stats {
	x := solution.New(prob, sol, sol)
	s := Stats{
		ProcessCount:    len(prob.Processes),
		MachineCount:    len(prob.Machines),
		ServiceCount:    len(prob.Services),
		Objective:       x.Objective(),
		LoadCost:        x.TotalLoadCost(),
		BalanceCost:     x.TotalBalanceCost(),
		ProcessMoveCost: x.ProcessMoveCost(),
		ServiceMoveCost: x.ServiceMoveCost(),
		MachineMoveCost: x.MachineMoveCost(),
	}
	s.LoadCostByResource = make([]uint64, len(prob.Resources))
	for r := range prob.Resources {
		s.LoadCostByResource[r] = x.LoadCost(r)
	}

	loads := make([]MachineLoad, len(prob.Machines))
	for m := range prob.Machines {
		var cost uint64
		for r, res := range prob.Resources {
			over := x.Usage(m, r)
			if over > prob.Machines[m].SafetyCapacity[r] {
				cost += uint64(over-prob.Machines[m].SafetyCapacity[r]) * res.WeightLoadCost
			}
		}
		loads[m] = MachineLoad{Machine: m, Cost: cost}
	}
	sort.Slice(loads, func(i, j int) bool { return loads[i].Cost > loads[j].Cost })
	top := 10
	if len(loads) < top {
		top = len(loads)
	}
	s.WorstMachines = loads[:top]
	return s
}

// WriteReport prints the textual statistics report behind `-a`.
func WriteReport(w io.Writer, s Stats) {
	fmt.Fprintf(w, "processes=%d machines=%d services=%d\n", s.ProcessCount, s.MachineCount, s.ServiceCount)
	fmt.Fprintf(w, "objective=%d\n", s.Objective)
	fmt.Fprintf(w, "  load_cost=%d balance_cost=%d\n", s.LoadCost, s.BalanceCost)
	fmt.Fprintf(w, "  process_move_cost=%d service_move_cost=%d machine_move_cost=%d\n",
		s.ProcessMoveCost, s.ServiceMoveCost, s.MachineMoveCost)
	for r, c := range s.LoadCostByResource {
		fmt.Fprintf(w, "  resource[%d] load_cost=%d\n", r, c)
	}
	fmt.Fprintln(w, "worst-loaded machines:")
	for _, m := range s.WorstMachines {
		if m.Cost == 0 {
			continue
		}
		fmt.Fprintf(w, "  machine[%d] cost=%d\n", m.Machine, m.Cost)
	}
}

// PlotTrajectory renders an HTML line chart of the pool's objective
// trajectory and view sizes over the samples collected during a run.
func PlotTrajectory(samples []TrajectorySample, outputPath string) error {
	if len(samples) == 0 {
		return fmt.Errorf("no trajectory samples to plot")
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Pool objective trajectory"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithInitializationOpts(opts.Initialization{Theme: types.ThemeWesteros}),
		charts.WithXAxisOpts(opts.XAxis{Name: "sample"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "objective", SplitLine: &opts.SplitLine{Show: opts.Bool(true)}}),
	)

	xs := make([]string, len(samples))
	bestY := make([]opts.LineData, len(samples))
	hqY := make([]opts.LineData, len(samples))
	hdY := make([]opts.LineData, len(samples))
	for i, s := range samples {
		xs[i] = fmt.Sprintf("%d", i)
		bestY[i] = opts.LineData{Value: s.BestObjective}
		hqY[i] = opts.LineData{Value: s.HQSize}
		hdY[i] = opts.LineData{Value: s.HDSize}
	}

	line.SetXAxis(xs).
		AddSeries("best objective", bestY).
		AddSeries("HQ size", hqY).
		AddSeries("HD size", hdY)

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return line.Render(f)
}

// TrajectorySample is one point-in-time snapshot of the pool, collected
// by the driver on a ticker while a search runs.
type TrajectorySample struct {
	BestObjective float64
	HQSize        float64
	HDSize        float64
}
