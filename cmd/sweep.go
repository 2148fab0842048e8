package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/HaoruiPeng/massive-mimo-slicing/sim"
	"github.com/HaoruiPeng/massive-mimo-slicing/sim/trace"
)

var (
	sweepNodes      []int    // urllc node counts to sweep
	sweepStrategies []string // urllc strategies to sweep
	sweepReps       int      // repetitions per grid point
	sweepWorkers    int      // concurrent simulations
)

// sweepPoint is one configuration of the grid.
type sweepPoint struct {
	URLLCNodes int
	Strategy   string
}

// SweepResult aggregates the repetitions of one grid point.
type SweepResult struct {
	Point sweepPoint
	Runs  int
	// mean and 95% confidence half-width across repetitions
	URLLCLoss, URLLCLossCI float64
	URLLCWait, URLLCWaitCI float64
	MMTCLoss, MMTCLossCI   float64
}

type sweepJob struct {
	point int
	cfg   sim.Config
}

type sweepRun struct {
	point     int
	urllcLoss float64
	urllcWait float64
	mmtcLoss  float64
	err       error
}

// runSweep runs reps repetitions of every (node count, strategy) pair on
// a pool of workers. Repetition r uses seed base.Seed + r. Each run owns
// its own simulator; the base configuration is only read.
func runSweep(ctx context.Context, base *sim.Config, nodes []int, strategies []string, reps, workers int) ([]SweepResult, error) {
	if reps < 1 {
		return nil, fmt.Errorf("%w: repetitions must be >= 1, got %d", sim.ErrInvalidConfig, reps)
	}
	if workers < 1 {
		workers = 1
	}
	var points []sweepPoint
	for _, n := range nodes {
		for _, st := range strategies {
			points = append(points, sweepPoint{URLLCNodes: n, Strategy: st})
		}
	}

	var jobs []sweepJob
	for i, p := range points {
		for r := 0; r < reps; r++ {
			cfg := *base
			cfg.Classes.URLLC.Nodes = p.URLLCNodes
			cfg.Policy.SetStrategy(sim.ClassURLLC, p.Strategy)
			cfg.Simulation.Seed = base.Simulation.Seed + int64(r)
			if err := cfg.Validate(); err != nil {
				return nil, fmt.Errorf("sweep point %+v: %w", p, err)
			}
			jobs = append(jobs, sweepJob{point: i, cfg: cfg})
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobCh := make(chan sweepJob)
	runCh := make(chan sweepRun, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				runCh <- runOne(job)
			}
		}()
	}
	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(runCh)
	}()

	loss := make([][]float64, len(points))
	wait := make([][]float64, len(points))
	mloss := make([][]float64, len(points))
	var firstErr error
	for run := range runCh {
		if run.err != nil {
			if firstErr == nil {
				firstErr = run.err
				cancel()
			}
			continue
		}
		loss[run.point] = append(loss[run.point], run.urllcLoss)
		wait[run.point] = append(wait[run.point], run.urllcWait)
		mloss[run.point] = append(mloss[run.point], run.mmtcLoss)
	}
	if firstErr == nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		return nil, firstErr
	}

	results := make([]SweepResult, len(points))
	for i, p := range points {
		res := SweepResult{Point: p, Runs: len(loss[i])}
		res.URLLCLoss, res.URLLCLossCI = trace.MeanCI(loss[i], 0.95)
		res.URLLCWait, res.URLLCWaitCI = trace.MeanCI(wait[i], 0.95)
		res.MMTCLoss, res.MMTCLossCI = trace.MeanCI(mloss[i], 0.95)
		results[i] = res
	}
	return results, nil
}

func runOne(job sweepJob) sweepRun {
	s, err := sim.NewSimulatorFromConfig(&job.cfg, nil)
	if err != nil {
		return sweepRun{point: job.point, err: err}
	}
	if err := s.Run(); err != nil {
		return sweepRun{point: job.point, err: err}
	}
	st := s.Stats()
	return sweepRun{
		point:     job.point,
		urllcLoss: st.Class(sim.ClassURLLC).LossRate(),
		urllcWait: st.Class(sim.ClassURLLC).AvgWait(),
		mmtcLoss:  st.Class(sim.ClassMMTC).LossRate(),
	}
}

func printSweep(w io.Writer, id string, results []SweepResult) {
	fmt.Fprintf(w, "=== Sweep %s ===\n", id)
	fmt.Fprintf(w, "%-8s %-10s %-5s %-24s %-24s %-24s\n", "nodes", "strategy", "runs", "urllc loss", "urllc wait", "mmtc loss")
	for _, r := range results {
		fmt.Fprintf(w, "%-8d %-10s %-5d %-24s %-24s %-24s\n",
			r.Point.URLLCNodes, r.Point.Strategy, r.Runs,
			fmt.Sprintf("%.5f ± %.5f", r.URLLCLoss, r.URLLCLossCI),
			fmt.Sprintf("%.4f ± %.4f", r.URLLCWait, r.URLLCWaitCI),
			fmt.Sprintf("%.5f ± %.5f", r.MMTCLoss, r.MMTCLossCI))
	}
}

// sweepCmd runs a parameter grid in parallel
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a grid of simulations in parallel and report confidence intervals",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		cfg, err := loadRunConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		id := xid.New().String()
		logrus.Infof("Sweep %s: nodes=%v strategies=%v reps=%d workers=%d", id, sweepNodes, sweepStrategies, sweepReps, sweepWorkers)
		results, err := runSweep(cmd.Context(), cfg, sweepNodes, sweepStrategies, sweepReps, sweepWorkers)
		if err != nil {
			logrus.Fatalf("Sweep failed: %v", err)
		}
		printSweep(os.Stdout, id, results)
	},
}

func init() {
	registerConfigFlags(sweepCmd)
	sweepCmd.Flags().IntSliceVar(&sweepNodes, "nodes", []int{10, 20, 40}, "urllc node counts to sweep")
	sweepCmd.Flags().StringSliceVar(&sweepStrategies, "strategies", []string{"fcfs", "rr", "rr-noinfo"}, "urllc strategies to sweep")
	sweepCmd.Flags().IntVar(&sweepReps, "reps", 5, "Repetitions per grid point")
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", runtime.GOMAXPROCS(0), "Concurrent simulations")
	rootCmd.AddCommand(sweepCmd)
}
