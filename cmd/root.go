package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	sim "github.com/HaoruiPeng/massive-mimo-slicing/sim"
	"github.com/HaoruiPeng/massive-mimo-slicing/sim/trace"
)

var (
	// CLI flags shared by run and sweep
	configPath        string  // YAML configuration file
	seed              int64   // Seed for traffic generation and random pilot choice
	simulationHorizon float64 // Total simulation time
	frameLength       float64 // Time between allocation rounds
	measurementPeriod float64 // Time between queue samples
	resourceUnits     int     // Pilots per frame
	urllcStrategy     string  // Strategy for the latency-critical class
	mmtcStrategy      string  // Strategy for the bulk class
	urllcNodes        int     // Number of latency-critical sources
	mmtcNodes         int     // Number of bulk sources
	baseShare         float64 // Initial latency-critical pilot share for backoff
	logLevel          string  // Log verbosity level

	// run-only flags
	traceKind   string // Outcome sink: none, csv, sqlite
	tracePath   string // Outcome file stem
	resultsPath string // JSON results file
	showSummary bool   // Print the outcome summary and counters after the run
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "pilotsim",
	Short: "Discrete-event simulator for pilot allocation in sliced massive MIMO access",
}

// runCmd executes one simulation using the configuration file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one pilot allocation simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := loadRunConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if !trace.IsValidSinkKind(traceKind) {
			logrus.Fatalf("Unknown trace sink %q", traceKind)
		}
		sink, memory, err := openRunSink(trace.SinkKind(traceKind), tracePath, showSummary)
		if err != nil {
			logrus.Fatalf("Opening trace: %v", err)
		}

		logrus.Infof("Starting simulation with %d pilots, horizon=%v, strategies urllc=%s mmtc=%s, seed=%d",
			cfg.Simulation.ResourceUnits, cfg.Simulation.Horizon, cfg.Policy.URLLC, cfg.Policy.MMTC, cfg.Simulation.Seed)
		startTime := time.Now()

		s, err := sim.NewSimulatorFromConfig(cfg, sink)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		runErr := s.Run()
		if err := sink.Close(); err != nil {
			logrus.Errorf("Closing trace: %v", err)
		}
		if runErr != nil {
			logrus.Fatalf("Simulation failed: %v", runErr)
		}

		s.Stats().Print(os.Stdout)
		fmt.Printf("Simulation duration  : %s\n", time.Since(startTime))
		if memory != nil {
			printSummary(os.Stdout, "run", trace.Summarize(memory.Outcomes))
			printCounters(os.Stdout, memory)
		}
		if resultsPath != "" {
			if err := s.Stats().SaveResults(cfg, resultsPath); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// openRunSink opens the requested trace sink. With summary set, outcomes are
// also kept in memory and the returned MemorySink is non-nil.
func openRunSink(kind trace.SinkKind, path string, summary bool) (trace.Sink, *trace.MemorySink, error) {
	sink, err := trace.Open(kind, path)
	if err != nil {
		return nil, nil, err
	}
	if !summary {
		return sink, nil, nil
	}
	memory := trace.NewMemorySink()
	return trace.Tee{sink, memory}, memory, nil
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// Execute runs the CLI root command. Exits go through atexit so open
// trace sinks are flushed, including on logrus.Fatal.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
}

// registerConfigFlags adds the configuration override flags to a command.
func registerConfigFlags(c *cobra.Command) {
	d := sim.DefaultConfig()
	c.Flags().StringVar(&configPath, "config", "", "YAML configuration file (flags override its values)")
	c.Flags().Int64Var(&seed, "seed", d.Simulation.Seed, "Seed for traffic generation and random pilot choice")
	c.Flags().Float64Var(&simulationHorizon, "horizon", d.Simulation.Horizon, "Total simulation time")
	c.Flags().Float64Var(&frameLength, "frame-length", d.Simulation.FrameLength, "Time between allocation rounds")
	c.Flags().Float64Var(&measurementPeriod, "measurement-period", d.Simulation.MeasurementPeriod, "Time between queue samples")
	c.Flags().IntVar(&resourceUnits, "units", d.Simulation.ResourceUnits, "Pilots per frame")
	c.Flags().StringVar(&urllcStrategy, "urllc-strategy", d.Policy.URLLC, fmt.Sprintf("Strategy for the urllc class %v", sim.StrategyNames()))
	c.Flags().StringVar(&mmtcStrategy, "mmtc-strategy", d.Policy.MMTC, fmt.Sprintf("Strategy for the mmtc class %v", sim.StrategyNames()))
	c.Flags().IntVar(&urllcNodes, "urllc-nodes", d.Classes.URLLC.Nodes, "Number of urllc sources")
	c.Flags().IntVar(&mmtcNodes, "mmtc-nodes", d.Classes.MMTC.Nodes, "Number of mmtc sources")
	c.Flags().Float64Var(&baseShare, "base-share", d.Policy.BaseShare, "Initial urllc pilot share for the backoff strategy")
	c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

// init sets up CLI flags and subcommands
func init() {
	logrus.StandardLogger().ExitFunc = atexit.Exit

	registerConfigFlags(runCmd)
	runCmd.Flags().StringVar(&traceKind, "trace", string(trace.SinkNone), "Outcome trace sink (none, csv, sqlite)")
	runCmd.Flags().StringVar(&tracePath, "trace-path", "", "Outcome trace file stem (default: generated unique name)")
	runCmd.Flags().StringVar(&resultsPath, "results", "", "Write JSON results to this file")
	runCmd.Flags().BoolVar(&showSummary, "summary", false, "Print the outcome summary and trace counters after the run")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
