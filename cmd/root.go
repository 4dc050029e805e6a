package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yass-sim/yass/sim"
	"github.com/yass-sim/yass/sim/trace"

	// Register every policy.
	_ "github.com/yass-sim/yass/sim/policy"
	_ "github.com/yass-sim/yass/sim/run"
)

// Version is set at build time.
var Version = "dev"

var (
	// CLI flags for the task set and the hardware
	tasksPath   string // Task set file (JSON or YAML)
	cpuPath     string // CPU description file
	nCPUs       int    // Processors per scheduler
	schedulers  []string
	configPath  string // Optional run configuration file
	logLevel    string // Log verbosity level
	seed        int64  // Seed for sampled execution times
	online      bool   // Use sampled execution times instead of WCET
	jobs        int    // Schedulers simulated concurrently
	ticks       int    // Explicit horizon
	nHyper      int    // Horizon in hyperperiods
	outputPath  string // Event log file
	verbose     bool   // Print every event
	debug       bool   // Shortcut for --log debug
	energy      bool
	idle        bool
	ctxSwitches bool
	misses      bool
	tests       bool   // Write the per-run statistics files
	testsOutput string // Name of the statistics files
	summary     bool   // Print the decision trace summary
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:     "yass",
	Short:   "Tick-driven simulator for real-time multiprocessor scheduling",
	Version: Version,
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Simulate a task set under one or more schedulers",
	Run: func(cmd *cobra.Command, args []string) {
		if debug {
			logLevel = "debug"
		}
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		opts := optionsFromFlags()
		if configPath != "" {
			rc, err := LoadRunConfig(configPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			rc.Apply(&opts, cmd.Flags().Changed)
		}
		if err := opts.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}

		startTime := time.Now()
		if err := runSimulation(cmd.Context(), opts, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Simulation complete in %v.", time.Since(startTime))
	},
}

// runOptions is the resolved configuration of a run command.
type runOptions struct {
	Tasks          string
	CPU            string
	Config         sim.SimulationConfig
	Output         string
	Verbose        bool
	Energy         bool
	Idle           bool
	CtxSwitches    bool
	DeadlineMisses bool
	Tests          bool
	TestsOutput    string
	TestsDir       string
	Summary        bool
}

func optionsFromFlags() runOptions {
	return runOptions{
		Tasks: tasksPath,
		CPU:   cpuPath,
		Config: sim.SimulationConfig{
			Policies:     schedulers,
			NCPUs:        nCPUs,
			Jobs:         jobs,
			Ticks:        ticks,
			Hyperperiods: nHyper,
			Online:       online,
			Seed:         seed,
		},
		Output:         outputPath,
		Verbose:        verbose,
		Energy:         energy,
		Idle:           idle,
		CtxSwitches:    ctxSwitches,
		DeadlineMisses: misses,
		Tests:          tests,
		TestsOutput:    testsOutput,
		TestsDir:       ".",
		Summary:        summary,
	}
}

// Validate rejects option combinations before any file is read.
func (o runOptions) Validate() error {
	if o.Tasks == "" {
		return sim.NewError(sim.KindDataFile, "no task set given (--tasks)")
	}
	if o.Tests && o.TestsOutput == "" {
		return sim.NewError(sim.KindFile, "--tests requires --tests-output")
	}
	return o.Config.Validate()
}

// runSimulation loads the inputs, runs every scheduler and writes the
// event log and the requested reports.
func runSimulation(ctx context.Context, o runOptions, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	tasks, err := sim.LoadTaskSet(o.Tasks)
	if err != nil {
		return err
	}
	var spec *sim.CPUSpec
	if o.CPU != "" {
		if spec, err = sim.LoadCPUSpec(o.CPU); err != nil {
			return err
		}
	}

	s, err := sim.NewSimulation(o.Config, tasks, spec)
	if err != nil {
		return err
	}
	logrus.Infof("Starting simulation: %s horizon=%d", o.Config, s.Horizon)

	f, err := os.Create(o.Output)
	if err != nil {
		return sim.WrapError(sim.KindFile, err, "creating %s", o.Output)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logrus.Errorf("Error closing file %s: %v", o.Output, closeErr)
		}
	}()
	log := sim.NewLogWriter(f)
	log.WriteHeader(s.Header())

	sinks := sim.MultiSink{log}
	if o.Verbose {
		sinks = append(sinks, sim.NewVerbosePrinter(stdout))
	}
	var st *trace.SimulationTrace
	if o.Summary {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelAll})
		sinks = append(sinks, st)
	}
	s.SetEventSink(sinks)

	res, err := s.Run(ctx)
	if err != nil {
		return err
	}
	if err := log.Flush(); err != nil {
		return sim.WrapError(sim.KindFile, err, "writing %s", o.Output)
	}

	res.Print(stdout)
	if o.Energy {
		printEnergy(stdout, res)
	}
	if o.Idle {
		printIdle(stdout, res)
	}
	if o.CtxSwitches {
		printContextSwitches(stdout, res)
	}
	if o.DeadlineMisses {
		printDeadlineMisses(stdout, res)
	}
	if o.Summary {
		printSummary(stdout, trace.Summarize(st), trace.Fingerprint(st))
	}
	if o.Tests {
		if err := writeTestOutputs(o.TestsDir, o.TestsOutput, res); err != nil {
			return err
		}
	}
	for _, inst := range res.Instances {
		if inst.Err != nil {
			printFailure(stdout, inst)
		}
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVarP(&tasksPath, "tasks", "d", "", "Task set file (JSON or YAML)")
	runCmd.Flags().StringVarP(&cpuPath, "cpu", "c", "", "CPU description file (default: continuous speeds, no sleep states)")
	runCmd.Flags().IntVarP(&nCPUs, "n-cpus", "n", sim.DefaultCPUs, "Number of processors")
	runCmd.Flags().StringArrayVarP(&schedulers, "scheduler", "s", nil, fmt.Sprintf("Scheduler id, repeatable (one of %v)", sim.PolicyIDs()))
	runCmd.Flags().StringVar(&configPath, "config", "", "Run configuration file; flags given explicitly take precedence")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().BoolVar(&debug, "debug", false, "Shortcut for --log debug")

	// Horizon and execution
	runCmd.Flags().IntVarP(&ticks, "ticks", "t", 0, fmt.Sprintf("Number of ticks to simulate (>= %d)", sim.MinTicks))
	runCmd.Flags().IntVar(&nHyper, "hyperperiods", 0, "Number of hyperperiods to simulate (default 1)")
	runCmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "Schedulers simulated concurrently")
	runCmd.Flags().BoolVar(&online, "online", false, "Use sampled execution times instead of WCET")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for sampled execution times")

	// Outputs
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "output.txt", "Event log file")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every event")
	runCmd.Flags().BoolVarP(&energy, "energy", "e", false, "Print the energy consumption of each scheduler")
	runCmd.Flags().BoolVarP(&idle, "idle", "i", false, "Print the idle periods of each processor")
	runCmd.Flags().BoolVar(&ctxSwitches, "context-switches", false, "Print the context switches of each processor")
	runCmd.Flags().BoolVar(&misses, "deadline-misses", false, "Print the deadline miss ratio of each scheduler")
	runCmd.Flags().BoolVar(&tests, "tests", false, "Write statistics under out/, sched/, usage/ and stats/")
	runCmd.Flags().StringVar(&testsOutput, "tests-output", "", "File name used for the statistics")
	runCmd.Flags().BoolVar(&summary, "summary", false, "Print the decision trace summary and fingerprint")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(policiesCmd)
	rootCmd.AddCommand(genCmd)
}
