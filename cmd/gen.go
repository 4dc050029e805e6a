package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yass-sim/yass/sim/workload"
)

var (
	genSpecPath string
	genOutput   string
	genSpec     workload.GeneratorSpec
)

var genCmd = &cobra.Command{
	Use:   "gen",
	Short: "Generate a synthetic task set with UUniFast",
	Run: func(cmd *cobra.Command, args []string) {
		spec := genSpec
		if genSpecPath != "" {
			loaded, err := workload.LoadGeneratorSpec(genSpecPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			if cmd.Flags().Changed("seed") {
				loaded.Seed = genSpec.Seed
			}
			spec = *loaded
		}
		spec.ApplyDefaults()

		var w io.Writer = os.Stdout
		if genOutput != "" {
			f, err := os.Create(genOutput)
			if err != nil {
				logrus.Fatalf("creating %s: %v", genOutput, err)
			}
			defer f.Close()
			w = f
		}
		if err := generate(&spec, w); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func generate(spec *workload.GeneratorSpec, w io.Writer) error {
	tasks, err := workload.GenerateTaskSet(spec)
	if err != nil {
		return err
	}
	logrus.Infof("generated %d tasks", len(tasks))
	return workload.WriteTaskSet(w, tasks)
}

func init() {
	genCmd.Flags().StringVar(&genSpecPath, "spec", "", "Generator specification file (YAML)")
	genCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output file (default stdout)")
	genCmd.Flags().Int64Var(&genSpec.Seed, "seed", 42, "Seed for the generator")
	genCmd.Flags().IntVar(&genSpec.NTasks, "n-tasks", 10, "Number of tasks")
	genCmd.Flags().Float64Var(&genSpec.Utilization, "utilization", 2.0, "Total utilization")
	genCmd.Flags().IntVar(&genSpec.NVMs, "n-vms", 1, "Number of virtual machines")
	genCmd.Flags().Float64Var(&genSpec.MCRatio, "mc-ratio", 1.0, "Share of hard tasks")
	genCmd.Flags().IntVar(&genSpec.HMin, "hmin", workload.DefaultHMin, "Smallest accepted hyperperiod before scaling")
	genCmd.Flags().IntVar(&genSpec.HMax, "hmax", workload.DefaultHMax, "Largest accepted hyperperiod before scaling")
	genCmd.Flags().IntVar(&genSpec.Scale, "scale", workload.DefaultScale, "Multiplier applied to WCETs and periods")
}
