package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"

	"github.com/yass-sim/yass/sim"
	"github.com/yass-sim/yass/sim/trace"
)

// Subdirectories written by --tests.
const (
	subOutput = "out"
	subSched  = "sched"
	subUsage  = "usage"
	subStats  = "stats"
)

func printEnergy(w io.Writer, res *sim.Result) {
	for _, inst := range res.Instances {
		fmt.Fprintf(w, "%s: energy consumption %s n idle periods %d\n",
			color.Cyan.Sprint(inst.Name), color.Magenta.Sprintf("%f", inst.Consumption()), inst.IdlePeriods())
	}
}

func printIdle(w io.Writer, res *sim.Result) {
	for _, inst := range res.Instances {
		fmt.Fprintln(w, perCPU(inst, func(c sim.CPUMetrics) int { return c.IdlePeriods }))
	}
}

func printContextSwitches(w io.Writer, res *sim.Result) {
	for _, inst := range res.Instances {
		fmt.Fprintln(w, perCPU(inst, func(c sim.CPUMetrics) int { return c.ContextSwitches }))
	}
}

func perCPU(inst sim.InstanceResult, value func(sim.CPUMetrics) int) string {
	values := make([]int, 0, len(inst.CPUs))
	for _, c := range inst.CPUs {
		values = append(values, value(c))
	}
	return sim.JoinValues(values)
}

func printDeadlineMisses(w io.Writer, res *sim.Result) {
	for _, inst := range res.Instances {
		ratio := color.Green.Sprintf("%f", inst.DeadlineMissRatio())
		if inst.DeadlineMisses > 0 {
			ratio = color.Red.Sprintf("%f", inst.DeadlineMissRatio())
		}
		fmt.Fprintf(w, "%s: %s\n", color.Cyan.Sprint(inst.Name), ratio)
	}
}

func printFailure(w io.Writer, inst sim.InstanceResult) {
	fmt.Fprintln(w, color.Error.Sprintf("%s stopped at tick %d: %v", inst.Name, inst.Ticks, inst.Err))
}

func printSummary(w io.Writer, s *trace.TraceSummary, fingerprint uint64) {
	fmt.Fprintln(w, color.Style{color.FgGreen, color.OpBold}.Sprint("=== Trace Summary ==="))
	fmt.Fprintf(w, "Decisions            : %d (%d runs, %d stops)\n", s.TotalDecisions, s.Runs, s.Stops)
	fmt.Fprintf(w, "Releases / deadlines : %d / %d\n", s.Releases, s.Deadlines)
	for _, sched := range s.Schedulers() {
		fmt.Fprintf(w, "--- scheduler %d ---\n", sched)
		for _, tally := range s.Tasks(sched) {
			fmt.Fprintf(w, "task %-6d runs %-6d stops %d\n", tally.Task, tally.Runs, tally.Stops)
		}
	}
	fmt.Fprintf(w, "Fingerprint          : %016x\n", fingerprint)
}

// writeTestOutputs writes the statistics files consumed by the plotting
// scripts: the hyperperiod and one line per scheduler in out/<name>, idle
// lengths in sched/<i>, sleep state usage in usage/<i> and the policy
// statistic in stats/<name>.<i>. Per-scheduler files are appended to so
// several runs accumulate.
func writeTestOutputs(dir, name string, res *sim.Result) error {
	for _, sub := range []string{subOutput, subSched, subUsage, subStats} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return sim.WrapError(sim.KindFile, err, "creating %s", sub)
		}
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%d\n", res.Hyperperiod)
	for i, inst := range res.Instances {
		if inst.Err != nil {
			continue
		}
		fmt.Fprintf(&out, "%f %f %f %f\n",
			float64(inst.IdlePeriods()), float64(inst.ContextSwitches()), inst.Consumption(),
			inst.DeadlineMissRatio()/float64(res.Hyperperiods))

		var lengths []int
		var usage []int
		for _, c := range inst.CPUs {
			lengths = append(lengths, c.IdleLengths...)
			for s, n := range c.StateUsage {
				if s >= len(usage) {
					usage = append(usage, 0)
				}
				usage[s] += n
			}
		}
		if err := appendLine(filepath.Join(dir, subSched, fmt.Sprint(i)), prefixed(lengths)); err != nil {
			return err
		}
		if err := appendLine(filepath.Join(dir, subUsage, fmt.Sprint(i)), prefixed(usage)); err != nil {
			return err
		}
		if err := appendLine(filepath.Join(dir, subStats, fmt.Sprintf("%s.%d", name, i)), fmt.Sprint(inst.Stat)); err != nil {
			return err
		}
	}
	path := filepath.Join(dir, subOutput, name)
	if err := os.WriteFile(path, []byte(out.String()), 0644); err != nil {
		return sim.WrapError(sim.KindFile, err, "writing %s", path)
	}
	return nil
}

func prefixed(values []int) string {
	var sb strings.Builder
	for _, v := range values {
		fmt.Fprintf(&sb, " %d", v)
	}
	return sb.String()
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return sim.WrapError(sim.KindFile, err, "opening %s", path)
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return sim.WrapError(sim.KindFile, err, "writing %s", path)
	}
	return f.Close()
}
