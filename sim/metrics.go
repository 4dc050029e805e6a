// Collects per-instance statistics: energy, idle intervals, context
// switches and deadline misses.

package sim

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/stat"
)

// CPUMetrics is the final state of one processor.
type CPUMetrics struct {
	ID              int
	Consumption     float64
	AverageSpeed    float64
	NActive         int
	IdlePeriods     int
	ContextSwitches int
	SpeedUsage      []int
	StateUsage      []int
	IdleLengths     []int
	IdleHistogram   []Bin
}

// InstanceResult summarizes one instance after the run.
type InstanceResult struct {
	Index          int
	PolicyID       string
	Name           string
	Ticks          int   // ticks completed
	Err            error // nil when the instance ran to the horizon
	DeadlineMisses int
	Jobs           int // jobs released per hyperperiod, idle tasks included
	Stat           int
	CPUs           []CPUMetrics
}

// Result is the outcome of a Simulation.Run.
type Result struct {
	Hyperperiod  int
	Horizon      int
	Hyperperiods int
	NTasks       int
	NCPUs        int
	Instances    []InstanceResult
}

func (s *Simulation) collect(errs []error) *Result {
	r := &Result{
		Hyperperiod:  s.Hyperperiod,
		Horizon:      s.Horizon,
		Hyperperiods: max(s.Config.Hyperperiods, 1),
		NTasks:       len(s.Tasks),
		NCPUs:        s.Config.NCPUs,
	}
	for i, inst := range s.instances {
		r.Instances = append(r.Instances, collectInstance(inst, s.Config.Policies[i], errs[i]))
	}
	return r
}

func collectInstance(inst *Instance, id string, err error) InstanceResult {
	res := InstanceResult{
		Index:          inst.Index(),
		PolicyID:       id,
		Name:           inst.Name(),
		Ticks:          inst.Tick(),
		Err:            err,
		DeadlineMisses: inst.DeadlineMisses(),
		Stat:           inst.Stat(),
	}
	h := inst.Hyperperiod()
	for _, t := range inst.Tasks() {
		res.Jobs += h / t.Period
	}
	for _, c := range inst.CPUs() {
		res.CPUs = append(res.CPUs, CPUMetrics{
			ID:              c.ID,
			Consumption:     c.Consumption,
			AverageSpeed:    c.AverageSpeed,
			NActive:         c.NActive,
			IdlePeriods:     c.IdlePeriods,
			ContextSwitches: c.ContextSwitches,
			SpeedUsage:      append([]int(nil), c.SpeedUsage...),
			StateUsage:      append([]int(nil), c.StateUsage...),
			IdleLengths:     append([]int(nil), c.IdleLengths...),
			IdleHistogram:   c.IdleHistogram(),
		})
	}
	return res
}

// Consumption returns the energy consumed by all CPUs.
func (r *InstanceResult) Consumption() float64 {
	total := 0.0
	for _, c := range r.CPUs {
		total += c.Consumption
	}
	return total
}

// IdlePeriods returns the idle intervals closed on all CPUs.
func (r *InstanceResult) IdlePeriods() int {
	n := 0
	for _, c := range r.CPUs {
		n += c.IdlePeriods
	}
	return n
}

// ContextSwitches returns the context switches of all CPUs.
func (r *InstanceResult) ContextSwitches() int {
	n := 0
	for _, c := range r.CPUs {
		n += c.ContextSwitches
	}
	return n
}

// DeadlineMissRatio returns misses over jobs released in one hyperperiod.
func (r *InstanceResult) DeadlineMissRatio() float64 {
	if r.Jobs == 0 {
		return 0
	}
	return float64(r.DeadlineMisses) / float64(r.Jobs)
}

// MeanIdleLength returns the mean idle interval length over all CPUs.
func (r *InstanceResult) MeanIdleLength() float64 {
	var lengths []float64
	for _, c := range r.CPUs {
		for _, l := range c.IdleLengths {
			lengths = append(lengths, float64(l))
		}
	}
	if len(lengths) == 0 {
		return 0
	}
	return stat.Mean(lengths, nil)
}

// Err joins the errors of the failed instances.
func (r *Result) Err() error {
	var errs []error
	for _, inst := range r.Instances {
		if inst.Err != nil {
			errs = append(errs, inst.Err)
		}
	}
	return errors.Join(errs...)
}

// Fingerprint hashes every counter of the result. Two runs with identical
// inputs produce the same fingerprint.
func (r *Result) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = d.Write(buf[:])
	}
	putFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
	putInt(r.Hyperperiod)
	putInt(r.Horizon)
	for _, inst := range r.Instances {
		_, _ = d.WriteString(inst.Name)
		putInt(inst.Ticks)
		putInt(inst.DeadlineMisses)
		putInt(inst.Stat)
		if inst.Err != nil {
			_, _ = d.WriteString(inst.Err.Error())
		}
		for _, c := range inst.CPUs {
			putFloat(c.Consumption)
			putInt(c.IdlePeriods)
			putInt(c.ContextSwitches)
			putInt(c.NActive)
			for _, l := range c.IdleLengths {
				putInt(l)
			}
		}
	}
	return d.Sum64()
}

// Print writes a human-readable summary of every instance.
func (r *Result) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Hyperperiod          : %d ticks\n", r.Hyperperiod)
	fmt.Fprintf(w, "Horizon              : %d ticks\n", r.Horizon)
	fmt.Fprintf(w, "Tasks / CPUs         : %d / %d\n", r.NTasks, r.NCPUs)
	for _, inst := range r.Instances {
		fmt.Fprintf(w, "--- %s ---\n", inst.Name)
		if inst.Err != nil {
			fmt.Fprintf(w, "Error                : %v\n", inst.Err)
			continue
		}
		fmt.Fprintf(w, "Energy consumption   : %.2f\n", inst.Consumption())
		fmt.Fprintf(w, "Idle periods         : %d (mean length %.2f)\n", inst.IdlePeriods(), inst.MeanIdleLength())
		fmt.Fprintf(w, "Context switches     : %d\n", inst.ContextSwitches())
		fmt.Fprintf(w, "Deadline misses      : %d (%.4f)\n", inst.DeadlineMisses, inst.DeadlineMissRatio())
	}
}
