package workload

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/yass-sim/yass/sim"
)

// Attempt ceilings of the rejection sampling loops.
const (
	maxUtilizationDraws = 100000
	maxShapeAttempts    = 10000
	maxRounds           = 50
)

// GenerateTaskSet creates a task set from spec. Deterministic given the
// same spec and seed. Ids start at 1; the first tasks are hard up to
// MCRatio of the set.
func GenerateTaskSet(spec *GeneratorSpec) ([]sim.Task, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator spec: %w", err)
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(spec.Seed)).ForSubsystem(sim.SubsystemWorkload)

	for round := 0; round < maxRounds; round++ {
		util, err := drawUtilizations(rng, spec)
		if err != nil {
			return nil, err
		}
		if shape, ok := drawShape(rng, spec, util); ok {
			logrus.Debugf("task set found after %d rounds", round+1)
			return shape.tasks(spec), nil
		}
	}
	return nil, fmt.Errorf("no task set satisfies the generator spec after %d rounds", maxRounds)
}

func drawUtilizations(rng *rand.Rand, spec *GeneratorSpec) ([]float64, error) {
	for i := 0; i < maxUtilizationDraws; i++ {
		util := UUniFast(rng, spec.NTasks, spec.Utilization)
		if validUtilizations(util) {
			return util, nil
		}
	}
	return nil, fmt.Errorf("no utilization vector within [%.2f, %.2f] after %d draws",
		MinTaskUtilization, MaxTaskUtilization, maxUtilizationDraws)
}

type shape struct {
	wcet, period, vm []int
}

// drawShape picks periods, WCETs and VMs until the hyperperiod is within
// bounds, the rounded utilization is close to the target and, with more
// than one VM, every VM is used and none is overloaded.
func drawShape(rng *rand.Rand, spec *GeneratorSpec, util []float64) (shape, bool) {
	n := len(util)
	s := shape{wcet: make([]int, n), period: make([]int, n), vm: make([]int, n)}
	for attempt := 0; attempt < maxShapeAttempts; attempt++ {
		h := 1
		total := 0.0
		for i, u := range util {
			w, p := 0, 1
			for w <= 0 || w >= p {
				p = 10 * (2 + rng.IntN(9))
				w = int(math.Round(float64(p) * u))
			}
			s.period[i], s.wcet[i] = p, w
			s.vm[i] = rng.IntN(spec.NVMs)
			h = sim.LCM(h, p)
			total += float64(w) / float64(p)
		}
		if h < spec.HMin || h > spec.HMax {
			continue
		}
		if math.Abs(total-spec.Utilization) > spec.Tolerance {
			continue
		}
		if s.vmsFeasible(spec.NVMs) {
			return s, true
		}
	}
	return s, false
}

func (s shape) vmsFeasible(nVMs int) bool {
	if nVMs == 1 {
		return true
	}
	load := make([]float64, nVMs)
	used := make([]bool, nVMs)
	for i, vm := range s.vm {
		load[vm] += float64(s.wcet[i]) / float64(s.period[i])
		used[vm] = true
	}
	for vm := range load {
		if !used[vm] || load[vm] > 1 {
			return false
		}
	}
	return true
}

func (s shape) tasks(spec *GeneratorSpec) []sim.Task {
	n := len(s.wcet)
	tasks := make([]sim.Task, n)
	ratio := 0.0
	for i := range tasks {
		ratio += 1 / float64(n)
		crit := 1
		if ratio > spec.MCRatio {
			crit = 0
		}
		p := s.period[i] * spec.Scale
		tasks[i] = sim.Task{
			ID:          i + 1,
			VM:          s.vm[i],
			Threads:     1,
			WCET:        s.wcet[i] * spec.Scale,
			Deadline:    p,
			Period:      p,
			Criticality: crit,
		}
	}
	return tasks
}
