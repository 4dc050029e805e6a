package policy

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yass-sim/yass/sim"
)

// SP is partitioned EDF with an offline choice of the sleep state each CPU
// should enter during the idle gap following each task.
type SP struct{}

type spState struct {
	partitioned
	// thresholds[cpu][i] is the idle gap guaranteed after the i-th task of
	// the CPU in slack order; sleepStates holds the matching state index.
	thresholds  [][]int
	sleepStates [][]int
}

func (SP) Name() string { return "SP" }

func (SP) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	q := sim.NewQueues(inst, 1)
	ids := inst.TaskIDs()
	order := make([]int, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		order = append(order, ids[i])
	}
	st := &spState{partitioned: partitioned{Queues: q, cpuTasks: worstFit(inst, order)}}

	h := inst.Hyperperiod()
	for cpu, tasks := range st.cpuTasks {
		if e := cpuDemand(inst, tasks); e > h {
			return nil, sim.NewError(sim.KindNotSchedulable, "cpu %d demand %d over hyperperiod %d", cpu, e, h)
		}
	}

	st.computeThresholds(inst)
	st.computeSleepStates(inst)
	logrus.Debugf("%s: thresholds %v sleep states %v", inst.Name(), st.thresholds, st.sleepStates)
	return st, nil
}

// computeThresholds orders each CPU's tasks by decreasing period minus
// WCET and derives the idle gap available after each prefix of that order.
func (st *spState) computeThresholds(inst *sim.Instance) {
	slack := func(id int) float64 {
		t := inst.Task(id)
		return float64(t.Period - t.WCET)
	}
	st.thresholds = make([][]int, len(st.cpuTasks))
	for cpu, tasks := range st.cpuTasks {
		sorted := sim.NewQueue("sp", 0)
		for _, id := range tasks {
			_ = sorted.Add(id)
		}
		sorted.Sort(func(id int) float64 { return -slack(id) })
		ordered := sorted.IDs()

		th := make([]int, len(ordered))
		for k, id := range ordered {
			if k == 0 {
				th[k] = int(slack(id))
				continue
			}
			tick := math.MaxInt
			for _, prev := range ordered[:k+1] {
				tick = min(tick, inst.Task(prev).Period)
			}
			e := 0
			for _, prev := range ordered[:k+1] {
				t := inst.Task(prev)
				e += t.WCET * (tick / t.Period)
			}
			th[k] = tick - e
		}
		st.thresholds[cpu] = th
	}
}

func (st *spState) computeSleepStates(inst *sim.Instance) {
	states := inst.CPU(0).Spec().States
	st.sleepStates = make([][]int, len(st.thresholds))
	for cpu, ths := range st.thresholds {
		chosen := make([]int, len(ths))
		for j, th := range ths {
			best, selected := math.Inf(1), -1
			for k := len(states) - 1; k >= 0; k-- {
				if cost := float64(th)*states[k].Consumption + states[k].Penalty; cost < best {
					best, selected = cost, k
				}
			}
			chosen[j] = selected
		}
		st.sleepStates[cpu] = chosen
	}
}

func (SP) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	s, ok := st.(*spState)
	if !ok {
		return sim.NewError(sim.KindSchedule, "unexpected policy state %T", st)
	}

	inst.ExecIncrementAll()
	inst.CheckTerminated(s.Queues, sim.Offline)
	if inst.DeadlineMissed() {
		return errDeadlineMiss(inst)
	}
	inst.CheckReady(s.Queues)
	dispatchPartitions(inst, &s.partitioned)
	return nil
}

func (SP) Close(*sim.Instance, sim.PolicyState) error { return nil }
