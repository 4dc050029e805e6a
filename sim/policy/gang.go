package policy

import (
	"github.com/sirupsen/logrus"

	"github.com/yass-sim/yass/sim"
)

// GangEDF runs every thread of a task at once, one per CPU. Jobs are
// taken in deadline order and skipped when their gang does not fit on the
// CPUs left.
type GangEDF struct{}

func (GangEDF) Name() string { return "Gang EDF" }

func (GangEDF) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	for _, t := range inst.Tasks() {
		if t.Threads > inst.NCPUs() {
			return nil, sim.NewError(sim.KindNotSchedulable, "task %d needs %d cpus, %d available", t.ID, t.Threads, inst.NCPUs())
		}
	}
	return sim.NewQueues(inst, 1), nil
}

func (GangEDF) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	q, err := queuesOf(st)
	if err != nil {
		return err
	}

	// One increment per gang, not per CPU.
	for _, id := range q.Running.IDs() {
		if cpu := inst.TaskCPU(id); cpu != sim.NoTask {
			inst.ExecIncrement(id, inst.CPU(cpu).Speed)
		}
	}

	for _, id := range q.Running.IDs() {
		if inst.Exec(id) < float64(inst.Task(id).WCET) {
			continue
		}
		inst.SetExec(id, 0)
		q.Move(id, q.Running, q.Stalled)
		releaseGang(inst, id)
	}

	inst.CheckReady(q)

	candidate := sim.NewQueue("candidate", 0)
	for _, id := range q.Running.IDs() {
		_ = candidate.Add(id)
	}
	for _, id := range q.Ready.IDs() {
		_ = candidate.Add(id)
	}
	candidate.Sort(byTTD(inst))

	selected := sim.NewQueue("selected", 0)
	free := inst.NCPUs()
	for _, id := range candidate.IDs() {
		if th := inst.Task(id).Threads; th <= free {
			free -= th
			_ = selected.Add(id)
		}
	}

	for _, id := range q.Running.IDs() {
		if !selected.Contains(id) {
			releaseGang(inst, id)
			q.Move(id, q.Running, q.Ready)
		}
	}

	cpu := 0
	for _, id := range selected.IDs() {
		if q.Running.Contains(id) {
			continue
		}
		for n := inst.Task(id).Threads; n > 0; cpu++ {
			if cpu == inst.NCPUs() {
				logrus.Warnf("%s: gang %d does not fit at tick %d", inst.Name(), id, inst.Tick())
				return nil
			}
			if !inst.CPU(cpu).IsActive() {
				inst.LogRun(cpu, id)
				inst.CPU(cpu).Task = id
				n--
			}
		}
		q.Move(id, q.Ready, q.Running)
	}
	return nil
}

// releaseGang frees every CPU running id.
func releaseGang(inst *sim.Instance, id int) {
	for i, c := range inst.CPUs() {
		if c.Task == id {
			inst.LogTerminate(i, id)
			c.Task = sim.NoTask
		}
	}
}

func (GangEDF) Close(*sim.Instance, sim.PolicyState) error { return nil }
