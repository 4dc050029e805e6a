package policy

import (
	"github.com/yass-sim/yass/sim"
)

// PartitionedEDF binds every task to one CPU offline (worst fit by
// decreasing utilization) and runs uniprocessor EDF on each CPU.
type PartitionedEDF struct{}

func (PartitionedEDF) Name() string { return "Partitioned EDF" }

func (PartitionedEDF) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	q := sim.NewQueues(inst, 1)
	order := sim.NewQueue("order", 0)
	for _, id := range inst.TaskIDs() {
		if err := order.Add(id); err != nil {
			return nil, err
		}
	}
	order.Sort(func(id int) float64 { return -inst.Utilization(id) })
	return &partitioned{Queues: q, cpuTasks: worstFit(inst, order.IDs())}, nil
}

func (PartitionedEDF) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	p, ok := st.(*partitioned)
	if !ok {
		return sim.NewError(sim.KindSchedule, "unexpected policy state %T", st)
	}

	inst.ExecIncrementAll()
	inst.CheckTerminated(p.Queues, sim.ClassFor(inst))
	inst.AbortMissedJobs(p.Queues)
	inst.CheckReady(p.Queues)
	dispatchPartitions(inst, p)
	return nil
}

func (PartitionedEDF) Close(*sim.Instance, sim.PolicyState) error { return nil }
