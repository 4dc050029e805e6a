package policy

import "github.com/yass-sim/yass/sim"

// FCFS runs released jobs in release order without preemption.
type FCFS struct{}

func (FCFS) Name() string { return "FCFS" }

func (FCFS) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	return sim.NewQueues(inst, 1), nil
}

func (FCFS) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	q, err := queuesOf(st)
	if err != nil {
		return err
	}

	inst.ExecIncrementAll()
	inst.CheckReady(q)
	inst.CheckTerminated(q, sim.Offline)

	for i, c := range inst.CPUs() {
		if !c.IsActive() && q.Ready.Len() > 0 {
			inst.RunTask(i, q.Ready.Front(), q)
		}
	}
	return nil
}

func (FCFS) Close(*sim.Instance, sim.PolicyState) error { return nil }
