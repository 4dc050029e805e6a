package policy

import "github.com/yass-sim/yass/sim"

// EDF is uniprocessor earliest deadline first. Any deadline miss aborts
// the run.
type EDF struct{}

func (EDF) Name() string { return "EDF" }

func (EDF) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	if err := requireUniprocessor(inst); err != nil {
		return nil, err
	}
	if !inst.OptimalTest() {
		return nil, sim.NewError(sim.KindNotSchedulable, "demand %d over hyperperiod %d", inst.TotalExec(), inst.Hyperperiod())
	}
	return sim.NewQueues(inst, 1), nil
}

func (EDF) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	q, err := queuesOf(st)
	if err != nil {
		return err
	}

	inst.ExecIncrementAll()
	inst.CheckTerminated(q, sim.Offline)
	if inst.DeadlineMissed() {
		return errDeadlineMiss(inst)
	}
	inst.CheckReady(q)

	if q.Ready.Len() == 0 {
		return nil
	}
	q.Ready.Sort(byTTD(inst))
	if id := inst.EDFChooseNextTask(q.Ready); id != sim.NoTask {
		if inst.CPU(0).IsActive() {
			inst.PreemptTask(0, q)
		}
		inst.RunTask(0, id, q)
	}
	return nil
}

func (EDF) Close(*sim.Instance, sim.PolicyState) error { return nil }
