package policy

import "github.com/yass-sim/yass/sim"

// LLF is global least laxity first. Any deadline miss aborts the run.
type LLF struct{}

func (LLF) Name() string { return "LLF" }

func (LLF) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	return sim.NewQueues(inst, 1), nil
}

func (LLF) Schedule(inst *sim.Instance, st sim.PolicyState) error {
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

	candidate := sim.NewQueue("candidate", 0)
	for _, id := range append(q.Running.IDs(), q.Ready.IDs()...) {
		if err := candidate.Add(id); err != nil {
			return err
		}
	}
	candidate.Sort(byLaxity(inst))
	candidate.Truncate(inst.NCPUs())

	if left := inst.AssignCandidates(candidate, q); left != 0 {
		return sim.NewError(sim.KindNotSchedulable, "%d jobs without a cpu at tick %d", left, inst.Tick())
	}
	return nil
}

func (LLF) Close(*sim.Instance, sim.PolicyState) error { return nil }
