package policy

import "github.com/yass-sim/yass/sim"

// RM is uniprocessor rate monotonic with static priorities: the shorter
// the deadline, the higher the priority (smaller value).
type RM struct{}

func (RM) Name() string { return "RM" }

func (RM) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	if err := requireUniprocessor(inst); err != nil {
		return nil, err
	}
	q := sim.NewQueues(inst, 1)
	q.Stalled.Sort(func(id int) float64 { return float64(inst.Task(id).Deadline) })
	for i, id := range q.Stalled.IDs() {
		inst.SetPriority(id, i+1)
	}
	if !inst.RMTest() {
		return nil, sim.NewError(sim.KindNotSchedulable, "utilization %.3f above the Liu and Layland bound", inst.GlobalUtilization())
	}
	return q, nil
}

func (RM) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	q, err := queuesOf(st)
	if err != nil {
		return err
	}

	inst.ExecIncrementAll()
	inst.CheckReady(q)
	inst.CheckTerminated(q, sim.Offline)

	q.Ready.Sort(func(id int) float64 { return float64(inst.Priority(id)) })
	head := q.Ready.Front()
	if head == sim.NoTask {
		return nil
	}
	cpu := inst.CPU(0)
	if !cpu.IsActive() || inst.Priority(cpu.Task) > inst.Priority(head) {
		if cpu.IsActive() {
			inst.PreemptTask(0, q)
		}
		inst.RunTask(0, head, q)
	}
	return nil
}

func (RM) Close(*sim.Instance, sim.PolicyState) error { return nil }
