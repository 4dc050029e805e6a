package policy

import (
	"math"

	"github.com/yass-sim/yass/sim"
)

// PF is the Pfair policy: each job is split into unit subtasks with
// pseudo-deadlines derived from the task weight, and the m subtasks with
// the earliest pseudo-deadlines run every tick. Ties prefer subtasks whose
// window overlaps the next one.
type PF struct{}

func (PF) Name() string { return "PF" }

func (PF) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	if !inst.DPMTest() {
		return nil, sim.NewError(sim.KindNotSchedulable, "utilization %.3f on %d cpus", inst.GlobalUtilization(), inst.NCPUs())
	}
	return sim.NewQueues(inst, 1), nil
}

// pseudoDeadline returns the absolute pseudo-deadline of the next subtask
// of id and its successor bit.
func pseudoDeadline(inst *sim.Instance, id int) (deadline int, bit int) {
	t := inst.Task(id)
	subtask := int(inst.Exec(id)) + 1
	if t.WCET == 0 {
		return inst.NextRelease(id), 0
	}
	window := float64(subtask*t.Period) / float64(t.WCET)
	start := inst.NextRelease(id) - t.Period
	deadline = start + int(math.Ceil(window))
	if subtask < t.WCET && math.Ceil(window) != math.Floor(window) {
		bit = 1
	}
	return deadline, bit
}

// pfPriority orders subtasks by pseudo-deadline, then by successor bit set.
func pfPriority(inst *sim.Instance) func(int) float64 {
	return func(id int) float64 {
		d, b := pseudoDeadline(inst, id)
		return float64(2*d + 1 - b)
	}
}

func (PF) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	q, err := queuesOf(st)
	if err != nil {
		return err
	}

	inst.ExecIncrementAll()
	inst.CheckTerminated(q, sim.Offline)
	inst.CheckReady(q)

	candidate := inst.RunningAndReady(q)
	for _, id := range candidate.IDs() {
		if inst.Lag(id) > 1 {
			return sim.NewError(sim.KindNotSchedulable, "task %d lag %.3f at tick %d", id, inst.Lag(id), inst.Tick())
		}
	}
	candidate.Sort(pfPriority(inst))
	candidate.Truncate(inst.NCPUs())

	if left := inst.AssignCandidates(candidate, q); left != 0 {
		return sim.NewError(sim.KindNotSchedulable, "%d subtasks without a cpu at tick %d", left, inst.Tick())
	}
	return nil
}

func (PF) Close(*sim.Instance, sim.PolicyState) error { return nil }
