package policy

import (
	"github.com/sirupsen/logrus"

	"github.com/yass-sim/yass/sim"
)

// GlobalEDF runs the m earliest-deadline jobs on m CPUs. Jobs still
// unfinished at their period boundary are counted as misses and dropped.
type GlobalEDF struct{}

func (GlobalEDF) Name() string { return "Global EDF" }

func (GlobalEDF) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	return sim.NewQueues(inst, 1), nil
}

func (GlobalEDF) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	q, err := queuesOf(st)
	if err != nil {
		return err
	}

	inst.ExecIncrementAll()
	inst.CheckTerminated(q, sim.ClassFor(inst))
	inst.AbortMissedJobs(q)
	inst.CheckReady(q)

	candidate := inst.RunningAndReady(q)
	candidate.Sort(byTTD(inst))
	candidate.Truncate(inst.NCPUs())

	if left := inst.AssignCandidates(candidate, q); left != 0 {
		logrus.Warnf("%s: %d jobs without a cpu at tick %d", inst.Name(), left, inst.Tick())
	}
	return nil
}

func (GlobalEDF) Close(*sim.Instance, sim.PolicyState) error { return nil }
