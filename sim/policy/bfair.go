package policy

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yass-sim/yass/sim"
)

// boundaryEpsilon absorbs float error in per-interval allocations.
const boundaryEpsilon = 1e-9

// BoundaryFair makes scheduling decisions only at period boundaries. At
// each boundary every task receives the integral part of its fluid
// allocation for the interval, the remaining units go to the tasks with the
// largest fractional parts, and the units are laid out on the CPUs with
// McNaughton's wrap-around rule.
type BoundaryFair struct{}

type bfState struct {
	*sim.Queues
	// remaining is the fluid allocation owed to each task and carried over
	// from the previous interval.
	remaining map[int]float64
	// slots[cpu][offset] is the task to run offset ticks after start.
	slots [][]int
	start int
}

func (s *bfState) queues() *sim.Queues { return s.Queues }

func (BoundaryFair) Name() string { return "Boundary Fair" }

func (BoundaryFair) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	if !inst.DPMTest() {
		return nil, sim.NewError(sim.KindNotSchedulable, "utilization %.3f on %d cpus", inst.GlobalUtilization(), inst.NCPUs())
	}
	for _, t := range inst.Tasks() {
		if t.Delay != 0 {
			return nil, sim.NewError(sim.KindNotSchedulable, "task %d: boundary fair needs synchronous releases", t.ID)
		}
	}
	// The total demand must fill every CPU.
	if inst.NCPUs()*inst.Hyperperiod() > inst.TotalExec() {
		inst.AddIdleTask()
	}
	return &bfState{
		Queues:    sim.NewQueues(inst, 1),
		remaining: make(map[int]float64, inst.NTasks()),
	}, nil
}

// allocate computes the allocation of the interval starting at the current
// tick and the resulting slot table.
func (s *bfState) allocate(inst *sim.Instance) error {
	tick := inst.Tick()
	length := inst.NextBoundary(tick) - tick
	m := inst.NCPUs()

	units := make(map[int]int, inst.NTasks())
	frac := make(map[int]float64, inst.NTasks())
	eligible := sim.NewQueue("eligible", 0)
	spare := length * m
	for _, id := range inst.TaskIDs() {
		owed := float64(length)*inst.Utilization(id) + s.remaining[id]
		n := 0
		if owed > 0 {
			n = int(math.Floor(owed + boundaryEpsilon))
		}
		units[id] = n
		frac[id] = owed - float64(n)
		spare -= n
		if frac[id] > 1e-4 && n < length {
			_ = eligible.Add(id)
		}
	}
	if spare < 0 || spare > eligible.Len() {
		return sim.NewError(sim.KindNotSchedulable, "%d spare units for %d tasks at tick %d", spare, eligible.Len(), tick)
	}

	eligible.Sort(func(id int) float64 { return -frac[id] })
	eligible.Truncate(spare)
	for _, id := range inst.TaskIDs() {
		extra := 0
		if eligible.Contains(id) {
			extra = 1
		}
		units[id] += extra
		s.remaining[id] = frac[id] - float64(extra)
	}

	s.start = tick
	s.slots = make([][]int, m)
	for c := range s.slots {
		s.slots[c] = make([]int, length)
		for o := range s.slots[c] {
			s.slots[c][o] = sim.NoTask
		}
	}
	cpu, offset := 0, 0
	for _, id := range inst.TaskIDs() {
		for n := units[id]; n > 0; n-- {
			if cpu == m {
				return sim.NewError(sim.KindNotSchedulable, "allocation overflows the cpus at tick %d", tick)
			}
			s.slots[cpu][offset] = id
			if offset++; offset == length {
				cpu, offset = cpu+1, 0
			}
		}
	}
	return nil
}

func (BoundaryFair) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	s, ok := st.(*bfState)
	if !ok {
		return sim.NewError(sim.KindSchedule, "unexpected policy state %T", st)
	}

	inst.ExecIncrementAll()
	inst.CheckTerminated(s.Queues, sim.Offline)

	inst.CheckReady(s.Queues)
	if s.slots == nil || inst.IsIntervalBoundary() {
		if err := s.allocate(inst); err != nil {
			return err
		}
	}

	offset := inst.Tick() - s.start
	for cpu, row := range s.slots {
		id := row[offset]
		if id == inst.CPU(cpu).Task {
			continue
		}
		if inst.CPU(cpu).IsActive() {
			inst.PreemptTask(cpu, s.Queues)
		}
		if id == sim.NoTask {
			continue
		}
		// A wrapped task moves from the start of one CPU to the end of
		// the previous one.
		if other := inst.TaskCPU(id); other != sim.NoTask {
			inst.PreemptTask(other, s.Queues)
		}
		if !s.Ready.Contains(id) {
			logrus.Debugf("%s: task %d has no pending work at tick %d", inst.Name(), id, inst.Tick())
			continue
		}
		inst.RunTask(cpu, id, s.Queues)
	}
	return nil
}

func (BoundaryFair) Close(*sim.Instance, sim.PolicyState) error { return nil }
