package policy

import (
	"math"

	"github.com/yass-sim/yass/sim"
)

const (
	uedfEpsilon = 1e-4
	// uedfMaxSlices bounds the execution slices of one tick.
	uedfMaxSlices = 10000
)

// UEDF is the U-EDF policy. At each period boundary every pending job gets
// a share of each CPU, filled in deadline order so that later jobs only
// use the time earlier jobs leave free. Inside a tick, execution proceeds
// in slices ending whenever a running job exhausts its share on its CPU.
type UEDF struct{}

type uedfState struct {
	*sim.Queues
	index map[int]int
	// assignment[task][cpu] is the time still reserved for the task on
	// the CPU before its deadline.
	assignment [][]float64
}

func (s *uedfState) queues() *sim.Queues { return s.Queues }

func (UEDF) Name() string { return "U-EDF" }

func (UEDF) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	if !inst.DPMTest() {
		return nil, sim.NewError(sim.KindNotSchedulable, "utilization %.3f on %d cpus", inst.GlobalUtilization(), inst.NCPUs())
	}
	s := &uedfState{
		Queues:     sim.NewQueues(inst, 1),
		index:      make(map[int]int, inst.NTasks()),
		assignment: make([][]float64, inst.NTasks()),
	}
	for i, id := range inst.TaskIDs() {
		s.index[id] = i
		s.assignment[i] = make([]float64, inst.NCPUs())
	}
	return s, nil
}

func (s *uedfState) share(id, cpu int) float64 {
	return s.assignment[s.index[id]][cpu]
}

// cpuShare is the part of CPU cpu that the utilization of the first n+1
// candidates occupies beyond the first n.
func cpuShare(inst *sim.Instance, candidate []int, n, cpu int) float64 {
	before := 0.0
	for _, id := range candidate[:n] {
		before += inst.Utilization(id)
	}
	with := before + inst.Utilization(candidate[n])
	clamp := func(u float64) float64 { return math.Min(1, math.Max(0, u-float64(cpu))) }
	return clamp(with) - clamp(before)
}

// freeTime returns the time candidate n can get on cpu before its
// deadline, capped by its remaining work.
func (s *uedfState) freeTime(inst *sim.Instance, candidate []int, n, cpu int, rem float64) float64 {
	id := candidate[n]
	d1 := inst.NextRelease(id)
	free := float64(d1 - inst.Tick())

	previous := 0.0
	for j := 0; j < cpu; j++ {
		previous += s.share(id, j)
	}
	free -= previous

	for i, other := range candidate[:n] {
		d2 := inst.NextRelease(other)
		free -= s.share(other, cpu)
		free -= float64(d1-d2) * cpuShare(inst, candidate, i, cpu)
	}
	return math.Min(rem-previous, free)
}

func (s *uedfState) assign(inst *sim.Instance, candidate []int) bool {
	for i := range s.assignment {
		for j := range s.assignment[i] {
			s.assignment[i][j] = 0
		}
	}
	for n, id := range candidate {
		rem := inst.RemainingExec(id)
		if s.Stalled.Contains(id) {
			rem = 0
		}
		for cpu := 0; rem > 0 && cpu < inst.NCPUs(); cpu++ {
			t := s.freeTime(inst, candidate, n, cpu, rem)
			if t < -uedfEpsilon {
				return false
			}
			s.assignment[s.index[id]][cpu] += t
		}
	}
	return true
}

// release makes stalled jobs ready at their period boundary. A job still
// pending at its boundary means the task set cannot be scheduled.
func (s *uedfState) release(inst *sim.Instance) bool {
	for _, t := range inst.Tasks() {
		if inst.Tick()%t.Period != 0 {
			continue
		}
		if !s.Stalled.Contains(t.ID) {
			return false
		}
		s.Move(t.ID, s.Stalled, s.Ready)
		inst.SetRelease(t.ID, inst.Tick()+t.Period)
	}
	return true
}

// stopExhausted removes from the CPUs the jobs whose share there is used
// up, terminating those that completed.
func (s *uedfState) stopExhausted(inst *sim.Instance) {
	for i, c := range inst.CPUs() {
		if !c.IsActive() {
			continue
		}
		id := c.Task
		if s.share(id, i) > uedfEpsilon {
			continue
		}
		if inst.Exec(id) >= float64(inst.Task(id).WCET)-uedfEpsilon {
			inst.TerminateTask(i, id, s.Queues)
			continue
		}
		inst.LogTerminate(i, id)
		s.Move(id, s.Running, s.Ready)
		c.Task = sim.NoTask
	}
}

// choose returns the first pending candidate with time reserved on cpu
// that is not already running on a lower CPU.
func (s *uedfState) choose(inst *sim.Instance, candidate []int, cpu int) int {
	for _, id := range candidate {
		if s.Stalled.Contains(id) {
			continue
		}
		current := inst.TaskCPU(id)
		if s.share(id, cpu) > uedfEpsilon && (current < 0 || current >= cpu) {
			return id
		}
	}
	return sim.NoTask
}

func (s *uedfState) execute(inst *sim.Instance, time float64) {
	for i, c := range inst.CPUs() {
		if c.IsActive() {
			inst.ExecIncrement(c.Task, time)
			s.assignment[s.index[c.Task]][i] -= time
		}
	}
}

func (UEDF) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	s, ok := st.(*uedfState)
	if !ok {
		return sim.NewError(sim.KindSchedule, "unexpected policy state %T", st)
	}

	for time, slices := 0.0, 0; time < 1-uedfEpsilon; slices++ {
		if slices == uedfMaxSlices {
			return sim.NewError(sim.KindNotSchedulable, "no progress within tick %d", inst.Tick())
		}
		if time > 0 {
			inst.UpdateIdle()
		}
		s.stopExhausted(inst)

		if time == 0 && !s.release(inst) {
			return sim.NewError(sim.KindNotSchedulable, "pending job at boundary tick %d", inst.Tick())
		}

		order := sim.NewQueue("candidate", 0)
		for _, id := range inst.TaskIDs() {
			_ = order.Add(id)
		}
		order.Sort(byTTD(inst))
		candidate := order.IDs()

		if time == 0 && inst.IsIntervalBoundary() && !s.assign(inst, candidate) {
			return sim.NewError(sim.KindNotSchedulable, "no feasible assignment at tick %d", inst.Tick())
		}

		for cpu, c := range inst.CPUs() {
			id := s.choose(inst, candidate, cpu)
			if id == c.Task {
				continue
			}
			if c.IsActive() {
				inst.PreemptTask(cpu, s.Queues)
			}
			if id == sim.NoTask {
				continue
			}
			if other := inst.TaskCPU(id); other != sim.NoTask {
				inst.PreemptTask(other, s.Queues)
			}
			inst.RunTask(cpu, id, s.Queues)
		}

		slice := math.Inf(1)
		for i, c := range inst.CPUs() {
			if c.IsActive() {
				slice = math.Min(slice, s.share(c.Task, i))
			}
		}
		s.execute(inst, math.Min(slice, 1-time))
		time += slice
	}
	return nil
}

func (UEDF) Close(*sim.Instance, sim.PolicyState) error { return nil }
