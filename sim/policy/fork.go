package policy

import (
	"github.com/sirupsen/logrus"

	"github.com/yass-sim/yass/sim"
)

// ForkJoin is global EDF over the threads of fork-join tasks. A job runs
// its segments in order: sequential segments on thread 0, parallel
// segments on Parallel threads that must all finish before the next
// segment starts. Tasks without segments are scheduled as plain jobs. A job
// still active at its next release counts as a miss and is dropped.
type ForkJoin struct{}

type forkState struct {
	*sim.Queues
	segment    map[int]int     // active segment per fork-join task
	joined     map[int]int     // finished threads of the active parallel segment
	threadExec map[int]float64 // work done by each thread in its segment
}

func (s *forkState) queues() *sim.Queues { return s.Queues }

func (ForkJoin) Name() string { return "Fork-join" }

func (ForkJoin) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	return &forkState{
		Queues:     sim.NewQueues(inst, sim.MaxThreads+1),
		segment:    make(map[int]int),
		joined:     make(map[int]int),
		threadExec: make(map[int]float64),
	}, nil
}

// threadsOf returns every schedulable id of task id.
func threadsOf(t *sim.Task) []int {
	if !t.IsForkJoin() {
		return []int{t.ID}
	}
	ids := make([]int, 0, t.Parallel+1)
	for j := 0; j <= t.Parallel; j++ {
		ids = append(ids, sim.ThreadID(t.ID, j))
	}
	return ids
}

func ownerTTD(inst *sim.Instance) func(int) float64 {
	return func(id int) float64 {
		owner, _ := sim.ThreadOwner(id)
		return float64(inst.TimeToDeadline(owner))
	}
}

func (s *forkState) add(q *sim.Queue, id int) {
	if err := q.Add(id); err != nil {
		logrus.Warnf("fork-join: %v", err)
	}
}

// finishThread records the end of thread on task t and queues what comes
// next: the following segment, or the task itself once the job is done.
func (s *forkState) finishThread(inst *sim.Instance, t *sim.Task) {
	seg := s.segment[t.ID]
	if seg%2 == 1 {
		s.joined[t.ID]++
		if s.joined[t.ID] < t.Parallel {
			return
		}
		s.joined[t.ID] = 0
	}
	if seg == len(t.Segments)-1 {
		s.segment[t.ID] = 0
		inst.SetExec(t.ID, 0)
		s.add(s.Stalled, t.ID)
		return
	}
	seg++
	s.segment[t.ID] = seg
	if seg%2 == 1 {
		for j := 1; j <= t.Parallel; j++ {
			s.add(s.Ready, sim.ThreadID(t.ID, j))
		}
		return
	}
	s.add(s.Ready, sim.ThreadID(t.ID, 0))
}

// abort drops every thread of the current job of t.
func (s *forkState) abort(inst *sim.Instance, t *sim.Task) {
	for _, id := range threadsOf(t) {
		if cpu := inst.TaskCPU(id); cpu != sim.NoTask {
			inst.LogTerminate(cpu, id)
			inst.CPU(cpu).Task = sim.NoTask
		}
		for _, q := range []*sim.Queue{s.Running, s.Ready} {
			if q.Contains(id) {
				_ = q.Remove(id)
			}
		}
		delete(s.threadExec, id)
	}
	s.segment[t.ID] = 0
	s.joined[t.ID] = 0
	inst.SetExec(t.ID, 0)
	s.add(s.Stalled, t.ID)
}

func (ForkJoin) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	s, ok := st.(*forkState)
	if !ok {
		return sim.NewError(sim.KindSchedule, "unexpected policy state %T", st)
	}

	for _, c := range inst.CPUs() {
		if !c.IsActive() {
			continue
		}
		owner, _ := sim.ThreadOwner(c.Task)
		inst.ExecIncrement(owner, c.Speed)
		if inst.Task(owner).IsForkJoin() {
			s.threadExec[c.Task] += c.Speed
		}
	}

	for i, c := range inst.CPUs() {
		if !c.IsActive() {
			continue
		}
		id := c.Task
		owner, _ := sim.ThreadOwner(id)
		t := inst.Task(owner)
		if !t.IsForkJoin() {
			if inst.Exec(id) >= float64(t.WCET) {
				inst.TerminateTask(i, id, s.Queues)
			}
			continue
		}
		if s.threadExec[id] < float64(t.Segments[s.segment[owner]].WCET) {
			continue
		}
		_ = s.Running.Remove(id)
		inst.LogTerminate(i, id)
		c.Task = sim.NoTask
		delete(s.threadExec, id)
		s.finishThread(inst, t)
	}

	for _, t := range inst.Tasks() {
		td := inst.Tick() - t.Delay
		if td < 0 || td%t.Period != 0 {
			continue
		}
		if !s.Stalled.Contains(t.ID) {
			inst.IncDeadlineMisses()
			s.abort(inst, t)
		}
		_ = s.Stalled.Remove(t.ID)
		if t.IsForkJoin() {
			s.add(s.Ready, sim.ThreadID(t.ID, 0))
		} else {
			s.add(s.Ready, t.ID)
		}
		inst.SetRelease(t.ID, inst.Tick()+t.Period)
	}

	candidate := inst.RunningAndReady(s.Queues)
	candidate.Sort(ownerTTD(inst))
	candidate.Truncate(inst.NCPUs())
	if left := inst.AssignCandidates(candidate, s.Queues); left != 0 {
		logrus.Warnf("%s: %d threads without a cpu at tick %d", inst.Name(), left, inst.Tick())
	}
	return nil
}

func (ForkJoin) Close(*sim.Instance, sim.PolicyState) error { return nil }
