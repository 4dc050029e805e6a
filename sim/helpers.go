package sim

import (
	"math"

	"github.com/sirupsen/logrus"
)

// ExecClass selects the termination budget used by CheckTerminated.
type ExecClass int

const (
	// Offline terminates jobs once they executed their WCET.
	Offline ExecClass = iota
	// Online terminates jobs once they executed their sampled execution time.
	Online
)

// ClassFor returns Online when the instance samples execution times.
func ClassFor(inst *Instance) ExecClass {
	if inst.Online() {
		return Online
	}
	return Offline
}

// Queues groups the three job sets of a policy. Every task id is in exactly
// one of them at any time.
type Queues struct {
	Ready   *Queue
	Running *Queue
	Stalled *Queue
}

// NewQueues creates the job sets of inst with all tasks stalled. perTask
// scales the capacity for policies that queue several ids per task.
func NewQueues(inst *Instance, perTask int) *Queues {
	if perTask < 1 {
		perTask = 1
	}
	capacity := inst.NTasks() * perTask
	q := &Queues{
		Ready:   NewQueue("ready", capacity),
		Running: NewQueue("running", capacity),
		Stalled: NewQueue("stalled", capacity),
	}
	for _, id := range inst.TaskIDs() {
		mustQueue(q.Stalled.Add(id))
	}
	return q
}

// Where returns the queue holding id, or nil.
func (q *Queues) Where(id int) *Queue {
	for _, s := range []*Queue{q.Ready, q.Running, q.Stalled} {
		if s.Contains(id) {
			return s
		}
	}
	return nil
}

// Move transfers id from one queue to another.
func (q *Queues) Move(id int, from, to *Queue) {
	mustQueue(from.Remove(id))
	mustQueue(to.Add(id))
}

// mustQueue reports a violated queue invariant without aborting the tick.
func mustQueue(err error) {
	if err != nil {
		logrus.Warnf("queue invariant: %v", err)
	}
}

// ExecIncrementAll credits every running task with one tick at its CPU speed.
func (inst *Instance) ExecIncrementAll() {
	for _, c := range inst.cpus {
		if c.IsActive() {
			inst.ExecIncrement(c.Task, c.Speed)
		}
	}
}

// CheckTerminated terminates every running job that consumed its budget and
// reports whether any did.
func (inst *Instance) CheckTerminated(q *Queues, class ExecClass) bool {
	terminated := false
	for i, c := range inst.cpus {
		if !c.IsActive() {
			continue
		}
		id := c.Task
		budget := inst.Task(id).WCET
		if class == Online {
			budget = inst.ExecTime(id, inst.NExec(id))
		}
		if inst.Exec(id) >= float64(budget) {
			inst.TerminateTask(i, id, q)
			terminated = true
		}
	}
	return terminated
}

// DeadlineMissed reports whether a job is still unfinished at its period
// boundary.
func (inst *Instance) DeadlineMissed() bool {
	for _, t := range inst.tasks {
		if inst.tick%t.Period == 0 && math.Trunc(inst.Exec(t.ID)) != 0 {
			return true
		}
	}
	return false
}

// CheckReady releases the stalled tasks whose period starts at this tick
// and reports whether any were released.
func (inst *Instance) CheckReady(q *Queues) bool {
	released := false
	for _, t := range inst.tasks {
		td := inst.tick - t.Delay
		if td < 0 {
			continue
		}
		if td%t.Period == 0 && q.Stalled.Contains(t.ID) {
			q.Move(t.ID, q.Stalled, q.Ready)
			inst.SetRelease(t.ID, inst.tick+t.Period)
			released = true
		}
	}
	return released
}

// TerminateTask ends the current job of id on cpu: its work is reset and
// it waits stalled for its next release.
func (inst *Instance) TerminateTask(cpu, id int, q *Queues) {
	inst.SetExec(id, 0)
	inst.cpus[cpu].Task = NoTask
	if q != nil {
		q.Move(id, q.Running, q.Stalled)
	}
	inst.LogTerminate(cpu, id)
}

// PreemptTask moves the task running on cpu back to the ready queue.
func (inst *Instance) PreemptTask(cpu int, q *Queues) {
	id := inst.cpus[cpu].Task
	if id == NoTask {
		logrus.Warnf("instance %d: preempting idle cpu %d at tick %d", inst.index, cpu, inst.tick)
		return
	}
	inst.LogTerminate(cpu, id)
	q.Move(id, q.Running, q.Ready)
	inst.cpus[cpu].Task = NoTask
}

// RunTask dispatches ready task id on cpu.
func (inst *Instance) RunTask(cpu, id int, q *Queues) {
	inst.LogRun(cpu, id)
	q.Move(id, q.Ready, q.Running)
	inst.cpus[cpu].Task = id
}

// EDFChooseNextTask returns the earliest-deadline id of q if it should run
// on CPU 0: always when the CPU is idle, otherwise only when its deadline
// is strictly earlier than the running task's. Returns NoTask otherwise.
func (inst *Instance) EDFChooseNextTask(q *Queue) int {
	best, min := NoTask, math.MaxInt
	for _, id := range q.ids {
		if id == NoTask {
			continue
		}
		if ttd := inst.TimeToDeadline(id); ttd < min {
			best, min = id, ttd
		}
	}
	c := inst.cpus[0]
	if !c.IsActive() {
		return best
	}
	if min < inst.TimeToDeadline(c.Task) {
		return best
	}
	return NoTask
}

// AbortMissedJobs counts and drops the jobs still unfinished at their
// period boundary, and makes sure every task whose period restarts at this
// tick waits in the stalled queue for its release.
func (inst *Instance) AbortMissedJobs(q *Queues) {
	for _, t := range inst.tasks {
		if inst.tick%t.Period != 0 {
			continue
		}
		id := t.ID
		cpu := inst.TaskCPU(id)
		switch {
		case inst.Exec(id) != 0:
			inst.IncDeadlineMisses()
			if cpu != NoTask {
				inst.TerminateTask(cpu, id, q)
			} else {
				inst.SetExec(id, 0)
				if from := q.Where(id); from != nil && from != q.Stalled {
					q.Move(id, from, q.Stalled)
				}
			}
		case !q.Stalled.Contains(id):
			if cpu != NoTask {
				inst.cpus[cpu].Task = NoTask
			}
			if from := q.Where(id); from != nil {
				q.Move(id, from, q.Stalled)
			}
		}
	}
}

// RunningAndReady returns a candidate queue holding the tasks on the CPUs
// followed by the ready tasks.
func (inst *Instance) RunningAndReady(q *Queues) *Queue {
	candidate := NewQueue("candidate", 0)
	for _, c := range inst.cpus {
		if c.IsActive() {
			mustQueue(candidate.Add(c.Task))
		}
	}
	for _, id := range q.Ready.ids {
		if id != NoTask {
			mustQueue(candidate.Add(id))
		}
	}
	return candidate
}

// AssignCandidates makes the CPUs run exactly the ids of candidate, which
// must already be ordered and trimmed to the number of CPUs. Running tasks
// outside candidate are preempted, tasks already placed stay on their CPU,
// and the remaining candidates fill the free CPUs in order. It returns the
// number of candidates that found no CPU.
func (inst *Instance) AssignCandidates(candidate *Queue, q *Queues) int {
	for _, id := range q.Running.IDs() {
		if !candidate.Contains(id) {
			if cpu := inst.TaskCPU(id); cpu != NoTask {
				inst.PreemptTask(cpu, q)
			}
		}
	}
	for _, c := range inst.cpus {
		if c.IsActive() && candidate.Contains(c.Task) {
			mustQueue(candidate.Remove(c.Task))
		}
	}
	for i, c := range inst.cpus {
		id := candidate.Front()
		if !c.IsActive() && id != NoTask {
			inst.RunTask(i, id, q)
			mustQueue(candidate.Remove(id))
		}
	}
	return candidate.Len()
}
