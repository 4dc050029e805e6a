package sim

import "fmt"

const (
	// NoTask marks an empty CPU or an out-of-range queue position.
	NoTask = -1
	// IdleTaskID is the first id reserved for idle pseudo-tasks.
	IdleTaskID = 987
	// MinWCET is the smallest WCET accepted without a warning.
	MinWCET = 10
	// MaxExecSamples is the number of sampled execution times per task.
	MaxExecSamples = 4096
	// MaxSegments bounds the number of fork-join segments of a task.
	MaxSegments = 10
	// MaxThreads bounds the parallel degree of a fork-join task.
	MaxThreads = 10
	// ThreadIDBase is the first id used for fork-join threads.
	ThreadIDBase = 1 << 20
)

// Segment is one sequential or parallel stage of a fork-join task.
type Segment struct {
	WCET int `yaml:"wcet" json:"wcet"`
}

// Task is the static description of a periodic task. A Task is never
// mutated by a policy; per-job state lives in JobState.
type Task struct {
	ID          int // unique within a task set
	VM          int // virtual machine the task belongs to
	Threads     int // CPUs a gang task occupies at once
	WCET        int // worst-case execution time (ticks)
	Deadline    int // relative deadline (ticks)
	Period      int // release period (ticks)
	Delay       int // phase of the first release
	Criticality int // 1 = hard, 0 = soft

	// Fork-join model: segments alternate sequential (even index) and
	// parallel (odd index); each parallel segment forks Parallel threads.
	Parallel int
	Segments []Segment
}

// IsIdleTask reports whether id belongs to an idle pseudo-task.
func IsIdleTask(id int) bool {
	return id >= IdleTaskID && id < ThreadIDBase
}

// ThreadID returns the schedulable id of thread j of fork-join task id.
// Thread 0 runs the sequential segments.
func ThreadID(id, j int) int {
	return ThreadIDBase + id*(MaxThreads+1) + j
}

// ThreadOwner returns the task a schedulable id belongs to and the thread
// index within it. Plain task ids are their own owner with thread 0.
func ThreadOwner(id int) (task, thread int) {
	if id < ThreadIDBase {
		return id, 0
	}
	off := id - ThreadIDBase
	return off / (MaxThreads + 1), off % (MaxThreads + 1)
}

// IsIdle reports whether the task is an idle pseudo-task.
func (t *Task) IsIdle() bool {
	return IsIdleTask(t.ID)
}

// Utilization returns WCET / Period.
func (t *Task) Utilization() float64 {
	return float64(t.WCET) / float64(t.Period)
}

// IsForkJoin reports whether the task uses the fork-join model.
func (t *Task) IsForkJoin() bool {
	return len(t.Segments) > 0
}

// TotalWork returns the execution demand of one fork-join job: the sum of
// sequential segments plus every parallel segment times the parallel degree.
func (t *Task) TotalWork() int {
	total := 0
	for i, s := range t.Segments {
		if i%2 == 1 {
			total += s.WCET * t.Parallel
		} else {
			total += s.WCET
		}
	}
	return total
}

// Warnings lists the soft constraints violated by the task.
func (t *Task) Warnings() []string {
	var w []string
	if t.IsForkJoin() {
		return w
	}
	if t.WCET > t.Deadline {
		w = append(w, fmt.Sprintf("task %d: wcet %d exceeds deadline %d", t.ID, t.WCET, t.Deadline))
	}
	if t.WCET > t.Period {
		w = append(w, fmt.Sprintf("task %d: wcet %d exceeds period %d", t.ID, t.WCET, t.Period))
	}
	if t.WCET < MinWCET {
		w = append(w, fmt.Sprintf("task %d: wcet %d below %d", t.ID, t.WCET, MinWCET))
	}
	return w
}

// JobState is the mutable per-instance state of a task's current job.
type JobState struct {
	Priority    int     // policy-defined priority, -1 when unused
	NextRelease int     // tick of the next release
	Exec        float64 // work completed by the current job
}

func newJobState() *JobState {
	return &JobState{Priority: -1}
}
