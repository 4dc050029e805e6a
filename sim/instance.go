package sim

import "fmt"

// Instance is one scheduler running against its own copy of the task set
// and its own CPUs. Everything an instance owns is private to its goroutine;
// only the event sink is shared.
type Instance struct {
	index  int
	policy Policy
	state  PolicyState

	tasks []*Task
	byID  map[int]*Task
	jobs  map[int]*JobState
	cpus  []*CPU

	tick      int
	online    bool
	execTimes map[int][]int // read-only, shared between instances
	sink      EventSink

	deadlineMisses int
	stat           int
}

// NewInstance creates an instance with a deep copy of tasks. execTimes may
// be nil when online execution times are not used.
func NewInstance(index int, policy Policy, tasks []Task, nCPUs int, spec *CPUSpec, execTimes map[int][]int) *Instance {
	inst := &Instance{
		index:     index,
		policy:    policy,
		byID:      make(map[int]*Task, len(tasks)),
		jobs:      make(map[int]*JobState, len(tasks)),
		cpus:      make([]*CPU, nCPUs),
		execTimes: execTimes,
		stat:      -1,
	}
	for i := range tasks {
		inst.addTask(tasks[i])
	}
	for i := range inst.cpus {
		inst.cpus[i] = NewCPU(i, spec)
	}
	return inst
}

func (inst *Instance) addTask(t Task) {
	cp := t
	cp.Segments = append([]Segment(nil), t.Segments...)
	inst.tasks = append(inst.tasks, &cp)
	inst.byID[cp.ID] = &cp
	inst.jobs[cp.ID] = newJobState()
}

// SetOnline selects sampled execution times instead of WCET.
func (inst *Instance) SetOnline(online bool) {
	inst.online = online
}

// SetEventSink attaches the sink receiving this instance's events.
func (inst *Instance) SetEventSink(sink EventSink) {
	inst.sink = sink
}

// Index returns the position of the instance in its simulation.
func (inst *Instance) Index() int { return inst.index }

// Policy returns the scheduling policy driving the instance.
func (inst *Instance) Policy() Policy { return inst.policy }

// State returns the policy state produced by Offline.
func (inst *Instance) State() PolicyState { return inst.state }

// Name returns the policy display name.
func (inst *Instance) Name() string {
	if inst.policy == nil {
		return "__"
	}
	return inst.policy.Name()
}

// Tick returns the current tick.
func (inst *Instance) Tick() int { return inst.tick }

// Online reports whether sampled execution times are in use.
func (inst *Instance) Online() bool { return inst.online }

// NCPUs returns the number of processors.
func (inst *Instance) NCPUs() int { return len(inst.cpus) }

// CPU returns processor i.
func (inst *Instance) CPU(i int) *CPU { return inst.cpus[i] }

// CPUs returns every processor.
func (inst *Instance) CPUs() []*CPU { return inst.cpus }

// NTasks returns the number of tasks, idle tasks included.
func (inst *Instance) NTasks() int { return len(inst.tasks) }

// Tasks returns the tasks in insertion order.
func (inst *Instance) Tasks() []*Task { return inst.tasks }

// TaskIDs returns the task ids in insertion order.
func (inst *Instance) TaskIDs() []int {
	ids := make([]int, len(inst.tasks))
	for i, t := range inst.tasks {
		ids[i] = t.ID
	}
	return ids
}

// HasTask reports whether id is a task of the instance.
func (inst *Instance) HasTask(id int) bool {
	_, ok := inst.byID[id]
	return ok
}

// Task returns the task with the given id. Unknown ids panic: they are a
// programming error inside a policy.
func (inst *Instance) Task(id int) *Task {
	t, ok := inst.byID[id]
	if !ok {
		panic(fmt.Sprintf("instance %d: unknown task %d", inst.index, id))
	}
	return t
}

// Job returns the job state of task id.
func (inst *Instance) Job(id int) *JobState {
	j, ok := inst.jobs[id]
	if !ok {
		panic(fmt.Sprintf("instance %d: unknown task %d", inst.index, id))
	}
	return j
}

// Exec returns the work completed by the current job of id.
func (inst *Instance) Exec(id int) float64 { return inst.Job(id).Exec }

// SetExec overwrites the completed work of id.
func (inst *Instance) SetExec(id int, exec float64) { inst.Job(id).Exec = exec }

// ExecIncrement adds work to the current job of id.
func (inst *Instance) ExecIncrement(id int, amount float64) { inst.Job(id).Exec += amount }

// NextRelease returns the next release tick of id.
func (inst *Instance) NextRelease(id int) int { return inst.Job(id).NextRelease }

// SetRelease sets the next release tick of id.
func (inst *Instance) SetRelease(id, tick int) { inst.Job(id).NextRelease = tick }

// Priority returns the policy-defined priority of id.
func (inst *Instance) Priority(id int) int { return inst.Job(id).Priority }

// SetPriority sets the policy-defined priority of id.
func (inst *Instance) SetPriority(id, p int) { inst.Job(id).Priority = p }

// Utilization returns WCET / Period of id.
func (inst *Instance) Utilization(id int) float64 { return inst.Task(id).Utilization() }

// TimeToDeadline returns the ticks left before the current job's deadline.
func (inst *Instance) TimeToDeadline(id int) int {
	t := inst.Task(id)
	return inst.Job(id).NextRelease - t.Period + t.Deadline - inst.tick
}

// RemainingExec returns WCET minus completed work.
func (inst *Instance) RemainingExec(id int) float64 {
	return float64(inst.Task(id).WCET) - inst.Exec(id)
}

// Laxity returns the slack of the current job.
func (inst *Instance) Laxity(id int) float64 {
	return float64(inst.TimeToDeadline(id)) - inst.RemainingExec(id)
}

// NExec returns the index of the job of id that is current at this tick.
func (inst *Instance) NExec(id int) int {
	t := inst.Task(id)
	n := inst.tick / t.Period
	if inst.tick != 0 && inst.tick%t.Period == 0 && t.Deadline == t.Period {
		n--
	}
	return n
}

// Lag returns the fluid-schedule lag of the current job of id: what it
// should have executed since its release minus what it did.
func (inst *Instance) Lag(id int) float64 {
	t := inst.Task(id)
	start := inst.NextRelease(id) - t.Period
	return t.Utilization()*float64(inst.tick-start) - inst.Exec(id)
}

// ExecTime returns the sampled execution time of job n of id, or the WCET
// when no samples exist.
func (inst *Instance) ExecTime(id, n int) int {
	samples := inst.execTimes[id]
	if len(samples) == 0 {
		return inst.Task(id).WCET
	}
	if n < 0 {
		n = 0
	}
	return samples[n%len(samples)]
}

// AET returns the actual execution time of the current job of id.
func (inst *Instance) AET(id int) int {
	t := inst.Task(id)
	if t.IsIdle() || !inst.online {
		return t.WCET
	}
	return inst.ExecTime(id, inst.NExec(id))
}

// ExecHyperperiod returns the demand of id over one hyperperiod.
func (inst *Instance) ExecHyperperiod(id int) int {
	t := inst.Task(id)
	return t.WCET * (inst.Hyperperiod() / t.Period)
}

// TaskCPU returns the first CPU running id, or NoTask.
func (inst *Instance) TaskCPU(id int) int {
	for i, c := range inst.cpus {
		if c.Task == id {
			return i
		}
	}
	return NoTask
}

// IsTaskActive reports whether id runs on some CPU.
func (inst *Instance) IsTaskActive(id int) bool {
	return inst.TaskCPU(id) != NoTask
}

// AllCPUsActive reports whether every CPU has a task.
func (inst *Instance) AllCPUsActive() bool {
	for _, c := range inst.cpus {
		if !c.IsActive() {
			return false
		}
	}
	return true
}

// SetCPUSpeed applies a speed to processor cpu and logs the change.
func (inst *Instance) SetCPUSpeed(cpu int, speed float64) float64 {
	applied := inst.cpus[cpu].SetSpeed(speed)
	inst.emit(Event{Kind: EventCPUSpeed, Tick: inst.tick, Args: [5]int{inst.index, cpu, int(applied * 100)}})
	return applied
}

// DeadlineMisses returns the number of missed deadlines counted so far.
func (inst *Instance) DeadlineMisses() int { return inst.deadlineMisses }

// IncDeadlineMisses counts one missed deadline.
func (inst *Instance) IncDeadlineMisses() { inst.deadlineMisses++ }

// Stat returns the policy-reported statistic, -1 when unset.
func (inst *Instance) Stat() int { return inst.stat }

// SetStat records a policy-specific statistic.
func (inst *Instance) SetStat(v int) { inst.stat = v }

// LogRun records that id starts on cpu. Idle tasks are not logged.
func (inst *Instance) LogRun(cpu, id int) {
	inst.logSched(EventRun, cpu, id)
}

// LogTerminate records that id leaves cpu. Idle tasks are not logged.
func (inst *Instance) LogTerminate(cpu, id int) {
	inst.logSched(EventTerminate, cpu, id)
}

func (inst *Instance) logSched(kind EventKind, cpu, id int) {
	id, _ = ThreadOwner(id)
	if IsIdleTask(id) {
		return
	}
	inst.emit(newSchedEvent(kind, inst.index, id, inst.tick, cpu))
}

func (inst *Instance) emit(e Event) {
	if inst.sink != nil {
		inst.sink.Record(e)
	}
}

// logReleasesAndDeadlines emits the RELEASE and DEADLINE events of the
// current tick. Only the first instance of a simulation calls it since
// these events do not depend on the policy.
func (inst *Instance) logReleasesAndDeadlines() {
	for _, t := range inst.tasks {
		if t.IsIdle() {
			continue
		}
		td := inst.tick - t.Delay
		if td < 0 {
			continue
		}
		if td%t.Period == 0 {
			inst.emit(newTaskEvent(EventRelease, t.ID, inst.tick))
			if t.Period == t.Deadline && inst.tick != t.Delay {
				inst.emit(newTaskEvent(EventDeadline, t.ID, inst.tick))
			}
		}
		if (td/t.Period)*t.Period+t.Deadline == td {
			inst.emit(newTaskEvent(EventDeadline, t.ID, inst.tick))
		}
	}
}

// lateJobs reports whether some job reached its deadline unfinished. It is
// a diagnostic only; policies count misses themselves.
func (inst *Instance) lateJobs() bool {
	late := false
	for _, t := range inst.tasks {
		if t.IsIdle() {
			continue
		}
		n := inst.NExec(t.ID)
		if inst.tick != 0 && n*t.Period+t.Deadline == inst.tick {
			if inst.Exec(t.ID) < float64(inst.AET(t.ID))-0.001 {
				late = true
			}
		}
	}
	return late
}
