package sim

import "math"

// GCD returns the greatest common divisor of a and b.
func GCD(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// LCM returns the least common multiple of a and b.
func LCM(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return a / GCD(a, b) * b
}

// HyperperiodOf returns the LCM of the periods of tasks.
func HyperperiodOf(tasks []Task) int {
	h := 1
	for i := range tasks {
		h = LCM(h, tasks[i].Period)
	}
	return h
}

// Hyperperiod returns the LCM of every task period, idle tasks included.
func (inst *Instance) Hyperperiod() int {
	h := 1
	for _, t := range inst.tasks {
		h = LCM(h, t.Period)
	}
	return h
}

// HyperperiodVM returns the LCM of the periods of the tasks of vm.
func (inst *Instance) HyperperiodVM(vm int) int {
	h := 1
	for _, t := range inst.tasks {
		if t.VM == vm {
			h = LCM(h, t.Period)
		}
	}
	return h
}

// VMs returns the distinct VM ids in order of first appearance.
func (inst *Instance) VMs() []int {
	var vms []int
	seen := map[int]bool{}
	for _, t := range inst.tasks {
		if !seen[t.VM] {
			seen[t.VM] = true
			vms = append(vms, t.VM)
		}
	}
	return vms
}

// TotalExec returns the demand of the whole task set over one hyperperiod.
func (inst *Instance) TotalExec() int {
	h := inst.Hyperperiod()
	total := 0
	for _, t := range inst.tasks {
		total += (h / t.Period) * t.WCET
	}
	return total
}

// GlobalUtilization returns the sum of task utilizations.
func (inst *Instance) GlobalUtilization() float64 {
	u := 0.0
	for _, t := range inst.tasks {
		u += t.Utilization()
	}
	return u
}

// OptimalTest is the exact test for optimal global policies: the demand
// over a hyperperiod fits on the CPUs.
func (inst *Instance) OptimalTest() bool {
	return inst.TotalExec() <= inst.Hyperperiod()*inst.NCPUs()
}

// RMTest is the Liu and Layland utilization bound n(2^(1/n) - 1).
func (inst *Instance) RMTest() bool {
	n := float64(inst.NTasks())
	return inst.GlobalUtilization() <= n*(math.Pow(2, 1/n)-1)
}

// DPMTest accepts task sets that fit on m CPUs but not on m-1, the
// precondition of the fair policies that keep every CPU busy.
func (inst *Instance) DPMTest() bool {
	h := inst.Hyperperiod()
	total := inst.TotalExec()
	m := inst.NCPUs()
	return total <= h*m && total > h*(m-1)
}

// NextBoundary returns the first tick after tick at which some period starts.
func (inst *Instance) NextBoundary(tick int) int {
	next := math.MaxInt
	for _, t := range inst.tasks {
		if b := (tick/t.Period + 1) * t.Period; b < next {
			next = b
		}
	}
	return next
}

// IsIntervalBoundary reports whether some period starts at the current tick.
func (inst *Instance) IsIntervalBoundary() bool {
	for _, t := range inst.tasks {
		if inst.tick%t.Period == 0 {
			return true
		}
	}
	return false
}

// EarliestRelease returns the earliest pending release among all tasks. A
// release equal to the current tick counts as tick plus itself.
func (inst *Instance) EarliestRelease() int {
	next := math.MaxInt
	for _, t := range inst.tasks {
		r := inst.NextRelease(t.ID)
		if r == inst.tick {
			r += inst.tick
		}
		if r < next {
			next = r
		}
	}
	return next
}

func (inst *Instance) freeIdleID() int {
	id := IdleTaskID
	for inst.HasTask(id) {
		id++
	}
	return id
}

// AddIdleTask adds an idle pseudo-task absorbing the spare capacity of the
// CPUs over one hyperperiod, so that the total demand equals m*H. It
// returns the new id.
func (inst *Instance) AddIdleTask() int {
	h := inst.Hyperperiod()
	return inst.AddIdleTaskWith(h*inst.NCPUs()-inst.TotalExec(), h)
}

// AddIdleTaskWith adds an idle pseudo-task with the given WCET and period
// and returns its id.
func (inst *Instance) AddIdleTaskWith(wcet, period int) int {
	id := inst.freeIdleID()
	inst.addTask(Task{
		ID:          id,
		Threads:     1,
		WCET:        wcet,
		Period:      period,
		Deadline:    period,
		Criticality: 1,
	})
	return id
}
