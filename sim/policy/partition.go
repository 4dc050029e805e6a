package policy

import "github.com/yass-sim/yass/sim"

// partitioned is the state of the partitioned policies: the job queues and
// the task ids bound to each CPU.
type partitioned struct {
	*sim.Queues
	cpuTasks [][]int
}

func (p *partitioned) queues() *sim.Queues { return p.Queues }

// worstFit binds the ids, in order, each to the CPU with the lowest
// hyperperiod demand so far. Ties go to the lowest CPU index.
func worstFit(inst *sim.Instance, order []int) [][]int {
	cpuTasks := make([][]int, inst.NCPUs())
	load := make([]int, inst.NCPUs())
	for _, id := range order {
		cpu := 0
		for i := 1; i < len(load); i++ {
			if load[i] < load[cpu] {
				cpu = i
			}
		}
		cpuTasks[cpu] = append(cpuTasks[cpu], id)
		load[cpu] += inst.ExecHyperperiod(id)
	}
	return cpuTasks
}

// cpuDemand returns the hyperperiod demand of the ids bound to one CPU.
func cpuDemand(inst *sim.Instance, ids []int) int {
	e := 0
	for _, id := range ids {
		e += inst.ExecHyperperiod(id)
	}
	return e
}

// dispatchPartitions runs, on each CPU, the earliest-deadline released job
// among the tasks bound to it.
func dispatchPartitions(inst *sim.Instance, p *partitioned) {
	for cpu, ids := range p.cpuTasks {
		candidate, best := sim.NoTask, 0
		for _, id := range ids {
			if !p.Running.Contains(id) && !p.Ready.Contains(id) {
				continue
			}
			if ttd := inst.TimeToDeadline(id); candidate == sim.NoTask || ttd < best {
				candidate, best = id, ttd
			}
		}
		if candidate == sim.NoTask || inst.CPU(cpu).Task == candidate {
			continue
		}
		if inst.CPU(cpu).IsActive() {
			inst.PreemptTask(cpu, p.Queues)
		}
		inst.RunTask(cpu, candidate, p.Queues)
	}
}
