package policy

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yass-sim/yass/sim"
)

const (
	// csfServerPeriod is the replenishment period of every VM server.
	csfServerPeriod = 100
	// csfProbability is the quantile used to inflate execution times in
	// the server sizing test.
	csfProbability = 0.5
)

// CSFD50 is compositional scheduling with one periodic server per VM.
// Servers are sized offline with a probabilistic demand bound, bound to
// CPUs by lowest utilization, and scheduled EDF on each CPU; the tasks of
// the running server are scheduled EDF inside its budget. A server whose
// tasks are all done before its deadline donates its remaining budget to
// the server with the earliest deadline.
type CSFD50 struct{}

type server struct {
	vm         int
	budgetInit int
	budget     int
	period     int
	exec       int
	deadline   int
}

type csfState struct {
	*sim.Queues // tasks

	servers    []*server
	serverOf   map[int]int // vm to server index
	ready      *sim.Queue  // server indices
	running    *sim.Queue
	stalled    *sim.Queue
	cpuServers [][]int
	onCPU      []int // server running on each CPU, or NoTask
}

func (s *csfState) queues() *sim.Queues { return s.Queues }

func (CSFD50) Name() string { return "CSFD-50" }

// supplyBound returns the minimum service a server with period p and budget
// b guarantees in any window of length t.
func supplyBound(p, b, t float64) float64 {
	k := math.Ceil((t - (p - b)) / p)
	if k < 1 {
		k = 1
	}
	if t >= (k+1)*p-2*b && t <= (k+1)*p-b {
		return t - (k+1)*(p-b)
	}
	return (k - 1) * b
}

// inflatedWCET is the execution time a task needs with probability prob
// when its execution time is normal with mean wcet/2 and deviation wcet/10.
func inflatedWCET(wcet int, prob float64) float64 {
	w := float64(wcet)
	sd := w / 10
	return w/2 + math.Sqrt(prob*sd*sd/(1-prob))
}

// edfSchedulable checks the demand of the tasks of vm against the supply
// of srv over one VM hyperperiod.
func edfSchedulable(inst *sim.Instance, srv *server, prob float64) bool {
	h := inst.HyperperiodVM(srv.vm)
	for t := 0; t <= h; t++ {
		demand := 0.0
		for _, task := range inst.Tasks() {
			if task.VM != srv.vm {
				continue
			}
			demand += math.Floor(float64(t)/float64(task.Period)) * inflatedWCET(task.WCET, prob)
		}
		if demand > supplyBound(float64(srv.period), float64(srv.budget), float64(t)) {
			return false
		}
	}
	return true
}

func (CSFD50) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	vms := inst.VMs()
	sort.Ints(vms)
	n := len(vms)

	s := &csfState{
		Queues:     sim.NewQueues(inst, 1),
		serverOf:   make(map[int]int, n),
		ready:      sim.NewQueue("servers ready", n),
		running:    sim.NewQueue("servers running", n),
		stalled:    sim.NewQueue("servers stalled", n),
		cpuServers: make([][]int, inst.NCPUs()),
		onCPU:      make([]int, inst.NCPUs()),
	}
	for i := range s.onCPU {
		s.onCPU[i] = sim.NoTask
	}

	for i, vm := range vms {
		srv := &server{vm: vm, period: csfServerPeriod}
		// The largest budget tried is kept when none passes.
		for b := 1; b < srv.period; b++ {
			srv.budget = b
			if edfSchedulable(inst, srv, csfProbability) {
				break
			}
		}
		srv.budgetInit = srv.budget
		s.servers = append(s.servers, srv)
		s.serverOf[vm] = i
		mustAdd(s.stalled, i)
		logrus.Debugf("%s: vm %d budget %d/%d", inst.Name(), vm, srv.budget, srv.period)
	}

	for i := n - 1; i >= 0; i-- {
		cpu := s.lowestUtilizationCPU()
		s.cpuServers[cpu] = append(s.cpuServers[cpu], i)
	}
	return s, nil
}

func mustAdd(q *sim.Queue, id int) {
	if err := q.Add(id); err != nil {
		logrus.Warnf("csf: %v", err)
	}
}

func move(id int, from, to *sim.Queue) {
	if from.Contains(id) {
		_ = from.Remove(id)
	}
	if !to.Contains(id) {
		mustAdd(to, id)
	}
}

// lowestUtilizationCPU returns the first CPU with the smallest sum of
// server budget over period.
func (s *csfState) lowestUtilizationCPU() int {
	cpu, best := -1, math.MaxFloat64
	for i, idx := range s.cpuServers {
		u := 0.0
		for _, j := range idx {
			u += float64(s.servers[j].budget) / float64(s.servers[j].period)
		}
		if u < best {
			cpu, best = i, u
		}
	}
	return cpu
}

func (s *csfState) execIncrement(inst *sim.Instance) {
	for i, c := range inst.CPUs() {
		if c.IsActive() {
			inst.ExecIncrement(c.Task, math.Trunc(c.Speed))
		}
		if s.onCPU[i] != sim.NoTask {
			s.servers[s.onCPU[i]].exec++
		}
	}
}

// checkTerminated ends completed jobs and exhausted servers. It returns the
// server whose job completed while the server keeps running, or NoTask.
func (s *csfState) checkTerminated(inst *sim.Instance) int {
	donor := sim.NoTask
	for i, c := range inst.CPUs() {
		idx := s.onCPU[i]
		id := c.Task
		if c.IsActive() && inst.Exec(id) >= float64(inst.AET(id)) {
			inst.TerminateTask(i, id, s.Queues)
			if donor == sim.NoTask {
				donor = idx
			}
		}
		if idx == sim.NoTask {
			continue
		}
		srv := s.servers[idx]
		if srv.exec >= srv.budget || inst.Tick() == srv.deadline {
			move(idx, s.running, s.stalled)
			s.onCPU[i] = sim.NoTask
			if id != sim.NoTask && s.Running.Contains(id) {
				inst.PreemptTask(i, s.Queues)
			}
			if donor == idx {
				donor = sim.NoTask
			}
		}
	}
	return donor
}

// donateSlack gives the unused budget of server idx to the other server
// with the earliest deadline when no task of its VM has work left before
// its deadline.
func (s *csfState) donateSlack(inst *sim.Instance, idx int) {
	srv := s.servers[idx]
	for _, t := range inst.Tasks() {
		if t.VM != srv.vm {
			continue
		}
		if inst.NextRelease(t.ID) < srv.deadline || s.Running.Contains(t.ID) || s.Ready.Contains(t.ID) {
			return
		}
	}
	slack := srv.budget - srv.exec
	if slack < 0 {
		return
	}
	choice, early := sim.NoTask, math.MaxInt
	for i, other := range s.servers {
		if i != idx && other.deadline < early {
			choice, early = i, other.deadline
		}
	}
	if choice == sim.NoTask {
		return
	}
	s.servers[choice].budget += slack
	srv.exec = srv.budget
}

func (s *csfState) abortMissedJobs(inst *sim.Instance) {
	for _, t := range inst.Tasks() {
		if inst.Tick()%t.Period != 0 {
			continue
		}
		id := t.ID
		cpu := inst.TaskCPU(id)
		switch {
		case inst.Exec(id) != 0:
			inst.IncDeadlineMisses()
			if cpu == sim.NoTask {
				inst.SetExec(id, 0)
				move(id, s.Ready, s.Stalled)
				continue
			}
			inst.TerminateTask(cpu, id, s.Queues)
			idx := s.serverOf[t.VM]
			move(idx, s.running, s.stalled)
			if s.onCPU[cpu] == idx {
				s.onCPU[cpu] = sim.NoTask
			}
		case !s.Stalled.Contains(id):
			if cpu != sim.NoTask {
				inst.CPU(cpu).Task = sim.NoTask
			}
			move(id, s.Ready, s.Stalled)
			move(id, s.Running, s.Stalled)
		}
	}
}

func (s *csfState) release(inst *sim.Instance) {
	tick := inst.Tick()
	for _, t := range inst.Tasks() {
		if tick%t.Period == 0 {
			move(t.ID, s.Stalled, s.Ready)
			inst.SetRelease(t.ID, tick+t.Period)
		}
	}
	for i, srv := range s.servers {
		if tick%srv.period == 0 && s.stalled.Contains(i) {
			move(i, s.stalled, s.ready)
			srv.exec = 0
			srv.deadline = tick + srv.period
			srv.budget = srv.budgetInit
		}
	}
}

func (CSFD50) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	s, ok := st.(*csfState)
	if !ok {
		return sim.NewError(sim.KindSchedule, "unexpected policy state %T", st)
	}

	s.execIncrement(inst)
	if donor := s.checkTerminated(inst); donor != sim.NoTask {
		s.donateSlack(inst, donor)
	}
	s.abortMissedJobs(inst)
	s.release(inst)

	for cpu, owned := range s.cpuServers {
		candidate, best := sim.NoTask, math.MaxInt
		for _, idx := range owned {
			ttd := s.servers[idx].deadline - inst.Tick()
			if (s.running.Contains(idx) || s.ready.Contains(idx)) && ttd < best {
				candidate, best = idx, ttd
			}
		}
		if candidate != sim.NoTask && s.onCPU[cpu] != candidate {
			if s.onCPU[cpu] != sim.NoTask {
				move(s.onCPU[cpu], s.running, s.ready)
			}
			s.onCPU[cpu] = candidate
			move(candidate, s.ready, s.running)
		}
		if candidate == sim.NoTask {
			continue
		}

		vm := s.servers[candidate].vm
		task, best := sim.NoTask, math.MaxInt
		for _, t := range inst.Tasks() {
			if t.VM != vm {
				continue
			}
			ttd := inst.TimeToDeadline(t.ID)
			if (s.Running.Contains(t.ID) || s.Ready.Contains(t.ID)) && ttd < best {
				task, best = t.ID, ttd
			}
		}
		c := inst.CPU(cpu)
		if task == sim.NoTask {
			// Tasks of a server that lost the CPU do not run on its budget.
			if c.IsActive() && inst.Task(c.Task).VM != vm {
				inst.PreemptTask(cpu, s.Queues)
			}
			continue
		}
		if c.Task != task {
			if c.IsActive() {
				inst.PreemptTask(cpu, s.Queues)
			}
			inst.RunTask(cpu, task, s.Queues)
		}
	}
	return nil
}

func (CSFD50) Close(*sim.Instance, sim.PolicyState) error { return nil }
