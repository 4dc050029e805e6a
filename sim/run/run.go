// Package run implements RUN (Reduction to UNiprocessor): tasks are packed
// into servers whose duals are packed again until unit servers remain, and
// the server tree decides at every job boundary which tasks run.
package run

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yass-sim/yass/sim"
)

const (
	epsilon = 0.0001
	// maxSteps bounds the execution slices of one tick.
	maxSteps = 10000
)

// RUN is the RUN multiprocessor policy.
type RUN struct{}

// State is the private state of a RUN instance.
type State struct {
	*sim.Queues
	tree *tree

	// changes counts activation flips of the last activity update.
	changes    int
	maxChanges int
}

// Depth returns the number of levels of the server tree.
func (s *State) Depth() int { return len(s.tree.levels) }

// Roots returns the utilizations of the root servers.
func (s *State) Roots() []float64 {
	var us []float64
	for _, srv := range s.tree.levels[len(s.tree.levels)-1] {
		us = append(us, srv.u)
	}
	return us
}

// MaxActivityChanges returns the largest number of servers that changed
// activation in a single update so far.
func (s *State) MaxActivityChanges() int { return s.maxChanges }

func (RUN) Name() string { return "RUN" }

func (RUN) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	if !inst.DPMTest() {
		return nil, sim.NewError(sim.KindNotSchedulable, "utilization %.3f on %d cpus", inst.GlobalUtilization(), inst.NCPUs())
	}
	t := newTree(inst)
	if err := t.reduce(inst); err != nil {
		return nil, err
	}
	logrus.Debugf("%s: %d levels, %d leaves", inst.Name(), len(t.levels), len(t.levels[0]))
	return &State{Queues: sim.NewQueues(inst, 1), tree: t}, nil
}

func notSchedulable(inst *sim.Instance, format string, args ...any) error {
	return sim.NewError(sim.KindNotSchedulable, "%s at tick %d", fmt.Sprintf(format, args...), inst.Tick())
}

// overrun reports whether some server can no longer finish its budget
// before its deadline.
func (s *State) overrun(now float64) bool {
	late := false
	s.tree.each(func(srv *server) {
		if now+srv.wcet-srv.exec > float64(srv.deadline)+0.001 {
			late = true
		}
	})
	return late
}

// terminateExhausted deactivates the servers that used their budget and
// ends the jobs of their tasks that completed.
func (s *State) terminateExhausted(inst *sim.Instance) bool {
	changed := false
	s.tree.each(func(srv *server) {
		if !srv.active || srv.ready() {
			return
		}
		srv.active = false
		changed = true
		for _, id := range srv.tasks {
			cpu := inst.TaskCPU(id)
			if cpu == sim.NoTask {
				continue
			}
			if inst.Exec(id) >= float64(inst.Task(id).WCET)-0.001 {
				inst.TerminateTask(cpu, id, s.Queues)
			}
		}
	})
	return changed
}

// release makes the jobs of this tick ready. It reports whether a job was
// released or a server reached its deadline, and fails when a job is still
// pending at its period boundary.
func (s *State) release(inst *sim.Instance) (bool, error) {
	tick := inst.Tick()
	boundary := false
	for _, t := range inst.Tasks() {
		if tick%t.Period != 0 {
			continue
		}
		if !s.Stalled.Contains(t.ID) {
			return false, notSchedulable(inst, "task %d pending at its period boundary", t.ID)
		}
		s.Move(t.ID, s.Stalled, s.Ready)
		inst.SetRelease(t.ID, tick+t.Period)
		boundary = true
	}
	s.tree.each(func(srv *server) {
		if srv.deadline == tick {
			boundary = true
		}
	})
	return boundary, nil
}

// refreshBudgets starts a new budget for every server whose deadline is
// the current tick.
func (s *State) refreshBudgets(inst *sim.Instance) error {
	tick := inst.Tick()
	var err error
	s.tree.each(func(srv *server) {
		if err != nil || srv.deadline != tick {
			return
		}
		d := srv.nextDeadline(inst)
		switch {
		case d == sim.NoTask:
			err = notSchedulable(inst, "server %d has no future deadline", srv.id)
		case srv.exec <= srv.wcet-epsilon || srv.exec >= srv.wcet+epsilon:
			err = notSchedulable(inst, "server %d executed %.4f of %.4f", srv.id, srv.exec, srv.wcet)
		default:
			srv.exec = 0
			srv.deadline = d
			srv.wcet = srv.u * float64(d-tick)
			if float64(srv.deadline) < float64(tick)+srv.wcet-0.001 {
				err = notSchedulable(inst, "server %d budget exceeds its window", srv.id)
			}
		}
	})
	return err
}

func (s *State) setActive(srv *server, edf map[*server]bool) error {
	switch srv.kind {
	case rootServer:
		srv.active = srv.ready()
	case dualServer:
		srv.active = !srv.next.active && srv.ready()
		if !srv.next.active && !srv.active {
			return sim.NewError(sim.KindNotSchedulable, "server %d and its dual are both idle", srv.id)
		}
	case edfServer:
		if srv.next.active && !edf[srv.next] && srv.ready() {
			edf[srv.next] = true
			srv.active = true
		}
	}
	return nil
}

// updateActive recomputes the activation flags from the roots down.
func (s *State) updateActive(inst *sim.Instance) error {
	top := len(s.tree.levels) - 1
	if top >= MaxLevel-1 || top <= 0 {
		return notSchedulable(inst, "invalid root level %d", top)
	}

	before := make(map[*server]bool)
	s.tree.each(func(srv *server) { before[srv] = srv.active })

	s.tree.sortLevel(inst, top)
	edf := make(map[*server]bool)
	for l := top; l >= 0; l-- {
		s.tree.sortLevel(inst, l)
		for _, srv := range s.tree.levels[l] {
			srv.active = false
			if srv.ready() {
				if err := s.setActive(srv, edf); err != nil {
					return err
				}
			}
		}
		for _, srv := range s.tree.levels[l] {
			if srv.kind == edfServer && srv.next.active && !edf[srv.next] {
				return notSchedulable(inst, "server %d has no active child", srv.next.id)
			}
		}
	}

	s.changes = 0
	s.tree.each(func(srv *server) {
		if before[srv] != srv.active {
			s.changes++
		}
	})
	s.maxChanges = max(s.maxChanges, s.changes)
	return nil
}

// activeTasks returns the tasks of the active leaves that still have work.
func (s *State) activeTasks() *sim.Queue {
	candidate := sim.NewQueue("candidate", 0)
	for _, srv := range s.tree.levels[0] {
		if srv.active && !s.Stalled.Contains(srv.taskID) {
			_ = candidate.Add(srv.taskID)
		}
	}
	return candidate
}

func (s *State) minBudget() float64 {
	m := math.Inf(1)
	s.tree.each(func(srv *server) {
		if srv.active && srv.wcet-srv.exec < m {
			m = srv.wcet - srv.exec
		}
	})
	return m
}

// execute runs every CPU and every active server for inc.
func (s *State) execute(inst *sim.Instance, inc float64) error {
	for _, c := range inst.CPUs() {
		if !c.IsActive() {
			return notSchedulable(inst, "idle cpu %d", c.ID)
		}
		inst.ExecIncrement(c.Task, inc)
	}
	leaves := 0.0
	s.tree.each(func(srv *server) {
		if srv.active {
			srv.exec += inc
			if srv.level == 0 {
				leaves += inc
			}
		}
	})
	if d := leaves - inc*float64(inst.NCPUs()); d > epsilon || d < -epsilon {
		return notSchedulable(inst, "leaf servers executed %.4f instead of %.4f", leaves, inc*float64(inst.NCPUs()))
	}
	return nil
}

func (RUN) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	s, ok := st.(*State)
	if !ok {
		return sim.NewError(sim.KindSchedule, "unexpected policy state %T", st)
	}

	time := 0.0
	for step := 0; time < 1-epsilon; step++ {
		if step == maxSteps {
			return notSchedulable(inst, "no progress after %d slices", maxSteps)
		}
		if time > 0 {
			inst.UpdateIdle()
		}
		if s.overrun(float64(inst.Tick()) + time) {
			return notSchedulable(inst, "server overrun")
		}
		if s.terminateExhausted(inst) {
			if err := s.updateActive(inst); err != nil {
				return err
			}
		}
		if time == 0 {
			boundary, err := s.release(inst)
			if err != nil {
				return err
			}
			if boundary {
				if err := s.refreshBudgets(inst); err != nil {
					return err
				}
				if err := s.updateActive(inst); err != nil {
					return err
				}
			}
		}

		candidate := s.activeTasks()
		if candidate.Len() != inst.NCPUs() {
			return notSchedulable(inst, "%d runnable tasks for %d cpus", candidate.Len(), inst.NCPUs())
		}
		if left := inst.AssignCandidates(candidate, s.Queues); left != 0 || s.Running.Len() != inst.NCPUs() {
			return notSchedulable(inst, "%d tasks without a cpu", left)
		}

		inc := s.minBudget()
		if time+inc > 1-epsilon {
			inc = 1 - time
		}
		if err := s.execute(inst, inc); err != nil {
			return err
		}
		time += inc
	}
	if time > 1+epsilon || time < 1-epsilon {
		return notSchedulable(inst, "tick advanced by %.4f", time)
	}
	return nil
}

func (RUN) Close(*sim.Instance, sim.PolicyState) error { return nil }
