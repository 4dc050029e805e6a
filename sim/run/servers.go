package run

import (
	"math"

	"github.com/yass-sim/yass/sim"
)

// MaxLevel bounds the height of the server tree.
const MaxLevel = 20

type serverKind int

const (
	// edfServer is scheduled EDF among the children of its parent.
	edfServer serverKind = iota
	// dualServer runs exactly when its dual is idle.
	dualServer
	// rootServer runs whenever it has budget.
	rootServer
)

func (k serverKind) String() string {
	switch k {
	case dualServer:
		return "dual"
	case rootServer:
		return "root"
	}
	return "edf"
}

type server struct {
	id       int
	u        float64
	deadline int
	exec     float64
	wcet     float64
	taskID   int // task of a leaf server, NoTask above level 0
	active   bool
	level    int
	kind     serverKind
	tasks    []int // tasks whose releases define the server deadlines
	children []*server
	next     *server
}

func newServer(id, level int) *server {
	return &server{id: id, taskID: sim.NoTask, level: level}
}

func (s *server) ready() bool {
	return s.exec < s.wcet-0.001
}

// adopt makes child a child of s.
func (s *server) adopt(child *server) {
	s.tasks = append(s.tasks, child.tasks...)
	s.children = append(s.children, child)
	child.next = s
}

func (s *server) minPeriod(inst *sim.Instance) int {
	m := math.MaxInt
	for _, id := range s.tasks {
		m = min(m, inst.Task(id).Period)
	}
	return m
}

// nextDeadline returns the earliest next release among the tasks of s, or
// NoTask when that release is not in the future.
func (s *server) nextDeadline(inst *sim.Instance) int {
	m := math.MaxInt
	for _, id := range s.tasks {
		m = min(m, inst.NextRelease(id))
	}
	if m <= inst.Tick() {
		return sim.NoTask
	}
	return m
}

// tree is the reduction tree: levels[0] holds one leaf server per task and
// the last level holds the root servers.
type tree struct {
	levels [][]*server
}

func newTree(inst *sim.Instance) *tree {
	t := &tree{}
	leaves := make([]*server, 0, inst.NTasks())
	for _, id := range inst.TaskIDs() {
		leaves = append(leaves, newLeaf(id, inst.Utilization(id)))
	}
	t.levels = append(t.levels, leaves)
	return t
}

func newLeaf(id int, u float64) *server {
	s := newServer(id, 0)
	s.u = u
	s.taskID = id
	s.tasks = []int{id}
	return s
}

func (t *tree) level(l int) []*server {
	if l >= len(t.levels) {
		return nil
	}
	return t.levels[l]
}

func (t *tree) ensureLevel(l int) {
	for len(t.levels) <= l {
		t.levels = append(t.levels, nil)
	}
}

func (t *tree) each(fn func(*server)) {
	for _, lvl := range t.levels {
		for _, s := range lvl {
			fn(s)
		}
	}
}

// unit reports whether every server of level l has utilization 1.
func (t *tree) unit(l int) bool {
	if l == 0 {
		return false
	}
	for _, s := range t.level(l) {
		if s.u < 1-0.0001 {
			return false
		}
	}
	return true
}

// pack places the servers of level l first-fit into level l+1 servers of
// utilization at most one.
func (t *tree) pack(l int) {
	t.ensureLevel(l + 1)
	for _, s := range t.levels[l] {
		n := 0
		for n < len(t.levels[l+1]) && t.levels[l+1][n].u+s.u > 1+0.000001 {
			n++
		}
		if n == len(t.levels[l+1]) {
			t.levels[l+1] = append(t.levels[l+1], newServer((l+1)*100+n, l+1))
		}
		next := t.levels[l+1][n]
		next.u += s.u
		next.kind = dualServer
		next.adopt(s)
	}
}

// dual gives every server of level l a parent with the complementary
// utilization.
func (t *tree) dual(l int) {
	t.ensureLevel(l + 1)
	for i, s := range t.levels[l] {
		next := newServer((l+1)*100+i, l+1)
		next.u = 1 - s.u
		next.kind = edfServer
		next.adopt(s)
		t.levels[l+1] = append(t.levels[l+1], next)
	}
}

// canAddIdleTask reports whether an idle task can complete next to a unit
// server without the demand exceeding the CPUs over the hyperperiod. A nil
// next asks whether any spare capacity is left at all.
func (t *tree) canAddIdleTask(inst *sim.Instance, next *server) bool {
	h := 1
	for _, s := range t.levels[0] {
		if s.next == next {
			h = sim.LCM(h, inst.Task(s.taskID).Period)
		}
	}

	hT := inst.Hyperperiod()
	exec, execT := 0, 0
	for _, s := range t.levels[0] {
		task := inst.Task(s.taskID)
		if s.next == next {
			exec += task.WCET * (h / task.Period)
		}
		execT += task.WCET * (hT / task.Period)
	}

	if next != nil {
		needed := (h - exec) * (hT / h)
		return needed > 0 && execT+needed <= hT*inst.NCPUs()
	}
	return hT*inst.NCPUs()-execT > 0
}

// addIdleTask adds an idle task of utilization u as a new leaf, child of
// next when next is not nil.
func (t *tree) addIdleTask(inst *sim.Instance, u float64, next *server) (*server, error) {
	if u < 0 || u > 1 {
		return nil, sim.NewError(sim.KindNotSchedulable, "idle utilization %.4f", u)
	}
	h := inst.Hyperperiod()
	wcet := int(math.Round(u * float64(h)))
	if wcet <= 0 {
		return nil, sim.NewError(sim.KindNotSchedulable, "idle task of utilization %.4f rounds to nothing", u)
	}
	id := inst.AddIdleTaskWith(wcet, h)

	leaf := newLeaf(id, u)
	t.levels[0] = append(t.levels[0], leaf)
	if next != nil {
		next.u = 1
		next.adopt(leaf)
	}
	return leaf, nil
}

// addIdleTasks completes the first-level servers to unit utilization with
// idle tasks, then hands the capacity still left to one more idle task.
func (t *tree) addIdleTasks(inst *sim.Instance) error {
	for _, s := range t.level(1) {
		if !t.canAddIdleTask(inst, s) {
			continue
		}
		if _, err := t.addIdleTask(inst, 1-s.u, s); err != nil {
			return err
		}
	}

	rem := float64(inst.NCPUs()) - inst.GlobalUtilization()
	if !t.canAddIdleTask(inst, nil) {
		return nil
	}
	leaf, err := t.addIdleTask(inst, rem, nil)
	if err != nil {
		return err
	}
	for _, s := range t.level(1) {
		if s.u < 1 && s.u+rem <= 1 {
			s.u += rem
			s.adopt(leaf)
			return nil
		}
	}
	return sim.NewError(sim.KindNotSchedulable, "no server can hold idle utilization %.4f", rem)
}

// reduce alternates PACK and DUAL until a level of unit servers is reached
// and marks that level as roots.
func (t *tree) reduce(inst *sim.Instance) error {
	level := 0
	for {
		t.pack(level)
		level++
		if level == 1 {
			if err := t.addIdleTasks(inst); err != nil {
				return err
			}
		}
		if t.unit(level) {
			break
		}

		t.dual(level)
		level++
		if level >= MaxLevel-2 || t.unit(level) {
			break
		}
	}
	if level >= MaxLevel-2 {
		return sim.NewError(sim.KindNotSchedulable, "reduction did not converge within %d levels", MaxLevel-2)
	}
	for _, s := range t.levels[level] {
		s.kind = rootServer
	}
	return nil
}

// sortLevel orders level l by ready servers first, then by deadline and
// smallest task period. It is a selection sort whose period tie-break
// compares against the first server of each pass.
func (t *tree) sortLevel(inst *sim.Instance, l int) {
	lvl := t.levels[l]
	for i := range lvl {
		s1 := lvl[i]
		min1 := s1.minPeriod(inst)
		p1 := s1.deadline
		if !s1.ready() {
			p1 = math.MaxInt
		}
		sub := -1
		for j := i + 1; j < len(lvl); j++ {
			s2 := lvl[j]
			if !s2.ready() {
				continue
			}
			min2 := s2.minPeriod(inst)
			p2 := s2.deadline
			if p2 < p1 || (p2 == p1 && min2 < min1) {
				sub = j
				p1 = p2
			}
		}
		if sub != -1 {
			lvl[i], lvl[sub] = lvl[sub], lvl[i]
		}
	}
}
