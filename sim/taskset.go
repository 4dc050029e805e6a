package sim

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// taskSetFile mirrors the on-disk task set layout. Pointer fields
// distinguish an absent key from an explicit zero so defaults can be applied.
type taskSetFile struct {
	Tasks []taskEntry `yaml:"tasks"`
}

type taskEntry struct {
	ID          *int      `yaml:"id"`
	VM          *int      `yaml:"vm"`
	Threads     *int      `yaml:"threads"`
	WCET        *int      `yaml:"wcet"`
	Deadline    *int      `yaml:"deadline"`
	Period      *int      `yaml:"period"`
	Delay       *int      `yaml:"delay"`
	Criticality *int      `yaml:"criticality"`
	Parallel    *int      `yaml:"parallel"`
	Segments    []Segment `yaml:"segments"`
}

// LoadTaskSet reads a task set from a JSON or YAML file.
func LoadTaskSet(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(KindDataFile, errors.Wrapf(err, "reading task set %s", path), "")
	}
	tasks, err := ParseTaskSet(data)
	if err != nil {
		return nil, errors.Wrapf(err, "task set %s", path)
	}
	return tasks, nil
}

// ParseTaskSet decodes a task set document. JSON input is accepted since it
// is a subset of YAML. Unknown keys are rejected.
func ParseTaskSet(data []byte) ([]Task, error) {
	var file taskSetFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, WrapError(KindDataFile, err, "decoding")
	}
	if len(file.Tasks) == 0 {
		return nil, NewError(KindDataFile, "tasks must be a non-empty list")
	}

	tasks := make([]Task, 0, len(file.Tasks))
	for i, e := range file.Tasks {
		t, err := e.toTask(i)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := ValidateTaskSet(tasks); err != nil {
		return nil, err
	}
	for i := range tasks {
		for _, w := range tasks[i].Warnings() {
			logrus.Warn(w)
		}
	}
	return tasks, nil
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func (e taskEntry) toTask(index int) (Task, error) {
	if e.ID == nil {
		return Task{}, NewError(KindDataFile, "task %d: id is required", index+1)
	}
	if e.Period == nil {
		return Task{}, NewError(KindDataFile, "task %d: period is required", *e.ID)
	}
	t := Task{
		ID:          *e.ID,
		VM:          intOr(e.VM, 0),
		Threads:     intOr(e.Threads, 1),
		Period:      *e.Period,
		Delay:       intOr(e.Delay, 0),
		Criticality: intOr(e.Criticality, 1),
		Parallel:    intOr(e.Parallel, 0),
		Segments:    e.Segments,
	}
	t.Deadline = intOr(e.Deadline, t.Period)
	switch {
	case e.WCET != nil:
		t.WCET = *e.WCET
	case t.IsForkJoin():
		t.WCET = t.TotalWork()
	default:
		return Task{}, NewError(KindDataFile, "task %d: wcet is required", t.ID)
	}
	return t, nil
}

// ValidateTaskSet checks the hard constraints of a task set: unique ids,
// positive periods and deadlines, and bounded fork-join shapes.
func ValidateTaskSet(tasks []Task) error {
	if len(tasks) == 0 {
		return NewError(KindDataFile, "tasks must be a non-empty list")
	}
	seen := make(map[int]bool, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if seen[t.ID] {
			return NewError(KindIDNotUnique, "task %d", t.ID)
		}
		seen[t.ID] = true
		if t.ID < 0 || t.ID >= IdleTaskID {
			return NewError(KindDataFile, "task %d: id must be in [0, %d)", t.ID, IdleTaskID)
		}
		if t.Period <= 0 {
			return NewError(KindDataFile, "task %d: period must be > 0, got %d", t.ID, t.Period)
		}
		if t.Deadline <= 0 {
			return NewError(KindDataFile, "task %d: deadline must be > 0, got %d", t.ID, t.Deadline)
		}
		if t.WCET < 0 {
			return NewError(KindDataFile, "task %d: wcet must be >= 0, got %d", t.ID, t.WCET)
		}
		if t.Threads < 1 {
			return NewError(KindDataFile, "task %d: threads must be >= 1, got %d", t.ID, t.Threads)
		}
		if t.IsForkJoin() {
			if len(t.Segments) > MaxSegments {
				return NewError(KindDataFile, "task %d: at most %d segments, got %d", t.ID, MaxSegments, len(t.Segments))
			}
			if t.Parallel < 1 || t.Parallel >= MaxThreads {
				return NewError(KindDataFile, "task %d: parallel must be in [1, %d), got %d", t.ID, MaxThreads, t.Parallel)
			}
		}
	}
	return nil
}
