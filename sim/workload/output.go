package workload

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yass-sim/yass/sim"
)

type taskSetDoc struct {
	Tasks []taskDoc `yaml:"tasks"`
}

type taskDoc struct {
	ID          int `yaml:"id"`
	VM          int `yaml:"vm"`
	WCET        int `yaml:"wcet"`
	Period      int `yaml:"period"`
	Deadline    int `yaml:"deadline,omitempty"`
	Delay       int `yaml:"delay,omitempty"`
	Threads     int `yaml:"threads,omitempty"`
	Criticality int `yaml:"criticality"`
}

// WriteTaskSet encodes tasks in the task set file format read by
// sim.ParseTaskSet. Deadlines equal to the period are omitted.
func WriteTaskSet(w io.Writer, tasks []sim.Task) error {
	doc := taskSetDoc{Tasks: make([]taskDoc, 0, len(tasks))}
	for _, t := range tasks {
		d := taskDoc{
			ID:          t.ID,
			VM:          t.VM,
			WCET:        t.WCET,
			Period:      t.Period,
			Delay:       t.Delay,
			Criticality: t.Criticality,
		}
		if t.Deadline != t.Period {
			d.Deadline = t.Deadline
		}
		if t.Threads > 1 {
			d.Threads = t.Threads
		}
		doc.Tasks = append(doc.Tasks, d)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding task set: %w", err)
	}
	return enc.Close()
}

// SaveTaskSet writes tasks to path, creating or truncating it.
func SaveTaskSet(path string, tasks []sim.Task) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteTaskSet(f, tasks); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
