package sim

import (
	"sync"
	"testing"
)

// periodic builds a hard implicit-deadline task.
func periodic(id, wcet, period int) Task {
	return Task{ID: id, Threads: 1, WCET: wcet, Period: period, Deadline: period, Criticality: 1}
}

// newTestInstance builds an instance without a policy.
func newTestInstance(t *testing.T, nCPUs int, tasks ...Task) *Instance {
	t.Helper()
	if err := ValidateTaskSet(tasks); err != nil {
		t.Fatalf("invalid task set: %v", err)
	}
	return NewInstance(0, nil, tasks, nCPUs, nil, nil)
}

// recorder is an EventSink keeping every event in order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofKind(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
