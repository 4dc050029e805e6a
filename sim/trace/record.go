// Package trace records the scheduling decisions of a simulation for later
// analysis. Records are plain data; SimulationTrace receives them as a
// sim.EventSink.
package trace

// DecisionRecord captures a task starting or leaving a CPU.
type DecisionRecord struct {
	Scheduler int // instance index
	Task      int
	Tick      int
	CPU       int
	Run       bool // false for a terminate or preempt
}

// ReleaseRecord captures a job release or a deadline.
type ReleaseRecord struct {
	Task     int
	Tick     int
	Deadline bool
}

// CPURecord captures a processor state change.
type CPURecord struct {
	Scheduler int
	Tick      int
	CPU       int
	Value     int // speed x 100, sleep state, or consumption
	Kind      string
}
