package trace

import (
	"sync"

	"github.com/yass-sim/yass/sim"
)

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures RUN and TERMINATE events.
	TraceLevelDecisions TraceLevel = "decisions"
	// TraceLevelAll also captures releases, deadlines and CPU events.
	TraceLevelAll TraceLevel = "all"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	TraceLevelAll:       true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects the events of a simulation. It is safe for use
// by concurrently running instances.
type SimulationTrace struct {
	Config    TraceConfig
	Decisions []DecisionRecord
	Releases  []ReleaseRecord
	CPUEvents []CPURecord

	mu sync.Mutex
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Decisions: make([]DecisionRecord, 0),
		Releases:  make([]ReleaseRecord, 0),
	}
}

// Record implements sim.EventSink.
func (st *SimulationTrace) Record(e sim.Event) {
	switch st.Config.Level {
	case TraceLevelNone, "":
		return
	}
	switch e.Kind {
	case sim.EventRun, sim.EventTerminate:
		st.RecordDecision(DecisionRecord{
			Scheduler: e.Args[0],
			Task:      e.Args[1],
			Tick:      e.Args[2],
			CPU:       e.Args[3],
			Run:       e.Kind == sim.EventRun,
		})
	case sim.EventRelease, sim.EventDeadline:
		if st.Config.Level == TraceLevelAll {
			st.RecordRelease(ReleaseRecord{Task: e.Args[0], Tick: e.Args[1], Deadline: e.Kind == sim.EventDeadline})
		}
	default:
		if st.Config.Level == TraceLevelAll {
			st.mu.Lock()
			st.CPUEvents = append(st.CPUEvents, CPURecord{
				Scheduler: e.Args[0],
				Tick:      e.Tick,
				CPU:       e.Args[1],
				Value:     e.Args[2],
				Kind:      e.Kind.String(),
			})
			st.mu.Unlock()
		}
	}
}

// RecordDecision appends a scheduling decision record.
func (st *SimulationTrace) RecordDecision(record DecisionRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Decisions = append(st.Decisions, record)
}

// RecordRelease appends a release or deadline record.
func (st *SimulationTrace) RecordRelease(record ReleaseRecord) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.Releases = append(st.Releases, record)
}
