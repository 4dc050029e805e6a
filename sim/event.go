package sim

import (
	"bufio"
	"fmt"
	"io"
	"sync"
)

// EventKind identifies a scheduling event. The numeric values are part of
// the event log format.
type EventKind int

const (
	EventRelease EventKind = iota
	EventDeadline
	EventRun
	EventTerminate
	EventCPUSpeed
	EventCPUMode
	EventCPUConsumption
)

func (k EventKind) String() string {
	switch k {
	case EventRelease:
		return "RELEASE"
	case EventDeadline:
		return "DEADLINE"
	case EventRun:
		return "RUN"
	case EventTerminate:
		return "TERMINATE"
	case EventCPUSpeed:
		return "SPEED"
	case EventCPUMode:
		return "MODE"
	case EventCPUConsumption:
		return "CONSUMPTION"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one log record. Args holds the five integer arguments of the
// log line:
//
//	RELEASE, DEADLINE:  task, tick, 0, 0, 0
//	RUN, TERMINATE:     sched, task, tick, cpu, 0
//	CPU_SPEED:          sched, cpu, speed*100, 0, 0
type Event struct {
	Kind EventKind
	Tick int
	Args [5]int
}

func newTaskEvent(kind EventKind, task, tick int) Event {
	return Event{Kind: kind, Tick: tick, Args: [5]int{task, tick}}
}

func newSchedEvent(kind EventKind, sched, task, tick, cpu int) Event {
	return Event{Kind: kind, Tick: tick, Args: [5]int{sched, task, tick, cpu}}
}

// Task returns the task id carried by the event, or NoTask for CPU events.
func (e Event) Task() int {
	switch e.Kind {
	case EventRelease, EventDeadline:
		return e.Args[0]
	case EventRun, EventTerminate:
		return e.Args[1]
	}
	return NoTask
}

// LogLine renders the machine-readable log line.
func (e Event) LogLine() string {
	return fmt.Sprintf("%d %d %d %d %d %d", int(e.Kind), e.Args[0], e.Args[1], e.Args[2], e.Args[3], e.Args[4])
}

// String renders the human-readable form printed in verbose mode.
func (e Event) String() string {
	switch e.Kind {
	case EventRelease, EventDeadline:
		return fmt.Sprintf("%d %s task %d", e.Tick, e.Kind, e.Args[0])
	case EventRun, EventTerminate:
		return fmt.Sprintf("%d %s sched %d task %d cpu %d", e.Tick, e.Kind, e.Args[0], e.Args[1], e.Args[3])
	case EventCPUSpeed:
		return fmt.Sprintf("%d SPEED sched %d cpu %d speed %d", e.Tick, e.Args[0], e.Args[1], e.Args[2])
	case EventCPUMode:
		return fmt.Sprintf("%d MODE sched %d cpu %d mode %d", e.Tick, e.Args[0], e.Args[1], e.Args[2])
	}
	return fmt.Sprintf("%d %s %v", e.Tick, e.Kind, e.Args)
}

// EventSink receives the events of every instance of a simulation.
// Implementations must be safe for concurrent use.
type EventSink interface {
	Record(e Event)
}

// LogWriter writes the machine-readable event log. A single LogWriter is
// shared by all instances; writes are serialized.
type LogWriter struct {
	mu  sync.Mutex
	w   *bufio.Writer
	err error
}

// NewLogWriter wraps w.
func NewLogWriter(w io.Writer) *LogWriter {
	return &LogWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the "n_tasks n_cpus n_ticks n_schedulers" line.
func (l *LogWriter) WriteHeader(nTasks, nCPUs, nTicks, nSchedulers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(fmt.Sprintf("%d %d %d %d", nTasks, nCPUs, nTicks, nSchedulers))
}

// Record appends one event line.
func (l *LogWriter) Record(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(e.LogLine())
}

func (l *LogWriter) write(line string) {
	if l.err != nil {
		return
	}
	if _, err := l.w.WriteString(line + "\n"); err != nil {
		l.err = err
	}
}

// Flush writes buffered lines and reports the first write error, if any.
func (l *LogWriter) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	return l.w.Flush()
}

// VerbosePrinter prints the human-readable form of every event.
type VerbosePrinter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewVerbosePrinter wraps w.
func NewVerbosePrinter(w io.Writer) *VerbosePrinter {
	return &VerbosePrinter{w: w}
}

// Record prints e.
func (p *VerbosePrinter) Record(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, e.String())
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

// Record forwards e to every sink.
func (m MultiSink) Record(e Event) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}
