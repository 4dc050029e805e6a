package sim

import (
	"math"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// CPU is the runtime state of one processor of an instance: the task it
// executes, its speed, and the energy and idleness counters.
type CPU struct {
	ID    int
	Task  int     // NoTask when idle
	Speed float64 // normalized speed in [0, 1]

	AverageSpeed    float64 // running average of non-zero speeds while active
	NActive         int     // ticks spent running a soft task at non-zero speed
	Consumption     float64
	SpeedUsage      []int // ticks spent at each discrete speed
	StateUsage      []int // times each sleep state was entered
	IdleTime        int   // length of the current idle interval
	IdlePeriods     int
	IdleLengths     []int
	ContextSwitches int

	spec      *CPUSpec
	histogram *treemap.Map // idle length -> occurrences

	last, lastLast int // previous and second-previous distinct task ids
}

// NewCPU creates an idle CPU running at full speed.
func NewCPU(id int, spec *CPUSpec) *CPU {
	if spec == nil {
		spec = DefaultCPUSpec()
	}
	return &CPU{
		ID:           id,
		Task:         NoTask,
		Speed:        1,
		AverageSpeed: 1,
		SpeedUsage:   make([]int, len(spec.Speeds)),
		StateUsage:   make([]int, len(spec.States)),
		spec:         spec,
		histogram:    treemap.NewWith(utils.IntComparator),
		last:         NoTask,
		lastLast:     NoTask,
	}
}

// Spec returns the processor description.
func (c *CPU) Spec() *CPUSpec {
	return c.spec
}

// IsActive reports whether a task is assigned to the CPU.
func (c *CPU) IsActive() bool {
	return c.Task != NoTask
}

// SetSpeed quantizes the requested speed to the CPU's frequency domain and
// returns the speed actually applied.
func (c *CPU) SetSpeed(requested float64) float64 {
	var speed float64
	switch {
	case requested == 0:
		speed = 0
	case requested >= 1:
		speed = 1
	case c.spec.Discrete():
		speed = c.spec.Speeds[len(c.spec.Speeds)-1].Speed
		best := math.Inf(1)
		for _, lvl := range c.spec.Speeds {
			if lvl.Speed >= requested && lvl.Speed < best {
				best = lvl.Speed
			}
		}
		if !math.IsInf(best, 1) {
			speed = best
		}
	default:
		speed = requested + 0.001
	}
	c.Speed = speed
	return speed
}

// ConsumptionIncrement charges one tick of execution of task to the CPU.
// Idle CPUs, idle tasks and hard tasks (criticality 1) cost nothing here.
func (c *CPU) ConsumptionIncrement(task *Task) {
	if c.Task == NoTask || task == nil || task.IsIdle() || task.Criticality == 1 {
		return
	}
	if c.Speed != 0 {
		c.NActive++
		c.AverageSpeed = (c.AverageSpeed*float64(c.NActive-1) + c.Speed) / float64(c.NActive)
	}
	if c.spec.Discrete() {
		for i, lvl := range c.spec.Speeds {
			if c.Speed == lvl.Speed {
				c.SpeedUsage[i]++
				c.Consumption += lvl.Consumption
			}
		}
		return
	}
	c.Consumption += c.Speed
}

// IncreaseIdlePeriods closes the current idle interval. The deepest sleep
// state whose break-even penalty fits the interval and minimizes energy is
// charged; when none beats staying awake the interval is charged at the
// current speed.
func (c *CPU) IncreaseIdlePeriods() {
	length := c.IdleTime
	c.IdleLengths = append(c.IdleLengths, length)
	count := 0
	if v, ok := c.histogram.Get(length); ok {
		count = v.(int)
	}
	c.histogram.Put(length, count+1)

	idle := float64(length)
	choice := -1
	choiceCost := math.MaxInt32 + 0.0
	for i := len(c.spec.States) - 1; i >= 0; i-- {
		st := c.spec.States[i]
		cost := (st.Penalty-st.Consumption)/2 + idle*st.Consumption
		if idle >= st.Penalty && cost < choiceCost {
			choiceCost = cost
			choice = i
		}
	}

	if choice != -1 && choiceCost < idle {
		st := c.spec.States[choice]
		c.Consumption += (st.Penalty - st.Consumption) / 2
		c.Consumption += idle * st.Consumption
		c.StateUsage[choice]++
	} else {
		// no state breaks even: the interval costs full speed
		c.Consumption += idle
	}
	c.IdlePeriods++
}

// TrackActivity updates the context switch and idle interval counters with
// the task observed on the CPU at tick.
func (c *CPU) TrackActivity(tick int) {
	id := c.Task
	idle := id == NoTask || IsIdleTask(id)
	lastIdle := c.last == NoTask || IsIdleTask(c.last)

	if !idle {
		if lastIdle {
			if id != c.lastLast {
				c.ContextSwitches++
			}
		} else if id != c.last {
			c.ContextSwitches++
		}
	}

	if tick != 0 && !idle && lastIdle {
		if c.IdleTime != 1 {
			c.IncreaseIdlePeriods()
		}
		c.IdleTime = 0
	}
	if idle {
		c.IdleTime++
	}

	if id != c.last {
		c.lastLast = c.last
	}
	c.last = id
}

// EndIdlePeriod closes an idle interval still open at the end of the run.
func (c *CPU) EndIdlePeriod() {
	idle := c.Task == NoTask || IsIdleTask(c.Task)
	if idle && c.IdleTime > 1 {
		c.IncreaseIdlePeriods()
	}
}

// IdleHistogram returns the idle interval lengths with their occurrence
// counts, in ascending length order.
func (c *CPU) IdleHistogram() []Bin {
	bins := make([]Bin, 0, c.histogram.Size())
	it := c.histogram.Iterator()
	for it.Next() {
		bins = append(bins, Bin{Key: it.Key().(int), Count: it.Value().(int)})
	}
	return bins
}
