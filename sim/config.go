package sim

import "fmt"

// Limits enforced on a simulation configuration.
const (
	MinCPUs     = 1
	MaxCPUs     = 32
	MinJobs     = 1
	MaxJobs     = 32
	MinTicks    = 100
	DefaultCPUs = 3
)

// SimulationConfig groups the parameters of one comparison run.
// Ticks and Hyperperiods are mutually exclusive; when both are zero the
// horizon is one hyperperiod.
type SimulationConfig struct {
	Policies     []string // registry ids, each used at most once
	NCPUs        int      // processors per instance
	Jobs         int      // instances run concurrently per batch
	Ticks        int      // explicit horizon (>= MinTicks), 0 = unset
	Hyperperiods int      // horizon in hyperperiods, 0 = unset
	Online       bool     // use sampled execution times instead of WCET
	Seed         int64    // seed for sampled execution times
}

// Validate checks the configuration against the simulator limits.
func (c SimulationConfig) Validate() error {
	if c.NCPUs < MinCPUs || c.NCPUs > MaxCPUs {
		return NewError(KindNCPUs, "n-cpus must be in [%d, %d], got %d", MinCPUs, MaxCPUs, c.NCPUs)
	}
	if c.Jobs < MinJobs || c.Jobs > MaxJobs {
		return NewError(KindNJobs, "jobs must be in [%d, %d], got %d", MinJobs, MaxJobs, c.Jobs)
	}
	if c.Ticks != 0 && c.Hyperperiods != 0 {
		return NewError(KindTicksHyperperiod, "ticks=%d hyperperiods=%d", c.Ticks, c.Hyperperiods)
	}
	if c.Ticks != 0 && c.Ticks < MinTicks {
		return NewError(KindNTicks, "ticks must be >= %d, got %d", MinTicks, c.Ticks)
	}
	if c.Hyperperiods < 0 {
		return NewError(KindDefault, "hyperperiods must be > 0, got %d", c.Hyperperiods)
	}
	if len(c.Policies) == 0 {
		return NewError(KindUnknownScheduler, "at least one scheduler is required")
	}
	seen := make(map[string]bool, len(c.Policies))
	for _, id := range c.Policies {
		if seen[id] {
			return NewError(KindSchedulerNotUnique, "%q", id)
		}
		seen[id] = true
		if !IsValidPolicy(id) {
			return NewError(KindUnknownScheduler, "unknown scheduler %q (valid: %v)", id, PolicyIDs())
		}
	}
	return nil
}

// Horizon returns the number of ticks to simulate for a task set with
// hyperperiod h.
func (c SimulationConfig) Horizon(h int) int {
	if c.Ticks != 0 {
		return c.Ticks
	}
	n := c.Hyperperiods
	if n == 0 {
		n = 1
	}
	return n*h + 1
}

func (c SimulationConfig) String() string {
	return fmt.Sprintf("policies=%v cpus=%d jobs=%d ticks=%d hyperperiods=%d online=%v seed=%d",
		c.Policies, c.NCPUs, c.Jobs, c.Ticks, c.Hyperperiods, c.Online, c.Seed)
}
