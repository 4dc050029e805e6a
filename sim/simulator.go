package sim

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Simulation runs several policies against the same task set and CPU
// description, one Instance per policy.
type Simulation struct {
	Config      SimulationConfig
	Tasks       []Task
	CPUSpec     *CPUSpec
	Hyperperiod int
	Horizon     int

	instances []*Instance
	execTimes map[int][]int
	sink      EventSink
}

// NewSimulation validates the configuration and builds one instance per
// policy. A nil spec selects DefaultCPUSpec.
func NewSimulation(cfg SimulationConfig, tasks []Task, spec *CPUSpec) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateTaskSet(tasks); err != nil {
		return nil, err
	}
	if spec == nil {
		spec = DefaultCPUSpec()
	}

	s := &Simulation{
		Config:      cfg,
		Tasks:       tasks,
		CPUSpec:     spec,
		Hyperperiod: HyperperiodOf(tasks),
	}
	s.Horizon = cfg.Horizon(s.Hyperperiod)
	if s.Horizon < MinTicks {
		logrus.Warnf("horizon of %d ticks is below %d", s.Horizon, MinTicks)
	}

	if cfg.Online {
		s.execTimes = GenerateExecTimes(NewPartitionedRNG(NewSimulationKey(cfg.Seed)), tasks)
	}

	for i, id := range cfg.Policies {
		p, err := NewPolicy(id)
		if err != nil {
			return nil, err
		}
		inst := NewInstance(i, p, tasks, cfg.NCPUs, spec, s.execTimes)
		inst.SetOnline(cfg.Online)
		s.instances = append(s.instances, inst)
	}
	return s, nil
}

// SetEventSink attaches a sink shared by every instance.
func (s *Simulation) SetEventSink(sink EventSink) {
	s.sink = sink
	for _, inst := range s.instances {
		inst.SetEventSink(sink)
	}
}

// Instances returns the instances in policy order.
func (s *Simulation) Instances() []*Instance {
	return s.instances
}

// Header returns the values of the event log header line.
func (s *Simulation) Header() (nTasks, nCPUs, nTicks, nSchedulers int) {
	return len(s.Tasks), s.Config.NCPUs, s.Horizon, len(s.instances)
}

// Run simulates every instance for the configured horizon. Instances run in
// batches of at most Config.Jobs goroutines; a batch completes before the
// next one starts. A failing instance stops at the failing tick and keeps
// its error in the result while the others continue. The returned error is
// non-nil only when ctx is cancelled.
func (s *Simulation) Run(ctx context.Context) (*Result, error) {
	errs := make([]error, len(s.instances))
	jobs := s.Config.Jobs
	if jobs < 1 {
		jobs = 1
	}

	for start := 0; start < len(s.instances); start += jobs {
		end := min(start+jobs, len(s.instances))
		var g errgroup.Group
		g.SetLimit(jobs)
		for i := start; i < end; i++ {
			inst := s.instances[i]
			g.Go(func() error {
				logrus.Debugf("RUN: %s", inst.Name())
				errs[i] = runInstance(ctx, inst, s.Horizon)
				if errs[i] != nil {
					logrus.Infof("instance %d (%s) failed at tick %d: %v", inst.Index(), inst.Name(), inst.Tick(), errs[i])
				}
				return ctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	return s.collect(errs), nil
}

func runInstance(ctx context.Context, inst *Instance, horizon int) error {
	st, err := inst.policy.Offline(inst)
	if err != nil {
		return fmt.Errorf("%s: offline: %w", inst.Name(), err)
	}
	inst.state = st

	for j := 0; j < horizon; j++ {
		if err := ctx.Err(); err != nil {
			_ = inst.policy.Close(inst, st)
			return err
		}
		if inst.index == 0 {
			inst.logReleasesAndDeadlines()
		}
		if inst.lateJobs() {
			logrus.Debugf("%s: late job at tick %d", inst.Name(), inst.tick)
		}
		if err := inst.policy.Schedule(inst, st); err != nil {
			_ = inst.policy.Close(inst, st)
			return fmt.Errorf("%s: tick %d: %w", inst.Name(), inst.tick, err)
		}
		inst.chargeConsumption()
		inst.UpdateIdle()
		inst.tick++
	}

	inst.EndIdlePeriods()
	if err := inst.policy.Close(inst, st); err != nil {
		return fmt.Errorf("%s: close: %w", inst.Name(), err)
	}
	return nil
}

func (inst *Instance) chargeConsumption() {
	for _, c := range inst.cpus {
		if c.Task == NoTask {
			continue
		}
		owner, _ := ThreadOwner(c.Task)
		c.ConsumptionIncrement(inst.byID[owner])
	}
}

// UpdateIdle records context switches and idle intervals for every CPU.
// Policies with sub-tick execution call it between slices.
func (inst *Instance) UpdateIdle() {
	for _, c := range inst.cpus {
		c.TrackActivity(inst.tick)
	}
}

// EndIdlePeriods closes the idle intervals still open on every CPU.
func (inst *Instance) EndIdlePeriods() {
	for _, c := range inst.cpus {
		c.EndIdlePeriod()
	}
}
