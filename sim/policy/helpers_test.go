package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yass-sim/yass/sim"
	"github.com/yass-sim/yass/sim/trace"
)

// occupancy wraps a policy and counts, after every Schedule call, the CPUs
// left without a real task.
type occupancy struct {
	sim.Policy
}

type occupancyState struct {
	inner     sim.PolicyState
	idleTicks int
}

func (o occupancy) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	st, err := o.Policy.Offline(inst)
	if err != nil {
		return nil, err
	}
	return &occupancyState{inner: st}, nil
}

func (o occupancy) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	occ := st.(*occupancyState)
	if err := o.Policy.Schedule(inst, occ.inner); err != nil {
		return err
	}
	for _, c := range inst.CPUs() {
		if !c.IsActive() || sim.IsIdleTask(c.Task) {
			occ.idleTicks++
		}
	}
	return nil
}

func (o occupancy) Close(inst *sim.Instance, st sim.PolicyState) error {
	return o.Policy.Close(inst, st.(*occupancyState).inner)
}

// occupancyID is the registry id of the occupancy wrapper around id.
func occupancyID(id string) string { return "occupancy-" + id }

func init() {
	for _, id := range []string{"pf", "bf", "uedf"} {
		sim.RegisterPolicy(occupancyID(id), func() sim.Policy {
			p, err := sim.NewPolicy(id)
			if err != nil {
				panic(err)
			}
			return occupancy{Policy: p}
		})
	}
}

// idleCPUTicks simulates policy for the given hyperperiods and returns the
// result with the number of CPU-ticks that ran no real task.
func idleCPUTicks(t *testing.T, policy string, nCPUs, hyperperiods int, tasks ...sim.Task) (sim.InstanceResult, int) {
	t.Helper()
	cfg := sim.SimulationConfig{Policies: []string{occupancyID(policy)}, NCPUs: nCPUs, Jobs: 1, Hyperperiods: hyperperiods}
	s, err := sim.NewSimulation(cfg, tasks, nil)
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Instances, 1)
	st, ok := s.Instances()[0].State().(*occupancyState)
	require.True(t, ok)
	return res.Instances[0], st.idleTicks
}

func periodic(id, wcet, period int) sim.Task {
	return sim.Task{ID: id, Threads: 1, WCET: wcet, Period: period, Deadline: period, Criticality: 1}
}

// simulate runs one policy for the given number of hyperperiods and returns
// its result with the decision trace.
func simulate(t *testing.T, policy string, nCPUs, hyperperiods int, tasks ...sim.Task) (sim.InstanceResult, *trace.SimulationTrace) {
	t.Helper()
	cfg := sim.SimulationConfig{Policies: []string{policy}, NCPUs: nCPUs, Jobs: 1, Hyperperiods: hyperperiods}
	s, err := sim.NewSimulation(cfg, tasks, nil)
	require.NoError(t, err)
	tr := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
	s.SetEventSink(tr)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Instances, 1)
	return res.Instances[0], tr
}

// decision is a compact form of a trace record for comparisons.
type decision struct {
	run  bool
	task int
	tick int
	cpu  int
}

func decisions(tr *trace.SimulationTrace) []decision {
	out := make([]decision, 0, len(tr.Decisions))
	for _, d := range tr.Decisions {
		out = append(out, decision{d.Run, d.Task, d.Tick, d.CPU})
	}
	return out
}
