package run

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yass-sim/yass/sim"
	"github.com/yass-sim/yass/sim/trace"
)

func periodic(id, wcet, period int) sim.Task {
	return sim.Task{ID: id, Threads: 1, WCET: wcet, Period: period, Deadline: period, Criticality: 1}
}

func offline(t *testing.T, nCPUs int, tasks ...sim.Task) (*sim.Instance, *State) {
	t.Helper()
	inst := sim.NewInstance(0, RUN{}, tasks, nCPUs, nil, nil)
	st, err := RUN{}.Offline(inst)
	require.NoError(t, err)
	return inst, st.(*State)
}

func TestReduction_PackOnly(t *testing.T) {
	// GIVEN three tasks of utilization 1/2 on two CPUs
	inst, st := offline(t, 2, periodic(1, 2, 4), periodic(2, 2, 4), periodic(3, 2, 4))

	// THEN one idle task completes the second server and both are roots
	assert.Equal(t, 2, st.Depth())
	require.Len(t, st.Roots(), 2)
	for _, u := range st.Roots() {
		assert.InDelta(t, 1.0, u, 1e-6)
	}
	assert.Equal(t, 4, inst.NTasks())
	assert.True(t, inst.HasTask(sim.IdleTaskID))
	assert.Equal(t, 2, inst.Task(sim.IdleTaskID).WCET)
}

func TestReduction_PackDualPack(t *testing.T) {
	// GIVEN three tasks of utilization 2/3 on two CPUs
	inst, st := offline(t, 2, periodic(1, 2, 3), periodic(2, 2, 3), periodic(3, 2, 3))

	// THEN the duals of the three servers pack into a single root
	assert.Equal(t, 4, st.Depth())
	require.Len(t, st.Roots(), 1)
	assert.InDelta(t, 1.0, st.Roots()[0], 1e-6)
	assert.Equal(t, 3, inst.NTasks(), "no idle task is needed")
	for _, srv := range st.tree.level(2) {
		assert.Equal(t, edfServer, srv.kind)
		assert.InDelta(t, 1.0/3, srv.u, 1e-9)
	}
	for _, srv := range st.tree.level(1) {
		assert.Equal(t, dualServer, srv.kind)
	}
}

func TestRUN_RejectsUnderload(t *testing.T) {
	inst := sim.NewInstance(0, RUN{}, []sim.Task{periodic(1, 1, 4)}, 2, nil, nil)
	_, err := RUN{}.Offline(inst)
	assert.True(t, errors.Is(err, sim.ErrNotSchedulable))
}

// occupancy wraps RUN and counts, after every Schedule call, the CPUs left
// without a real task.
type occupancy struct {
	RUN
}

type occupancyState struct {
	*State
	idleTicks int
}

func (o occupancy) Offline(inst *sim.Instance) (sim.PolicyState, error) {
	st, err := o.RUN.Offline(inst)
	if err != nil {
		return nil, err
	}
	return &occupancyState{State: st.(*State)}, nil
}

func (o occupancy) Schedule(inst *sim.Instance, st sim.PolicyState) error {
	occ := st.(*occupancyState)
	if err := o.RUN.Schedule(inst, occ.State); err != nil {
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
	return o.RUN.Close(inst, st.(*occupancyState).State)
}

func init() {
	sim.RegisterPolicy("occupancy-run", func() sim.Policy { return occupancy{} })
}

func TestRUN_SchedulesFullLoad(t *testing.T) {
	tests := []struct {
		name  string
		nCPUs int
		tasks []sim.Task
		full  bool // utilization equals the CPU count without idle tasks
	}{
		{"3x(2,3)", 2, []sim.Task{periodic(1, 2, 3), periodic(2, 2, 3), periodic(3, 2, 3)}, true},
		{"3x(2,4)", 2, []sim.Task{periodic(1, 2, 4), periodic(2, 2, 4), periodic(3, 2, 4)}, false},
		{"(2,3)(3,4)(7,12)", 2, []sim.Task{periodic(1, 2, 3), periodic(2, 3, 4), periodic(3, 7, 12)}, true},
		{"5x(3,5)", 3, []sim.Task{periodic(1, 3, 5), periodic(2, 3, 5), periodic(3, 3, 5), periodic(4, 3, 5), periodic(5, 3, 5)}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// GIVEN a task set RUN reduces to unit servers
			cfg := sim.SimulationConfig{Policies: []string{"occupancy-run"}, NCPUs: tc.nCPUs, Jobs: 1, Hyperperiods: 2}
			s, err := sim.NewSimulation(cfg, tc.tasks, nil)
			require.NoError(t, err)
			tr := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
			s.SetEventSink(tr)

			// WHEN simulated for two hyperperiods
			res, err := s.Run(context.Background())
			require.NoError(t, err)

			// THEN every job completes and every task ran
			inst := res.Instances[0]
			require.NoError(t, inst.Err)
			assert.Equal(t, 0, inst.DeadlineMisses)
			tallies := trace.Summarize(tr).Tasks(0)
			require.Len(t, tallies, len(tc.tasks))
			for _, tally := range tallies {
				assert.GreaterOrEqual(t, tally.Runs, 2, "task %d", tally.Task)
			}

			occ := s.Instances()[0].State().(*occupancyState)
			if tc.full {
				// AND no CPU is left without a task on any tick
				assert.Equal(t, 0, occ.idleTicks)
			}

			// AND one activity update flips at most two servers per level
			assert.Positive(t, occ.MaxActivityChanges())
			assert.LessOrEqual(t, occ.MaxActivityChanges(), 2*occ.Depth())
		})
	}
}

func TestRUN_ActivityChangesTrackDepthNotSize(t *testing.T) {
	// GIVEN five tasks of utilization 3/5 on three CPUs, a deep tree
	_, st := offline(t, 3, periodic(1, 3, 5), periodic(2, 3, 5), periodic(3, 3, 5), periodic(4, 3, 5), periodic(5, 3, 5))
	servers := 0
	st.tree.each(func(*server) { servers++ })

	// THEN the tree has more servers than twice its depth
	require.Greater(t, servers, 2*st.Depth())

	// WHEN it runs for two hyperperiods
	cfg := sim.SimulationConfig{Policies: []string{"run"}, NCPUs: 3, Jobs: 1, Hyperperiods: 2}
	s, err := sim.NewSimulation(cfg, []sim.Task{periodic(1, 3, 5), periodic(2, 3, 5), periodic(3, 3, 5), periodic(4, 3, 5), periodic(5, 3, 5)}, nil)
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, res.Instances[0].Err)

	// THEN activity updates stay within the depth bound
	run := s.Instances()[0].State().(*State)
	assert.Equal(t, st.Depth(), run.Depth())
	assert.LessOrEqual(t, run.MaxActivityChanges(), 2*run.Depth())
}

func TestServerKind_String(t *testing.T) {
	assert.Equal(t, "edf", edfServer.String())
	assert.Equal(t, "dual", dualServer.String())
	assert.Equal(t, "root", rootServer.String())
}
