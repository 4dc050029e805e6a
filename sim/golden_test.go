package sim_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yass-sim/yass/sim"
	"github.com/yass-sim/yass/sim/internal/testutil"
)

// schedLines keeps the verbose form of RUN and TERMINATE events.
type schedLines struct {
	mu    sync.Mutex
	lines []string
}

func (s *schedLines) Record(e sim.Event) {
	if e.Kind != sim.EventRun && e.Kind != sim.EventTerminate {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, e.String())
}

func TestGoldenScenarios(t *testing.T) {
	golden := testutil.LoadGoldenScenarios(t)
	require.NotEmpty(t, golden.Scenarios)

	for _, sc := range golden.Scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			// GIVEN the scenario's task set
			tasks := make([]sim.Task, 0, len(sc.Tasks))
			for _, gt := range sc.Tasks {
				tasks = append(tasks, sim.Task{ID: gt.ID, Threads: 1, WCET: gt.WCET, Period: gt.Period, Deadline: gt.Period, Criticality: 1})
			}
			cfg := sim.SimulationConfig{Policies: []string{sc.Policy}, NCPUs: sc.NCPUs, Jobs: 1}
			s, err := sim.NewSimulation(cfg, tasks, nil)
			require.NoError(t, err)
			rec := &schedLines{}
			s.SetEventSink(rec)

			// WHEN simulated for one hyperperiod
			res, err := s.Run(context.Background())
			require.NoError(t, err)

			// THEN the schedule and counters match
			require.NoError(t, res.Err())
			assert.Equal(t, sc.Metrics.Horizon, res.Horizon)
			assert.Equal(t, sc.Metrics.DeadlineMisses, res.Instances[0].DeadlineMisses)
			assert.Equal(t, sc.Events, rec.lines)
			testutil.AssertFloat64Equal(t, "miss ratio", 0, res.Instances[0].DeadlineMissRatio(), 1e-9)
		})
	}
}
