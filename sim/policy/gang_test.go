package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yass-sim/yass/sim"
	"github.com/yass-sim/yass/sim/trace"
)

func gangTask(id, threads, wcet, period int) sim.Task {
	task := periodic(id, wcet, period)
	task.Threads = threads
	return task
}

func TestGangEDF_WholeGangRunsTogether(t *testing.T) {
	// GIVEN a two-thread gang and a single-thread task on two CPUs
	res, tr := simulate(t, "gang-edf", 2, 1, gangTask(1, 2, 2, 4), periodic(2, 1, 4))

	// THEN the gang takes both CPUs and the other task waits for it
	require.NoError(t, res.Err)
	d := decisions(tr)
	assert.Equal(t, []decision{{true, 1, 0, 0}, {true, 1, 0, 1}}, d[:2])
	assert.Contains(t, d, decision{true, 2, 2, 0})

	tallies := trace.Summarize(tr).Tasks(0)
	assert.Equal(t, []trace.TaskTally{{Task: 1, Runs: 4, Stops: 2}, {Task: 2, Runs: 1, Stops: 1}}, tallies)
}

func TestGangEDF_GangWiderThanPlatform(t *testing.T) {
	res, _ := simulate(t, "gang-edf", 2, 1, gangTask(1, 3, 2, 4))
	assert.ErrorIs(t, res.Err, sim.ErrNotSchedulable)
}
