package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yass-sim/yass/sim"
)

func TestUniprocessorPolicies_RejectSeveralCPUs(t *testing.T) {
	for _, id := range []string{"edf", "rm"} {
		t.Run(id, func(t *testing.T) {
			res, tr := simulate(t, id, 2, 1, periodic(1, 1, 4))
			assert.True(t, errors.Is(res.Err, sim.ErrMoreThanOneCPU))
			assert.Equal(t, 0, res.Ticks)
			assert.Empty(t, tr.Decisions)
		})
	}
}

func TestEDF_Overload_NotSchedulable(t *testing.T) {
	// GIVEN a demand of 5 ticks every 4
	res, _ := simulate(t, "edf", 1, 1, periodic(1, 3, 4), periodic(2, 2, 4))

	// THEN admission fails
	assert.True(t, errors.Is(res.Err, sim.ErrNotSchedulable))
}

func TestRM_AboveLiuLaylandBound_NotSchedulable(t *testing.T) {
	// GIVEN two tasks with utilization 0.9 > 0.828
	res, _ := simulate(t, "rm", 1, 1, periodic(1, 1, 2), periodic(2, 4, 10))

	assert.True(t, errors.Is(res.Err, sim.ErrNotSchedulable))
}

func TestRM_ShortPeriodPreempts(t *testing.T) {
	// GIVEN (2, 5) and (4, 10) on one CPU
	res, tr := simulate(t, "rm", 1, 1, periodic(1, 2, 5), periodic(2, 4, 10))

	// THEN task 1 preempts task 2 at its second release
	assert.NoError(t, res.Err)
	assert.Contains(t, decisions(tr), decision{false, 2, 5, 0})
	assert.Contains(t, decisions(tr), decision{true, 1, 5, 0})
}

func TestFCFS_NoPreemption(t *testing.T) {
	// GIVEN a long job released together with a short-period one
	_, tr := simulate(t, "fcfs", 1, 1, periodic(1, 3, 8), periodic(2, 1, 2))

	// THEN the first job runs to completion before the second starts
	d := decisions(tr)
	assert.Equal(t, []decision{{true, 1, 0, 0}, {false, 1, 3, 0}, {true, 2, 3, 0}}, d[:3])
}

func TestLLF_OverloadAbortsRun(t *testing.T) {
	// GIVEN a utilization of 1.25 on one CPU
	res, tr := simulate(t, "llf", 1, 1, periodic(1, 2, 4), periodic(2, 3, 4))

	// THEN the least laxity job runs first and the miss aborts the run
	assert.True(t, errors.Is(res.Err, sim.ErrNotSchedulable))
	assert.Equal(t, decision{true, 2, 0, 0}, decisions(tr)[0])
	assert.Equal(t, 4, res.Ticks)
}

func TestLLF_FullLoadOnTwoCPUs(t *testing.T) {
	// GIVEN three tasks (2, 3) on two CPUs
	res, tr := simulate(t, "llf", 2, 2, periodic(1, 2, 3), periodic(2, 2, 3), periodic(3, 2, 3))

	// THEN the zero-laxity job preempts at tick 1 and nothing misses
	assert.NoError(t, res.Err)
	assert.Contains(t, decisions(tr), decision{false, 2, 1, 1})
	assert.Contains(t, decisions(tr), decision{true, 3, 1, 1})
	assert.Equal(t, 0, res.DeadlineMisses)
}
