package sim

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func bruteForceLCM(periods []int) int {
	m := 0
	for _, p := range periods {
		m = max(m, p)
	}
	for h := m; ; h++ {
		ok := true
		for _, p := range periods {
			if h%p != 0 {
				ok = false
				break
			}
		}
		if ok {
			return h
		}
	}
}

func TestHyperperiodOf_MatchesBruteForce(t *testing.T) {
	// GIVEN random task sets with periods up to 30
	rng := rand.New(rand.NewPCG(7, 7))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.IntN(4)
		tasks := make([]Task, n)
		periods := make([]int, n)
		for i := range tasks {
			periods[i] = 1 + rng.IntN(30)
			tasks[i] = periodic(i, 1, periods[i])
		}

		// WHEN the hyperperiod is computed
		got := HyperperiodOf(tasks)

		// THEN it is the smallest common multiple
		assert.Equal(t, bruteForceLCM(periods), got, "periods %v", periods)
	}
}

func TestGCD_LCM_EdgeCases(t *testing.T) {
	assert.Equal(t, 6, GCD(12, 18))
	assert.Equal(t, 5, GCD(0, 5))
	assert.Equal(t, 36, LCM(12, 18))
	assert.Equal(t, 0, LCM(0, 7))
}

func TestOptimalTest_ExactAgainstDemand(t *testing.T) {
	// GIVEN a feasible and an overloaded uniprocessor set
	ok := newTestInstance(t, 1, periodic(1, 1, 4), periodic(2, 2, 6))
	over := newTestInstance(t, 1, periodic(1, 3, 4), periodic(2, 3, 6))

	// THEN the demand over the hyperperiod decides
	assert.Equal(t, 12, ok.Hyperperiod())
	assert.Equal(t, 7, ok.TotalExec())
	assert.True(t, ok.OptimalTest())
	assert.Equal(t, 15, over.TotalExec())
	assert.False(t, over.OptimalTest())
}

func TestRMTest_LiuLaylandBound(t *testing.T) {
	assert.True(t, newTestInstance(t, 1, periodic(1, 2, 5), periodic(2, 4, 10)).RMTest())
	assert.False(t, newTestInstance(t, 1, periodic(1, 3, 5), periodic(2, 4, 10)).RMTest())
}

func TestDPMTest_NeedsEveryCPU(t *testing.T) {
	full := newTestInstance(t, 2, periodic(1, 2, 4), periodic(2, 2, 4), periodic(3, 2, 4), periodic(4, 2, 4))
	light := newTestInstance(t, 2, periodic(1, 1, 4))
	assert.True(t, full.DPMTest())
	assert.False(t, light.DPMTest())
}

func TestAddIdleTask_FillsCapacity(t *testing.T) {
	// GIVEN three half-utilization tasks on two CPUs
	inst := newTestInstance(t, 2, periodic(1, 2, 4), periodic(2, 2, 4), periodic(3, 2, 4))
	assert.Equal(t, 6, inst.TotalExec())

	// WHEN an idle task is added
	id := inst.AddIdleTask()

	// THEN it absorbs the spare capacity and ids stay unique
	assert.Equal(t, IdleTaskID, id)
	assert.True(t, IsIdleTask(id))
	assert.Equal(t, 2, inst.Task(id).WCET)
	assert.Equal(t, 8, inst.TotalExec())
	assert.InDelta(t, 2.0, inst.GlobalUtilization(), 1e-12)
	assert.Equal(t, IdleTaskID+1, inst.AddIdleTaskWith(1, 4))
}

func TestNextBoundary_And_IsIntervalBoundary(t *testing.T) {
	inst := newTestInstance(t, 1, periodic(1, 1, 4), periodic(2, 1, 6))
	assert.Equal(t, 4, inst.NextBoundary(0))
	assert.Equal(t, 6, inst.NextBoundary(5))
	assert.Equal(t, 8, inst.NextBoundary(6))

	assert.True(t, inst.IsIntervalBoundary())
	inst.tick = 5
	assert.False(t, inst.IsIntervalBoundary())
	inst.tick = 6
	assert.True(t, inst.IsIntervalBoundary())
}

func TestVMs_And_HyperperiodVM(t *testing.T) {
	a := periodic(1, 1, 4)
	b := periodic(2, 1, 6)
	b.VM = 1
	c := periodic(3, 1, 10)
	c.VM = 1
	inst := newTestInstance(t, 1, a, b, c)
	assert.Equal(t, []int{0, 1}, inst.VMs())
	assert.Equal(t, 4, inst.HyperperiodVM(0))
	assert.Equal(t, 30, inst.HyperperiodVM(1))
}
