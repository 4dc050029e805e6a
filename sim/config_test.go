package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimulationConfig_Validate(t *testing.T) {
	valid := SimulationConfig{Policies: []string{"edf"}, NCPUs: 1, Jobs: 1}
	tests := []struct {
		name   string
		mutate func(c *SimulationConfig)
		kind   ErrorKind
	}{
		{"no cpus", func(c *SimulationConfig) { c.NCPUs = 0 }, KindNCPUs},
		{"too many cpus", func(c *SimulationConfig) { c.NCPUs = MaxCPUs + 1 }, KindNCPUs},
		{"no jobs", func(c *SimulationConfig) { c.Jobs = 0 }, KindNJobs},
		{"too many jobs", func(c *SimulationConfig) { c.Jobs = MaxJobs + 1 }, KindNJobs},
		{"both horizons", func(c *SimulationConfig) { c.Ticks, c.Hyperperiods = 200, 2 }, KindTicksHyperperiod},
		{"too few ticks", func(c *SimulationConfig) { c.Ticks = MinTicks - 1 }, KindNTicks},
		{"negative hyperperiods", func(c *SimulationConfig) { c.Hyperperiods = -1 }, KindDefault},
		{"no scheduler", func(c *SimulationConfig) { c.Policies = nil }, KindUnknownScheduler},
		{"duplicate scheduler", func(c *SimulationConfig) { c.Policies = []string{"edf", "edf"} }, KindSchedulerNotUnique},
		{"unknown scheduler", func(c *SimulationConfig) { c.Policies = []string{"nope"} }, KindUnknownScheduler},
	}
	assert.NoError(t, valid.Validate())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			c.Policies = append([]string(nil), valid.Policies...)
			tc.mutate(&c)
			err := c.Validate()
			assert.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestSimulationConfig_Horizon(t *testing.T) {
	assert.Equal(t, 13, SimulationConfig{}.Horizon(12))
	assert.Equal(t, 37, SimulationConfig{Hyperperiods: 3}.Horizon(12))
	assert.Equal(t, 200, SimulationConfig{Ticks: 200}.Horizon(12))
}

func TestPolicyRegistry(t *testing.T) {
	ids := PolicyIDs()
	for _, id := range []string{"edf", "rm", "gedf", "pf", "bf", "run", "csfd-50"} {
		assert.Contains(t, ids, id)
		assert.True(t, IsValidPolicy(id))
	}
	_, err := NewPolicy("nope")
	assert.Equal(t, KindUnknownScheduler, KindOf(err))
	assert.Panics(t, func() { RegisterPolicy("edf", func() Policy { return nil }) })
}
