package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yass-sim/yass/sim"
	"github.com/yass-sim/yass/sim/workload"
)

func TestGenerate_OutputIsLoadableTaskSet(t *testing.T) {
	// GIVEN a generator spec
	spec := &workload.GeneratorSpec{Seed: 11, NTasks: 4, Utilization: 1.5}
	spec.ApplyDefaults()

	// WHEN generated into a buffer
	var buf bytes.Buffer
	require.NoError(t, generate(spec, &buf))

	// THEN the output is a valid task set
	tasks, err := sim.ParseTaskSet(buf.Bytes())
	require.NoError(t, err)
	assert.Len(t, tasks, 4)
}

func TestGenerate_InvalidSpec_ReturnsError(t *testing.T) {
	spec := &workload.GeneratorSpec{NTasks: 2, Utilization: 5}
	spec.ApplyDefaults()
	assert.Error(t, generate(spec, &bytes.Buffer{}))
}
