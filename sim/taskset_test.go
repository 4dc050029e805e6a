package sim

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yass-sim/yass/sim/internal/testutil"
)

func TestParseTaskSet_AppliesDefaults(t *testing.T) {
	// GIVEN a task with only the required keys
	data := []byte(`{"tasks": [{"id": 1, "wcet": 20, "period": 100}]}`)

	// WHEN parsed
	tasks, err := ParseTaskSet(data)

	// THEN the optional fields take their defaults
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, Task{ID: 1, Threads: 1, WCET: 20, Deadline: 100, Period: 100, Criticality: 1}, tasks[0])
}

func TestParseTaskSet_YAMLAndForkJoin(t *testing.T) {
	// GIVEN a YAML task set with a fork-join task and no wcet
	data := []byte(`
tasks:
  - id: 2
    vm: 1
    period: 100
    deadline: 80
    criticality: 0
    parallel: 2
    segments:
      - wcet: 10
      - wcet: 5
      - wcet: 10
`)

	// WHEN parsed
	tasks, err := ParseTaskSet(data)

	// THEN the wcet is the total work of the segments
	require.NoError(t, err)
	task := tasks[0]
	assert.True(t, task.IsForkJoin())
	assert.Equal(t, 30, task.WCET)
	assert.Equal(t, 80, task.Deadline)
	assert.Equal(t, 1, task.VM)
	assert.Equal(t, 0, task.Criticality)
}

func TestParseTaskSet_Rejections(t *testing.T) {
	tests := []struct {
		name string
		data string
		kind ErrorKind
	}{
		{"unknown key", `{"tasks": [{"id": 1, "wcett": 2, "period": 4}]}`, KindDataFile},
		{"empty list", `{"tasks": []}`, KindDataFile},
		{"missing wcet", `{"tasks": [{"id": 1, "period": 4}]}`, KindDataFile},
		{"missing period", `{"tasks": [{"id": 1, "wcet": 1}]}`, KindDataFile},
		{"duplicate id", `{"tasks": [{"id": 1, "wcet": 1, "period": 4}, {"id": 1, "wcet": 1, "period": 5}]}`, KindIDNotUnique},
		{"reserved id", `{"tasks": [{"id": 987, "wcet": 1, "period": 4}]}`, KindDataFile},
		{"zero period", `{"tasks": [{"id": 1, "wcet": 1, "period": 0}]}`, KindDataFile},
		{"too parallel", `{"tasks": [{"id": 1, "period": 4, "parallel": 10, "segments": [{"wcet": 1}]}]}`, KindDataFile},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseTaskSet([]byte(tc.data))
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestLoadTaskSet_MissingFile_DataFileError(t *testing.T) {
	_, err := LoadTaskSet(filepath.Join(t.TempDir(), "none.json"))
	require.Error(t, err)
	assert.Equal(t, KindDataFile, KindOf(err))
}

func TestTask_Warnings_SoftConstraints(t *testing.T) {
	task := Task{ID: 4, WCET: 5, Deadline: 4, Period: 10}
	w := task.Warnings()
	assert.Len(t, w, 2, "wcet above deadline and below the minimum")

	ok := Task{ID: 5, WCET: 20, Deadline: 100, Period: 100}
	assert.Empty(t, ok.Warnings())
}

func TestThreadID_RoundTrip(t *testing.T) {
	for _, id := range []int{0, 1, 42, IdleTaskID - 1} {
		for j := 0; j <= MaxThreads; j++ {
			tid := ThreadID(id, j)
			assert.False(t, IsIdleTask(tid))
			owner, thread := ThreadOwner(tid)
			assert.Equal(t, id, owner)
			assert.Equal(t, j, thread)
		}
	}
	owner, thread := ThreadOwner(17)
	assert.Equal(t, 17, owner)
	assert.Equal(t, 0, thread)
}

func TestParseCPUSpec(t *testing.T) {
	// GIVEN a processor with two speeds and one sleep state
	data := []byte(`{"name": "arm", "speeds": [{"speed": 0.5, "consumption": 1.2}, {"speed": 1, "consumption": 3}], "states": [{"consumption": 0.1, "penalty": 4}]}`)

	// WHEN parsed
	spec, err := ParseCPUSpec(data)

	// THEN the speed domain is discrete
	require.NoError(t, err)
	assert.True(t, spec.Discrete())
	assert.Len(t, spec.States, 1)

	// AND invalid or unknown fields are rejected
	_, err = ParseCPUSpec([]byte(`{"name": "arm", "speeds": [{"speed": 1.5}]}`))
	assert.Equal(t, KindCPUFile, KindOf(err))
	_, err = ParseCPUSpec([]byte(`{"name": "arm", "freq": 1}`))
	assert.Equal(t, KindCPUFile, KindOf(err))
	assert.False(t, DefaultCPUSpec().Discrete())
}

func TestLoadCPUSpec_FromFile(t *testing.T) {
	path := testutil.WriteFixture(t, "cpu.yaml", "name: x86\nstates:\n  - consumption: 0.2\n    penalty: 3\n")
	spec, err := LoadCPUSpec(path)
	require.NoError(t, err)
	assert.Equal(t, "x86", spec.Name)
	assert.False(t, spec.Discrete())
}

func TestLoadTaskSet_FromFile(t *testing.T) {
	path := testutil.WriteFixture(t, "tasks.json", `{"tasks": [{"id": 1, "wcet": 20, "period": 100}, {"id": 2, "wcet": 30, "period": 150}]}`)
	tasks, err := LoadTaskSet(path)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	assert.Equal(t, 300, HyperperiodOf(tasks))
}
