package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runEvent struct {
	kind EventKind
	task int
	tick int
}

func schedEvents(r *recorder) []runEvent {
	var out []runEvent
	for _, e := range r.events {
		if e.Kind == EventRun || e.Kind == EventTerminate {
			out = append(out, runEvent{e.Kind, e.Task(), e.Tick})
		}
	}
	return out
}

func TestSimulation_EDFUniprocessorTrace(t *testing.T) {
	// GIVEN tasks (wcet 1, period 4) and (wcet 2, period 6) on one CPU
	tasks := []Task{periodic(1, 1, 4), periodic(2, 2, 6)}
	s, err := NewSimulation(SimulationConfig{Policies: []string{"edf"}, NCPUs: 1, Jobs: 1}, tasks, nil)
	require.NoError(t, err)
	rec := &recorder{}
	s.SetEventSink(rec)

	// WHEN one hyperperiod is simulated
	res, err := s.Run(context.Background())

	// THEN the earliest deadline always runs first
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, 13, s.Horizon)
	want := []runEvent{
		{EventRun, 1, 0}, {EventTerminate, 1, 1},
		{EventRun, 2, 1}, {EventTerminate, 2, 3},
		{EventRun, 1, 4}, {EventTerminate, 1, 5},
		{EventRun, 2, 6}, {EventTerminate, 2, 8},
		{EventRun, 1, 8}, {EventTerminate, 1, 9},
		{EventRun, 1, 12},
	}
	assert.Equal(t, want, schedEvents(rec))

	// AND releases and deadlines follow the periods
	assert.Len(t, rec.ofKind(EventRelease), 7)
	assert.Len(t, rec.ofKind(EventDeadline), 5)
	assert.Equal(t, 0, res.Instances[0].DeadlineMisses)
	assert.Equal(t, 13, res.Instances[0].Ticks)
	assert.Equal(t, 5, res.Instances[0].Jobs)
}

func TestSimulation_FailingInstanceIsIsolated(t *testing.T) {
	// GIVEN a uniprocessor policy and a global one on two CPUs
	tasks := []Task{periodic(1, 1, 4), periodic(2, 2, 6)}
	s, err := NewSimulation(SimulationConfig{Policies: []string{"edf", "gedf"}, NCPUs: 2, Jobs: 2}, tasks, nil)
	require.NoError(t, err)

	// WHEN run
	res, err := s.Run(context.Background())

	// THEN only the uniprocessor instance fails
	require.NoError(t, err)
	require.Len(t, res.Instances, 2)
	assert.True(t, errors.Is(res.Instances[0].Err, ErrMoreThanOneCPU))
	assert.Equal(t, 0, res.Instances[0].Ticks)
	assert.NoError(t, res.Instances[1].Err)
	assert.Equal(t, s.Horizon, res.Instances[1].Ticks)
	assert.True(t, errors.Is(res.Err(), ErrMoreThanOneCPU))
}

func TestSimulation_ReleasesLoggedOnce(t *testing.T) {
	// GIVEN two policies running concurrently and sharing one sink
	tasks := []Task{periodic(1, 1, 4), periodic(2, 2, 6)}
	s, err := NewSimulation(SimulationConfig{Policies: []string{"gedf", "fcfs"}, NCPUs: 2, Jobs: 2}, tasks, nil)
	require.NoError(t, err)
	rec := &recorder{}
	s.SetEventSink(rec)

	// WHEN run
	_, err = s.Run(context.Background())
	require.NoError(t, err)

	// THEN task events come from the first instance only
	assert.Len(t, rec.ofKind(EventRelease), 7)

	// AND both instances wrote their decisions into the shared sink
	scheds := map[int]bool{}
	for _, e := range rec.ofKind(EventRun) {
		scheds[e.Args[0]] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true}, scheds)
}

func TestSimulation_CancelledContext(t *testing.T) {
	tasks := []Task{periodic(1, 1, 4)}
	s, err := NewSimulation(SimulationConfig{Policies: []string{"gedf"}, NCPUs: 1, Jobs: 1}, tasks, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Run(ctx)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func deterministicSimulation(t *testing.T, jobs int) *Result {
	t.Helper()
	tasks := []Task{periodic(1, 10, 40), periodic(2, 20, 60), periodic(3, 30, 120)}
	cfg := SimulationConfig{
		Policies:     []string{"gedf", "llf", "fcfs"},
		NCPUs:        2,
		Jobs:         jobs,
		Hyperperiods: 2,
		Online:       true,
		Seed:         42,
	}
	s, err := NewSimulation(cfg, tasks, nil)
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	return res
}

func TestSimulation_SameSeed_IdenticalFingerprint(t *testing.T) {
	// GIVEN the same online configuration run twice
	a := deterministicSimulation(t, 1)
	b := deterministicSimulation(t, 1)

	// THEN every counter matches
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestSimulation_BatchSizeDoesNotChangeResults(t *testing.T) {
	// GIVEN the same configuration run sequentially and concurrently
	seq := deterministicSimulation(t, 1)
	par := deterministicSimulation(t, 3)

	// THEN instances are independent of the batching
	assert.Equal(t, seq.Fingerprint(), par.Fingerprint())
	assert.Equal(t, 241, seq.Horizon)
}

func TestSimulation_RejectsInvalidInput(t *testing.T) {
	_, err := NewSimulation(SimulationConfig{Policies: []string{"edf"}, NCPUs: 0, Jobs: 1}, []Task{periodic(1, 1, 4)}, nil)
	assert.Equal(t, KindNCPUs, KindOf(err))

	_, err = NewSimulation(SimulationConfig{Policies: []string{"edf"}, NCPUs: 1, Jobs: 1}, []Task{periodic(1, 1, 4), periodic(1, 1, 5)}, nil)
	assert.Equal(t, KindIDNotUnique, KindOf(err))
}

func TestGlobalEDF_QueuesPartitionTasks(t *testing.T) {
	// GIVEN an overloaded task set under global EDF
	tasks := []Task{periodic(1, 2, 4), periodic(2, 3, 6), periodic(3, 4, 8), periodic(4, 1, 3)}
	p, err := NewPolicy("gedf")
	require.NoError(t, err)
	inst := NewInstance(0, p, tasks, 2, nil, nil)
	st, err := p.Offline(inst)
	require.NoError(t, err)
	q, ok := st.(*Queues)
	require.True(t, ok)

	// WHEN scheduled tick by tick
	for inst.tick = 0; inst.tick < 2*inst.Hyperperiod(); inst.tick++ {
		require.NoError(t, p.Schedule(inst, st))

		// THEN every task is in exactly one queue and its work is bounded
		for _, id := range inst.TaskIDs() {
			n := 0
			for _, s := range []*Queue{q.Ready, q.Running, q.Stalled} {
				if s.Contains(id) {
					n++
				}
			}
			require.Equal(t, 1, n, "task %d at tick %d", id, inst.tick)
			exec := inst.Exec(id)
			require.GreaterOrEqual(t, exec, 0.0)
			require.LessOrEqual(t, exec, float64(inst.Task(id).WCET))
		}
		require.LessOrEqual(t, q.Running.Len(), inst.NCPUs())
	}
}
