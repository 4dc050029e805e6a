package sim

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// SimulationKey is the master seed of a run. Equal keys with equal inputs
// yield the same execution-time samples and the same generated task sets.
type SimulationKey int64

func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// Random streams.
const (
	// SubsystemWorkload drives the task set generator and is seeded with
	// the key itself.
	SubsystemWorkload = "workload"

	SubsystemExecTimes = "exec_times"
)

// SubsystemTask names the stream of sampled execution times for task id.
func SubsystemTask(id int) string {
	return fmt.Sprintf("%s_%d", SubsystemExecTimes, id)
}

type stream struct {
	src *rand.PCG
	rng *rand.Rand
}

// PartitionedRNG hands out one independent random stream per name, so that
// draws on one stream never shift another. A stream other than
// SubsystemWorkload is seeded with key ^ fnv1a64(name).
// It is not safe for concurrent use.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[string]stream
}

func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{key: key, streams: make(map[string]stream)}
}

// ForSubsystem returns the generator for name, creating it on first use.
// Later calls return the same *rand.Rand.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	return p.stream(name).rng
}

// Source returns the PCG source behind ForSubsystem(name), for gonum
// distributions.
func (p *PartitionedRNG) Source(name string) rand.Source {
	return p.stream(name).src
}

func (p *PartitionedRNG) stream(name string) stream {
	if st, ok := p.streams[name]; ok {
		return st
	}
	seed := uint64(p.key)
	if name != SubsystemWorkload {
		seed ^= uint64(fnv1a64(name))
	}
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	st := stream{src: src, rng: rand.New(src)}
	p.streams[name] = st
	return st
}

func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

// SampleExecTimes draws n execution times for a job of the given WCET from
// a normal distribution centred on (1+wcet)/2 with standard deviation
// (wcet-1)/8, truncated to [1, wcet].
func SampleExecTimes(src rand.Source, wcet, n int) []int {
	out := make([]int, n)
	if wcet <= 1 {
		for i := range out {
			out[i] = wcet
		}
		return out
	}
	lo, hi := 1.0, float64(wcet)
	dist := distuv.Normal{Mu: (lo + hi) / 2, Sigma: (hi - lo) / 8, Src: src}
	for i := range out {
		v := dist.Rand()
		for v < lo || v > hi {
			v = dist.Rand()
		}
		out[i] = int(math.Floor(v))
	}
	return out
}

// GenerateExecTimes samples MaxExecSamples execution times per task. Each
// task draws from its own subsystem so adding a task does not perturb the
// samples of the others.
func GenerateExecTimes(rng *PartitionedRNG, tasks []Task) map[int][]int {
	times := make(map[int][]int, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		times[t.ID] = SampleExecTimes(rng.Source(SubsystemTask(t.ID)), t.WCET, MaxExecSamples)
	}
	return times
}
