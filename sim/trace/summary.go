package trace

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
)

// TaskTally counts the decisions of one scheduler about one task.
type TaskTally struct {
	Task  int
	Runs  int
	Stops int
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions int
	Runs           int
	Stops          int
	Releases       int
	Deadlines      int

	// perScheduler maps an instance index to a task-ordered tally map.
	perScheduler map[int]*treemap.Map
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{perScheduler: make(map[int]*treemap.Map)}
	if st == nil {
		return summary
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	summary.TotalDecisions = len(st.Decisions)
	for _, d := range st.Decisions {
		tallies, ok := summary.perScheduler[d.Scheduler]
		if !ok {
			tallies = treemap.NewWith(utils.IntComparator)
			summary.perScheduler[d.Scheduler] = tallies
		}
		tally := &TaskTally{Task: d.Task}
		if v, found := tallies.Get(d.Task); found {
			tally = v.(*TaskTally)
		} else {
			tallies.Put(d.Task, tally)
		}
		if d.Run {
			tally.Runs++
			summary.Runs++
		} else {
			tally.Stops++
			summary.Stops++
		}
	}
	for _, r := range st.Releases {
		if r.Deadline {
			summary.Deadlines++
		} else {
			summary.Releases++
		}
	}
	return summary
}

// Schedulers returns the instance indices that made decisions, ascending.
func (s *TraceSummary) Schedulers() []int {
	ids := make([]int, 0, len(s.perScheduler))
	for id := range s.perScheduler {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Tasks returns the tallies of one scheduler ordered by task id.
func (s *TraceSummary) Tasks(scheduler int) []TaskTally {
	tallies, ok := s.perScheduler[scheduler]
	if !ok {
		return nil
	}
	out := make([]TaskTally, 0, tallies.Size())
	it := tallies.Iterator()
	for it.Next() {
		out = append(out, *it.Value().(*TaskTally))
	}
	return out
}

// Fingerprint hashes the decision sequence of each scheduler in index
// order. Instances run concurrently, so the interleaving of the trace is
// not part of the fingerprint.
func Fingerprint(st *SimulationTrace) uint64 {
	d := xxhash.New()
	if st == nil {
		return d.Sum64()
	}
	st.mu.Lock()
	bySched := make(map[int][]DecisionRecord)
	for _, r := range st.Decisions {
		bySched[r.Scheduler] = append(bySched[r.Scheduler], r)
	}
	st.mu.Unlock()

	scheds := make([]int, 0, len(bySched))
	for id := range bySched {
		scheds = append(scheds, id)
	}
	sort.Ints(scheds)

	var buf [8]byte
	put := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = d.Write(buf[:])
	}
	for _, id := range scheds {
		for _, r := range bySched[id] {
			put(r.Scheduler)
			put(r.Task)
			put(r.Tick)
			put(r.CPU)
			if r.Run {
				put(1)
			} else {
				put(0)
			}
		}
	}
	return d.Sum64()
}
