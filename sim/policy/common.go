// Package policy implements the scheduling policies of yass on top of the
// sim kernel. Every policy keeps its job queues and any other private data
// in the PolicyState returned by Offline.
package policy

import (
	"github.com/yass-sim/yass/sim"
)

// queuesOf extracts the job queues from a state built by Offline.
func queuesOf(st sim.PolicyState) (*sim.Queues, error) {
	switch s := st.(type) {
	case *sim.Queues:
		return s, nil
	case interface{ queues() *sim.Queues }:
		return s.queues(), nil
	}
	return nil, sim.NewError(sim.KindSchedule, "unexpected policy state %T", st)
}

// byTTD orders ids by time to deadline.
func byTTD(inst *sim.Instance) func(int) float64 {
	return func(id int) float64 { return float64(inst.TimeToDeadline(id)) }
}

// byLaxity orders ids by laxity.
func byLaxity(inst *sim.Instance) func(int) float64 {
	return inst.Laxity
}

func requireUniprocessor(inst *sim.Instance) error {
	if inst.NCPUs() != 1 {
		return sim.NewError(sim.KindMoreThanOneCPU, "%d cpus", inst.NCPUs())
	}
	return nil
}

func errDeadlineMiss(inst *sim.Instance) error {
	return sim.NewError(sim.KindNotSchedulable, "deadline miss at tick %d", inst.Tick())
}
