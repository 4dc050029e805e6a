// Package sim provides the tick-driven simulation kernel for yass.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - task.go: Task (static description) and JobState (per-instance job state)
//   - instance.go: Instance, one scheduler with its own CPUs and task copies
//   - helpers.go: release, termination, preemption and dispatch primitives
//   - simulator.go: the per-tick loop and the batched concurrent driver
//
// # Architecture
//
// The sim package defines the kernel and the policy contract; policies live
// in sub-packages:
//   - sim/policy/: EDF family, RM, FCFS, LLF, PF, Boundary Fair, fork-join,
//     U-EDF, SP and CSFD-50
//   - sim/run/: RUN hierarchical server reduction
//   - sim/trace/: scheduling decision trace recording
//   - sim/workload/: synthetic task set generation
//
// Sub-packages register their policies via init() functions that call
// RegisterPolicy, so importing them is enough to make their ids valid.
//
// Each tick of an instance: first instance logs releases and deadlines,
// Policy.Schedule runs, CPUs are charged for energy, context switches and
// idle intervals are recorded, and the tick advances.
//
// # Key Interfaces
//
//   - Policy: Name, Offline (admission and private state), Schedule (one
//     tick), Close
//   - EventSink: receives RELEASE, DEADLINE, RUN, TERMINATE and CPU events
package sim
