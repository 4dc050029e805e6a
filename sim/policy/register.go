// register.go adds the policies of this package to the sim registry. The
// init() runs when any package imports sim/policy; test code in package sim
// uses policy_import_test.go for the blank import.
package policy

import "github.com/yass-sim/yass/sim"

func init() {
	sim.RegisterPolicy("edf", func() sim.Policy { return EDF{} })
	sim.RegisterPolicy("rm", func() sim.Policy { return RM{} })
	sim.RegisterPolicy("fcfs", func() sim.Policy { return FCFS{} })
	sim.RegisterPolicy("llf", func() sim.Policy { return LLF{} })
	sim.RegisterPolicy("gedf", func() sim.Policy { return GlobalEDF{} })
	sim.RegisterPolicy("pedf", func() sim.Policy { return PartitionedEDF{} })
	sim.RegisterPolicy("gang-edf", func() sim.Policy { return GangEDF{} })
	sim.RegisterPolicy("pf", func() sim.Policy { return PF{} })
	sim.RegisterPolicy("bf", func() sim.Policy { return BoundaryFair{} })
	sim.RegisterPolicy("fork", func() sim.Policy { return ForkJoin{} })
	sim.RegisterPolicy("uedf", func() sim.Policy { return UEDF{} })
	sim.RegisterPolicy("sp", func() sim.Policy { return SP{} })
	sim.RegisterPolicy("csfd-50", func() sim.Policy { return CSFD50{} })
}
