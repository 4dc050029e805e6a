package run

import "github.com/yass-sim/yass/sim"

func init() {
	sim.RegisterPolicy("run", func() sim.Policy { return RUN{} })
}
