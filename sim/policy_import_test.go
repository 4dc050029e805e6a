package sim_test

// Blank imports trigger the init() of the policy packages, which register
// their schedulers. This allows package sim's internal test files to build
// policies by id without importing them directly (which would create an
// import cycle).
import (
	_ "github.com/yass-sim/yass/sim/policy"
	_ "github.com/yass-sim/yass/sim/run"
)
