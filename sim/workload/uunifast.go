package workload

import (
	"math"
	"math/rand/v2"
)

// UUniFast draws n task utilizations summing to total, uniformly
// distributed over the simplex.
func UUniFast(rng *rand.Rand, n int, total float64) []float64 {
	util := make([]float64, n)
	sum := total
	acc := 0.0
	for i := 0; i < n; i++ {
		if i == n-1 {
			util[i] = total - acc
			break
		}
		next := sum * math.Pow(rng.Float64(), 1/float64(n-i-1))
		util[i] = sum - next
		acc += util[i]
		sum = next
	}
	return util
}

// validUtilizations reports whether every utilization is within the
// per-task bounds.
func validUtilizations(util []float64) bool {
	for _, u := range util {
		if u < MinTaskUtilization || u > MaxTaskUtilization {
			return false
		}
	}
	return true
}
