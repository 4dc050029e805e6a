// Package workload generates synthetic periodic task sets for yass.
package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Generator limits.
const (
	MinTaskUtilization = 0.01
	MaxTaskUtilization = 0.99
	DefaultHMin        = 64
	DefaultHMax        = 2048
	DefaultScale       = 10
	DefaultTolerance   = 0.01
)

// GeneratorSpec describes the task set to generate.
type GeneratorSpec struct {
	Seed        int64   `yaml:"seed"`
	NTasks      int     `yaml:"n_tasks"`
	Utilization float64 `yaml:"utilization"` // total, e.g. 2.5 for two and a half CPUs
	NVMs        int     `yaml:"n_vms"`
	MCRatio     float64 `yaml:"mc_ratio"` // share of hard tasks
	HMin        int     `yaml:"hmin"`     // bounds on the unscaled hyperperiod
	HMax        int     `yaml:"hmax"`
	Scale       int     `yaml:"scale"`     // multiplier applied to WCETs and periods
	Tolerance   float64 `yaml:"tolerance"` // accepted gap between target and rounded utilization
}

// LoadGeneratorSpec reads a YAML generator specification.
// Unrecognized keys are rejected.
func LoadGeneratorSpec(path string) (*GeneratorSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading generator spec: %w", err)
	}
	var spec GeneratorSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing generator spec: %w", err)
	}
	spec.ApplyDefaults()
	return &spec, nil
}

// ApplyDefaults fills unset optional fields.
func (s *GeneratorSpec) ApplyDefaults() {
	if s.NVMs == 0 {
		s.NVMs = 1
	}
	if s.HMin == 0 {
		s.HMin = DefaultHMin
	}
	if s.HMax == 0 {
		s.HMax = DefaultHMax
	}
	if s.Scale == 0 {
		s.Scale = DefaultScale
	}
	if s.Tolerance == 0 {
		s.Tolerance = DefaultTolerance
	}
}

// Validate checks that the spec can produce a task set.
func (s *GeneratorSpec) Validate() error {
	if s.NTasks < 1 {
		return fmt.Errorf("n_tasks must be positive, got %d", s.NTasks)
	}
	if math.IsNaN(s.Utilization) || s.Utilization <= 0 {
		return fmt.Errorf("utilization must be positive, got %f", s.Utilization)
	}
	lo := MinTaskUtilization * float64(s.NTasks)
	hi := MaxTaskUtilization * float64(s.NTasks)
	if s.Utilization < lo || s.Utilization > hi {
		return fmt.Errorf("utilization %f out of reach for %d tasks, must be in [%.2f, %.2f]", s.Utilization, s.NTasks, lo, hi)
	}
	if s.NVMs < 1 || s.NVMs > s.NTasks {
		return fmt.Errorf("n_vms must be in [1, %d], got %d", s.NTasks, s.NVMs)
	}
	if s.NVMs > 1 && s.Utilization > float64(s.NVMs) {
		return fmt.Errorf("utilization %f cannot fit %d vms of utilization <= 1", s.Utilization, s.NVMs)
	}
	if s.MCRatio < 0 || s.MCRatio > 1 {
		return fmt.Errorf("mc_ratio must be in [0, 1], got %f", s.MCRatio)
	}
	if s.HMin < 1 || s.HMax < s.HMin {
		return fmt.Errorf("hyperperiod bounds [%d, %d] are empty", s.HMin, s.HMax)
	}
	if s.Scale < 1 {
		return fmt.Errorf("scale must be positive, got %d", s.Scale)
	}
	if s.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %f", s.Tolerance)
	}
	return nil
}
