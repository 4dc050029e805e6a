package sim

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SpeedLevel is one entry of a discrete speed table.
type SpeedLevel struct {
	Speed       float64 `yaml:"speed"`
	Consumption float64 `yaml:"consumption"`
}

// SleepState is a low-power state: standby consumption per tick and the
// break-even penalty (ticks) needed to make entering it worthwhile.
type SleepState struct {
	Consumption float64 `yaml:"consumption"`
	Penalty     float64 `yaml:"penalty"`
}

// CPUSpec describes the power model shared by every CPU of a simulation.
// Without a speed table the frequency domain is continuous.
type CPUSpec struct {
	Name   string       `yaml:"name"`
	Speeds []SpeedLevel `yaml:"speeds"`
	States []SleepState `yaml:"states"`
}

// DefaultCPUSpec returns a continuous-speed CPU with no sleep states.
func DefaultCPUSpec() *CPUSpec {
	return &CPUSpec{Name: "default"}
}

// Discrete reports whether the CPU has a tabulated speed domain.
func (s *CPUSpec) Discrete() bool {
	return len(s.Speeds) > 0
}

// Validate checks that the description is usable.
func (s *CPUSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name: must not be empty")
	}
	for i, lvl := range s.Speeds {
		if lvl.Speed < 0 || lvl.Speed > 1 {
			return fmt.Errorf("speeds[%d].speed: must be in [0, 1], got %g", i, lvl.Speed)
		}
		if lvl.Consumption < 0 {
			return fmt.Errorf("speeds[%d].consumption: must be >= 0, got %g", i, lvl.Consumption)
		}
	}
	for i, st := range s.States {
		if st.Consumption < 0 {
			return fmt.Errorf("states[%d].consumption: must be >= 0, got %g", i, st.Consumption)
		}
		if st.Penalty < 0 {
			return fmt.Errorf("states[%d].penalty: must be >= 0, got %g", i, st.Penalty)
		}
	}
	return nil
}

// LoadCPUSpec reads a processor description from a JSON or YAML file.
func LoadCPUSpec(path string) (*CPUSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(KindCPUFile, errors.Wrapf(err, "reading processor file %s", path), "")
	}
	spec, err := ParseCPUSpec(data)
	if err != nil {
		return nil, errors.Wrapf(err, "processor file %s", path)
	}
	return spec, nil
}

// ParseCPUSpec decodes a processor description, rejecting unknown keys.
func ParseCPUSpec(data []byte) (*CPUSpec, error) {
	var spec CPUSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, WrapError(KindCPUFile, err, "decoding")
	}
	if err := spec.Validate(); err != nil {
		return nil, WrapError(KindCPUFile, err, "")
	}
	return &spec, nil
}
