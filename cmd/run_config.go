package cmd

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RunConfig mirrors the run flags in a YAML file. Absent keys leave the
// flag value untouched.
type RunConfig struct {
	Tasks          *string  `yaml:"tasks"`
	CPU            *string  `yaml:"cpu"`
	NCPUs          *int     `yaml:"n_cpus"`
	Schedulers     []string `yaml:"schedulers"`
	Jobs           *int     `yaml:"jobs"`
	Ticks          *int     `yaml:"ticks"`
	Hyperperiods   *int     `yaml:"hyperperiods"`
	Online         *bool    `yaml:"online"`
	Seed           *int64   `yaml:"seed"`
	Output         *string  `yaml:"output"`
	Energy         *bool    `yaml:"energy"`
	Idle           *bool    `yaml:"idle"`
	CtxSwitches    *bool    `yaml:"context_switches"`
	DeadlineMisses *bool    `yaml:"deadline_misses"`
	Tests          *bool    `yaml:"tests"`
	TestsOutput    *string  `yaml:"tests_output"`
	Summary        *bool    `yaml:"summary"`
}

// LoadRunConfig parses a run configuration file.
// Uses strict field checking: typos must cause errors.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading run config %s", path)
	}
	var rc RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rc); err != nil {
		return nil, errors.Wrapf(err, "parsing run config %s", path)
	}
	return &rc, nil
}

// Apply copies the configured values into o, skipping every flag for which
// changed reports an explicit command-line value.
func (rc *RunConfig) Apply(o *runOptions, changed func(flag string) bool) {
	setString(&o.Tasks, rc.Tasks, changed("tasks"))
	setString(&o.CPU, rc.CPU, changed("cpu"))
	setInt(&o.Config.NCPUs, rc.NCPUs, changed("n-cpus"))
	if len(rc.Schedulers) > 0 && !changed("scheduler") {
		o.Config.Policies = rc.Schedulers
	}
	setInt(&o.Config.Jobs, rc.Jobs, changed("jobs"))
	setInt(&o.Config.Ticks, rc.Ticks, changed("ticks"))
	setInt(&o.Config.Hyperperiods, rc.Hyperperiods, changed("hyperperiods"))
	setBool(&o.Config.Online, rc.Online, changed("online"))
	if rc.Seed != nil && !changed("seed") {
		o.Config.Seed = *rc.Seed
	}
	setString(&o.Output, rc.Output, changed("output"))
	setBool(&o.Energy, rc.Energy, changed("energy"))
	setBool(&o.Idle, rc.Idle, changed("idle"))
	setBool(&o.CtxSwitches, rc.CtxSwitches, changed("context-switches"))
	setBool(&o.DeadlineMisses, rc.DeadlineMisses, changed("deadline-misses"))
	setBool(&o.Tests, rc.Tests, changed("tests"))
	setString(&o.TestsOutput, rc.TestsOutput, changed("tests-output"))
	setBool(&o.Summary, rc.Summary, changed("summary"))
}

func setString(dst, src *string, changed bool) {
	if src != nil && !changed {
		*dst = *src
	}
}

func setInt(dst, src *int, changed bool) {
	if src != nil && !changed {
		*dst = *src
	}
}

func setBool(dst, src *bool, changed bool) {
	if src != nil && !changed {
		*dst = *src
	}
}
