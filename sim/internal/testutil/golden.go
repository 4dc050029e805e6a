// Package testutil provides shared test infrastructure for the yass
// simulator: golden scheduling scenarios, fixture files and float
// assertions used across sim/ and its policy packages.
package testutil

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gopkg.in/yaml.v3"
)

// GoldenScenarios represents the structure of testdata/scenarios.yaml.
type GoldenScenarios struct {
	Scenarios []GoldenScenario `yaml:"scenarios"`
}

// GoldenScenario is one policy run with its expected schedule.
type GoldenScenario struct {
	Name    string        `yaml:"name"`
	Policy  string        `yaml:"policy"`
	NCPUs   int           `yaml:"n_cpus"`
	Tasks   []GoldenTask  `yaml:"tasks"`
	Metrics GoldenMetrics `yaml:"metrics"`
	Events  []string      `yaml:"events"`
}

// GoldenTask is an implicit-deadline periodic task.
type GoldenTask struct {
	ID     int `yaml:"id"`
	WCET   int `yaml:"wcet"`
	Period int `yaml:"period"`
}

// GoldenMetrics represents the expected counters of a scenario.
type GoldenMetrics struct {
	Horizon        int `yaml:"horizon"`
	DeadlineMisses int `yaml:"deadline_misses"`
}

// LoadGoldenScenarios loads the scenarios from the testdata directory.
// The file is found from the location of this package, three levels below
// the module root.
func LoadGoldenScenarios(t *testing.T) *GoldenScenarios {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "scenarios.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden scenarios: %v", err)
	}

	var golden GoldenScenarios
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&golden); err != nil {
		t.Fatalf("Failed to parse golden scenarios: %v", err)
	}
	return &golden
}

// WriteFixture writes content to name inside a per-test temporary
// directory and returns the full path.
func WriteFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture %s: %v", name, err)
	}
	return path
}

// AssertFloat64Equal fails t when got differs from want by more than relTol
// of the larger magnitude. Two zeros are equal.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	scale := math.Max(math.Abs(want), math.Abs(got))
	if scale == 0 {
		return
	}
	if rel := math.Abs(want-got) / scale; rel > relTol {
		t.Errorf("%s = %v, expected %v (relative error %g)", name, got, want, rel)
	}
}
