// Package scenarios replays fleet snapshots through the dispatcher and
// checks the resulting assignments.
package scenarios

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fleetdispatch/core/model"
)

// Expected describes the outcome a scenario must produce.
type Expected struct {
	// Assignments maps load ID to driver ID.
	Assignments   map[string]string `yaml:"assignments"`
	Rules         map[string]string `yaml:"rules,omitempty"`
	Unassigned    []string          `yaml:"unassigned,omitempty"`
	PublishFailed []string          `yaml:"publish_failed,omitempty"`
	RulesApplied  []string          `yaml:"rules_applied,omitempty"`
}

// Scenario is one replayable dispatch case.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Snapshot    model.Snapshot `yaml:"snapshot"`
	// FailDrivers makes publishing fail for decisions assigned to these drivers.
	FailDrivers []string `yaml:"fail_drivers,omitempty"`
	Expected    Expected `yaml:"expected"`
}

// Load reads a scenario file. Unknown keys are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if err := sc.Snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	return &sc, nil
}
