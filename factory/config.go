package factory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/warp/commission-engine/commission"
)

// ConfigFileJSON is the layout of a rules file.
//
//	managers:
//	  - id: recruiter-1
//	    name: Alice
//	    type: recruiter
//	rules:
//	  - name: Base
//	    managerIds: [recruiter-1]
//	    paymentType: percentage
//	    paymentValue: 10
//	milestones:
//	  - name: First 10k
//	    targetAmount: 10000
//	    paymentType: fixed
//	    paymentValue: 200
type ConfigFileJSON struct {
	Managers   []ManagerJSON   `yaml:"managers" json:"managers"`
	Rules      []RuleJSON      `yaml:"rules" json:"rules"`
	Milestones []MilestoneJSON `yaml:"milestones" json:"milestones"`
}

// Config is a validated rules file.
type Config struct {
	Managers   []commission.Manager
	Rules      []commission.Rule
	Milestones []commission.Milestone
}

// LoadConfigFile reads and validates a YAML (or JSON, a YAML subset) rules file.
func (f *Factory) LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	return f.ParseConfig(data)
}

// ParseConfig validates every record of a rules document. The first
// invalid record aborts the whole file.
func (f *Factory) ParseConfig(data []byte) (Config, error) {
	var cj ConfigFileJSON
	if err := yaml.Unmarshal(data, &cj); err != nil {
		return Config{}, fmt.Errorf("failed to parse rules file: %w", err)
	}

	var cfg Config
	for i, mj := range cj.Managers {
		m, err := f.ManagerFromJSON(mj)
		if err != nil {
			return Config{}, fmt.Errorf("managers[%d]: %w", i, err)
		}
		cfg.Managers = append(cfg.Managers, m)
	}
	for i, rj := range cj.Rules {
		r, err := f.RuleFromJSON(rj)
		if err != nil {
			return Config{}, fmt.Errorf("rules[%d]: %w", i, err)
		}
		cfg.Rules = append(cfg.Rules, r)
	}
	for i, mj := range cj.Milestones {
		m, err := f.MilestoneFromJSON(mj)
		if err != nil {
			return Config{}, fmt.Errorf("milestones[%d]: %w", i, err)
		}
		cfg.Milestones = append(cfg.Milestones, m)
	}
	return cfg, nil
}
