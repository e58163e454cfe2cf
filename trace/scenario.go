// Package trace drives the control core from recorded or hand-written
// stimulus. A scenario is a list of steps, each holding the bus inputs for
// one or more ticks, plus the outcome the run is expected to produce.
package trace

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/forksim/config"
	"github.com/sarchlab/forksim/insts"
	"github.com/sarchlab/forksim/timing/bus"
)

// Wait conditions that end a step.
const (
	UntilSpecStart = "spec-start"
	UntilVerdict   = "verdict"
	UntilIdle      = "idle"
)

// BlockSpec describes a fetched block.
type BlockSpec struct {
	PC    uint64   `yaml:"pc"`
	Insts []uint32 `yaml:"insts"`
	// Tier overrides the classifier. Empty means classify the block.
	Tier string `yaml:"tier,omitempty"`
}

// Block returns the block as it appears on the fetch bus.
func (b *BlockSpec) Block() bus.Block {
	return bus.Block{PC: b.PC, Insts: b.Insts, Valid: true}
}

// Classify returns the block's tier.
func (b *BlockSpec) Classify() (insts.Tier, error) {
	if b.Tier == "" {
		return insts.Classify(b.Insts), nil
	}
	return insts.ParseTier(b.Tier)
}

// Step holds the inputs for one or more ticks.
//
// The block is fetched once, on the step's first tick. Every other signal
// is held for each tick of the step. A step runs Repeat ticks (at least
// one), then keeps ticking until its Until condition holds.
type Step struct {
	Block *BlockSpec `yaml:"block,omitempty"`

	Busy       []int          `yaml:"busy,omitempty"`
	Loads      map[int]uint64 `yaml:"loads,omitempty"`
	Stores     map[int]uint64 `yaml:"stores,omitempty"`
	MasterDone bool           `yaml:"master_done,omitempty"`
	SpecDone   []int          `yaml:"spec_done,omitempty"`
	Exceptions []int          `yaml:"exceptions,omitempty"`

	Repeat int    `yaml:"repeat,omitempty"`
	Until  string `yaml:"until,omitempty"`
}

// CounterSetting is a predictor counter value for a PC.
type CounterSetting struct {
	PC      uint64 `yaml:"pc"`
	Counter uint8  `yaml:"counter"`
}

// Scenario is a complete stimulus with its expected outcome.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Config overrides keys of the runner's base configuration.
	Config yaml.Node `yaml:"config,omitempty"`

	// Registers seeds the master register file.
	Registers []uint64 `yaml:"registers,omitempty"`
	// Predictor seeds predictor counters.
	Predictor []CounterSetting `yaml:"predictor,omitempty"`

	// AutoComplete, when positive, asserts master-done that many ticks
	// after each speculative start and spec-done on the tick after.
	AutoComplete int `yaml:"auto_complete,omitempty"`

	Steps  []Step      `yaml:"steps"`
	Expect Expectation `yaml:"expect,omitempty"`
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

// Save writes the scenario as YAML.
func (s *Scenario) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize scenario: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}
	return nil
}

// Validate checks the scenario for malformed steps.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}

	for i, step := range s.Steps {
		switch step.Until {
		case "", UntilSpecStart, UntilVerdict, UntilIdle:
		default:
			return fmt.Errorf("step %d: unknown wait condition %q", i, step.Until)
		}
		if step.Repeat < 0 {
			return fmt.Errorf("step %d: repeat must be >= 0", i)
		}
		if step.Block != nil {
			if len(step.Block.Insts) == 0 {
				return fmt.Errorf("step %d: block has no instructions", i)
			}
			if _, err := step.Block.Classify(); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
	}

	for _, p := range s.Predictor {
		if p.Counter > 3 {
			return fmt.Errorf("predictor counter for %#x must be in [0, 3]", p.PC)
		}
	}

	return nil
}

// ResolveConfig applies the scenario's overrides to a copy of base.
func (s *Scenario) ResolveConfig(base *config.Config) (*config.Config, error) {
	cfg := base.Clone()
	if s.Config.Kind != 0 {
		if err := s.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("scenario %q: invalid config: %w", s.Name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", s.Name, err)
	}
	return cfg, nil
}
