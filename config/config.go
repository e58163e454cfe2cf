// Package config holds the system configuration of the fork control core.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/akita/v4/sim"
	"gopkg.in/yaml.v3"
)

// Config holds the sizing and tuning of the control core.
type Config struct {
	// NumCores is the total number of compute units, master included.
	// Default: 4.
	NumCores int `json:"num_cores" yaml:"num_cores" mapstructure:"num_cores"`

	// SplitFactor is the number of idle workers a conservative block is
	// split across. Default: 2.
	SplitFactor int `json:"split_factor" yaml:"split_factor" mapstructure:"split_factor"`

	// PredictorEntries is the number of history predictor counters.
	// Must be a power of 2. Default: 1024.
	PredictorEntries uint32 `json:"predictor_entries" yaml:"predictor_entries" mapstructure:"predictor_entries"`

	// PredictorInit is the power-on value of every counter (0-3).
	// Default: 2 (weakly predict success).
	PredictorInit uint8 `json:"predictor_init" yaml:"predictor_init" mapstructure:"predictor_init"`

	// ReadSetDepth is the per-worker read-set capacity. Default: 64.
	ReadSetDepth int `json:"readset_depth" yaml:"readset_depth" mapstructure:"readset_depth"`

	// NumRegisters is the size of the register file moved by a context
	// copy. Default: 32.
	NumRegisters int `json:"num_registers" yaml:"num_registers" mapstructure:"num_registers"`

	// Freq is the global tick frequency used for simulated time.
	// Default: 1 GHz.
	Freq sim.Freq `json:"freq" yaml:"freq" mapstructure:"freq"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		NumCores:         4,
		SplitFactor:      2,
		PredictorEntries: 1024,
		PredictorInit:    2,
		ReadSetDepth:     64,
		NumRegisters:     32,
		Freq:             1 * sim.GHz,
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// LoadConfig loads a Config from a JSON or YAML file, chosen by the file
// extension. Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// SaveConfig writes the Config to a JSON or YAML file, chosen by the file
// extension.
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a buildable core.
func (c *Config) Validate() error {
	if c.NumCores < 2 {
		return fmt.Errorf("num_cores must be >= 2 (one master and at least one worker)")
	}
	if c.SplitFactor < 1 {
		return fmt.Errorf("split_factor must be > 0")
	}
	if c.SplitFactor > c.NumCores-1 {
		return fmt.Errorf("split_factor must be <= the number of workers (%d)", c.NumCores-1)
	}
	if c.PredictorEntries == 0 || c.PredictorEntries&(c.PredictorEntries-1) != 0 {
		return fmt.Errorf("predictor_entries must be a power of 2")
	}
	if c.PredictorInit > 3 {
		return fmt.Errorf("predictor_init must be in [0, 3]")
	}
	if c.ReadSetDepth < 1 {
		return fmt.Errorf("readset_depth must be > 0")
	}
	if c.NumRegisters < 1 {
		return fmt.Errorf("num_registers must be > 0")
	}
	if c.Freq <= 0 {
		return fmt.Errorf("freq must be > 0")
	}
	return nil
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// CycleTime returns the duration of one tick in seconds.
func (c *Config) CycleTime() float64 {
	if c.Freq <= 0 {
		return 0
	}
	return 1 / float64(c.Freq)
}
