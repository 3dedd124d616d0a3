// Package config handles YAML experiment plan parsing.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration structure.
type Config struct {
	Experiment ExperimentConfig `yaml:"experiment"`
	Culture    CultureConfig    `yaml:"culture,omitempty"`
	Devices    []DeviceConfig   `yaml:"devices" validate:"dive"`
	Steps      []StepConfig     `yaml:"steps" validate:"dive"`
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
}

// ExperimentConfig controls engine-level behavior.
type ExperimentConfig struct {
	Name         string        `yaml:"name"`
	OutputDir    string        `yaml:"output_dir,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty" validate:"gte=0"`
	// CallRateLimit caps device calls per second (0 = unlimited).
	CallRateLimit float64 `yaml:"call_rate_limit,omitempty" validate:"gte=0"`
}

// CultureConfig is the starting state of the simulated vessel.
type CultureConfig struct {
	OD     float64 `yaml:"od" validate:"gte=0"`
	Volume float64 `yaml:"volume" validate:"gte=0"`
}

// DeviceConfig declares one instrument.
type DeviceConfig struct {
	Name   string             `yaml:"name" validate:"required"`
	Kind   string             `yaml:"kind"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// LoggingConfig sets the default log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StepConfig is one entry of the plan. Exactly one of Action, Measure,
// Wait or Steps must be set.
type StepConfig struct {
	Name string `yaml:"name,omitempty"`

	// Action and Measure reference a device method as "device.method".
	Action      string         `yaml:"action,omitempty"`
	Measure     string         `yaml:"measure,omitempty"`
	Measurement string         `yaml:"measurement,omitempty"`
	Args        []any          `yaml:"args,omitempty"`
	Wait        *time.Duration `yaml:"wait,omitempty"`

	// Steps groups nested entries, typically with Repeat.
	Steps  []StepConfig `yaml:"steps,omitempty" validate:"omitempty,dive"`
	Repeat int          `yaml:"repeat,omitempty" validate:"gte=0"`

	When *ConditionConfig `yaml:"when,omitempty"`
}

// ConditionConfig guards a step on a metric over a measurement history.
type ConditionConfig struct {
	Metric    string  `yaml:"metric" validate:"required"`
	Statistic string  `yaml:"statistic,omitempty"`
	Window    int     `yaml:"window,omitempty" validate:"gte=0"`
	Op        string  `yaml:"op"`
	Value     float64 `yaml:"value"`
	Negate    bool    `yaml:"negate,omitempty"`
}

// Step kinds returned by StepConfig.Kind.
const (
	StepAction  = "action"
	StepMeasure = "measure"
	StepWait    = "wait"
	StepGroup   = "group"
)

// Kind reports which step form is set, or "" if none or several are.
func (s *StepConfig) Kind() string {
	var kinds []string
	if s.Action != "" {
		kinds = append(kinds, StepAction)
	}
	if s.Measure != "" {
		kinds = append(kinds, StepMeasure)
	}
	if s.Wait != nil {
		kinds = append(kinds, StepWait)
	}
	if len(s.Steps) > 0 {
		kinds = append(kinds, StepGroup)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Times returns how often the entry is scheduled.
func (s *StepConfig) Times() int {
	if s.Repeat <= 0 {
		return 1
	}
	return s.Repeat
}

// SplitTarget splits "device.method".
func SplitTarget(target string) (device, method string, err error) {
	device, method, ok := strings.Cut(target, ".")
	if !ok || device == "" || method == "" {
		return "", "", fmt.Errorf("target %q must be device.method: %w", target, ErrInvalidConfig)
	}
	return device, method, nil
}

// TotalWait returns the sum of all wait durations after repeat expansion,
// counting conditional waits as if they run.
func (c *Config) TotalWait() time.Duration {
	return totalWait(c.Steps)
}

func totalWait(steps []StepConfig) time.Duration {
	var total time.Duration
	for i := range steps {
		s := &steps[i]
		var d time.Duration
		switch {
		case s.Wait != nil:
			d = *s.Wait
		case len(s.Steps) > 0:
			d = totalWait(s.Steps)
		}
		total += d * time.Duration(s.Times())
	}
	return total
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Parse decodes a YAML plan. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
