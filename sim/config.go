package sim

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/HaoruiPeng/massive-mimo-slicing/sim/workload"
)

// Config is the full run configuration, loadable from a YAML file.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Policy     PolicyConfig     `yaml:"policy"`
	Classes    ClassesConfig    `yaml:"classes"`
	Groups     []GroupConfig    `yaml:"groups,omitempty"`
}

// SimulationConfig groups the time model and the resource budget.
type SimulationConfig struct {
	Horizon           float64 `yaml:"horizon"`            // run ends once the clock reaches it (> 0)
	FrameLength       float64 `yaml:"frame_length"`       // time between allocation rounds (> 0)
	MeasurementPeriod float64 `yaml:"measurement_period"` // time between queue samples (> 0)
	ResourceUnits     int     `yaml:"resource_units"`     // pilots per frame (>= 1)
	Seed              int64   `yaml:"seed"`
}

// PolicyConfig selects one allocation strategy per class.
type PolicyConfig struct {
	URLLC       string  `yaml:"urllc"`        // strategy for the latency-critical class, "" = fcfs
	MMTC        string  `yaml:"mmtc"`         // strategy for the bulk class, "" = fcfs
	BaseShare   float64 `yaml:"base_share"`   // initial latency-critical pilot share for backoff
	PilotStride int     `yaml:"pilot_stride"` // huffman retry group stride, 0 = 2
}

// Strategy returns the configured strategy name of a class.
func (p PolicyConfig) Strategy(c TrafficClass) string {
	if c == ClassURLLC {
		return p.URLLC
	}
	return p.MMTC
}

// SetStrategy sets the strategy name of a class.
func (p *PolicyConfig) SetStrategy(c TrafficClass, name string) {
	if c == ClassURLLC {
		p.URLLC = name
	} else {
		p.MMTC = name
	}
}

// ClassConfig describes the homogeneous sources of one traffic class.
type ClassConfig struct {
	Nodes                 int               `yaml:"nodes"`
	Deadline              float64           `yaml:"deadline"`                         // relative to arrival
	Cost                  int               `yaml:"cost"`                             // resource units per request
	Buffer                int               `yaml:"buffer,omitempty"`                 // mmtc only, 0 = unbounded
	ContentionProbability float64           `yaml:"contention_probability,omitempty"` // 0 = derive from the arrival mean
	Arrival               workload.DistSpec `yaml:"arrival"`
}

// Profile returns the source profile shared by the class's nodes.
func (c ClassConfig) Profile() SourceProfile {
	return SourceProfile{
		ResourceCost:   c.Cost,
		DeadlineOffset: c.Deadline,
		BufferSize:     c.Buffer,
		ContentionProb: c.ContentionProbability,
	}
}

// ClassesConfig holds one ClassConfig per traffic class.
type ClassesConfig struct {
	URLLC ClassConfig `yaml:"urllc"`
	MMTC  ClassConfig `yaml:"mmtc"`
}

// Class returns the configuration of a class.
func (c *ClassesConfig) Class(tc TrafficClass) *ClassConfig {
	if tc == ClassURLLC {
		return &c.URLLC
	}
	return &c.MMTC
}

// GroupConfig adds sources with a custom arrival distribution to a class.
// Nil fields inherit the class value.
type GroupConfig struct {
	Class                 string            `yaml:"class"`
	Nodes                 int               `yaml:"nodes"`
	Deadline              *float64          `yaml:"deadline,omitempty"`
	Cost                  *int              `yaml:"cost,omitempty"`
	Buffer                *int              `yaml:"buffer,omitempty"`
	ContentionProbability *float64          `yaml:"contention_probability,omitempty"`
	Arrival               workload.DistSpec `yaml:"arrival"`
}

// Profile returns the group's source profile on top of its class defaults.
func (g GroupConfig) Profile(class ClassConfig) SourceProfile {
	p := class.Profile()
	if g.Deadline != nil {
		p.DeadlineOffset = *g.Deadline
	}
	if g.Cost != nil {
		p.ResourceCost = *g.Cost
	}
	if g.Buffer != nil {
		p.BufferSize = *g.Buffer
	}
	if g.ContentionProbability != nil {
		p.ContentionProb = *g.ContentionProbability
	}
	return p
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Horizon:           10000,
			FrameLength:       1,
			MeasurementPeriod: 100,
			ResourceUnits:     12,
			Seed:              42,
		},
		Policy: PolicyConfig{
			URLLC:       "fcfs",
			MMTC:        "fcfs",
			BaseShare:   0.1,
			PilotStride: 2,
		},
		Classes: ClassesConfig{
			URLLC: ClassConfig{
				Nodes:    10,
				Deadline: 2,
				Cost:     1,
				Arrival:  workload.DistSpec{Type: workload.DistExponential, Params: map[string]float64{"mean": 20}},
			},
			MMTC: ClassConfig{
				Nodes:    50,
				Deadline: 50,
				Cost:     1,
				Arrival:  workload.DistSpec{Type: workload.DistConstant, Params: map[string]float64{"period": 60}},
			},
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// Unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Validate checks that all strategy names and parameter ranges are valid.
func (c *Config) Validate() error {
	sim := c.Simulation
	if !(sim.Horizon > 0) || math.IsInf(sim.Horizon, 0) {
		return fmt.Errorf("%w: horizon must be positive and finite, got %v", ErrInvalidConfig, sim.Horizon)
	}
	if !(sim.FrameLength > 0) || math.IsInf(sim.FrameLength, 0) {
		return fmt.Errorf("%w: frame_length must be positive and finite, got %v", ErrInvalidConfig, sim.FrameLength)
	}
	if !(sim.MeasurementPeriod > 0) || math.IsInf(sim.MeasurementPeriod, 0) {
		return fmt.Errorf("%w: measurement_period must be positive and finite, got %v", ErrInvalidConfig, sim.MeasurementPeriod)
	}
	if sim.ResourceUnits < 1 {
		return fmt.Errorf("%w: resource_units must be >= 1, got %d", ErrInvalidConfig, sim.ResourceUnits)
	}

	for _, tc := range Classes {
		name := c.Policy.Strategy(tc)
		if !IsValidStrategy(name) {
			return fmt.Errorf("%w: unknown %s strategy %q (valid: %v)", ErrInvalidConfig, tc, name, StrategyNames())
		}
	}
	if c.usesStrategy(StrategyBackoff) && (c.Policy.BaseShare <= 0 || c.Policy.BaseShare > 1) {
		return fmt.Errorf("%w: base_share must be in (0, 1], got %v", ErrInvalidConfig, c.Policy.BaseShare)
	}
	if c.Policy.PilotStride < 0 {
		return fmt.Errorf("%w: pilot_stride must be >= 0, got %d", ErrInvalidConfig, c.Policy.PilotStride)
	}

	for _, tc := range Classes {
		cc := c.Classes.Class(tc)
		if err := validateClass(tc.String(), tc, cc.Nodes, cc.Profile(), cc.Arrival); err != nil {
			return err
		}
	}
	for i, g := range c.Groups {
		tc, err := ParseTrafficClass(g.Class)
		if err != nil {
			return fmt.Errorf("%w: group %d: %v", ErrInvalidConfig, i, err)
		}
		if g.Nodes < 1 {
			return fmt.Errorf("%w: group %d must have at least one node, got %d", ErrInvalidConfig, i, g.Nodes)
		}
		label := fmt.Sprintf("group %d (%s)", i, tc)
		if err := validateClass(label, tc, g.Nodes, g.Profile(*c.Classes.Class(tc)), g.Arrival); err != nil {
			return err
		}
	}
	return nil
}

func validateClass(label string, tc TrafficClass, nodes int, p SourceProfile, arrival workload.DistSpec) error {
	if nodes < 0 {
		return fmt.Errorf("%w: %s nodes must be >= 0, got %d", ErrInvalidConfig, label, nodes)
	}
	if nodes == 0 {
		return nil
	}
	if p.ResourceCost < 1 {
		return fmt.Errorf("%w: %s cost must be >= 1, got %d", ErrInvalidConfig, label, p.ResourceCost)
	}
	if p.DeadlineOffset < 0 || math.IsNaN(p.DeadlineOffset) {
		return fmt.Errorf("%w: %s deadline must be >= 0, got %v", ErrInvalidConfig, label, p.DeadlineOffset)
	}
	if p.BufferSize < 0 {
		return fmt.Errorf("%w: %s buffer must be >= 0, got %d", ErrInvalidConfig, label, p.BufferSize)
	}
	if p.BufferSize > 0 && tc != ClassMMTC {
		return fmt.Errorf("%w: %s: buffers apply to the %s class only", ErrInvalidConfig, label, ClassMMTC)
	}
	if p.ContentionProb < 0 || p.ContentionProb > 1 {
		return fmt.Errorf("%w: %s contention_probability must be in [0, 1], got %v", ErrInvalidConfig, label, p.ContentionProb)
	}
	if err := arrival.Validate(); err != nil {
		return fmt.Errorf("%w: %s arrival: %v", ErrInvalidConfig, label, err)
	}
	return nil
}

func (c *Config) usesStrategy(kind StrategyKind) bool {
	for _, tc := range Classes {
		if k, err := ParseStrategy(c.Policy.Strategy(tc)); err == nil && k == kind {
			return true
		}
	}
	return false
}

// FrameLoops returns the number of frames spanned by a class deadline,
// at least 1. It is the round-robin cursor reset period.
func (c *Config) FrameLoops(tc TrafficClass) int64 {
	loops := int64(math.Ceil(c.Classes.Class(tc).Deadline / c.Simulation.FrameLength))
	if loops < 1 {
		return 1
	}
	return loops
}
