// Package workload provides the inter-arrival generators that drive traffic
// sources. Generators are pull sources of non-negative intervals backed by
// gonum distributions; this package has no dependencies on sim/.
package workload

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

// DistSpec selects and parameterizes an inter-arrival distribution.
//
//	exponential: mean
//	constant:    period, jitter (default 0.05), init_jitter (default 0.5)
//	uniform:     max
//	onoff:       mean, on, off, alpha (default 1.5, 0 keeps windows constant)
type DistSpec struct {
	Type   string             `yaml:"type"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

// Distribution type names.
const (
	DistExponential = "exponential"
	DistConstant    = "constant"
	DistUniform     = "uniform"
	DistOnOff       = "onoff"
)

// distParams lists the parameters a distribution type accepts.
type distParams struct {
	required []string
	optional []string
}

// validDistributions maps accepted distribution names to their parameters.
var validDistributions = map[string]distParams{
	DistExponential: {required: []string{"mean"}},
	DistConstant:    {required: []string{"period"}, optional: []string{"jitter", "init_jitter"}},
	DistUniform:     {required: []string{"max"}},
	DistOnOff:       {required: []string{"mean", "on", "off"}, optional: []string{"alpha"}},
}

func (p distParams) accepts(name string) bool {
	return slices.Contains(p.required, name) || slices.Contains(p.optional, name)
}

// IsValidDistribution returns true if name is a recognized distribution type.
func IsValidDistribution(name string) bool {
	_, ok := validDistributions[name]
	return ok
}

// DistributionNames returns the recognized distribution types, sorted.
func DistributionNames() []string {
	names := make([]string, 0, len(validDistributions))
	for name := range validDistributions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the type and that every required parameter is present,
// finite and positive. Optional parameters must be finite and non-negative,
// and parameters the type does not know are rejected.
func (d DistSpec) Validate() error {
	if !IsValidDistribution(d.Type) {
		return fmt.Errorf("unknown distribution %q (valid: %v)", d.Type, DistributionNames())
	}
	params := validDistributions[d.Type]
	for _, name := range params.required {
		if _, err := requireParam(d.Params, name); err != nil {
			return fmt.Errorf("%s distribution: %w", d.Type, err)
		}
	}
	for name, v := range d.Params {
		if !params.accepts(name) {
			return fmt.Errorf("%s distribution: unknown parameter %q (required: %v, optional: %v)",
				d.Type, name, params.required, params.optional)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s distribution: parameter %q must be finite and non-negative, got %v", d.Type, name, v)
		}
	}
	return nil
}

// Param returns a parameter or def when it is absent.
func (d DistSpec) Param(name string, def float64) float64 {
	if v, ok := d.Params[name]; ok {
		return v
	}
	return def
}

func requireParam(params map[string]float64, name string) (float64, error) {
	v, ok := params[name]
	if !ok {
		return 0, fmt.Errorf("missing required parameter %q", name)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("parameter %q must be positive and finite, got %v", name, v)
	}
	return v, nil
}

func (d DistSpec) String() string {
	keys := make([]string, 0, len(d.Params))
	for k := range d.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := d.Type + "("
	for i, k := range keys {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%g", k, d.Params[k])
	}
	return s + ")"
}
