package faulttree

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Category groups fault trees by the subsystem they concern.
type Category string

const (
	CategorySafety        Category = "safety"
	CategoryMechanical    Category = "mechanical"
	CategoryElectrical    Category = "electrical"
	CategorySoftware      Category = "software"
	CategorySensor        Category = "sensor"
	CategoryCommunication Category = "communication"
	CategoryUnknown       Category = "unknown"
)

var categories = map[Category]struct{}{
	CategorySafety:        {},
	CategoryMechanical:    {},
	CategoryElectrical:    {},
	CategorySoftware:      {},
	CategorySensor:        {},
	CategoryCommunication: {},
	CategoryUnknown:       {},
}

func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryUnknown, nil
	}
	c := Category(s)
	if _, ok := categories[c]; !ok {
		return "", fmt.Errorf("invalid category %q", s)
	}
	return c, nil
}

func (c *Category) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Severity is ordered: info < warning < critical < fatal.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
	SeverityFatal
)

var severityNames = map[Severity]string{
	SeverityInfo:     "info",
	SeverityWarning:  "warning",
	SeverityCritical: "critical",
	SeverityFatal:    "fatal",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

func ParseSeverity(s string) (Severity, error) {
	for sev, name := range severityNames {
		if name == s {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("invalid severity %q", s)
}

func (s *Severity) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s Severity) MarshalYAML() (any, error) { return s.String(), nil }

func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// CheckStep is one verification an engineer performs for a cause.
// ExpectedCondition is either a literal (exact match for booleans and
// strings) or an inequality of the form "<op><value>" evaluated against
// the runtime parameter named by RelatedParameter.
type CheckStep struct {
	Description       string `yaml:"description" json:"description"`
	ExpectedCondition string `yaml:"expected_condition,omitempty" json:"expected_condition,omitempty"`
	RelatedParameter  string `yaml:"related_parameter,omitempty" json:"related_parameter,omitempty"`
}

// DedupKey identifies a step across trees: two steps with the same
// description and parameter are the same physical check.
func (s CheckStep) DedupKey() string {
	return s.Description + "\x00" + s.RelatedParameter
}

// Cause is one possible explanation for an error code. Likelihood is an
// independent weight in [0,1]; likelihoods within a tree need not sum to 1.
type Cause struct {
	Description string      `yaml:"description" json:"description"`
	Likelihood  float64     `yaml:"likelihood" json:"likelihood"`
	Checks      []CheckStep `yaml:"checks,omitempty" json:"checks,omitempty"`
}

// Definition is the flat fault tree for a single error code.
// Declaration order of causes and checks is the cited default diagnostic
// order; ties elsewhere fall back to it.
type Definition struct {
	ErrorCode     string   `yaml:"error_code" json:"error_code"`
	Description   string   `yaml:"description" json:"description"`
	Category      Category `yaml:"category" json:"category"`
	Severity      Severity `yaml:"severity" json:"severity"`
	Causes        []Cause  `yaml:"causes" json:"causes"`
	RecoverySteps []string `yaml:"recovery_steps,omitempty" json:"recovery_steps,omitempty"`
	RelatedCodes  []string `yaml:"related_codes,omitempty" json:"related_codes,omitempty"`
}

// MaxLikelihood returns the highest declared cause likelihood, 0 for an
// empty tree.
func (d *Definition) MaxLikelihood() float64 {
	max := 0.0
	for _, c := range d.Causes {
		if c.Likelihood > max {
			max = c.Likelihood
		}
	}
	return max
}

func (d *Definition) validate() error {
	if d.ErrorCode == "" {
		return fmt.Errorf("fault tree with empty error_code")
	}
	if d.Category == "" {
		d.Category = CategoryUnknown
	}
	for i, c := range d.Causes {
		if c.Description == "" {
			return fmt.Errorf("tree %s: cause %d has empty description", d.ErrorCode, i)
		}
		if c.Likelihood < 0 || c.Likelihood > 1 {
			return fmt.Errorf("tree %s: cause %q likelihood %v outside [0,1]", d.ErrorCode, c.Description, c.Likelihood)
		}
		for j, step := range c.Checks {
			if step.Description == "" {
				return fmt.Errorf("tree %s: cause %q check %d has empty description", d.ErrorCode, c.Description, j)
			}
		}
	}
	return nil
}
