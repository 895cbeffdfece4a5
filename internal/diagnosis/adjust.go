package diagnosis

import (
	"strings"

	"github.com/szweimin/ai-ros/internal/snapshot"
)

// Adjustment clamp bounds: runtime hints shift a likelihood, they never
// make a cause certain or impossible.
const (
	minAdjustedLikelihood = 0.1
	maxAdjustedLikelihood = 0.9
)

// AdjustmentScope selects which side of the runtime state a rule inspects.
type AdjustmentScope string

const (
	ScopeTopics     AdjustmentScope = "topics"
	ScopeParameters AdjustmentScope = "parameters"
)

// AdjustmentRule scales a cause's likelihood by Factor when the cause
// description contains Keyword and any of Contains appears in an active
// topic name (ScopeTopics) or parameter name (ScopeParameters). A rule
// fires at most once per cause. Rules are data; ship new heuristics as
// configuration.
type AdjustmentRule struct {
	Keyword  string          `yaml:"keyword" json:"keyword"`
	Scope    AdjustmentScope `yaml:"scope" json:"scope"`
	Contains []string        `yaml:"contains" json:"contains"`
	Factor   float64         `yaml:"factor" json:"factor"`
}

// DefaultAdjustmentRules mirrors the field-proven heuristics: laser and
// battery hints from active topics, emergency-stop and joint hints from
// parameter names.
func DefaultAdjustmentRules() []AdjustmentRule {
	return []AdjustmentRule{
		{Keyword: "laser", Scope: ScopeTopics, Contains: []string{"laser"}, Factor: 1.3},
		{Keyword: "battery", Scope: ScopeTopics, Contains: []string{"battery"}, Factor: 1.2},
		{Keyword: "emergency", Scope: ScopeParameters, Contains: []string{"emergency", "stop"}, Factor: 1.4},
		{Keyword: "joint", Scope: ScopeParameters, Contains: []string{"joint", "position"}, Factor: 1.3},
	}
}

// adjustLikelihood applies every matching rule once and clamps the result
// to [0.1, 0.9]. fired reports whether any rule matched; unmatched causes
// keep their declared likelihood untouched.
func adjustLikelihood(rules []AdjustmentRule, causeDescription string, likelihood float64, state snapshot.RuntimeState) (adjusted float64, fired bool) {
	adjusted = likelihood
	desc := strings.ToLower(causeDescription)

	for _, rule := range rules {
		if !strings.Contains(desc, strings.ToLower(rule.Keyword)) {
			continue
		}
		if !ruleMatchesState(rule, state) {
			continue
		}
		adjusted *= rule.Factor
		fired = true
	}

	if fired {
		if adjusted < minAdjustedLikelihood {
			adjusted = minAdjustedLikelihood
		}
		if adjusted > maxAdjustedLikelihood {
			adjusted = maxAdjustedLikelihood
		}
	}
	return adjusted, fired
}

func ruleMatchesState(rule AdjustmentRule, state snapshot.RuntimeState) bool {
	switch rule.Scope {
	case ScopeTopics:
		for topic, active := range state.ActiveTopics {
			if !active {
				continue
			}
			if containsAny(topic, rule.Contains) {
				return true
			}
		}
	case ScopeParameters:
		for name := range state.Parameters {
			if containsAny(name, rule.Contains) {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
