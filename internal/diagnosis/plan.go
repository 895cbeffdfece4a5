package diagnosis

import (
	"github.com/szweimin/ai-ros/internal/evidence"
	"github.com/szweimin/ai-ros/internal/faulttree"
	"github.com/szweimin/ai-ros/internal/fleet"
)

// Status classifies a diagnosis outcome. Callers branch on it instead of
// catching errors: every Diagnose call returns a well-formed Plan. The
// engine itself only produces diagnosed/no_match; StatusError marks plans
// rejected at the service boundary before the engine ran.
type Status string

const (
	StatusDiagnosed Status = "diagnosed"
	StatusNoMatch   Status = "no_match"
	StatusError     Status = "error"
)

// RankedCause is a fault-tree cause tagged with its originating error
// code and final ranking weight. Likelihood is the declared weight;
// AdjustedLikelihood reflects runtime-state adjustment (equal to
// Likelihood when nothing fired).
type RankedCause struct {
	Description        string             `json:"description"`
	Likelihood         float64            `json:"likelihood"`
	AdjustedLikelihood float64            `json:"adjusted_likelihood"`
	SourceCode         string             `json:"source_code"`
	SourceSeverity     faulttree.Severity `json:"source_severity"`
}

// AnnotatedStep is a deduplicated check step, optionally annotated with
// the runtime parameter value observed for it. Satisfied is nil when the
// parameter was absent or the annotation could not be computed.
type AnnotatedStep struct {
	faulttree.CheckStep `yaml:",inline"`
	SourceCode          string `json:"source_code"`
	Observed            any    `json:"observed,omitempty"`
	Satisfied           *bool  `json:"satisfied,omitempty"`
}

// Plan is the structured, explainable diagnosis built fresh per call.
type Plan struct {
	Status          Status               `json:"status"`
	PrimaryError    string               `json:"primary_error,omitempty"`
	PrimaryCategory faulttree.Category   `json:"primary_category,omitempty"`
	PrimarySeverity faulttree.Severity   `json:"primary_severity"`
	Description     string               `json:"description,omitempty"`
	Causes          []RankedCause        `json:"causes,omitempty"`
	CheckSteps      []AnnotatedStep      `json:"check_steps,omitempty"`
	RecoverySteps   []string             `json:"recovery_steps,omitempty"`
	UnknownCodes    []string             `json:"unknown_codes,omitempty"`
	Confidence      float64              `json:"confidence"`
	Evidence        []evidence.Candidate `json:"evidence,omitempty"`
	Fleet           *fleet.Assessment    `json:"fleet_assessment,omitempty"`
}
