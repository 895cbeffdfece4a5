package diagnosis

import (
	"testing"
	"time"

	"github.com/szweimin/ai-ros/internal/evidence"
	"github.com/szweimin/ai-ros/internal/faulttree"
	"github.com/szweimin/ai-ros/internal/snapshot"
)

type spyObserver struct {
	ops      []string
	durs     []time.Duration
	statuses []string
}

func (s *spyObserver) ObserveDiagnosisLatency(op string, d time.Duration) {
	s.ops = append(s.ops, op)
	s.durs = append(s.durs, d)
}

func (s *spyObserver) RecordDiagnosisStatus(status string) {
	s.statuses = append(s.statuses, status)
}

func testCatalog(t *testing.T) *faulttree.Catalog {
	t.Helper()
	cat, err := faulttree.NewCatalog([]faulttree.Definition{
		{
			ErrorCode:   "E201",
			Description: "Laser scanner data timeout",
			Category:    faulttree.CategorySensor,
			Severity:    faulttree.SeverityCritical,
			Causes: []faulttree.Cause{
				{Description: "Laser scanner connector loose", Likelihood: 0.6, Checks: []faulttree.CheckStep{
					{Description: "Check scan publish rate", RelatedParameter: "scan_rate", ExpectedCondition: ">=10"},
				}},
				{Description: "Scanner driver crashed", Likelihood: 0.3, Checks: []faulttree.CheckStep{
					{Description: "Check driver node alive", RelatedParameter: "driver_alive", ExpectedCondition: "true"},
				}},
			},
			RecoverySteps: []string{"Reseat scanner connector", "Restart scanner driver"},
		},
		{
			ErrorCode:   "E102",
			Description: "Battery voltage low",
			Category:    faulttree.CategoryElectrical,
			Severity:    faulttree.SeverityWarning,
			Causes: []faulttree.Cause{
				{Description: "Battery cell degradation", Likelihood: 0.5, Checks: []faulttree.CheckStep{
					{Description: "Check scan publish rate", RelatedParameter: "scan_rate", ExpectedCondition: ">=10"},
					{Description: "Measure pack voltage", RelatedParameter: "pack_voltage", ExpectedCondition: ">22.0"},
				}},
				{Description: "Charger contact worn", Likelihood: 0.2},
			},
			RecoverySteps: []string{"Return to dock", "Restart scanner driver"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func TestDiagnose_SingleError_KeepsDeclaredOrder(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	plan := e.Diagnose([]string{"E201"}, snapshot.RuntimeState{})
	if plan.Status != StatusDiagnosed {
		t.Fatalf("expected diagnosed, got %q", plan.Status)
	}
	if plan.PrimaryError != "E201" || plan.PrimaryCategory != faulttree.CategorySensor {
		t.Fatalf("unexpected primary: %s/%s", plan.PrimaryError, plan.PrimaryCategory)
	}
	if len(plan.Causes) != 2 ||
		plan.Causes[0].Description != "Laser scanner connector loose" ||
		plan.Causes[1].Description != "Scanner driver crashed" {
		t.Fatalf("declared order lost: %#v", plan.Causes)
	}
	if plan.Confidence != 0.6 {
		t.Fatalf("expected confidence 0.6, got %v", plan.Confidence)
	}
}

func TestDiagnose_RuntimeAdjustmentRerankAndClamp(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	// Active laser topic boosts the laser cause: 0.6*1.3=0.78.
	state := snapshot.RuntimeState{
		ActiveTopics: map[string]bool{"/sensors/laser_front": true},
	}
	plan := e.Diagnose([]string{"E201"}, state)
	top := plan.Causes[0]
	if top.Description != "Laser scanner connector loose" {
		t.Fatalf("unexpected top cause: %#v", top)
	}
	if top.Likelihood != 0.6 {
		t.Fatalf("declared likelihood must be preserved, got %v", top.Likelihood)
	}
	if top.AdjustedLikelihood < 0.77 || top.AdjustedLikelihood > 0.79 {
		t.Fatalf("expected adjusted ~0.78, got %v", top.AdjustedLikelihood)
	}
	if plan.Confidence != top.AdjustedLikelihood {
		t.Fatalf("confidence must track max adjusted likelihood")
	}

	// An inactive topic must not fire the rule.
	plan = e.Diagnose([]string{"E201"}, snapshot.RuntimeState{
		ActiveTopics: map[string]bool{"/sensors/laser_front": false},
	})
	if plan.Causes[0].AdjustedLikelihood != 0.6 {
		t.Fatalf("inactive topic fired an adjustment: %#v", plan.Causes[0])
	}
}

func TestDiagnose_AdjustmentClampsAtUpperBound(t *testing.T) {
	cat, err := faulttree.NewCatalog([]faulttree.Definition{{
		ErrorCode: "E900", Description: "Emergency stop engaged",
		Category: faulttree.CategorySafety, Severity: faulttree.SeverityFatal,
		Causes: []faulttree.Cause{
			{Description: "Emergency stop button pressed", Likelihood: 0.8},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(cat)
	if err != nil {
		t.Fatal(err)
	}

	// 0.8*1.4 = 1.12, clamped to 0.9.
	plan := e.Diagnose([]string{"E900"}, snapshot.RuntimeState{
		Parameters: map[string]any{"emergency_stop_engaged": true},
	})
	if plan.Causes[0].AdjustedLikelihood != 0.9 {
		t.Fatalf("expected clamp at 0.9, got %v", plan.Causes[0].AdjustedLikelihood)
	}
}

func TestDiagnose_MultiError_PrimaryBySeverityMergedRanking(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	// E102 first in the input, but critical E201 must win primary.
	plan := e.Diagnose([]string{"E102", "E201"}, snapshot.RuntimeState{})
	if plan.PrimaryError != "E201" {
		t.Fatalf("expected E201 primary, got %s", plan.PrimaryError)
	}

	want := []string{
		"Laser scanner connector loose", // 0.6
		"Battery cell degradation",      // 0.5
		"Scanner driver crashed",        // 0.3
		"Charger contact worn",          // 0.2
	}
	if len(plan.Causes) != len(want) {
		t.Fatalf("expected %d causes, got %d", len(want), len(plan.Causes))
	}
	for i, desc := range want {
		if plan.Causes[i].Description != desc {
			t.Fatalf("cause %d: expected %q, got %q", i, desc, plan.Causes[i].Description)
		}
	}
}

func TestDiagnose_DuplicateCodesCountOnce(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	plan := e.Diagnose([]string{"E201", "E201"}, snapshot.RuntimeState{})
	if len(plan.Causes) != 2 {
		t.Fatalf("duplicate input code doubled the causes: %d", len(plan.Causes))
	}
}

func TestDiagnose_UnknownCodesSkippedNotFatal(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	plan := e.Diagnose([]string{"E999", "E201"}, snapshot.RuntimeState{})
	if plan.Status != StatusDiagnosed || plan.PrimaryError != "E201" {
		t.Fatalf("unexpected plan: %s/%s", plan.Status, plan.PrimaryError)
	}
	if len(plan.UnknownCodes) != 1 || plan.UnknownCodes[0] != "E999" {
		t.Fatalf("unexpected unknown codes: %#v", plan.UnknownCodes)
	}
}

func TestDiagnose_AllUnknownYieldsNoMatch(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	plan := e.Diagnose([]string{"E999"}, snapshot.RuntimeState{})
	if plan.Status != StatusNoMatch {
		t.Fatalf("expected no_match, got %q", plan.Status)
	}
	if plan.Confidence != 0 {
		t.Fatalf("expected confidence 0, got %v", plan.Confidence)
	}
}

func TestDiagnose_CheckStepsDedupAcrossTrees(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	// "Check scan publish rate"/scan_rate appears in both trees.
	plan := e.Diagnose([]string{"E201", "E102"}, snapshot.RuntimeState{})
	count := 0
	for _, step := range plan.CheckSteps {
		if step.Description == "Check scan publish rate" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected the shared step once, got %d", count)
	}
}

func TestDiagnose_AnnotatesStepsFromRuntimeState(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	state := snapshot.RuntimeState{
		Parameters: map[string]any{
			"scan_rate":    4.0, // violates >=10
			"driver_alive": true,
		},
	}
	plan := e.Diagnose([]string{"E201"}, state)

	byDesc := make(map[string]AnnotatedStep)
	for _, s := range plan.CheckSteps {
		byDesc[s.Description] = s
	}

	rate := byDesc["Check scan publish rate"]
	if rate.Observed != 4.0 || rate.Satisfied == nil || *rate.Satisfied {
		t.Fatalf("expected unsatisfied scan_rate annotation, got %#v", rate)
	}
	alive := byDesc["Check driver node alive"]
	if alive.Satisfied == nil || !*alive.Satisfied {
		t.Fatalf("expected satisfied driver annotation, got %#v", alive)
	}
}

func TestDiagnose_AbsentParameterLeavesStepUnannotated(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	plan := e.Diagnose([]string{"E201"}, snapshot.RuntimeState{})
	for _, s := range plan.CheckSteps {
		if s.Observed != nil || s.Satisfied != nil {
			t.Fatalf("step annotated without runtime state: %#v", s)
		}
	}
}

func TestDiagnose_MalformedConditionSkipsAnnotationOnly(t *testing.T) {
	cat, err := faulttree.NewCatalog([]faulttree.Definition{{
		ErrorCode: "E700", Description: "Controller fault",
		Severity: faulttree.SeverityCritical,
		Causes: []faulttree.Cause{
			{Description: "Bad loop gain", Likelihood: 0.5, Checks: []faulttree.CheckStep{
				{Description: "Check gain", RelatedParameter: "gain", ExpectedCondition: ">=not_a_number"},
			}},
		},
	}})
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(cat)
	if err != nil {
		t.Fatal(err)
	}

	plan := e.Diagnose([]string{"E700"}, snapshot.RuntimeState{
		Parameters: map[string]any{"gain": 1.5},
	})
	if plan.Status != StatusDiagnosed {
		t.Fatalf("malformed condition must not fail the plan, got %q", plan.Status)
	}
	step := plan.CheckSteps[0]
	if step.Observed != 1.5 {
		t.Fatalf("observed value should still be attached, got %#v", step.Observed)
	}
	if step.Satisfied != nil {
		t.Fatalf("satisfied must stay nil on evaluation failure")
	}
}

func TestDiagnose_RecoveryStepsUnionFirstOccurrenceWins(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	plan := e.Diagnose([]string{"E201", "E102"}, snapshot.RuntimeState{})
	want := []string{"Reseat scanner connector", "Restart scanner driver", "Return to dock"}
	if len(plan.RecoverySteps) != len(want) {
		t.Fatalf("unexpected recovery steps: %#v", plan.RecoverySteps)
	}
	for i, step := range want {
		if plan.RecoverySteps[i] != step {
			t.Fatalf("recovery step %d: expected %q, got %q", i, step, plan.RecoverySteps[i])
		}
	}
}

func TestApplyEvidence_BonusOnCategoryMatch(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	plan := e.Diagnose([]string{"E201"}, snapshot.RuntimeState{})
	base := plan.Confidence

	e.ApplyEvidence(&plan, []evidence.Candidate{
		{ID: "doc-1", Metadata: map[string]string{"category": "electrical"}},
		{ID: "doc-2", Metadata: map[string]string{"category": "sensor"}},
	})
	if plan.Confidence != base+DefaultEvidenceBonus {
		t.Fatalf("expected %v, got %v", base+DefaultEvidenceBonus, plan.Confidence)
	}
	if len(plan.Evidence) != 2 {
		t.Fatalf("evidence not attached")
	}

	// Bonus applies once and never exceeds 1.
	plan.Confidence = 0.95
	e.ApplyEvidence(&plan, []evidence.Candidate{
		{ID: "doc-2", Metadata: map[string]string{"category": "sensor"}},
	})
	if plan.Confidence != 1.0 {
		t.Fatalf("expected cap at 1.0, got %v", plan.Confidence)
	}
}

func TestApplyEvidence_NoBonusWithoutMatch(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	plan := e.Diagnose([]string{"E201"}, snapshot.RuntimeState{})
	base := plan.Confidence

	e.ApplyEvidence(&plan, []evidence.Candidate{
		{ID: "doc-1", Metadata: map[string]string{"category": "software"}},
		{ID: "doc-2"},
	})
	if plan.Confidence != base {
		t.Fatalf("confidence moved without a category match: %v -> %v", base, plan.Confidence)
	}
}

func TestApplyEvidence_NoMatchPlanUnaffected(t *testing.T) {
	e, err := New(testCatalog(t))
	if err != nil {
		t.Fatal(err)
	}
	plan := e.Diagnose([]string{"E999"}, snapshot.RuntimeState{})
	e.ApplyEvidence(&plan, []evidence.Candidate{
		{ID: "doc-1", Metadata: map[string]string{"category": "sensor"}},
	})
	if plan.Confidence != 0 {
		t.Fatalf("no_match plan gained confidence: %v", plan.Confidence)
	}
}

func TestDiagnose_ObservesLatencyAndStatus(t *testing.T) {
	spy := &spyObserver{}
	e, err := New(testCatalog(t), WithLatencyObserver(spy))
	if err != nil {
		t.Fatal(err)
	}

	e.Diagnose([]string{"E201"}, snapshot.RuntimeState{})
	e.Diagnose([]string{"E999"}, snapshot.RuntimeState{})

	if len(spy.ops) != 2 || spy.ops[0] != "diagnose" {
		t.Fatalf("unexpected observed ops: %#v", spy.ops)
	}
	for i, d := range spy.durs {
		if d < 0 {
			t.Fatalf("duration at %d is negative: %v", i, d)
		}
	}
	if len(spy.statuses) != 2 || spy.statuses[0] != "diagnosed" || spy.statuses[1] != "no_match" {
		t.Fatalf("unexpected statuses: %#v", spy.statuses)
	}
}
