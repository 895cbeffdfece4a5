package diagnosis

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/szweimin/ai-ros/internal/evidence"
	"github.com/szweimin/ai-ros/internal/faulttree"
	"github.com/szweimin/ai-ros/internal/snapshot"
)

// DefaultEvidenceBonus is added to confidence when supporting evidence
// corroborates the primary error's category.
const DefaultEvidenceBonus = 0.1

// Engine turns reported error codes plus runtime state into a Plan. It is
// stateless per call and safe to share across goroutines: the catalog is
// frozen and the condition cache is concurrency-safe.
type Engine struct {
	catalog       *faulttree.Catalog
	conditions    *ConditionEvaluator
	adjustRules   []AdjustmentRule
	evidenceBonus float64
	logger        *zap.Logger
	observer      LatencyObserver
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithLatencyObserver(observer LatencyObserver) Option {
	return func(e *Engine) { e.observer = observer }
}

func WithAdjustmentRules(rules []AdjustmentRule) Option {
	return func(e *Engine) { e.adjustRules = rules }
}

func WithEvidenceBonus(bonus float64) Option {
	return func(e *Engine) { e.evidenceBonus = bonus }
}

func New(catalog *faulttree.Catalog, opts ...Option) (*Engine, error) {
	conditions, err := NewConditionEvaluator(defaultConditionCacheSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		catalog:       catalog,
		conditions:    conditions,
		adjustRules:   DefaultAdjustmentRules(),
		evidenceBonus: DefaultEvidenceBonus,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Diagnose walks the fault trees for the given codes and builds a plan.
// Unknown codes are skipped, not fatal; an entirely unknown input yields
// a no_match plan with confidence 0.
func (e *Engine) Diagnose(codes []string, state snapshot.RuntimeState) Plan {
	start := time.Now()
	plan := e.diagnose(codes, state)
	e.observe("diagnose", time.Since(start))
	if sr, ok := e.observer.(StatusRecorder); ok {
		sr.RecordDiagnosisStatus(string(plan.Status))
	}
	return plan
}

type rankedCause struct {
	RankedCause
	checks []faulttree.CheckStep
}

type sourceTree struct {
	def *faulttree.Definition
}

func (e *Engine) diagnose(codes []string, state snapshot.RuntimeState) Plan {
	var trees []sourceTree
	var unknown []string
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		def, err := e.catalog.Lookup(code)
		if err != nil {
			unknown = append(unknown, code)
			e.logger.Debug("no fault tree for error code", zap.String("error_code", code))
			continue
		}
		trees = append(trees, sourceTree{def: def})
	}

	if len(trees) == 0 {
		return Plan{Status: StatusNoMatch, UnknownCodes: unknown}
	}

	// Primary error: highest severity wins, earliest input position on tie.
	primary := trees[0]
	for _, t := range trees[1:] {
		if t.def.Severity > primary.def.Severity {
			primary = t
		}
	}

	ranked := make([]rankedCause, 0, len(trees)*2)
	anyAdjusted := false
	for _, t := range trees {
		for _, c := range t.def.Causes {
			adjusted, fired := adjustLikelihood(e.adjustRules, c.Description, c.Likelihood, state)
			anyAdjusted = anyAdjusted || fired
			ranked = append(ranked, rankedCause{
				RankedCause: RankedCause{
					Description:        c.Description,
					Likelihood:         c.Likelihood,
					AdjustedLikelihood: adjusted,
					SourceCode:         t.def.ErrorCode,
					SourceSeverity:     t.def.Severity,
				},
				checks: c.Checks,
			})
		}
	}

	// Single-tree plans keep the declared diagnostic order unless a
	// runtime adjustment changed a weight; merged plans always re-rank.
	// Ties: source severity descending, then declaration order (stable).
	if len(trees) > 1 || anyAdjusted {
		sort.SliceStable(ranked, func(a, b int) bool {
			ca, cb := ranked[a], ranked[b]
			if ca.AdjustedLikelihood != cb.AdjustedLikelihood {
				return ca.AdjustedLikelihood > cb.AdjustedLikelihood
			}
			return ca.SourceSeverity > cb.SourceSeverity
		})
	}

	plan := Plan{
		Status:          StatusDiagnosed,
		PrimaryError:    primary.def.ErrorCode,
		PrimaryCategory: primary.def.Category,
		PrimarySeverity: primary.def.Severity,
		Description:     primary.def.Description,
		UnknownCodes:    unknown,
	}

	maxLikelihood := 0.0
	for _, rc := range ranked {
		plan.Causes = append(plan.Causes, rc.RankedCause)
		if rc.AdjustedLikelihood > maxLikelihood {
			maxLikelihood = rc.AdjustedLikelihood
		}
	}

	if len(ranked) == 0 {
		plan.Status = StatusNoMatch
		plan.Confidence = 0
		return plan
	}
	plan.Confidence = maxLikelihood

	defs := make(map[string]*faulttree.Definition, len(trees))
	for _, t := range trees {
		defs[t.def.ErrorCode] = t.def
	}
	plan.CheckSteps = e.collectSteps(ranked, state)
	plan.RecoverySteps = collectRecoverySteps(ranked, defs)

	return plan
}

// collectSteps walks causes in their final order, deduplicates steps by
// description+parameter, and annotates each step whose parameter is
// present in the runtime state.
func (e *Engine) collectSteps(ranked []rankedCause, state snapshot.RuntimeState) []AnnotatedStep {
	var steps []AnnotatedStep
	seen := make(map[string]struct{})

	for _, rc := range ranked {
		for _, step := range rc.checks {
			key := step.DedupKey()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			annotated := AnnotatedStep{CheckStep: step, SourceCode: rc.SourceCode}
			if step.RelatedParameter != "" {
				if value, present := state.Parameters[step.RelatedParameter]; present {
					annotated.Observed = value
					if step.ExpectedCondition != "" {
						satisfied, err := e.conditions.Evaluate(step.ExpectedCondition, value)
						if err != nil {
							// Partial failure: skip this annotation, keep the plan.
							e.logger.Warn("check-step annotation skipped",
								zap.String("step", step.Description),
								zap.String("parameter", step.RelatedParameter),
								zap.Error(err))
						} else {
							annotated.Satisfied = &satisfied
						}
					}
				}
			}
			steps = append(steps, annotated)
		}
	}
	return steps
}

// collectRecoverySteps unions recovery steps across trees in the order
// each tree first appears in the ranked causes, first occurrence wins.
func collectRecoverySteps(ranked []rankedCause, defs map[string]*faulttree.Definition) []string {
	var out []string
	seenTree := make(map[string]struct{})
	seenStep := make(map[string]struct{})

	for _, rc := range ranked {
		if _, done := seenTree[rc.SourceCode]; done {
			continue
		}
		seenTree[rc.SourceCode] = struct{}{}

		def := defs[rc.SourceCode]
		if def == nil {
			continue
		}
		for _, step := range def.RecoverySteps {
			if _, dup := seenStep[step]; dup {
				continue
			}
			seenStep[step] = struct{}{}
			out = append(out, step)
		}
	}
	return out
}

// ApplyEvidence attaches merged evidence to the plan and grants the
// confidence bonus when any chunk's category matches the primary error's
// category. Evidence never lowers confidence.
func (e *Engine) ApplyEvidence(plan *Plan, merged []evidence.Candidate) {
	plan.Evidence = merged
	if plan.Status != StatusDiagnosed {
		return
	}
	for _, c := range merged {
		if c.Category() != "" && c.Category() == string(plan.PrimaryCategory) {
			plan.Confidence = math.Min(1, plan.Confidence+e.evidenceBonus)
			return
		}
	}
}

func (e *Engine) observe(op string, d time.Duration) {
	if e.observer == nil {
		return
	}
	e.observer.ObserveDiagnosisLatency(op, d)
}
