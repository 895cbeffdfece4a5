package diagnosis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultConditionCacheSize = 256

var comparisonOps = []string{"<=", ">=", "==", "!=", "<", ">"}

// ConditionEvaluator checks observed runtime parameter values against a
// check step's expected condition. Numeric conditions of the form
// "<op><value>" compile to expr programs, cached in an LRU keyed by the
// condition text; literals compare exactly.
type ConditionEvaluator struct {
	programs *lru.Cache[string, *vm.Program]
}

func NewConditionEvaluator(cacheSize int) (*ConditionEvaluator, error) {
	if cacheSize <= 0 {
		cacheSize = defaultConditionCacheSize
	}
	cache, err := lru.New[string, *vm.Program](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("condition cache: %w", err)
	}
	return &ConditionEvaluator{programs: cache}, nil
}

// Evaluate returns whether observed satisfies cond. An empty condition is
// satisfied by any observed value. Errors here are per-step: the caller
// logs and skips the annotation, never aborts the plan.
func (e *ConditionEvaluator) Evaluate(cond string, observed any) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}
	if err := validateCondition(cond); err != nil {
		return false, err
	}

	if op, rhs, ok := splitComparison(cond); ok {
		if _, err := strconv.ParseFloat(rhs, 64); err != nil {
			return false, fmt.Errorf("non-numeric threshold %q in condition %q", rhs, cond)
		}
		value, ok := toFloat(observed)
		if !ok {
			return false, fmt.Errorf("condition %q needs a numeric value, got %T", cond, observed)
		}
		prog, err := e.compile(cond, "value "+op+" "+rhs)
		if err != nil {
			return false, err
		}
		out, err := expr.Run(prog, map[string]any{"value": value})
		if err != nil {
			return false, err
		}
		b, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("condition %q did not evaluate to bool (got %T)", cond, out)
		}
		return b, nil
	}

	// Literal condition: exact match for booleans and strings.
	switch want := parseLiteral(cond).(type) {
	case bool:
		got, ok := observed.(bool)
		if !ok {
			return false, fmt.Errorf("condition %q needs a boolean value, got %T", cond, observed)
		}
		return got == want, nil
	case float64:
		got, ok := toFloat(observed)
		if !ok {
			return false, fmt.Errorf("condition %q needs a numeric value, got %T", cond, observed)
		}
		return got == want, nil
	default:
		got, ok := observed.(string)
		if !ok {
			return false, fmt.Errorf("condition %q needs a string value, got %T", cond, observed)
		}
		return got == cond, nil
	}
}

func (e *ConditionEvaluator) compile(key, source string) (*vm.Program, error) {
	if prog, ok := e.programs.Get(key); ok {
		return prog, nil
	}
	prog, err := expr.Compile(source, expr.Env(map[string]any{"value": 0.0}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", key, err)
	}
	e.programs.Add(key, prog)
	return prog, nil
}

func splitComparison(cond string) (op, rhs string, ok bool) {
	for _, candidate := range comparisonOps {
		if strings.HasPrefix(cond, candidate) {
			return candidate, strings.TrimSpace(cond[len(candidate):]), true
		}
	}
	return "", "", false
}

// validateCondition rejects condition text that could smuggle in more
// than a comparison.
func validateCondition(cond string) error {
	for _, ch := range []rune{'{', '}', '[', ']', ';', ':', '?', '@', '#', '$', '\\', '(', ')'} {
		if strings.ContainsRune(cond, ch) {
			return fmt.Errorf("illegal character %q in condition", ch)
		}
	}
	return nil
}

func parseLiteral(s string) any {
	s = strings.TrimSpace(s)
	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}
