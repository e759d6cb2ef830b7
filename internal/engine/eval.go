package engine

import (
	"math"

	"github.com/expr-lang/expr/vm"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

// Transform converts a single Frame into a DesktopFrame using the active
// Ruleset. It never panics or returns an error: rule-level failures become
// per-rule omissions, counted in failedTransformations.
func (e *Engine) Transform(frame *domain.Frame) domain.DesktopFrame {
	if !frame.FacePresent {
		return domain.EmptyDesktopFrame()
	}

	e.mu.RLock()
	ruleset := e.ruleset
	ruleNames := e.ruleNames
	e.mu.RUnlock()

	env := frame.Variables()
	deps := make(map[string]map[string]bool, len(ruleset.Rules))
	for i := range ruleset.Rules {
		deps[ruleset.Rules[i].Name] = ruleDependencies(ruleset.Rules[i].ExpressionText, ruleNames)
	}

	resolved := make(map[string]bool, len(ruleset.Rules))
	out := domain.DesktopFrame{
		FacePresent:    true,
		Expressions:    make(map[string]string),
		Interpolations: make(map[string]string),
		Extremums:      make(map[string]domain.Extremum),
	}

	for pass := 0; pass < e.maxEvaluationIterations; pass++ {
		progressed := false

		for i := range ruleset.Rules {
			rule := &ruleset.Rules[i]
			if resolved[rule.Name] {
				continue
			}
			if !ready(deps[rule.Name], resolved) {
				continue
			}
			resolved[rule.Name] = true
			progressed = true

			value, ok := e.evalRule(rule, env)
			if !ok {
				e.failedTransformations.Add(1)
				continue
			}

			out.Parameters = append(out.Parameters, domain.Parameter{Name: rule.Name, Value: value, Weight: 1.0})
			out.Expressions[rule.Name] = rule.ExpressionText
			out.Interpolations[rule.Name] = interpolationLabel(rule.Interpolation)

			env[rule.Name] = value

			e.mu.Lock()
			ext, ok := e.extremums[rule.Name]
			if !ok {
				ext = &domain.Extremum{}
				e.extremums[rule.Name] = ext
			}
			ext.Observe(value)
			out.Extremums[rule.Name] = *ext
			e.mu.Unlock()
		}

		if !progressed {
			break
		}
	}

	// Rules whose dependencies never resolve (a genuine cycle, e.g.
	// A = B + 1 and B = A + 1) never reach evalRule above since the
	// pass loop breaks as soon as a pass makes no progress. Each such
	// rule still counts as one failed transformation for this frame.
	for i := range ruleset.Rules {
		if !resolved[ruleset.Rules[i].Name] {
			e.failedTransformations.Add(1)
		}
	}

	return out
}

// ready reports whether every dependency in deps has already been resolved.
func ready(deps map[string]bool, resolved map[string]bool) bool {
	for dep := range deps {
		if !resolved[dep] {
			return false
		}
	}
	return true
}

// evalRule evaluates a single rule's compiled expression against env,
// applies interpolation, and clamps to [min,max]. Returns ok=false if
// evaluation errors or produces a non-finite result.
func (e *Engine) evalRule(rule *domain.Rule, env map[string]interface{}) (float64, bool) {
	result, err := vm.Run(rule.Expression, env)
	if err != nil {
		return 0, false
	}

	v, ok := toFloat(result)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	t := normalize(v, rule.Min, rule.Max)
	return e.interpolate(rule, v, t), true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func interpolationLabel(i *domain.Interpolation) string {
	if i == nil {
		return "none"
	}
	return string(i.Kind)
}
