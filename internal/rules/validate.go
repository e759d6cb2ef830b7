package rules

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

const (
	minNameLength = 4
	maxNameLength = 32
	minBezierCtrl = 2
	maxBezierCtrl = 8
)

// compileRule runs the §4.A load pipeline against a single wire rule,
// returning either a usable domain.Rule or a domain.InvalidRule explaining
// why it was rejected.
func compileRule(raw wireRule, seen map[string]bool) (domain.Rule, *domain.InvalidRule) {
	name := strings.TrimSpace(raw.Name)
	switch {
	case name == "":
		return domain.Rule{}, &domain.InvalidRule{Name: raw.Name, ExpressionText: raw.Func, Error: "name empty", Kind: domain.InvalidRuleName}
	case len(name) < minNameLength:
		return domain.Rule{}, &domain.InvalidRule{Name: raw.Name, ExpressionText: raw.Func, Error: "name too short", Kind: domain.InvalidRuleName}
	case len(name) > maxNameLength:
		return domain.Rule{}, &domain.InvalidRule{Name: raw.Name, ExpressionText: raw.Func, Error: "name too long", Kind: domain.InvalidRuleName}
	}

	if seen[name] {
		return domain.Rule{}, &domain.InvalidRule{Name: name, ExpressionText: raw.Func, Error: "duplicate rule name", Kind: domain.InvalidRuleDuplicate}
	}

	exprText := strings.TrimSpace(raw.Func)
	if exprText == "" {
		return domain.Rule{}, &domain.InvalidRule{Name: name, ExpressionText: raw.Func, Error: "expression empty", Kind: domain.InvalidRuleExpression}
	}

	program, err := expr.Compile(exprText)
	if err != nil {
		return domain.Rule{}, &domain.InvalidRule{Name: name, ExpressionText: exprText, Error: err.Error(), Kind: domain.InvalidRuleExpression}
	}

	if raw.Min > raw.Max {
		return domain.Rule{}, &domain.InvalidRule{Name: name, ExpressionText: exprText, Error: "min greater than max", Kind: domain.InvalidRuleRange}
	}

	var interp *domain.Interpolation
	if raw.Interpolation != nil {
		var invErr *domain.InvalidRule
		interp, invErr = compileInterpolation(name, exprText, raw.Interpolation)
		if invErr != nil {
			return domain.Rule{}, invErr
		}
	}

	defaultValue := raw.DefaultValue
	if defaultValue < raw.Min {
		defaultValue = raw.Min
	} else if defaultValue > raw.Max {
		defaultValue = raw.Max
	}

	return domain.Rule{
		Name:           name,
		ExpressionText: exprText,
		Expression:     program,
		Min:            raw.Min,
		Max:            raw.Max,
		DefaultValue:   defaultValue,
		Interpolation:  interp,
	}, nil
}

func compileInterpolation(name, exprText string, raw *wireInterpolation) (*domain.Interpolation, *domain.InvalidRule) {
	switch raw.Type {
	case wireLinear:
		return &domain.Interpolation{Kind: domain.InterpolationLinear}, nil
	case wireBezier:
		n := len(raw.ControlPoints)
		if n%2 != 0 {
			return nil, &domain.InvalidRule{Name: name, ExpressionText: exprText, Error: "bezier control points must be x,y pairs", Kind: domain.InvalidRuleInterpolation}
		}
		points := n / 2
		if points < minBezierCtrl || points > maxBezierCtrl {
			return nil, &domain.InvalidRule{Name: name, ExpressionText: exprText, Error: fmt.Sprintf("bezier control point count %d outside [%d,%d]", points, minBezierCtrl, maxBezierCtrl), Kind: domain.InvalidRuleInterpolation}
		}
		for _, c := range raw.ControlPoints {
			if c < 0 || c > 1 {
				return nil, &domain.InvalidRule{Name: name, ExpressionText: exprText, Error: "bezier control point coordinate outside [0,1]", Kind: domain.InvalidRuleInterpolation}
			}
		}
		return &domain.Interpolation{Kind: domain.InterpolationBezier, ControlPoints: append([]float64(nil), raw.ControlPoints...)}, nil
	default:
		return nil, &domain.InvalidRule{Name: name, ExpressionText: exprText, Error: fmt.Sprintf("unknown interpolation type %q", raw.Type), Kind: domain.InvalidRuleInterpolation}
	}
}
