package rules

import (
	"encoding/json"
	"fmt"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

// MarshalRules serializes already-compiled rules back into the on-disk wire
// shape, for a durable Cache implementation to persist as a last-good
// snapshot. Rules passed in are assumed already valid (compiled elsewhere),
// so no per-rule validation errors are possible here.
func MarshalRules(rules []domain.Rule) ([]byte, error) {
	raws := make([]wireRule, 0, len(rules))
	for _, rule := range rules {
		raws = append(raws, toWireRule(rule))
	}
	return json.Marshal(raws)
}

// UnmarshalRules parses and recompiles rules previously serialized with
// MarshalRules. A rule that fails recompilation is dropped rather than
// failing the whole snapshot load, since a durable cache read only happens
// after a catastrophic failure of the primary source — partial recovery is
// better than none.
func UnmarshalRules(data []byte) ([]domain.Rule, error) {
	var raws []wireRule
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parsing cached ruleset: %w", err)
	}

	seen := make(map[string]bool, len(raws))
	valid := make([]domain.Rule, 0, len(raws))
	for _, raw := range raws {
		rule, invErr := compileRule(raw, seen)
		if invErr != nil {
			continue
		}
		seen[rule.Name] = true
		valid = append(valid, rule)
	}
	return valid, nil
}

func toWireRule(rule domain.Rule) wireRule {
	w := wireRule{
		Name:         rule.Name,
		Func:         rule.ExpressionText,
		Min:          rule.Min,
		Max:          rule.Max,
		DefaultValue: rule.DefaultValue,
	}
	if rule.Interpolation != nil {
		wi := &wireInterpolation{ControlPoints: rule.Interpolation.ControlPoints}
		switch rule.Interpolation.Kind {
		case domain.InterpolationBezier:
			wi.Type = wireBezier
		default:
			wi.Type = wireLinear
		}
		w.Interpolation = wi
	}
	return w
}
