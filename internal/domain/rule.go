package domain

import (
	"fmt"

	"github.com/expr-lang/expr/vm"
)

// InterpolationKind identifies the shape of a rule's output curve.
type InterpolationKind string

const (
	InterpolationLinear InterpolationKind = "Linear"
	InterpolationBezier InterpolationKind = "Bezier"
)

// Interpolation describes how a rule's normalized output is reshaped before
// being scaled back into [Min, Max]. ControlPoints is only meaningful for
// InterpolationBezier: 2-8 points, flattened x1,y1,x2,y2,..., each
// coordinate in [0,1].
type Interpolation struct {
	Kind          InterpolationKind
	ControlPoints []float64
}

// ControlPointCount returns the number of (x,y) control points.
func (i *Interpolation) ControlPointCount() int {
	if i == nil {
		return 0
	}
	return len(i.ControlPoints) / 2
}

// Rule is immutable after compilation. Expression is the compiled program
// over a free-variable set drawn from frame fields and other rule names.
type Rule struct {
	Name           string
	ExpressionText string
	Expression     *vm.Program
	Min            float64 `validate:"required"`
	Max            float64
	DefaultValue   float64
	Interpolation  *Interpolation
}

// InvalidRuleKind classifies why a rule entry failed validation, used for
// reporting in RulesetLoadReport.
type InvalidRuleKind string

const (
	InvalidRuleName          InvalidRuleKind = "name"
	InvalidRuleExpression    InvalidRuleKind = "expression"
	InvalidRuleRange         InvalidRuleKind = "range"
	InvalidRuleInterpolation InvalidRuleKind = "interpolation"
	InvalidRuleDuplicate     InvalidRuleKind = "duplicate"
)

// InvalidRule records a rule entry that failed the load pipeline.
type InvalidRule struct {
	Name           string
	ExpressionText string
	Error          string
	Kind           InvalidRuleKind
}

func (r InvalidRule) String() string {
	return fmt.Sprintf("%s (%s): %s", r.Name, r.Kind, r.Error)
}

// Extremum tracks the observed range of a rule's output across frames,
// reset whenever the owning Ruleset is swapped.
type Extremum struct {
	MinSeen    float64
	MaxSeen    float64
	HasSamples bool
}

// Observe folds a new value into the extremum.
func (e *Extremum) Observe(value float64) {
	if !e.HasSamples {
		e.MinSeen, e.MaxSeen, e.HasSamples = value, value, true
		return
	}
	if value < e.MinSeen {
		e.MinSeen = value
	}
	if value > e.MaxSeen {
		e.MaxSeen = value
	}
}
