package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileRule(t *testing.T) {
	tests := []struct {
		name      string
		raw       wireRule
		seen      map[string]bool
		wantKind  string // empty means no error expected
	}{
		{
			name: "valid rule",
			raw:  wireRule{Name: "BrowOuterUp", Func: "BrowOuterUpL + BrowOuterUpR", Min: 0, Max: 1, DefaultValue: 0},
		},
		{
			name:     "name empty",
			raw:      wireRule{Name: "   ", Func: "1"},
			wantKind: "name",
		},
		{
			name:     "name too short",
			raw:      wireRule{Name: "abc", Func: "1"},
			wantKind: "name",
		},
		{
			name:     "name too long",
			raw:      wireRule{Name: "this_name_is_definitely_longer_than_32_chars", Func: "1"},
			wantKind: "name",
		},
		{
			name:     "duplicate name",
			raw:      wireRule{Name: "ValidName", Func: "1"},
			seen:     map[string]bool{"ValidName": true},
			wantKind: "duplicate",
		},
		{
			name:     "empty expression",
			raw:      wireRule{Name: "ValidName", Func: "   "},
			wantKind: "expression",
		},
		{
			name:     "expression syntax error",
			raw:      wireRule{Name: "ValidName", Func: "1 +"},
			wantKind: "expression",
		},
		{
			name:     "min greater than max",
			raw:      wireRule{Name: "ValidName", Func: "1", Min: 5, Max: 1},
			wantKind: "range",
		},
		{
			name: "bezier interpolation valid",
			raw: wireRule{
				Name: "ValidName", Func: "1", Min: 0, Max: 1,
				Interpolation: &wireInterpolation{Type: wireBezier, ControlPoints: []float64{0, 0, 1, 1}},
			},
		},
		{
			name: "bezier too few control points",
			raw: wireRule{
				Name: "ValidName", Func: "1", Min: 0, Max: 1,
				Interpolation: &wireInterpolation{Type: wireBezier, ControlPoints: []float64{0, 0}},
			},
			wantKind: "interpolation",
		},
		{
			name: "bezier coordinate out of range",
			raw: wireRule{
				Name: "ValidName", Func: "1", Min: 0, Max: 1,
				Interpolation: &wireInterpolation{Type: wireBezier, ControlPoints: []float64{0, 0, 1, 1.5}},
			},
			wantKind: "interpolation",
		},
		{
			name: "unknown interpolation type",
			raw: wireRule{
				Name: "ValidName", Func: "1", Min: 0, Max: 1,
				Interpolation: &wireInterpolation{Type: "CubicSpline"},
			},
			wantKind: "interpolation",
		},
		{
			name: "default value clamped below min",
			raw:  wireRule{Name: "ValidName", Func: "1", Min: 0.5, Max: 1, DefaultValue: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := tt.seen
			if seen == nil {
				seen = map[string]bool{}
			}
			rule, invalid := compileRule(tt.raw, seen)
			if tt.wantKind == "" {
				require.Nil(t, invalid)
				assert.Equal(t, tt.raw.Name, rule.Name)
				assert.NotNil(t, rule.Expression)
				assert.GreaterOrEqual(t, rule.DefaultValue, rule.Min)
				assert.LessOrEqual(t, rule.DefaultValue, rule.Max)
				return
			}
			require.NotNil(t, invalid)
			assert.Equal(t, tt.wantKind, string(invalid.Kind))
		})
	}
}
