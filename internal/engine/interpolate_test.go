package engine

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

func TestInterpolate_LinearIsIdentity(t *testing.T) {
	e := newTestEngine(t, &stubLoader{})
	rule := &domain.Rule{Min: 0, Max: 10, Interpolation: &domain.Interpolation{Kind: domain.InterpolationLinear}}

	got := e.interpolate(rule, 5, 0.5)
	assert.InDelta(t, 5, got, 1e-9)
}

func TestInterpolate_NoInterpolationClamps(t *testing.T) {
	e := newTestEngine(t, &stubLoader{})
	rule := &domain.Rule{Min: 0, Max: 10}

	assert.InDelta(t, 10, e.interpolate(rule, 15, 1), 1e-9)
	assert.InDelta(t, 0, e.interpolate(rule, -5, 0), 1e-9)
}

func TestInterpolate_BezierIdentityCurveMatchesLinear(t *testing.T) {
	e := newTestEngine(t, &stubLoader{})
	rule := &domain.Rule{
		Name: "BrowUp", Min: 0, Max: 10,
		Interpolation: &domain.Interpolation{Kind: domain.InterpolationBezier, ControlPoints: []float64{0, 0, 1, 1}},
	}

	// Scenario 6's literal precision bound: every sample must land within
	// ±1e-6 of the reference bisection evaluator, not merely within the
	// coarse ~1/256 spacing a sampled lookup table would allow.
	for _, v := range []float64{0, 2.5, 5, 7.5, 10} {
		normalized := normalize(v, rule.Min, rule.Max)
		got := e.interpolate(rule, v, normalized)
		assert.InDelta(t, v, got, 1e-6)
	}
}

func TestBezierValue_MemoCacheReturnsExactPriorResult(t *testing.T) {
	e := newTestEngine(t, &stubLoader{})
	rule := &domain.Rule{
		Name: "BrowUp", Min: 0, Max: 1,
		Interpolation: &domain.Interpolation{Kind: domain.InterpolationBezier, ControlPoints: []float64{0, 0, 0.5, 1, 1, 1}},
	}

	first, err := e.bezierValue(rule, 0.37)
	require.NoError(t, err)
	assert.Equal(t, 1, e.bezierCache.Len())

	key := bezierMemoKey(rule, 0.37)
	_, ok := e.bezierCache.Peek(key)
	require.True(t, ok, "first call must populate the memo cache")

	second, err := e.bezierValue(rule, 0.37)
	require.NoError(t, err)
	assert.Equal(t, first, second, "a cache hit must return the exact value the solver produced, not an interpolation")
}

func TestBezierValue_ArbitraryTMatchesReferenceSolverExactly(t *testing.T) {
	e := newTestEngine(t, &stubLoader{})
	rule := &domain.Rule{
		Name: "BrowUp", Min: 0, Max: 1,
		Interpolation: &domain.Interpolation{Kind: domain.InterpolationBezier, ControlPoints: []float64{0, 0, 0.25, 0.9, 0.75, 0.1, 1, 1}},
	}

	for _, tVal := range []float64{0.01, 0.137, 0.5, 0.623, 0.999} {
		want, err := solveBezier(rule.Interpolation.ControlPoints, tVal)
		require.NoError(t, err)

		got, err := e.bezierValue(rule, tVal)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-6)
	}
}

func TestSolveBezier_RejectsTooFewControlPoints(t *testing.T) {
	_, err := solveBezier([]float64{0, 0}, 0.5)
	assert.Error(t, err)
}

func TestNormalize_ZeroRangeReturnsMidpoint(t *testing.T) {
	assert.InDelta(t, 0.5, normalize(42, 5, 5), 1e-9)
}
