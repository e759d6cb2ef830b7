package rules

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

func TestMarshalUnmarshalRules_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := writeRulesFile(t, dir, []wireRule{
		{Name: "BrowUpLeft", Func: "BrowOuterUpL", Min: 0, Max: 1, DefaultValue: 0.5,
			Interpolation: &wireInterpolation{Type: wireBezier, ControlPoints: []float64{0.2, 0.4, 0.6, 0.8}}},
	})

	repo := NewRepository(path, slog.Default(), nil, nil)
	report := repo.Load()
	require.NoError(t, report.LoadError)
	require.Len(t, report.ValidRules, 1)

	data, err := MarshalRules(report.ValidRules)
	require.NoError(t, err)

	restored, err := UnmarshalRules(data)
	require.NoError(t, err)
	require.Len(t, restored, 1)

	assert.Equal(t, "BrowUpLeft", restored[0].Name)
	assert.Equal(t, 0.5, restored[0].DefaultValue)
	require.NotNil(t, restored[0].Interpolation)
	assert.Equal(t, domain.InterpolationBezier, restored[0].Interpolation.Kind)
	assert.Equal(t, []float64{0.2, 0.4, 0.6, 0.8}, restored[0].Interpolation.ControlPoints)
}

func TestUnmarshalRules_DropsUncompilableEntries(t *testing.T) {
	data, err := MarshalRules([]domain.Rule{
		{Name: "MouthSmile", ExpressionText: "1", Min: 0, Max: 1},
		{Name: "BrokenRule", ExpressionText: "1 +", Min: 0, Max: 1},
	})
	require.NoError(t, err)

	restored, err := UnmarshalRules(data)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "MouthSmile", restored[0].Name)
}
