package rules

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRulesFile(t *testing.T, dir string, rules []wireRule) string {
	t.Helper()
	path := filepath.Join(dir, "rules.json")
	data, err := json.Marshal(rules)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestRepository_Load_ValidAndInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeRulesFile(t, dir, []wireRule{
		{Name: "BrowUpLeft", Func: "BrowOuterUpL", Min: 0, Max: 1, DefaultValue: 0},
		{Name: "bad", Func: "1"}, // name too short
	})

	repo := NewRepository(path, slog.Default(), nil, nil)
	report := repo.Load()

	require.NoError(t, report.LoadError)
	assert.False(t, report.LoadedFromCache)
	assert.Len(t, report.ValidRules, 1)
	assert.Len(t, report.InvalidRules, 1)
	assert.Equal(t, "name", string(report.InvalidRules[0].Kind))
}

func TestRepository_Load_MissingFileFallsBackToLastGood(t *testing.T) {
	dir := t.TempDir()
	path := writeRulesFile(t, dir, []wireRule{
		{Name: "BrowUpLeft", Func: "BrowOuterUpL", Min: 0, Max: 1, DefaultValue: 0},
	})

	repo := NewRepository(path, slog.Default(), nil, nil)
	first := repo.Load()
	require.NoError(t, first.LoadError)
	require.Len(t, first.ValidRules, 1)

	require.NoError(t, os.Remove(path))

	second := repo.Load()
	assert.Error(t, second.LoadError)
	assert.True(t, second.LoadedFromCache)
	assert.Len(t, second.ValidRules, 1)
}

func TestRepository_Load_MissingFileNoPriorSuccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.json")

	repo := NewRepository(path, slog.Default(), nil, nil)
	report := repo.Load()

	assert.Error(t, report.LoadError)
	assert.False(t, report.LoadedFromCache)
	assert.Empty(t, report.ValidRules)
}

func TestRepository_Load_DuplicateNamesSecondInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeRulesFile(t, dir, []wireRule{
		{Name: "MouthSmile", Func: "1", Min: 0, Max: 1},
		{Name: "MouthSmile", Func: "2", Min: 0, Max: 1},
	})

	repo := NewRepository(path, slog.Default(), nil, nil)
	report := repo.Load()

	require.NoError(t, report.LoadError)
	require.Len(t, report.ValidRules, 1)
	require.Len(t, report.InvalidRules, 1)
	assert.Equal(t, "duplicate", string(report.InvalidRules[0].Kind))
}
