package rulecache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-labs/facebridge/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rulecache.db")
	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_LoadRuleset_EmptyWhenNoneSaved(t *testing.T) {
	store := openTestStore(t)

	ruleSet, ok, err := store.LoadRuleset()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, ruleSet)
}

func TestStore_SaveAndLoadRuleset_RoundTrips(t *testing.T) {
	store := openTestStore(t)

	rule := domain.Rule{Name: "BrowUpLeft", ExpressionText: "BrowOuterUpL", Min: 0, Max: 1, DefaultValue: 0.3}
	require.NoError(t, store.SaveRuleset([]domain.Rule{rule}))

	loaded, ok, err := store.LoadRuleset()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded, 1)
	assert.Equal(t, "BrowUpLeft", loaded[0].Name)
	assert.Equal(t, 0.3, loaded[0].DefaultValue)
}

func TestStore_SaveRuleset_OverwritesPriorSnapshot(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveRuleset([]domain.Rule{
		{Name: "MouthSmileLeft", ExpressionText: "1", Min: 0, Max: 1},
	}))
	require.NoError(t, store.SaveRuleset([]domain.Rule{
		{Name: "MouthSmileRight", ExpressionText: "1", Min: 0, Max: 1},
	}))

	loaded, ok, err := store.LoadRuleset()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, loaded, 1)
	assert.Equal(t, "MouthSmileRight", loaded[0].Name)
}

func TestStore_SaveAndLoadConfigSnapshot_RoundTrips(t *testing.T) {
	store := openTestStore(t)

	_, ok, err := store.LoadConfigSnapshot()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveConfigSnapshot([]byte(`{"version":"1"}`)))

	data, ok, err := store.LoadConfigSnapshot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"version":"1"}`, string(data))
}
