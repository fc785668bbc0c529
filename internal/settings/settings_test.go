package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/xpost/internal/store"
	"github.com/joss/xpost/pkg/llm"
)

func TestSaveThenLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, llm.DefaultCatalog(nil))
	require.NoError(t, repo.Save(ctx, "openai", "sk-test123", "gpt-4o"))

	s, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "openai", s.ActiveProvider)
	assert.Equal(t, "sk-test123", s.Provider("openai").APIKey)
	assert.Equal(t, "gpt-4o", s.Provider("openai").Model)
}

func TestLoadDefaults(t *testing.T) {
	repo := NewRepository(store.NewMemory(), llm.DefaultCatalog(nil))

	s, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, llm.DefaultProvider, s.ActiveProvider)
	assert.Empty(t, s.Provider("openai").APIKey)
	assert.Equal(t, "gpt-4o", s.Provider("openai").Model)
	assert.Equal(t, "grok-2-1212", s.Provider("xai").Model)
}

func TestSaveUsesLegacyKeys(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	repo := NewRepository(kv, llm.DefaultCatalog(nil))

	require.NoError(t, repo.Save(ctx, "xai", "xai-abc", ""))

	vals, err := kv.Get(ctx, "aiProvider", "xaiApiKey", "xaiModel")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"aiProvider": "xai",
		"xaiApiKey":  "xai-abc",
		"xaiModel":   "grok-2-1212",
	}, vals)
}

func TestSaveRejectsUnknownProvider(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	repo := NewRepository(kv, llm.DefaultCatalog(nil))

	err := repo.Save(ctx, "anthropic", "k", "m")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	vals, err := kv.Get(ctx, "aiProvider", "anthropicApiKey")
	require.NoError(t, err)
	assert.Empty(t, vals)
}

func TestLoadIgnoresUnknownActiveProvider(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Set(ctx, map[string]string{"aiProvider": "gone"}))

	s, err := NewRepository(kv, llm.DefaultCatalog(nil)).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "openai", s.ActiveProvider)
}

func TestLoadIsNeverCached(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	repo := NewRepository(kv, llm.DefaultCatalog(nil))

	require.NoError(t, repo.Save(ctx, "openai", "first", "gpt-4o"))
	s1, _ := repo.Load(ctx)

	// A second writer (another popup) wins.
	require.NoError(t, kv.Set(ctx, map[string]string{"openaiApiKey": "second"}))
	s2, _ := repo.Load(ctx)

	assert.Equal(t, "first", s1.Provider("openai").APIKey)
	assert.Equal(t, "second", s2.Provider("openai").APIKey)
}
