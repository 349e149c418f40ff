package togglekit_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	togglekit "github.com/togglekit/togglekit-go"
	"github.com/togglekit/togglekit-go/flagengine/evalcontext"
	"github.com/togglekit/togglekit-go/flagengine/flags"
)

func TestFileStoreLoadMissingFileIsEmptyState(t *testing.T) {
	t.Parallel()
	store := togglekit.NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestFileStoreSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "flags.json")
	store := togglekit.NewFileStore(path)

	source := populatedEngine(t)
	require.NoError(t, store.Save(source.ExportConfiguration()))

	doc, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Len(t, doc.Flags, 2)
	assert.Contains(t, doc.UserOverrides, "u1")
}

func TestFileStoreLoadRejectsCorruptFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

	_, err := togglekit.NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestImportedConfigurationIsPersisted(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "imported.json")

	first := togglekit.New(togglekit.WithPersistence(togglekit.NewFileStore(path)))
	doc := &togglekit.ConfigDocument{Flags: []*flags.FeatureFlag{boolFlag("imported", true)}}
	require.NoError(t, first.ImportConfiguration(doc))
	first.Close()

	// The imported state must survive a restart like any other mutation.
	second := togglekit.New(togglekit.WithPersistence(togglekit.NewFileStore(path)))
	defer second.Close()

	_, ok := second.GetFlag("imported")
	assert.True(t, ok)
}

func TestEnginePersistsAndReloadsThroughFileStore(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "engine.json")

	first := togglekit.New(togglekit.WithPersistence(togglekit.NewFileStore(path)))
	require.NoError(t, first.RegisterFlag(boolFlag("persisted", true)))
	require.NoError(t, first.SetUserOverride("u1", "persisted", flags.NewBool(false)))
	first.Close()

	second := togglekit.New(togglekit.WithPersistence(togglekit.NewFileStore(path)))
	defer second.Close()

	flag, ok := second.GetFlag("persisted")
	require.True(t, ok)
	assert.True(t, flag.DefaultValue.AsBool())

	result := second.Evaluate("persisted", &evalcontext.Context{UserID: "u1"})
	assert.False(t, result.Enabled())
	assert.Equal(t, togglekit.SourceUserOverride, result.Source)
}
