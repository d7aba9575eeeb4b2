package selection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reglet-dev/classrunner/internal/application/dto"
	"github.com/reglet-dev/classrunner/internal/domain/entities"
	"github.com/reglet-dev/classrunner/internal/domain/values"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SetGetClear(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "selection.yaml")
	store := NewFileStore(path)

	_, ok := store.Get("clpkg")
	assert.False(t, ok)

	store.Set("clpkg", "Dev")
	require.NoError(t, store.Err())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "selections:\n  clpkg: Dev\n", string(content))

	// A second store sees the persisted value.
	again := NewFileStore(path)
	v, ok := again.Get("clpkg")
	assert.True(t, ok)
	assert.Equal(t, "Dev", v)

	again.Clear("clpkg")
	require.NoError(t, again.Err())
	_, ok = NewFileStore(path).Get("clpkg")
	assert.False(t, ok)
}

func TestFileStore_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "selection.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selections: [unclosed"), 0o600))

	store := NewFileStore(path)
	_, ok := store.Get("clpkg")
	assert.False(t, ok)
	assert.ErrorContains(t, store.Err(), "failed to parse selection file")
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	store.Set("k", "v")
	v, ok := store.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	store.Clear("k")
	_, ok = store.Get("k")
	assert.False(t, ok)
}

func TestTerminalPrompter_IsInteractive(t *testing.T) {
	// Not t.Parallel() because it interacts with os.Stdin
	prompter := NewTerminalPrompter()
	assert.IsType(t, true, prompter.IsInteractive())
}

func TestProfileOptions(t *testing.T) {
	t.Parallel()

	snapshot := entities.NewPackageSet()
	snapshot.Add("http://r/util-2.0-SNAPSHOT/", values.Snapshot)
	stable := entities.NewPackageSet()
	stable.Add("http://r/lib-1.0.jar", values.Stable)

	opts := ProfileOptions([]dto.ProfileSummary{
		{Ref: values.ParseProfileRef("Dev"), Packages: snapshot},
		{Ref: values.ParseProfileRef("Loop"), Error: "profile cycle"},
		{Ref: values.ParseProfileRef("Alice"), Packages: stable},
		{Ref: values.ParseProfileRef("Empty"), Packages: entities.NewPackageSet()},
	})

	require.Len(t, opts, 3)
	assert.Equal(t, "Dev (snapshot)", opts[0].Key)
	assert.Equal(t, "ClassRunnerData.Dev", opts[0].Value)
	assert.Equal(t, "Alice", opts[1].Key)
	assert.Equal(t, "Empty (empty)", opts[2].Key)
}
