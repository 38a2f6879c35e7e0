package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-ai/quarry/core"
)

func writeEntry(t *testing.T, dir, name string, space *core.Space) string {
	t.Helper()
	raw, err := json.Marshal(space)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func TestReconcile_LegacyWithMorePagesWins(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	writeEntry(t, dir, "ENG.json", testSpace("ENG", 2))
	writeEntry(t, dir, "ENG_full.json", testSpace("ENG", 5))

	res, err := store.Reconcile(true)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "ENG", res[0].Key)

	got, err := store.Load("ENG")
	require.NoError(t, err)
	assert.Len(t, got.Pages, 5)

	_, statErr := os.Stat(filepath.Join(dir, "ENG_full.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReconcile_CanonicalWithMorePagesWins(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	writeEntry(t, dir, "ENG.json", testSpace("ENG", 5))
	writeEntry(t, dir, "ENG_full.json", testSpace("ENG", 2))

	_, err = store.Reconcile(true)
	require.NoError(t, err)

	got, err := store.Load("ENG")
	require.NoError(t, err)
	assert.Len(t, got.Pages, 5)

	_, statErr := os.Stat(filepath.Join(dir, "ENG_full.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReconcile_TieBreaksOnByteSize(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	small := testSpace("ENG", 2)
	big := testSpace("ENG", 2)
	big.Pages[0].Body = "<p>a much longer body with substantially more content</p>"

	writeEntry(t, dir, "ENG.json", small)
	writeEntry(t, dir, "ENG_full.json", big)

	_, err = store.Reconcile(true)
	require.NoError(t, err)

	got, err := store.Load("ENG")
	require.NoError(t, err)
	assert.Equal(t, big.Pages[0].Body, got.Pages[0].Body)
}

func TestReconcile_NoCanonicalPromotesLegacy(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	writeEntry(t, dir, "SOLO_full.json", testSpace("SOLO", 3))

	_, err = store.Reconcile(true)
	require.NoError(t, err)

	got, err := store.Load("SOLO")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Pages, 3)
}

func TestReconcile_DryRunLeavesFilesAlone(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	writeEntry(t, dir, "ENG.json", testSpace("ENG", 1))
	writeEntry(t, dir, "ENG_full.json", testSpace("ENG", 4))

	res, err := store.Reconcile(false)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, filepath.Join(dir, "ENG_full.json"), res[0].Dropped)

	// Both files still present.
	_, err = os.Stat(filepath.Join(dir, "ENG.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "ENG_full.json"))
	assert.NoError(t, err)
}

func TestReconcile_UnreadableLegacyDropped(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	writeEntry(t, dir, "ENG.json", testSpace("ENG", 1))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ENG_full.json"), []byte("not json"), 0o644))

	_, err = store.Reconcile(true)
	require.NoError(t, err)

	got, err := store.Load("ENG")
	require.NoError(t, err)
	assert.Len(t, got.Pages, 1)

	_, statErr := os.Stat(filepath.Join(dir, "ENG_full.json"))
	assert.True(t, os.IsNotExist(statErr))
}
