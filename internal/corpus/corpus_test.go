package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSource(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	return dir
}

func TestDiscover(t *testing.T) {
	dir := setupSource(t, "b.txt", "a.txt", "notes.md")
	docs, err := Discover(dir, "txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, docs)
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), "txt")
	require.Error(t, err)
}

func TestFilter(t *testing.T) {
	docs := []string{"a", "b", "c"}

	got, err := Filter(docs, nil)
	require.NoError(t, err)
	assert.Equal(t, docs, got)

	got, err = Filter(docs, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, got)

	_, err = Filter(docs, []string{"z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `document "z" not found`)
}
