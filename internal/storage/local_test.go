package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Local {
	t.Helper()
	store, err := NewLocal(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return store
}

func TestNewLocal_CreatesDirectory(t *testing.T) {
	store := newTestStore(t)

	info, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSave_GeneratesNameAndKeepsExtension(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save(".PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(name, ".png"), "extension should be lower-cased, got %q", name)
	assert.Len(t, strings.TrimSuffix(name, ".png"), 32)
	assert.True(t, store.Exists(name))

	data, err := os.ReadFile(filepath.Join(store.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	// no temp files left behind
	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSave_TwoUploadsNeverCollide(t *testing.T) {
	store := newTestStore(t)

	a, err := store.Save(".jpg", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Save(".jpg", strings.NewReader("b"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSave_FailedCopyLeavesNothing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(".gif", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRemove(t *testing.T) {
	store := newTestStore(t)
	name, err := store.Save(".webp", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(name))
	assert.False(t, store.Exists(name))

	// already gone is fine
	assert.NoError(t, store.Remove(name))
}

func TestRemove_RejectsPaths(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"", "..", "../secret.png", "nested/file.png"} {
		assert.Error(t, store.Remove(name), "Remove(%q)", name)
		assert.False(t, store.Exists(name), "Exists(%q)", name)
	}
}
