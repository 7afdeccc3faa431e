package credentials

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.Load("6281234567890")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save("6281234567890", []byte(`{"noise":"abc"}`)))

	blob, err := store.Load("6281234567890")
	require.NoError(t, err)
	assert.JSONEq(t, `{"noise":"abc"}`, string(blob))

	require.NoError(t, store.Delete("6281234567890"))
	_, err = store.Load("6281234567890")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, store.Delete("6281234567890"))
}

func TestFileStoreRejectsTraversalKeys(t *testing.T) {
	store := NewFileStore(t.TempDir())
	assert.Error(t, store.Save("../escape", []byte("x")))
	assert.Error(t, store.Save("", []byte("x")))
}

func TestSweeperRemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	require.NoError(t, store.Save("6281234567890", []byte("old")))
	require.NoError(t, store.Save("6289876543210", []byte("fresh")))

	stalePath := filepath.Join(dir, "6281234567890"+credFileSuffix)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stalePath, old, old))

	sweeper := NewSweeper(dir, time.Hour, time.Minute, nil)
	assert.Equal(t, 1, sweeper.SweepOnce(time.Now()))

	_, err := store.Load("6281234567890")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Load("6289876543210")
	assert.NoError(t, err)
}
