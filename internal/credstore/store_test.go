package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreSetGetClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.token")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, ok := store.Get()
	assert.False(t, ok, "empty store must report absent")

	require.NoError(t, store.Set("T"))
	token, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "T", token)

	require.NoError(t, store.Set("T2"))
	token, ok = store.Get()
	require.True(t, ok)
	assert.Equal(t, "T2", token, "set overwrites the previous value")

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	assert.False(t, ok)
	require.NoError(t, store.Clear(), "clearing an absent token is not an error")
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.token")
	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Set("persisted"))

	// новый экземпляр поверх того же файла — аналог перезапуска приложения
	second, err := NewFileStore(path)
	require.NoError(t, err)
	token, ok := second.Get()
	require.True(t, ok)
	assert.Equal(t, "persisted", token)
}

func TestFileStoreBlankFileMeansAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.token")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))
	store, err := NewFileStore(path)
	require.NoError(t, err)
	_, ok := store.Get()
	assert.False(t, ok)
}

func TestFileStoreUnreadableDegradesToAbsent(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "missing", "deeper", "session.token"))
	require.NoError(t, err)
	_, ok := store.Get()
	assert.False(t, ok)
}

func TestFileStoreEmptyPath(t *testing.T) {
	_, err := NewFileStore("  ")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	_, ok := store.Get()
	assert.False(t, ok)

	require.NoError(t, store.Set("T"))
	token, ok := store.Get()
	require.True(t, ok)
	assert.Equal(t, "T", token)

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	assert.False(t, ok)
}
