package badger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := OpenBackend(file, false)
	assert.ErrorContains(t, err, "is not a directory")
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestDeleteKeys_SpansTransactions(t *testing.T) {
	repos := setupRepositories(t)
	backend := repos.Backend
	ctx := t.Context()

	bot := addBot(t, repos)
	source := addSource(t, repos, bot.Id, "https://example.com")

	// Enough chunks that the three keys per chunk exceed one delete transaction.
	for i := 0; i < maxKeysPerTxn/2; i++ {
		addChunk(t, repos, bot.Id, source.Id, "chunk content")
	}

	ids, err := repos.Chunks.ListChunkIDsForSource(ctx, source.Id)
	require.NoError(t, err)
	require.Len(t, ids, maxKeysPerTxn/2)

	require.NoError(t, repos.Chunks.DeleteChunks(ctx, bot.Id, ids...))
	assert.False(t, backend.IsClosed())

	count, err := repos.Chunks.CountChunksForBot(ctx, bot.Id)
	require.NoError(t, err)
	assert.Zero(t, count)
}
