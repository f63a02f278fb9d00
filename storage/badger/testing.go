package badger

import (
	"errors"

	"github.com/poiesic/knowbot/storage"
)

// Repositories bundles the repositories that share one backend.
type Repositories struct {
	Bots    storage.BotRepository
	Sources storage.SourceRepository
	Chunks  storage.ChunkRepository
	Backend *Backend
}

// OpenRepositories opens a backend at path and creates every repository on it.
// Caller must Close the returned Repositories when done.
func OpenRepositories(path string, inMemory bool) (*Repositories, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}

	chunks, err := NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Bots:    NewBotRepository(backend),
		Sources: NewSourceRepository(backend, chunks),
		Chunks:  chunks,
		Backend: backend,
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
func NewMemoryRepositories() (*Repositories, error) {
	return OpenRepositories("", true)
}

// Close closes every repository and then the backend.
func (r *Repositories) Close() error {
	return errors.Join(
		r.Bots.Close(),
		r.Sources.Close(),
		r.Chunks.Close(),
		r.Backend.Close(),
	)
}
