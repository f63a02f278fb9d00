package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/storage"
)

// SourceRepository implements storage.SourceRepository for BadgerDB.
type SourceRepository struct {
	backend *Backend
	chunks  *ChunkRepository
}

var _ storage.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository creates a new SourceRepository. The chunk repository
// is used to cascade deletes.
func NewSourceRepository(backend *Backend, chunks *ChunkRepository) *SourceRepository {
	return &SourceRepository{
		backend: backend,
		chunks:  chunks,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *SourceRepository) Close() error {
	return nil
}

// AddSources stores new sources in status pending.
func (r *SourceRepository) AddSources(ctx context.Context, sources ...*core.Source) ([]*core.Source, error) {
	for _, source := range sources {
		source.Status = core.SourceStatusPending
		if err := core.ValidateSource(source); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, source := range sources {
			bot, err := readBot(tx, makeBotKey(source.BotId))
			if err != nil {
				return err
			}
			if bot == nil {
				return storage.ErrNotFound
			}
			if source.Id == "" {
				source.Id = core.NewID()
			}
			source.Error = ""
			source.CreatedAt = time.Now().UTC()
			source.UpdatedAt = source.CreatedAt

			if err := tx.Set(makeSourceKey(source.Id), storage.MarshalSource(source)); err != nil {
				return err
			}
			indexKey := makeBotSourceKey(source.BotId, source.CreatedAt, source.Id)
			if err := tx.Set(indexKey, []byte(source.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// UpdateSources stores new state for existing sources.
func (r *SourceRepository) UpdateSources(ctx context.Context, sources ...*core.Source) ([]*core.Source, error) {
	for _, source := range sources {
		if err := core.ValidateSource(source); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, source := range sources {
			key := makeSourceKey(source.Id)
			old, err := readSource(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}
			// Ownership and creation time are fixed at creation.
			source.BotId = old.BotId
			source.CreatedAt = old.CreatedAt
			source.UpdatedAt = time.Now().UTC()
			if err := tx.Set(key, storage.MarshalSource(source)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return sources, nil
}

// GetSource retrieves a source by id.
func (r *SourceRepository) GetSource(ctx context.Context, id string) (*core.Source, error) {
	var result *core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readSource(tx, makeSourceKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// ListSources returns a bot's sources in creation order.
func (r *SourceRepository) ListSources(ctx context.Context, botID string) ([]*core.Source, error) {
	return r.listSources(botID, func(*core.Source) bool { return true })
}

// ListSourcesByStatus returns a bot's sources with the given status in creation order.
func (r *SourceRepository) ListSourcesByStatus(ctx context.Context, botID string, status core.SourceStatus) ([]*core.Source, error) {
	return r.listSources(botID, func(s *core.Source) bool { return s.Status == status })
}

func (r *SourceRepository) listSources(botID string, keep func(*core.Source) bool) ([]*core.Source, error) {
	var results []*core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return forEachValue(tx, makeBotSourcePrefix(botID), func(val []byte) error {
			source, err := readSource(tx, makeSourceKey(string(val)))
			if err != nil {
				return err
			}
			if source != nil && keep(source) {
				results = append(results, source)
			}
			return nil
		})
	}, false)
	return results, err
}

// DeleteSource removes a source together with its chunks and embeddings.
func (r *SourceRepository) DeleteSource(ctx context.Context, id string) error {
	source, err := r.GetSource(ctx, id)
	if err != nil {
		return err
	}

	chunkIDs, err := r.chunks.ListChunkIDsForSource(ctx, id)
	if err != nil {
		return err
	}
	if err := r.chunks.DeleteChunks(ctx, source.BotId, chunkIDs...); err != nil {
		return err
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeBotSourceKey(source.BotId, source.CreatedAt, source.Id)); err != nil {
			return err
		}
		if err := tx.Delete(makeSourceKey(source.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

func readSource(tx *badger.Txn, key []byte) (*core.Source, error) {
	val, err := readValue(tx, key)
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalSource(val)
}
