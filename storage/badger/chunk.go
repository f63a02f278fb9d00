package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}

	return &ChunkRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// CreateChunk stores a chunk under a fresh sequence id.
func (r *ChunkRepository) CreateChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error) {
	if err := core.ValidateChunk(chunk); err != nil {
		return nil, err
	}

	nextID, err := r.idSeq.Next()
	if err != nil {
		return nil, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		if nextID, err = r.idSeq.Next(); err != nil {
			return nil, err
		}
	}
	chunk.Id = core.ID(nextID)
	chunk.CreatedAt = time.Now().UTC()
	if chunk.ContentHash == 0 {
		chunk.ContentHash = core.IDFromContent(chunk.Content)
	}

	err = r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeChunkKey(chunk.BotId, chunk.Id), storage.MarshalChunk(chunk)); err != nil {
			return err
		}
		if err := tx.Set(makeSourceChunkKey(chunk.SourceId, chunk.Id), []byte{}); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// CreateEmbedding stores the embedding for an existing chunk.
func (r *ChunkRepository) CreateEmbedding(ctx context.Context, embedding *core.Embedding) error {
	return r.putEmbeddings(embedding)
}

// ReplaceEmbeddings overwrites the embeddings of existing chunks.
func (r *ChunkRepository) ReplaceEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error {
	return r.putEmbeddings(embeddings...)
}

func (r *ChunkRepository) putEmbeddings(embeddings ...*core.Embedding) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, embedding := range embeddings {
			if len(embedding.Vector) == 0 {
				return fmt.Errorf("%w: empty vector for chunk %d", storage.ErrInvalidQuery, embedding.ChunkId)
			}
			val, err := readValue(tx, makeChunkKey(embedding.BotId, embedding.ChunkId))
			if err != nil {
				return err
			}
			if val == nil {
				return storage.ErrNotFound
			}
			key := makeEmbeddingKey(embedding.BotId, embedding.ChunkId)
			if err := tx.Set(key, storage.MarshalEmbedding(embedding)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunks retrieves chunks by id. Missing ids are skipped.
func (r *ChunkRepository) GetChunks(ctx context.Context, botID string, ids ...core.ID) ([]*core.Chunk, error) {
	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(botID, id))
			if err != nil {
				return err
			}
			if chunk != nil {
				results = append(results, chunk)
			}
		}
		return nil
	}, false)
	return results, err
}

// ListChunks returns up to limit chunks of a bot with Id > afterID, in Id order.
func (r *ChunkRepository) ListChunks(ctx context.Context, botID string, afterID core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkPrefix(botID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkKey(botID, afterID+1)); iter.Valid() && len(results) < limit; iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, chunk)
		}
		return nil
	}, false)
	return results, err
}

// ListChunkIDsForSource returns the ids of every chunk created from a source.
func (r *ChunkRepository) ListChunkIDsForSource(ctx context.Context, sourceID string) ([]core.ID, error) {
	var ids []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return forEachKey(tx, makeSourceChunkPrefix(sourceID), func(key []byte) error {
			ids = append(ids, trailingID(key))
			return nil
		})
	}, false)
	return ids, err
}

// DeleteChunks removes chunks, their embeddings and index entries.
func (r *ChunkRepository) DeleteChunks(ctx context.Context, botID string, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}

	var keys [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(botID, id))
			if err != nil {
				return err
			}
			if chunk == nil {
				continue
			}
			keys = append(keys,
				makeChunkKey(botID, id),
				makeEmbeddingKey(botID, id),
				makeSourceChunkKey(chunk.SourceId, id),
			)
		}
		return nil
	}, false)
	if err != nil {
		return err
	}
	return r.backend.deleteKeys(keys)
}

// FindChunksAndEmbeddingsForBot loads every embedded chunk of a bot in Id order.
func (r *ChunkRepository) FindChunksAndEmbeddingsForBot(ctx context.Context, botID string) ([]*core.ChunkWithEmbedding, error) {
	var results []*core.ChunkWithEmbedding
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return forEachValue(tx, makeChunkPrefix(botID), func(val []byte) error {
			chunk, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			embVal, err := readValue(tx, makeEmbeddingKey(botID, chunk.Id))
			if err != nil {
				return err
			}
			// Chunks persisted without a vector (e.g. a crash between the two
			// writes) are not retrievable.
			if embVal == nil {
				return nil
			}
			embedding, err := storage.UnmarshalEmbedding(embVal)
			if err != nil {
				return err
			}
			results = append(results, &core.ChunkWithEmbedding{
				Chunk:  chunk,
				Vector: embedding.Vector,
			})
			return nil
		})
	}, false)
	return results, err
}

// CountChunksForBot returns the number of chunks stored for a bot.
func (r *ChunkRepository) CountChunksForBot(ctx context.Context, botID string) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return forEachKey(tx, makeChunkPrefix(botID), func([]byte) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	val, err := readValue(tx, key)
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalChunk(val)
}
