package storage

import (
	"context"

	"github.com/poiesic/knowbot/core"
)

// Repository provides lifecycle operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// BotRepository provides operations for managing bots.
type BotRepository interface {
	Repository
	// AddBot validates and stores a new bot.
	// Generates an Id when empty and sets CreatedAt/UpdatedAt.
	AddBot(ctx context.Context, bot *core.Bot) (*core.Bot, error)

	// UpdateBot replaces an existing bot.
	// Returns ErrNotFound if the bot doesn't exist.
	UpdateBot(ctx context.Context, bot *core.Bot) (*core.Bot, error)

	// GetBot retrieves a bot by id.
	// Returns ErrNotFound if the bot doesn't exist.
	GetBot(ctx context.Context, id string) (*core.Bot, error)

	// ListBots returns all bots ordered by id.
	ListBots(ctx context.Context) ([]*core.Bot, error)
}

// SourceRepository provides operations for managing knowledge sources.
type SourceRepository interface {
	Repository
	// AddSources validates and stores new sources in status pending.
	// Generates Ids when empty and sets CreatedAt/UpdatedAt.
	AddSources(ctx context.Context, sources ...*core.Source) ([]*core.Source, error)

	// UpdateSources stores new state for existing sources, typically a
	// status transition. Updates UpdatedAt automatically.
	// Returns ErrNotFound if any source doesn't exist.
	UpdateSources(ctx context.Context, sources ...*core.Source) ([]*core.Source, error)

	// GetSource retrieves a source by id.
	// Returns ErrNotFound if the source doesn't exist.
	GetSource(ctx context.Context, id string) (*core.Source, error)

	// ListSources returns a bot's sources in creation order.
	ListSources(ctx context.Context, botID string) ([]*core.Source, error)

	// ListSourcesByStatus returns a bot's sources with the given status in creation order.
	ListSourcesByStatus(ctx context.Context, botID string, status core.SourceStatus) ([]*core.Source, error)

	// DeleteSource removes a source together with its chunks and embeddings.
	DeleteSource(ctx context.Context, id string) error
}

// ChunkRepository provides operations for chunks and their embeddings.
type ChunkRepository interface {
	Repository
	// CreateChunk validates and stores a chunk, assigning its Id and CreatedAt.
	CreateChunk(ctx context.Context, chunk *core.Chunk) (*core.Chunk, error)

	// CreateEmbedding stores the embedding for an existing chunk.
	// Returns ErrNotFound if the chunk doesn't exist.
	CreateEmbedding(ctx context.Context, embedding *core.Embedding) error

	// ReplaceEmbeddings overwrites the embeddings of existing chunks.
	// Used when a bot is re-embedded with a new model.
	ReplaceEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error

	// GetChunks retrieves chunks by id. Missing ids are skipped.
	GetChunks(ctx context.Context, botID string, ids ...core.ID) ([]*core.Chunk, error)

	// ListChunks returns up to limit chunks of a bot with Id > afterID, in Id order.
	ListChunks(ctx context.Context, botID string, afterID core.ID, limit int) ([]*core.Chunk, error)

	// ListChunkIDsForSource returns the ids of every chunk created from a source.
	ListChunkIDsForSource(ctx context.Context, sourceID string) ([]core.ID, error)

	// DeleteChunks removes chunks and their embeddings. Missing ids are ignored.
	DeleteChunks(ctx context.Context, botID string, ids ...core.ID) error

	// FindChunksAndEmbeddingsForBot loads every chunk of a bot that has an
	// embedding, in chunk Id order.
	FindChunksAndEmbeddingsForBot(ctx context.Context, botID string) ([]*core.ChunkWithEmbedding, error)

	// CountChunksForBot returns the number of chunks stored for a bot.
	CountChunksForBot(ctx context.Context, botID string) (int, error)
}
