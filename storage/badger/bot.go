package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/storage"
)

// BotRepository implements storage.BotRepository for BadgerDB.
type BotRepository struct {
	backend *Backend
}

var _ storage.BotRepository = (*BotRepository)(nil)

// NewBotRepository creates a new BotRepository.
func NewBotRepository(backend *Backend) *BotRepository {
	return &BotRepository{backend: backend}
}

// Close is a no-op; the backend is owned by the caller.
func (r *BotRepository) Close() error {
	return nil
}

// AddBot stores a new bot.
func (r *BotRepository) AddBot(ctx context.Context, bot *core.Bot) (*core.Bot, error) {
	if err := core.ValidateBot(bot); err != nil {
		return nil, err
	}
	if bot.Id == "" {
		bot.Id = core.NewID()
	}
	bot.CreatedAt = time.Now().UTC()
	bot.UpdatedAt = bot.CreatedAt

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeBotKey(bot.Id), storage.MarshalBot(bot)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// UpdateBot replaces an existing bot.
func (r *BotRepository) UpdateBot(ctx context.Context, bot *core.Bot) (*core.Bot, error) {
	if err := core.ValidateBot(bot); err != nil {
		return nil, err
	}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeBotKey(bot.Id)
		old, err := readBot(tx, key)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}
		bot.CreatedAt = old.CreatedAt
		bot.UpdatedAt = time.Now().UTC()
		if err := tx.Set(key, storage.MarshalBot(bot)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// GetBot retrieves a bot by id.
func (r *BotRepository) GetBot(ctx context.Context, id string) (*core.Bot, error) {
	var result *core.Bot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readBot(tx, makeBotKey(id))
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

// ListBots returns all bots ordered by id.
func (r *BotRepository) ListBots(ctx context.Context) ([]*core.Bot, error) {
	var results []*core.Bot
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return forEachValue(tx, []byte(botPrefix+":"), func(val []byte) error {
			bot, err := storage.UnmarshalBot(val)
			if err != nil {
				return err
			}
			results = append(results, bot)
			return nil
		})
	}, false)
	return results, err
}

func readBot(tx *badger.Txn, key []byte) (*core.Bot, error) {
	val, err := readValue(tx, key)
	if err != nil || val == nil {
		return nil, err
	}
	return storage.UnmarshalBot(val)
}
