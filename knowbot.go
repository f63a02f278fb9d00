// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package knowbot assembles the chatbot builder core into one Engine: bots
// and their sources are stored in Badger, training crawls or parses sources
// into embedded chunks, and questions are answered from the closest chunks.
package knowbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/poiesic/knowbot/ai"
	"github.com/poiesic/knowbot/ai/openai"
	"github.com/poiesic/knowbot/answer"
	"github.com/poiesic/knowbot/cache"
	"github.com/poiesic/knowbot/chunker"
	"github.com/poiesic/knowbot/config"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/crawler"
	"github.com/poiesic/knowbot/docparse"
	"github.com/poiesic/knowbot/embedding"
	"github.com/poiesic/knowbot/reembed"
	"github.com/poiesic/knowbot/retrieval"
	"github.com/poiesic/knowbot/storage"
	"github.com/poiesic/knowbot/storage/badger"
	"github.com/poiesic/knowbot/training"
)

// Engine owns the storage, model clients and pipelines of one knowbot
// database. It is safe for concurrent use.
type Engine struct {
	app        *config.App
	repos      *badger.Repositories
	provider   ai.AIProvider
	embeddings *cache.TTL[[]float32]
	responses  *cache.TTL[answer.Answer]
	embedder   *embedding.Client
	retriever  *retrieval.Retriever
	synth      *answer.Synthesizer
	trainer    *training.Orchestrator
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	app      *config.App
	provider ai.AIProvider
	crawler  training.Crawler
	logger   *slog.Logger
}

// WithConfig sets the application configuration.
// Default is config.Default().
func WithConfig(app *config.App) Option {
	return func(o *engineOptions) {
		o.app = app
	}
}

// WithAIProvider replaces the OpenAI-compatible provider built from the
// configuration. The Engine closes it on Close.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithCrawler replaces the website crawler built from the configuration.
func WithCrawler(c training.Crawler) Option {
	return func(o *engineOptions) {
		o.crawler = c
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open opens the database at path, creating it if needed. An empty path opens
// an in-memory database that is discarded on Close.
func Open(path string, opts ...Option) (*Engine, error) {
	options := &engineOptions{
		app:    config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	app := options.app
	if err := app.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{app: app, logger: options.logger.With("component", "engine")}
	var err error
	defer func() {
		if err != nil {
			e.Close()
		}
	}()

	if e.repos, err = badger.OpenRepositories(path, path == "" || app.Storage.InMemory); err != nil {
		return nil, err
	}

	e.provider = options.provider
	if e.provider == nil {
		if e.provider, err = openai.NewProvider(app.AIConfig()); err != nil {
			return nil, err
		}
	}

	if e.embeddings, err = cache.NewTTL[[]float32](app.Embedding.CacheTTL, app.Embedding.CacheEntries); err != nil {
		return nil, err
	}
	if e.responses, err = cache.NewTTL[answer.Answer](app.Answer.ResponseTTL, app.Answer.ResponseEntries); err != nil {
		return nil, err
	}

	e.embedder, err = embedding.NewClient(e.provider, e.embeddings,
		embedding.WithLogger(options.logger),
		embedding.WithTimeout(app.Embedding.Timeout),
		embedding.WithMaxInputRunes(app.Embedding.MaxInputRunes))
	if err != nil {
		return nil, err
	}

	if e.retriever, err = retrieval.NewRetriever(e.repos.Chunks, e.embedder, retrieval.WithLogger(options.logger)); err != nil {
		return nil, err
	}

	e.synth, err = answer.NewSynthesizer(e.repos.Bots, e.repos.Chunks, e.retriever, e.provider.Completer(),
		answer.WithLogger(options.logger),
		answer.WithResponseCache(e.responses),
		answer.WithTopK(app.Answer.TopK))
	if err != nil {
		return nil, err
	}

	site := options.crawler
	if site == nil {
		if site, err = crawler.New(app.CrawlerConfig(), crawler.WithLogger(options.logger)); err != nil {
			return nil, err
		}
	}
	pieces, err := chunker.New(app.ChunkerConfig())
	if err != nil {
		return nil, err
	}

	e.trainer, err = training.NewOrchestrator(e.repos.Bots, e.repos.Sources, e.repos.Chunks,
		training.Collaborators{
			Crawler:  site,
			Loader:   docparse.NewLoader(),
			Parser:   docparse.NewParser(),
			Chunker:  pieces,
			Embedder: e.embedder,
		},
		training.WithLogger(options.logger),
		training.WithCompleter(e.provider.Completer()),
		training.WithOnTrained(e.synth.Invalidate))
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Close releases the model provider, the caches and the database.
func (e *Engine) Close() error {
	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.embeddings != nil {
		e.embeddings.Close()
	}
	if e.responses != nil {
		e.responses.Close()
	}
	if e.repos != nil {
		if err := e.repos.Close(); err != nil {
			e.logger.Error("error closing storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Bots returns the bot repository.
func (e *Engine) Bots() storage.BotRepository {
	return e.repos.Bots
}

// CreateBot stores a new bot, filling in the default tone and fallback
// message when they are blank.
func (e *Engine) CreateBot(ctx context.Context, bot *core.Bot) (*core.Bot, error) {
	if bot == nil {
		return nil, fmt.Errorf("%w: bot is nil", core.ErrInvalidBot)
	}
	if strings.TrimSpace(bot.Tone) == "" {
		bot.Tone = answer.DefaultTone
	}
	if strings.TrimSpace(bot.FallbackMessage) == "" {
		bot.FallbackMessage = answer.DefaultFallback
	}
	return e.repos.Bots.AddBot(ctx, bot)
}

// GetBot returns the bot with id, or storage.ErrNotFound.
func (e *Engine) GetBot(ctx context.Context, id string) (*core.Bot, error) {
	return e.repos.Bots.GetBot(ctx, id)
}

// AddURLSource registers a website to crawl from startURL on the next run.
func (e *Engine) AddURLSource(ctx context.Context, botID, startURL string) (*core.Source, error) {
	return e.addSource(ctx, &core.Source{
		BotId:   botID,
		Kind:    core.SourceKindURL,
		Locator: strings.TrimSpace(startURL),
	})
}

// AddDocumentSource registers a document read from locator, a local path or
// an http(s) URL. An empty name defaults to the last element of locator.
func (e *Engine) AddDocumentSource(ctx context.Context, botID, locator, name, mimeType string) (*core.Source, error) {
	locator = strings.TrimSpace(locator)
	if strings.TrimSpace(name) == "" {
		name = locator[strings.LastIndexAny(locator, `/\`)+1:]
	}
	return e.addSource(ctx, &core.Source{
		BotId:        botID,
		Kind:         core.SourceKindDocument,
		Locator:      locator,
		DocumentName: name,
		MimeType:     mimeType,
	})
}

func (e *Engine) addSource(ctx context.Context, source *core.Source) (*core.Source, error) {
	added, err := e.repos.Sources.AddSources(ctx, source)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("source added", "bot", source.BotId, "source", added[0].Id, "kind", source.Kind)
	return added[0], nil
}

// ListSources returns the sources of a bot in creation order.
func (e *Engine) ListSources(ctx context.Context, botID string) ([]*core.Source, error) {
	return e.repos.Sources.ListSources(ctx, botID)
}

// RetrySource puts one source back to pending so the next run picks it up.
func (e *Engine) RetrySource(ctx context.Context, sourceID string) (*core.Source, error) {
	return e.trainer.Retry(ctx, sourceID)
}

// Train runs training for one bot, reporting progress to emit.
func (e *Engine) Train(ctx context.Context, botID string, emit training.Emitter) (*training.Summary, error) {
	return e.trainer.Run(ctx, botID, emit)
}

// TrainStream starts training for one bot and returns its events. The run
// continues when ctx is cancelled; only delivery stops.
func (e *Engine) TrainStream(ctx context.Context, botID string) <-chan training.Event {
	return e.trainer.Stream(ctx, botID)
}

// TrainAll trains several bots in parallel on the configured number of workers.
func (e *Engine) TrainAll(ctx context.Context, botIDs []string, emit func(botID string, ev training.Event)) ([]training.BotResult, error) {
	runner, err := training.NewRunner(e.trainer,
		training.WithPoolSize(e.app.Training.Workers),
		training.WithRunnerLogger(e.logger))
	if err != nil {
		return nil, err
	}
	defer runner.Release()
	return runner.RunAll(ctx, botIDs, emit), nil
}

// Retrieve returns the chunks of a bot closest to query.
func (e *Engine) Retrieve(ctx context.Context, botID, query string) (*retrieval.Result, error) {
	return e.retriever.Retrieve(ctx, botID, query, e.app.Answer.TopK)
}

// Answer answers a visitor question about a bot's content.
func (e *Engine) Answer(ctx context.Context, botID, query string, history []ai.Message) (*answer.Answer, error) {
	return e.synth.Answer(ctx, botID, query, history)
}

// AnswerStream answers like Answer, delivering the text to onToken as it is
// generated.
func (e *Engine) AnswerStream(ctx context.Context, botID, query string, history []ai.Message, onToken func(token string) error) (*answer.Answer, error) {
	return e.synth.AnswerStream(ctx, botID, query, history, onToken)
}

// Reembed recomputes every embedding of a bot with the current model,
// writing progress to progress when it is not nil.
func (e *Engine) Reembed(ctx context.Context, botID string, cfg *reembed.Config, progress io.Writer) (int, error) {
	if cfg == nil {
		cfg = reembed.DefaultConfig()
	}
	r, err := reembed.NewReembedder(e.repos.Chunks, e.embedder, cfg, progress)
	if err != nil {
		return 0, err
	}
	n, err := r.Run(ctx, botID)
	if n > 0 {
		e.synth.Invalidate(botID)
	}
	return n, err
}
