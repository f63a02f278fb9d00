package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/knowbot/ai"
	"github.com/poiesic/knowbot/chunker"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/docparse"
	"github.com/poiesic/knowbot/extract"
	"github.com/poiesic/knowbot/storage"
)

// MaxErrorLength bounds the error message stored on a failed source.
const MaxErrorLength = 500

// NothingToTrainMessage is reported when a bot has no pending or failed sources.
const NothingToTrainMessage = "Nothing to train. Add a website or a document first, or retry a failed source."

// Crawler fetches the pages of a website.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, maxPages int) ([]*extract.Page, error)
}

// DocumentLoader reads the bytes of a document source.
type DocumentLoader interface {
	Load(ctx context.Context, locator string) (*docparse.Blob, error)
}

// DocumentParser extracts the text of a document.
type DocumentParser interface {
	Parse(ctx context.Context, data []byte, name, mimeType string) (*docparse.Document, error)
}

// Chunker splits page text into chunks.
type Chunker interface {
	Chunk(text string, provenance map[string]string) []chunker.Piece
}

// Embedder embeds chunk texts in one batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Collaborators are the acquisition and indexing stages of a run.
type Collaborators struct {
	Crawler  Crawler
	Loader   DocumentLoader
	Parser   DocumentParser
	Chunker  Chunker
	Embedder Embedder
}

// Summary describes a finished run.
type Summary struct {
	BotID         string
	Sources       []SourceResult
	ChunksCreated int
	PagesIndexed  int
}

// Failed returns the number of sources that failed.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Sources {
		if r.Status == core.SourceStatusFailed {
			n++
		}
	}
	return n
}

// SourceResult is the outcome for one source.
type SourceResult struct {
	SourceID string
	Status   core.SourceStatus
	Pages    int
	Chunks   int
	Error    string
}

// Orchestrator runs training for bots. Runs for different bots may proceed
// concurrently; a second run for a bot that is already training is refused.
type Orchestrator struct {
	bots      storage.BotRepository
	sources   storage.SourceRepository
	chunks    storage.ChunkRepository
	collab    Collaborators
	completer ai.Completer
	onTrained func(botID string)
	logger    *slog.Logger

	running sync.Map // bot id -> struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithCompleter enables quick prompt suggestions for bots without any.
func WithCompleter(completer ai.Completer) Option {
	return func(o *Orchestrator) error {
		o.completer = completer
		return nil
	}
}

// WithOnTrained registers a callback invoked after a run created chunks for
// a bot, typically to drop cached answers.
func WithOnTrained(fn func(botID string)) Option {
	return func(o *Orchestrator) error {
		o.onTrained = fn
		return nil
	}
}

// NewOrchestrator creates a new training orchestrator.
func NewOrchestrator(
	bots storage.BotRepository,
	sources storage.SourceRepository,
	chunks storage.ChunkRepository,
	collab Collaborators,
	opts ...Option,
) (*Orchestrator, error) {
	if bots == nil {
		return nil, ErrBotRepositoryRequired
	}
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if collab.Crawler == nil || collab.Loader == nil || collab.Parser == nil ||
		collab.Chunker == nil || collab.Embedder == nil {
		return nil, ErrCollaboratorRequired
	}

	o := &Orchestrator{
		bots:    bots,
		sources: sources,
		chunks:  chunks,
		collab:  collab,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	o.logger = o.logger.With("component", "training")
	return o, nil
}

// SelectSources returns the sources a run for botID would process: every
// pending source or, when there are none, every failed source after
// resetting it to pending with its error cleared. It returns
// core.ErrNothingToTrain when neither exists.
func (o *Orchestrator) SelectSources(ctx context.Context, botID string) ([]*core.Source, error) {
	pending, err := o.sources.ListSourcesByStatus(ctx, botID, core.SourceStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sources: %w", err)
	}
	if len(pending) > 0 {
		return pending, nil
	}

	failed, err := o.sources.ListSourcesByStatus(ctx, botID, core.SourceStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed sources: %w", err)
	}
	if len(failed) == 0 {
		return nil, core.ErrNothingToTrain
	}

	for _, source := range failed {
		source.Status = core.SourceStatusPending
		source.Error = ""
	}
	requeued, err := o.sources.UpdateSources(ctx, failed...)
	if err != nil {
		return nil, fmt.Errorf("failed to requeue failed sources: %w", err)
	}
	o.logger.Info("retrying failed sources", "bot", botID, "sources", len(requeued))
	return requeued, nil
}

// recoverStale puts sources left in processing by an interrupted process back
// to pending. The caller must hold the bot's run guard. Chunks such a source
// stored before the interruption are superseded when it next completes.
func (o *Orchestrator) recoverStale(ctx context.Context, botID string) error {
	stale, err := o.sources.ListSourcesByStatus(ctx, botID, core.SourceStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to list processing sources: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	for _, source := range stale {
		source.Status = core.SourceStatusPending
	}
	if _, err := o.sources.UpdateSources(ctx, stale...); err != nil {
		return fmt.Errorf("failed to requeue interrupted sources: %w", err)
	}
	o.logger.Warn("requeued sources left processing by an interrupted run", "bot", botID, "sources", len(stale))
	return nil
}

// Retry re-queues a failed or completed source so the next run processes it.
// A processing source is refused while its bot is training; otherwise it was
// left behind by an interrupted run and is re-queued too.
func (o *Orchestrator) Retry(ctx context.Context, sourceID string) (*core.Source, error) {
	source, err := o.sources.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	switch source.Status {
	case core.SourceStatusPending:
		return source, nil
	case core.SourceStatusProcessing:
		if _, busy := o.running.Load(source.BotId); busy {
			return nil, fmt.Errorf("%w: source %s is processing", core.ErrTrainingInProgress, sourceID)
		}
	}
	source.Status = core.SourceStatusPending
	source.Error = ""
	updated, err := o.sources.UpdateSources(ctx, source)
	if err != nil {
		return nil, err
	}
	return updated[0], nil
}

// Run trains every selected source of botID in order, reporting progress to
// emit. A failing source never stops the run; its error is recorded on the
// source and in the Summary. Run returns an error only when the run could
// not start: the bot is unknown, already training, or has nothing to train.
// Either way emit receives exactly one terminal event.
func (o *Orchestrator) Run(ctx context.Context, botID string, emit Emitter) (*Summary, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	emit(InitEvent{BotID: botID})

	if _, busy := o.running.LoadOrStore(botID, struct{}{}); busy {
		return nil, o.abort(emit, botID, core.ErrTrainingInProgress)
	}
	defer o.running.Delete(botID)

	bot, err := o.bots.GetBot(ctx, botID)
	if err != nil {
		return nil, o.abort(emit, botID, err)
	}

	if err := o.recoverStale(ctx, botID); err != nil {
		return nil, o.abort(emit, botID, err)
	}
	selected, err := o.SelectSources(ctx, botID)
	if err != nil {
		return nil, o.abort(emit, botID, err)
	}

	o.logger.Info("training started", "bot", botID, "sources", len(selected))
	start := time.Now()

	summary := &Summary{BotID: botID}
	var created []core.ID
	for _, source := range selected {
		result, ids := o.processSource(ctx, bot, source, emit)
		summary.Sources = append(summary.Sources, result)
		summary.ChunksCreated += result.Chunks
		if result.Status == core.SourceStatusCompleted {
			summary.PagesIndexed += result.Pages
		}
		created = append(created, ids...)
	}

	if summary.ChunksCreated > 0 {
		if o.onTrained != nil {
			o.onTrained(botID)
		}
		if len(bot.QuickPrompts) == 0 && o.completer != nil {
			bestEffort(o.logger, "suggest quick prompts", func() error {
				return o.suggestQuickPrompts(ctx, bot, created)
			})
		}
	}

	o.logger.Info("training finished",
		"bot", botID,
		"sources", len(selected),
		"failed", summary.Failed(),
		"chunks", summary.ChunksCreated,
		"pages", summary.PagesIndexed,
		"elapsed", time.Since(start))
	emit(DoneEvent{ChunksCreated: summary.ChunksCreated, PagesIndexed: summary.PagesIndexed})
	return summary, nil
}

// abort reports a run-level failure as the terminal error event.
func (o *Orchestrator) abort(emit Emitter, botID string, err error) error {
	message := err.Error()
	if errors.Is(err, core.ErrNothingToTrain) {
		message = NothingToTrainMessage
	}
	o.logger.Warn("training not started", "bot", botID, "err", err)
	emit(ErrorEvent{Message: message, Detail: err.Error()})
	return err
}

// page is acquired text ready for chunking.
type page struct {
	url        string
	title      string
	content    string
	provenance map[string]string
}

// processSource trains one source and records the outcome on it. The ids of
// the chunks created are returned only when the source completed.
func (o *Orchestrator) processSource(ctx context.Context, bot *core.Bot, source *core.Source, emit Emitter) (SourceResult, []core.ID) {
	logger := o.logger.With("bot", bot.Id, "source", source.Id, "kind", source.Kind)
	result := SourceResult{SourceID: source.Id}

	previous, err := o.chunks.ListChunkIDsForSource(ctx, source.Id)
	if err != nil {
		return o.fail(ctx, logger, source, result, nil, err), nil
	}

	source.Status = core.SourceStatusProcessing
	source.Error = ""
	if _, err := o.sources.UpdateSources(ctx, source); err != nil {
		return o.fail(ctx, logger, source, result, nil, err), nil
	}

	pages, pageCount, err := o.acquire(ctx, bot, source)
	if err != nil {
		emit(PageEvent{SourceID: source.Id, URL: source.Locator, Status: PageFailed, Error: truncateError(err.Error())})
		return o.fail(ctx, logger, source, result, nil, err), nil
	}

	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = p.url
	}
	emit(PagesDiscoveredEvent{SourceID: source.Id, Count: len(pages), Pages: urls})

	seen := make(map[core.ID]struct{})
	var created []core.ID
	for i, p := range pages {
		progress := PageEvent{
			SourceID:   source.Id,
			URL:        p.url,
			Title:      p.title,
			Status:     PageInProgress,
			Considered: len(pages),
			Completed:  i,
			InProgress: 1,
			Pending:    len(pages) - i - 1,
		}
		emit(progress)

		ids, err := o.indexPage(ctx, source, p, seen)
		created = append(created, ids...)
		if err != nil {
			progress.Status = PageFailed
			progress.InProgress = 0
			progress.Error = truncateError(err.Error())
			emit(progress)
			return o.fail(ctx, logger, source, result, created, err), nil
		}

		progress.Status = PageCompleted
		progress.Completed = i + 1
		progress.InProgress = 0
		emit(progress)
	}

	// The new chunks are in place, so the previous generation can go.
	if len(previous) > 0 {
		if err := o.chunks.DeleteChunks(ctx, bot.Id, previous...); err != nil {
			logger.Error("failed to remove superseded chunks", "chunks", len(previous), "err", err)
		}
	}

	source.Status = core.SourceStatusCompleted
	source.Error = ""
	source.PageCount = pageCount
	source.LastRefreshedAt = time.Now().UTC()
	if _, err := o.sources.UpdateSources(ctx, source); err != nil {
		return o.fail(ctx, logger, source, result, created, err), nil
	}

	logger.Info("source trained", "pages", len(pages), "chunks", len(created))
	result.Status = core.SourceStatusCompleted
	result.Pages = pageCount
	result.Chunks = len(created)
	return result, created
}

// fail removes the chunks a source created during this run and marks it failed.
// A failure to persist the status is logged, not returned.
func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, source *core.Source, result SourceResult, created []core.ID, cause error) SourceResult {
	logger.Warn("source failed", "err", cause)

	if len(created) > 0 {
		if err := o.chunks.DeleteChunks(ctx, source.BotId, created...); err != nil {
			logger.Error("failed to roll back partial chunks", "chunks", len(created), "err", err)
		}
	}

	message := truncateError(cause.Error())
	source.Status = core.SourceStatusFailed
	source.Error = message
	if _, err := o.sources.UpdateSources(context.WithoutCancel(ctx), source); err != nil {
		logger.Error("failed to record source failure", "err", err)
	}

	result.Status = core.SourceStatusFailed
	result.Error = message
	return result
}

// acquire fetches the text of a source as pages, returning the page count
// to record on the source.
func (o *Orchestrator) acquire(ctx context.Context, bot *core.Bot, source *core.Source) ([]page, int, error) {
	switch source.Kind {
	case core.SourceKindURL:
		crawled, err := o.collab.Crawler.Crawl(ctx, source.Locator, bot.MaxPages)
		if err != nil {
			return nil, 0, err
		}
		if len(crawled) == 0 {
			return nil, 0, fmt.Errorf("%w: %s", core.ErrEmptyCrawl, source.Locator)
		}
		pages := make([]page, 0, len(crawled))
		for _, p := range crawled {
			provenance := map[string]string{core.MetaSourceURL: p.URL}
			if p.Title != "" {
				provenance[core.MetaPageTitle] = p.Title
			}
			pages = append(pages, page{url: p.URL, title: p.Title, content: p.Content, provenance: provenance})
		}
		return pages, len(pages), nil

	case core.SourceKindDocument:
		blob, err := o.collab.Loader.Load(ctx, source.Locator)
		if err != nil {
			return nil, 0, err
		}
		name := firstNonEmpty(source.DocumentName, blob.Name)
		doc, err := o.collab.Parser.Parse(ctx, blob.Data, name, firstNonEmpty(source.MimeType, blob.MimeType))
		if err != nil {
			return nil, 0, err
		}
		if strings.TrimSpace(doc.Content) == "" {
			return nil, 0, fmt.Errorf("%w: %s contains no text", core.ErrDocumentParse, name)
		}
		provenance := map[string]string{core.MetaDocumentName: name}
		if strings.HasPrefix(source.Locator, "http://") || strings.HasPrefix(source.Locator, "https://") {
			provenance[core.MetaSourceURL] = source.Locator
		}
		if doc.Title != "" {
			provenance[core.MetaPageTitle] = doc.Title
		}
		return []page{{url: name, title: doc.Title, content: doc.Content, provenance: provenance}}, max(doc.Pages, 1), nil
	}
	return nil, 0, fmt.Errorf("%w: %q", core.ErrInvalidSourceKind, source.Kind)
}

// indexPage chunks a page, embeds the new chunks and stores each chunk with
// its embedding. Chunks whose content was already seen in this source are
// skipped. The ids of stored chunks are returned even on error.
func (o *Orchestrator) indexPage(ctx context.Context, source *core.Source, p page, seen map[core.ID]struct{}) ([]core.ID, error) {
	var pieces []chunker.Piece
	var hashes []core.ID
	for _, piece := range o.collab.Chunker.Chunk(p.content, p.provenance) {
		hash := core.IDFromContent(piece.Content)
		if _, dup := seen[hash]; dup {
			continue
		}
		seen[hash] = struct{}{}
		pieces = append(pieces, piece)
		hashes = append(hashes, hash)
	}
	if len(pieces) == 0 {
		return nil, nil
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Content
	}
	vectors, err := o.collab.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	model := o.collab.Embedder.Model()
	ids := make([]core.ID, 0, len(pieces))
	for i, piece := range pieces {
		chunk, err := o.chunks.CreateChunk(ctx, &core.Chunk{
			BotId:       source.BotId,
			SourceId:    source.Id,
			Content:     piece.Content,
			Metadata:    piece.Metadata,
			TokenCount:  piece.TokenCount,
			ContentHash: hashes[i],
		})
		if err != nil {
			return ids, fmt.Errorf("failed to store chunk: %w", err)
		}
		ids = append(ids, chunk.Id)

		if err := o.chunks.CreateEmbedding(ctx, &core.Embedding{
			ChunkId: chunk.Id,
			BotId:   source.BotId,
			Model:   model,
			Vector:  vectors[i],
		}); err != nil {
			return ids, fmt.Errorf("failed to store embedding: %w", err)
		}
	}
	return ids, nil
}

// truncateError bounds a failure message to MaxErrorLength runes.
func truncateError(message string) string {
	runes := []rune(message)
	if len(runes) <= MaxErrorLength {
		return message
	}
	return string(runes[:MaxErrorLength-3]) + "..."
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
