package answer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/knowbot/ai"
	"github.com/poiesic/knowbot/cache"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/retrieval"
	"github.com/poiesic/knowbot/similarity"
)

const (
	// NoContentMessage is returned to visitors of a bot with nothing indexed.
	NoContentMessage = "I don't have any information yet. Please add a website or upload documents so I can learn about this business."

	// NoContextMarker stands in for the summary when retrieval found nothing.
	NoContextMarker = "No relevant context found"

	// DefaultFallback is used when a bot has no fallback message configured.
	DefaultFallback = "I'm sorry, I don't have that information. Please contact us directly and we'll be happy to help."

	// DefaultTone is used when a bot has no tone configured.
	DefaultTone = "friendly and professional"

	DefaultTopK           = 5
	DefaultMaxHistory     = 10
	DefaultSummaryTokens  = 250
	DefaultAnswerTokens   = 300
	DefaultResponseTTL    = 5 * time.Minute
	defaultSummaryTemp    = 0.2
	defaultAnswerTemp     = 0.3
	defaultResponseMaxLen = 10_000
)

// BotStore loads bot settings.
type BotStore interface {
	GetBot(ctx context.Context, id string) (*core.Bot, error)
}

// ChunkCounter reports how much content a bot has indexed.
type ChunkCounter interface {
	CountChunksForBot(ctx context.Context, botID string) (int, error)
}

// Retriever finds the context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, botID, query string, topK int) (*retrieval.Result, error)
}

// Answer is a bot's reply to one visitor message.
type Answer struct {
	Text       string
	Sources    []string // Distinct source URLs or document names, best match first
	Confidence float64  // Similarity of the best retrieved chunk
	NeedsLead  bool     // Confidence fell below the bot's lead threshold
	NoContent  bool     // The bot has nothing indexed yet
}

// Synthesizer answers visitor questions from a bot's indexed content.
type Synthesizer struct {
	bots       BotStore
	chunks     ChunkCounter
	retriever  Retriever
	completer  ai.Completer
	responses  *cache.TTL[Answer]
	topK       int
	maxHistory int
	logger     *slog.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// Option configures a Synthesizer.
type Option func(*Synthesizer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithResponseCache enables caching of answers to history-less questions.
func WithResponseCache(responses *cache.TTL[Answer]) Option {
	return func(s *Synthesizer) error {
		s.responses = responses
		return nil
	}
}

// WithTopK sets how many chunks are retrieved per question.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(s *Synthesizer) error {
		if k < 1 {
			return fmt.Errorf("top k must be positive, got %d", k)
		}
		s.topK = k
		return nil
	}
}

// NewSynthesizer creates a new answer synthesizer.
func NewSynthesizer(bots BotStore, chunks ChunkCounter, retriever Retriever, completer ai.Completer, opts ...Option) (*Synthesizer, error) {
	if bots == nil {
		return nil, ErrBotRepositoryRequired
	}
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	s := &Synthesizer{
		bots:        bots,
		chunks:      chunks,
		retriever:   retriever,
		completer:   completer,
		topK:        DefaultTopK,
		maxHistory:  DefaultMaxHistory,
		logger:      slog.Default(),
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "answer")
	return s, nil
}

// Answer replies to query using the bot's content and the recent history.
func (s *Synthesizer) Answer(ctx context.Context, botID, query string, history []ai.Message) (*Answer, error) {
	return s.answer(ctx, botID, query, history, nil)
}

// AnswerStream is Answer with the reply text delivered to onToken as it is
// generated. The returned Answer carries the full text plus sources and
// confidence once streaming has finished.
func (s *Synthesizer) AnswerStream(ctx context.Context, botID, query string, history []ai.Message, onToken func(token string) error) (*Answer, error) {
	if onToken == nil {
		onToken = func(string) error { return nil }
	}
	return s.answer(ctx, botID, query, history, onToken)
}

// Invalidate drops every cached answer of a bot.
func (s *Synthesizer) Invalidate(botID string) {
	s.mu.Lock()
	s.generations[botID]++
	s.mu.Unlock()
}

func (s *Synthesizer) answer(ctx context.Context, botID, query string, history []ai.Message, onToken func(string) error) (*Answer, error) {
	bot, err := s.bots.GetBot(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot %s: %w", botID, err)
	}

	key, cacheable := s.cacheKey(botID, query, history)
	if cacheable {
		if cached, ok := s.responses.Get(key); ok {
			s.logger.Debug("serving cached answer", "bot", botID)
			// The lead threshold may have changed since the answer was cached.
			cached.NeedsLead = cached.Confidence < bot.LeadThreshold
			return deliver(&cached, onToken)
		}
	}

	result, err := s.retriever.Retrieve(ctx, botID, query, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if len(result.Chunks) == 0 {
		count, err := s.chunks.CountChunksForBot(ctx, botID)
		if err != nil {
			return nil, fmt.Errorf("failed to count chunks: %w", err)
		}
		if count == 0 {
			s.logger.Info("bot has no content", "bot", botID, "err", core.ErrNoContent)
			return deliver(&Answer{Text: NoContentMessage, Sources: []string{}, NoContent: true}, onToken)
		}
	}

	summary, err := s.summarize(ctx, result.Chunks)
	if err != nil {
		return nil, err
	}

	fallback := strings.TrimSpace(bot.FallbackMessage)
	if fallback == "" {
		fallback = DefaultFallback
	}
	req := ai.CompletionRequest{
		SystemPrompt: buildAnswerPrompt(bot.Tone, fallback, summary),
		Messages:     append(s.recent(history), ai.Message{Role: ai.RoleUser, Content: query}),
		MaxTokens:    DefaultAnswerTokens,
		Temperature:  defaultAnswerTemp,
	}

	var text string
	streamed := false
	if onToken != nil {
		text, err = s.completer.CompleteStream(ctx, req, func(chunk string) error {
			if chunk != "" {
				streamed = true
			}
			return onToken(chunk)
		})
	} else {
		text, err = s.completer.Complete(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("answer completion failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		text = fallback
		if onToken != nil && !streamed {
			if err := onToken(text); err != nil {
				return nil, err
			}
		}
	}

	ans := &Answer{
		Text:       text,
		Sources:    collectSources(result.Chunks),
		Confidence: result.Confidence,
		NeedsLead:  result.Confidence < bot.LeadThreshold,
	}
	s.logger.Debug("answered question",
		"bot", botID,
		"chunks", len(result.Chunks),
		"confidence", ans.Confidence,
		"needs_lead", ans.NeedsLead)

	if cacheable && len(text) <= defaultResponseMaxLen {
		s.responses.Set(key, *ans)
	}
	return ans, nil
}

// summarize compresses the retrieved chunks into short bullet points.
func (s *Synthesizer) summarize(ctx context.Context, matches []similarity.Match) (string, error) {
	material := strings.TrimSpace(joinContext(matches))
	if material == "" {
		return NoContextMarker, nil
	}

	summary, err := s.completer.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: summaryPrompt,
		Messages:     []ai.Message{{Role: ai.RoleUser, Content: material}},
		MaxTokens:    DefaultSummaryTokens,
		Temperature:  defaultSummaryTemp,
	})
	if err != nil {
		return "", fmt.Errorf("summary completion failed: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return NoContextMarker, nil
	}
	return summary, nil
}

// recent returns at most maxHistory of the latest non-empty history turns.
func (s *Synthesizer) recent(history []ai.Message) []ai.Message {
	turns := make([]ai.Message, 0, len(history)+1)
	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		turns = append(turns, msg)
	}
	if len(turns) > s.maxHistory {
		turns = turns[len(turns)-s.maxHistory:]
	}
	return turns
}

func (s *Synthesizer) cacheKey(botID, query string, history []ai.Message) (string, bool) {
	if s.responses == nil || len(history) > 0 {
		return "", false
	}
	s.mu.Lock()
	generation := s.generations[botID]
	s.mu.Unlock()
	return botID + "|" + strconv.FormatUint(generation, 10) + "|" + cache.Normalize(query), true
}

// collectSources lists the distinct origins of matches in rank order.
func collectSources(matches []similarity.Match) []string {
	sources := make([]string, 0, len(matches))
	for _, m := range matches {
		source := m.Metadata[core.MetaSourceURL]
		if source == "" {
			source = m.Metadata[core.MetaDocumentName]
		}
		if source == "" || slices.Contains(sources, source) {
			continue
		}
		sources = append(sources, source)
	}
	return sources
}

// deliver returns a copy of a precomputed answer, streaming its text in one piece.
func deliver(ans *Answer, onToken func(string) error) (*Answer, error) {
	out := *ans
	out.Sources = slices.Clone(ans.Sources)
	if onToken != nil {
		if err := onToken(out.Text); err != nil {
			return nil, err
		}
	}
	return &out, nil
}
