package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/knowbot/ai"
	"github.com/poiesic/knowbot/ai/mock"
	"github.com/poiesic/knowbot/cache"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/retrieval"
	"github.com/poiesic/knowbot/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBots struct{ bot *core.Bot }

func (s *stubBots) GetBot(_ context.Context, id string) (*core.Bot, error) {
	if s.bot == nil || s.bot.Id != id {
		return nil, errors.New("not found")
	}
	return s.bot, nil
}

type stubCounter struct{ count int }

func (s *stubCounter) CountChunksForBot(_ context.Context, _ string) (int, error) {
	return s.count, nil
}

type stubRetriever struct {
	result *retrieval.Result
	calls  int
}

func (s *stubRetriever) Retrieve(_ context.Context, _, _ string, _ int) (*retrieval.Result, error) {
	s.calls++
	return s.result, nil
}

func match(content, url string, score float64) similarity.Match {
	return similarity.Match{Content: content, Metadata: map[string]string{core.MetaSourceURL: url}, Similarity: score}
}

// scriptedCompleter answers summary requests with bullets and answer requests with reply.
func scriptedCompleter(reply string) *mock.MockCompleter {
	c := mock.NewMockCompleter()
	c.CompleteFunc = func(_ context.Context, req ai.CompletionRequest) (string, error) {
		if req.SystemPrompt == summaryPrompt {
			return "- We open at nine.\n- We close at five.", nil
		}
		return reply, nil
	}
	return c
}

type fixture struct {
	bot       *core.Bot
	counter   *stubCounter
	retriever *stubRetriever
	completer *mock.MockCompleter
	synth     *Synthesizer
}

func newFixture(t *testing.T, result *retrieval.Result, count int, reply string, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		bot:       &core.Bot{Id: "bot-1", Name: "Shop", Tone: "cheerful", FallbackMessage: "Please call us.", LeadThreshold: 0.6},
		counter:   &stubCounter{count: count},
		retriever: &stubRetriever{result: result},
		completer: scriptedCompleter(reply),
	}
	synth, err := NewSynthesizer(&stubBots{bot: f.bot}, f.counter, f.retriever, f.completer, opts...)
	require.NoError(t, err)
	f.synth = synth
	return f
}

func TestNewSynthesizer(t *testing.T) {
	bots, counter, retriever, completer := &stubBots{}, &stubCounter{}, &stubRetriever{}, mock.NewMockCompleter()

	tests := []struct {
		name    string
		build   func() (*Synthesizer, error)
		wantErr error
	}{
		{"missing bots", func() (*Synthesizer, error) { return NewSynthesizer(nil, counter, retriever, completer) }, ErrBotRepositoryRequired},
		{"missing chunks", func() (*Synthesizer, error) { return NewSynthesizer(bots, nil, retriever, completer) }, ErrChunkRepositoryRequired},
		{"missing retriever", func() (*Synthesizer, error) { return NewSynthesizer(bots, counter, nil, completer) }, ErrRetrieverRequired},
		{"missing completer", func() (*Synthesizer, error) { return NewSynthesizer(bots, counter, retriever, nil) }, ErrCompleterRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := NewSynthesizer(bots, counter, retriever, completer, WithTopK(0))
	assert.Error(t, err)
}

func TestAnswerNoContent(t *testing.T) {
	f := newFixture(t, &retrieval.Result{}, 0, "unused")

	ans, err := f.synth.Answer(t.Context(), "bot-1", "anything", nil)
	require.NoError(t, err)

	assert.Equal(t, NoContentMessage, ans.Text)
	assert.Zero(t, ans.Confidence)
	assert.True(t, ans.NoContent)
	assert.Empty(t, ans.Sources)
	assert.Zero(t, f.completer.CallCount(), "no LLM call for a bot without content")
}

func TestAnswerNoMatchesButContent(t *testing.T) {
	f := newFixture(t, &retrieval.Result{}, 12, "")

	ans, err := f.synth.Answer(t.Context(), "bot-1", "unrelated", nil)
	require.NoError(t, err)

	assert.False(t, ans.NoContent)
	assert.Equal(t, "Please call us.", ans.Text, "empty completion falls back to the bot message")
	assert.True(t, ans.NeedsLead)

	// The empty context skips the summary call entirely.
	requests := f.completer.Requests()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0].SystemPrompt, NoContextMarker)
}

func TestAnswer(t *testing.T) {
	result := &retrieval.Result{
		Chunks: []similarity.Match{
			match("Open 9 to 5.", "https://shop.test/hours", 0.91),
			match("Closed Sundays.", "https://shop.test/hours", 0.8),
			{Content: "Menu.", Metadata: map[string]string{core.MetaDocumentName: "menu.pdf"}, Similarity: 0.7},
		},
		Confidence: 0.91,
	}
	f := newFixture(t, result, 3, "  We are open from nine to five.  ")

	history := make([]ai.Message, 0, 14)
	for i := range 14 {
		role := ai.RoleUser
		if i%2 == 1 {
			role = ai.RoleAssistant
		}
		history = append(history, ai.Message{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}

	ans, err := f.synth.Answer(t.Context(), "bot-1", "When are you open?", history)
	require.NoError(t, err)

	assert.Equal(t, "We are open from nine to five.", ans.Text)
	assert.Equal(t, []string{"https://shop.test/hours", "menu.pdf"}, ans.Sources)
	assert.InDelta(t, 0.91, ans.Confidence, 1e-9)
	assert.False(t, ans.NeedsLead)

	requests := f.completer.Requests()
	require.Len(t, requests, 2)

	summary := requests[0]
	assert.Equal(t, summaryPrompt, summary.SystemPrompt)
	assert.Contains(t, summary.Messages[0].Content, "Open 9 to 5.")
	assert.Contains(t, summary.Messages[0].Content, "Menu.")

	final := requests[1]
	assert.Contains(t, final.SystemPrompt, "cheerful")
	assert.Contains(t, final.SystemPrompt, "Please call us.")
	assert.Contains(t, final.SystemPrompt, "- We open at nine.")
	assert.Equal(t, DefaultAnswerTokens, final.MaxTokens)
	require.Len(t, final.Messages, DefaultMaxHistory+1)
	assert.Equal(t, "turn 4", final.Messages[0].Content)
	assert.Equal(t, "When are you open?", final.Messages[len(final.Messages)-1].Content)
}

func TestAnswerLowConfidenceNeedsLead(t *testing.T) {
	result := &retrieval.Result{Chunks: []similarity.Match{match("x", "https://a.test", 0.3)}, Confidence: 0.3}
	f := newFixture(t, result, 1, "maybe")

	ans, err := f.synth.Answer(t.Context(), "bot-1", "q", nil)
	require.NoError(t, err)
	assert.True(t, ans.NeedsLead)
}

func TestAnswerStream(t *testing.T) {
	result := &retrieval.Result{Chunks: []similarity.Match{match("Open 9 to 5.", "https://shop.test", 0.9)}, Confidence: 0.9}
	f := newFixture(t, result, 1, "We open at nine.")

	var tokens []string
	ans, err := f.synth.AnswerStream(t.Context(), "bot-1", "When?", nil, func(token string) error {
		tokens = append(tokens, token)
		return nil
	})
	require.NoError(t, err)

	assert.Greater(t, len(tokens), 1, "text arrives incrementally")
	assert.Equal(t, ans.Text, strings.Join(tokens, ""))
	assert.Equal(t, []string{"https://shop.test"}, ans.Sources)
	assert.InDelta(t, 0.9, ans.Confidence, 1e-9)
}

func TestAnswerStreamFallbackAndAbort(t *testing.T) {
	result := &retrieval.Result{Chunks: []similarity.Match{match("x", "https://a.test", 0.9)}, Confidence: 0.9}

	t.Run("empty completion streams fallback", func(t *testing.T) {
		f := newFixture(t, result, 1, "")
		var tokens []string
		ans, err := f.synth.AnswerStream(t.Context(), "bot-1", "q", nil, func(token string) error {
			tokens = append(tokens, token)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Please call us."}, tokens)
		assert.Equal(t, "Please call us.", ans.Text)
	})

	t.Run("consumer error stops the stream", func(t *testing.T) {
		f := newFixture(t, result, 1, "one two three")
		stop := errors.New("client gone")
		_, err := f.synth.AnswerStream(t.Context(), "bot-1", "q", nil, func(string) error { return stop })
		assert.ErrorIs(t, err, stop)
	})
}

func TestAnswerResponseCache(t *testing.T) {
	responses, err := cache.NewTTL[Answer](time.Minute, 100)
	require.NoError(t, err)
	t.Cleanup(responses.Close)

	result := &retrieval.Result{Chunks: []similarity.Match{match("x", "https://a.test", 0.9)}, Confidence: 0.9}
	f := newFixture(t, result, 1, "cached reply", WithResponseCache(responses))
	ctx := t.Context()

	first, err := f.synth.Answer(ctx, "bot-1", "Opening hours?", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.retriever.calls)

	second, err := f.synth.Answer(ctx, "bot-1", "  opening   HOURS? ", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.retriever.calls, "normalized repeat is served from cache")
	assert.Equal(t, first, second)

	_, err = f.synth.Answer(ctx, "bot-1", "Opening hours?", []ai.Message{{Role: ai.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, 2, f.retriever.calls, "questions with history bypass the cache")

	f.synth.Invalidate("bot-1")
	_, err = f.synth.Answer(ctx, "bot-1", "Opening hours?", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, f.retriever.calls, "invalidation drops cached answers")
}

func TestAnswerResponseCacheFollowsLeadThreshold(t *testing.T) {
	responses, err := cache.NewTTL[Answer](time.Minute, 100)
	require.NoError(t, err)
	t.Cleanup(responses.Close)

	result := &retrieval.Result{Chunks: []similarity.Match{match("x", "https://a.test", 0.5)}, Confidence: 0.5}
	f := newFixture(t, result, 1, "cached reply", WithResponseCache(responses))
	ctx := t.Context()

	first, err := f.synth.Answer(ctx, "bot-1", "Opening hours?", nil)
	require.NoError(t, err)
	assert.True(t, first.NeedsLead)

	f.bot.LeadThreshold = 0.4
	second, err := f.synth.Answer(ctx, "bot-1", "Opening hours?", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.retriever.calls, "repeat is served from cache")
	assert.Equal(t, first.Text, second.Text)
	assert.False(t, second.NeedsLead, "lead flag follows the current threshold")
}

func TestAnswerUnknownBot(t *testing.T) {
	f := newFixture(t, &retrieval.Result{}, 0, "")
	_, err := f.synth.Answer(t.Context(), "missing", "q", nil)
	assert.Error(t, err)
}
