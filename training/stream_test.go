package training

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSON(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"init", InitEvent{BotID: "b1"}, `{"type":"init","botId":"b1"}`},
		{"pages discovered", PagesDiscoveredEvent{SourceID: "s1", Count: 0}, `{"type":"pages_discovered","sourceId":"s1","count":0,"pages":[]}`},
		{
			"page",
			PageEvent{SourceID: "s1", URL: "https://a.test/", Title: "A", Status: PageCompleted, Considered: 3, Completed: 1, Pending: 2},
			`{"type":"page","sourceId":"s1","url":"https://a.test/","title":"A","status":"completed","considered":3,"completed":1,"inProgress":0,"pending":2}`,
		},
		{"done", DoneEvent{ChunksCreated: 11, PagesIndexed: 4}, `{"type":"done","chunksCreated":11,"pagesIndexed":4}`},
		{"error", ErrorEvent{Message: "nothing to train"}, `{"type":"error","message":"nothing to train"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.event)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestNDJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)
	w.Emit(InitEvent{BotID: "b1"})
	w.Emit(PageEvent{URL: "https://a.test/?q=<x>&y", Status: PageInProgress})
	w.Emit(DoneEvent{ChunksCreated: 2})
	require.NoError(t, w.Err())

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
		assert.Contains(t, decoded, "type")
	}
	assert.Contains(t, lines[1], "<x>&y", "html is not escaped")
}

type failingWriter struct{ writes int }

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("broken pipe")
}

func TestNDJSONWriterStopsAfterError(t *testing.T) {
	fw := &failingWriter{}
	w := NewNDJSONWriter(fw)
	w.Emit(InitEvent{})
	w.Emit(DoneEvent{})
	assert.Error(t, w.Err())
	assert.Equal(t, 1, fw.writes)
}

func TestQueue(t *testing.T) {
	q := newQueue()
	for i := range 1000 {
		q.push(DoneEvent{ChunksCreated: i})
	}
	q.close()
	q.push(DoneEvent{ChunksCreated: -1})

	for i := range 1000 {
		ev, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, i, ev.(DoneEvent).ChunksCreated)
	}
	_, ok := q.pop()
	assert.False(t, ok)
}

func TestStream(t *testing.T) {
	h := newHarness(t, nil)
	h.addURLSource(t, "https://bakery.test/")
	h.crawler.set("https://bakery.test/", threePageSite()...)

	var events []Event
	for ev := range h.orch.Stream(t.Context(), h.bot.Id) {
		events = append(events, ev)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, EventInit, events[0].Type())
	last := events[len(events)-1]
	assert.Equal(t, DoneEvent{ChunksCreated: 9, PagesIndexed: 3}, last)

	var buf bytes.Buffer
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	require.NoError(t, WriteNDJSON(&buf, ch))
	assert.Equal(t, len(events), strings.Count(buf.String(), "\n"))
}

func TestStreamRunCompletesWhenConsumerLeaves(t *testing.T) {
	h := newHarness(t, nil)
	source := h.addURLSource(t, "https://bakery.test/")
	h.crawler.set("https://bakery.test/", threePageSite()...)

	ctx, cancel := context.WithCancel(t.Context())
	events := h.orch.Stream(ctx, h.bot.Id)
	<-events
	cancel()

	require.Eventually(t, func() bool {
		s, err := h.repos.Sources.GetSource(t.Context(), source.Id)
		return err == nil && s.Status == "completed"
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, running := h.orch.running.Load(h.bot.Id)
		return !running
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunner(t *testing.T) {
	h := newHarness(t, nil)
	h.addURLSource(t, "https://bakery.test/")
	h.crawler.set("https://bakery.test/", threePageSite()...)

	runner, err := NewRunner(h.orch, WithPoolSize(2), WithRunnerLogger(nil))
	require.NoError(t, err)
	t.Cleanup(runner.Release)

	var mu sync.Mutex
	terminal := map[string]int{}
	results := runner.RunAll(t.Context(), []string{h.bot.Id, "unknown-bot"}, func(botID string, ev Event) {
		if IsTerminal(ev) {
			mu.Lock()
			terminal[botID]++
			mu.Unlock()
		}
	})

	require.Len(t, results, 2)
	assert.Equal(t, h.bot.Id, results[0].BotID)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 9, results[0].Summary.ChunksCreated)
	assert.Equal(t, "unknown-bot", results[1].BotID)
	assert.Error(t, results[1].Err)
	assert.Equal(t, map[string]int{h.bot.Id: 1, "unknown-bot": 1}, terminal)

	_, err = NewRunner(h.orch, WithPoolSize(0))
	assert.ErrorIs(t, err, ErrInvalidPoolSize)
	_, err = NewRunner(nil)
	assert.Error(t, err)
}
