package training

import "encoding/json"

// EventType discriminates progress events on the wire.
type EventType string

const (
	EventInit            EventType = "init"
	EventPagesDiscovered EventType = "pages_discovered"
	EventPage            EventType = "page"
	EventDone            EventType = "done"
	EventError           EventType = "error"
)

// PageStatus is the indexing state of one page.
type PageStatus string

const (
	PageInProgress PageStatus = "in_progress"
	PageCompleted  PageStatus = "completed"
	PageFailed     PageStatus = "failed"
)

// Event is one training progress notification. The concrete types are
// InitEvent, PagesDiscoveredEvent, PageEvent, DoneEvent and ErrorEvent.
// Each marshals to a JSON object with a "type" field.
type Event interface {
	Type() EventType
}

// Emitter receives events in the order they happen. It must not block for long.
type Emitter func(Event)

// InitEvent opens every run.
type InitEvent struct {
	BotID string `json:"botId"`
}

// PagesDiscoveredEvent lists the pages a source is about to index.
type PagesDiscoveredEvent struct {
	SourceID string   `json:"sourceId"`
	Count    int      `json:"count"`
	Pages    []string `json:"pages"`
}

// PageEvent reports one page changing state. The counters describe the
// source the page belongs to.
type PageEvent struct {
	SourceID   string     `json:"sourceId"`
	URL        string     `json:"url"`
	Title      string     `json:"title"`
	Status     PageStatus `json:"status"`
	Considered int        `json:"considered"`
	Completed  int        `json:"completed"`
	InProgress int        `json:"inProgress"`
	Pending    int        `json:"pending"`
	Error      string     `json:"error,omitempty"`
}

// DoneEvent closes a run that got to process its sources.
type DoneEvent struct {
	ChunksCreated int `json:"chunksCreated"`
	PagesIndexed  int `json:"pagesIndexed"`
}

// ErrorEvent closes a run that could not start.
type ErrorEvent struct {
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (InitEvent) Type() EventType            { return EventInit }
func (PagesDiscoveredEvent) Type() EventType { return EventPagesDiscovered }
func (PageEvent) Type() EventType            { return EventPage }
func (DoneEvent) Type() EventType            { return EventDone }
func (ErrorEvent) Type() EventType           { return EventError }

// IsTerminal reports whether ev ends a run.
func IsTerminal(ev Event) bool {
	t := ev.Type()
	return t == EventDone || t == EventError
}

func (e InitEvent) MarshalJSON() ([]byte, error) {
	type fields InitEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		fields
	}{EventInit, fields(e)})
}

func (e PagesDiscoveredEvent) MarshalJSON() ([]byte, error) {
	type fields PagesDiscoveredEvent
	if e.Pages == nil {
		e.Pages = []string{}
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		fields
	}{EventPagesDiscovered, fields(e)})
}

func (e PageEvent) MarshalJSON() ([]byte, error) {
	type fields PageEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		fields
	}{EventPage, fields(e)})
}

func (e DoneEvent) MarshalJSON() ([]byte, error) {
	type fields DoneEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		fields
	}{EventDone, fields(e)})
}

func (e ErrorEvent) MarshalJSON() ([]byte, error) {
	type fields ErrorEvent
	return json.Marshal(struct {
		Type EventType `json:"type"`
		fields
	}{EventError, fields(e)})
}
