package training

import (
	"encoding/json"
	"io"
	"sync"
)

// NDJSONWriter writes events as newline-delimited JSON. It is safe for
// concurrent use.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewNDJSONWriter creates a writer that encodes events to w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSONWriter{enc: enc}
}

// Write encodes one event followed by a newline.
func (n *NDJSONWriter) Write(ev Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.err = n.enc.Encode(ev)
	return n.err
}

// Emit is an Emitter that writes to n. Once a write fails, later events are
// dropped and Err reports the failure.
func (n *NDJSONWriter) Emit(ev Event) {
	_ = n.Write(ev)
}

// Err returns the first write error, if any.
func (n *NDJSONWriter) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// WriteNDJSON copies events to w until the channel closes or a write fails.
// The channel is drained either way.
func WriteNDJSON(w io.Writer, events <-chan Event) error {
	writer := NewNDJSONWriter(w)
	for ev := range events {
		writer.Emit(ev)
	}
	return writer.Err()
}
