package training

import (
	"context"
	"sync"
)

// queue is an unbounded FIFO of events. push never blocks.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Event
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(ev Event) {
	q.mu.Lock()
	if !q.closed {
		q.items = append(q.items, ev)
	}
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an event is available. It returns false once the queue
// is closed and empty.
func (q *queue) pop() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ev, true
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Stream runs a training run for botID in the background and returns its
// events. The channel is closed after the terminal event.
//
// The run itself ignores cancellation of ctx and always completes. A
// cancelled ctx only stops delivery, so a consumer that goes away should
// cancel ctx rather than just stop reading.
func (o *Orchestrator) Stream(ctx context.Context, botID string) <-chan Event {
	q := newQueue()
	out := make(chan Event)

	go func() {
		defer q.close()
		if _, err := o.Run(context.WithoutCancel(ctx), botID, q.push); err != nil {
			o.logger.Debug("streamed training run ended with error", "bot", botID, "err", err)
		}
	}()

	go func() {
		defer close(out)
		for {
			ev, ok := q.pop()
			if !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				o.logger.Debug("training stream consumer went away", "bot", botID)
				return
			}
		}
	}()

	return out
}
