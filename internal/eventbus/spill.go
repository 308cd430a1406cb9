package eventbus

import (
	"context"
	"sync"
)

// spillQueue absorbs bursts for listener topics where events must not be lost.
// Envelopes are kept in publish order and pumped into the subscriber channel
// by a dedicated goroutine, so publishers never block on slow listeners.
type spillQueue struct {
	mu    sync.Mutex
	items []Envelope
	limit int
	wake  chan struct{}
	done  chan struct{}
}

func newSpillQueue(limit int) *spillQueue {
	if limit <= 0 {
		limit = defaultMaxSpill
	}
	return &spillQueue{
		limit: limit,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// push appends env. It returns false when the queue already holds limit items.
func (q *spillQueue) push(env Envelope) bool {
	q.mu.Lock()
	if len(q.items) >= q.limit {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, env)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// take hands the pending batch to the caller.
func (q *spillQueue) take() []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.items
	q.items = nil
	return batch
}

func (q *spillQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *spillQueue) pump(ctx context.Context, ch chan<- Envelope) {
	defer close(q.done)
	for {
		for _, env := range q.take() {
			select {
			case ch <- env:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
	}
}
