// Package ingestion moves raw feed messages from a transport into the
// processing loop.
package ingestion

import (
	"context"
	"sync/atomic"
)

// DefaultQueueSize bounds the feed queue.
const DefaultQueueSize = 1024

// Message is one raw feed message and its local receive time.
type Message struct {
	Data   []byte
	RecvUs int64 // local receive timestamp (µs)
}

// Sink accepts messages from a source.
type Sink func(Message)

// Queue is a bounded FIFO between a single producer and the processing loop.
// When full, the oldest queued message is dropped to make room.
type Queue struct {
	ch      chan Message
	dropped atomic.Uint64
	closed  atomic.Bool
}

// NewQueue creates a queue holding at most size messages.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan Message, size)}
}

// Push enqueues msg, dropping the oldest message while the queue is full.
// Push must not be called after Close.
func (q *Queue) Push(msg Message) {
	for {
		select {
		case q.ch <- msg:
			return
		default:
		}
		select {
		case <-q.ch:
			q.dropped.Add(1)
		default:
		}
	}
}

// PushWait enqueues msg, blocking while the queue is full. It never drops;
// finite sources such as recordings use it so every message is processed.
// It returns ctx.Err() if ctx ends first. PushWait must not be called after Close.
func (q *Queue) PushWait(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// C returns the receive side. It is closed by Close.
func (q *Queue) C() <-chan Message {
	return q.ch
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue bound.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped returns the number of messages dropped so far.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Close marks the end of input. Queued messages remain readable.
func (q *Queue) Close() {
	if q.closed.Swap(true) {
		return
	}
	close(q.ch)
}
