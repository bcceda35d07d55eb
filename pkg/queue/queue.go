// Package queue provides the bounded hand-off between record producers and
// the single batch-writer consumer.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-solli/longtrace/pkg/record"
)

var (
	// ErrClosed is returned by Push after Close.
	ErrClosed = errors.New("queue: closed")

	// ErrFull is returned by Push under the Drop policy when the queue is
	// at capacity.
	ErrFull = errors.New("queue: full")
)

// Policy selects what Push does when the queue is at capacity.
type Policy int

const (
	// Block stalls the producer until the consumer drains room. Bounds
	// memory at the cost of caller latency under sustained overload.
	Block Policy = iota

	// Drop rejects the record immediately with ErrFull.
	Drop
)

// Queue is a bounded multi-producer, single-consumer FIFO. Any number of
// goroutines may Push; exactly one goroutine may consume via Out, PopBatch,
// or DrainPending. Records from one producer are dequeued in push order.
type Queue struct {
	ch      chan record.Record
	done    chan struct{}
	once    sync.Once
	policy  Policy
	dropped atomic.Uint64
}

// New creates a queue with the given capacity and full-queue policy.
func New(capacity int, policy Policy) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		ch:     make(chan record.Record, capacity),
		done:   make(chan struct{}),
		policy: policy,
	}
}

// Push enqueues one record. Under Block it waits for room; under Drop it
// returns ErrFull when at capacity. Returns ErrClosed after Close.
func (q *Queue) Push(r record.Record) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	if q.policy == Drop {
		select {
		case q.ch <- r:
			return nil
		case <-q.done:
			return ErrClosed
		default:
			q.dropped.Add(1)
			return ErrFull
		}
	}

	select {
	case q.ch <- r:
		return nil
	case <-q.done:
		return ErrClosed
	}
}

// Out exposes the receive side for the single consumer's select loop.
func (q *Queue) Out() <-chan record.Record {
	return q.ch
}

// Done is closed when the queue is closed. The consumer must still drain
// Out afterwards; a producer racing Close may have delivered a final record.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}

// PopBatch returns up to max records. If none are immediately available it
// waits up to wait for the first one; wait <= 0 waits indefinitely. The
// second return value is false only once the queue is closed and empty.
func (q *Queue) PopBatch(max int, wait time.Duration) ([]record.Record, bool) {
	if max <= 0 {
		return nil, !q.closedAndEmpty()
	}

	batch := q.fill(nil, max)
	if len(batch) > 0 {
		return batch, true
	}
	if q.closedAndEmpty() {
		return nil, false
	}

	var timeout <-chan time.Time
	if wait > 0 {
		timeout = time.After(wait)
	}

	select {
	case r := <-q.ch:
		return q.fill(append(batch, r), max), true
	case <-q.done:
		batch = q.fill(batch, max)
		return batch, !q.closedAndEmpty()
	case <-timeout:
		return nil, true
	}
}

// DrainPending removes and returns everything currently buffered without
// blocking. Used by the writer for flush snapshots and the final drain.
func (q *Queue) DrainPending() []record.Record {
	return q.fill(nil, 0)
}

// fill appends immediately available records to batch, up to max records
// total; max <= 0 means unlimited.
func (q *Queue) fill(batch []record.Record, max int) []record.Record {
	for max <= 0 || len(batch) < max {
		select {
		case r := <-q.ch:
			batch = append(batch, r)
		default:
			return batch
		}
	}
	return batch
}

// Close marks the queue closed and wakes any waiting consumer. Records
// already buffered remain readable; further pushes fail with ErrClosed.
// Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.done)
	})
}

// Len reports the number of buffered records.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Dropped reports how many records the Drop policy has rejected.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *Queue) closedAndEmpty() bool {
	select {
	case <-q.done:
		return len(q.ch) == 0
	default:
		return false
	}
}
