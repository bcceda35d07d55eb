// Package writer drains the ingest queue on a single background goroutine
// and submits batches of records to the store.
package writer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"

	"github.com/dan-solli/longtrace/pkg/metrics"
	"github.com/dan-solli/longtrace/pkg/queue"
	"github.com/dan-solli/longtrace/pkg/record"
	"github.com/dan-solli/longtrace/pkg/store"
)

// ErrStopped is returned by Flush once the writer has shut down.
var ErrStopped = errors.New("writer: stopped")

// State of the writer loop.
type State int32

const (
	// Running: consuming the queue, accumulating the current batch.
	Running State = iota
	// Flushing: a batch write to the store is in progress.
	Flushing
	// Stopped: terminal, entered via Stop after the final forced flush.
	Stopped
)

// Config tunes the writer. Zero values take the documented defaults.
type Config struct {
	// BatchSize triggers an automatic flush when the current batch
	// reaches it. Default 1024.
	BatchSize int

	// FlushInterval bounds how long a partial batch may sit unwritten.
	// Default 1s.
	FlushInterval time.Duration

	// MaxRetries is the number of retries after a failed insert before
	// the batch is dropped. Default 3.
	MaxRetries int

	// RetryBackoff is the initial backoff delay, doubled per retry up to
	// MaxBackoff. Defaults 100ms and 5s.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration

	// OnDropBatch, if set, receives batches dropped after retry
	// exhaustion. Called from the writer goroutine; keep it fast.
	OnDropBatch func(batch []record.Record, err error)

	Logger  *zap.Logger
	Clock   clockz.Clock
	Metrics metrics.Collector
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 1024
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = clockz.RealClock
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewNoopCollector()
	}
}

type flushRequest struct {
	reply chan error
}

// Writer is the single consumer of an ingest queue. Batches are assembled
// and written strictly in arrival order; the store's write path is only
// ever touched from the writer goroutine.
type Writer struct {
	q   *queue.Queue
	st  store.Store
	cfg Config

	flushCh  chan flushRequest
	stopped  chan struct{}
	state    atomic.Int32
	wg       sync.WaitGroup
	finalErr error
}

// New creates a writer for the given queue and store. Call Start to begin
// consuming.
func New(q *queue.Queue, st store.Store, cfg Config) *Writer {
	cfg.applyDefaults()
	return &Writer{
		q:       q,
		st:      st,
		cfg:     cfg,
		flushCh: make(chan flushRequest),
		stopped: make(chan struct{}),
	}
}

// Start launches the consumer goroutine.
func (w *Writer) Start() {
	w.wg.Add(1)
	go w.run()
}

// State reports the current lifecycle state.
func (w *Writer) State() State {
	return State(w.state.Load())
}

func (w *Writer) run() {
	defer w.wg.Done()

	batch := make([]record.Record, 0, w.cfg.BatchSize)
	var timerCh <-chan time.Time

	for {
		// The interval timer runs only while a partial batch is pending,
		// re-armed after every flush.
		if timerCh == nil && len(batch) > 0 {
			timerCh = w.cfg.Clock.After(w.cfg.FlushInterval)
		}

		select {
		case r := <-w.q.Out():
			batch = append(batch, r)
			w.cfg.Metrics.SetQueueDepth(context.Background(), int64(w.q.Len()))
			if len(batch) >= w.cfg.BatchSize {
				w.flush(&batch)
				timerCh = nil
			}

		case <-timerCh:
			timerCh = nil
			w.flush(&batch)

		case req := <-w.flushCh:
			// Snapshot: everything pending at call time rides in this
			// write, then the caller learns its terminal outcome.
			batch = append(batch, w.q.DrainPending()...)
			req.reply <- w.flush(&batch)
			timerCh = nil

		case <-w.q.Done():
			// Forced final flush: drain twice to catch producers whose
			// send raced the close, write whatever remains, stop.
			batch = append(batch, w.q.DrainPending()...)
			batch = append(batch, w.q.DrainPending()...)
			w.finalErr = w.flush(&batch)
			w.state.Store(int32(Stopped))
			close(w.stopped)
			return
		}
	}
}

// flush writes the accumulated batch in BatchSize chunks and resets it.
// Each chunk is retried independently; a terminally failed chunk is
// dropped with a diagnostic and the remaining chunks still go out. The
// first terminal error is returned.
func (w *Writer) flush(batch *[]record.Record) error {
	if len(*batch) == 0 {
		return nil
	}

	w.state.Store(int32(Flushing))
	defer w.state.Store(int32(Running))

	var firstErr error
	pending := *batch
	for len(pending) > 0 {
		n := len(pending)
		if n > w.cfg.BatchSize {
			n = w.cfg.BatchSize
		}
		chunk := pending[:n]
		pending = pending[n:]

		start := w.cfg.Clock.Now()
		err := w.insertWithRetry(chunk)
		durationMs := w.cfg.Clock.Now().Sub(start).Milliseconds()

		if err != nil {
			w.cfg.Logger.Error("batch write failed, dropping batch",
				zap.Int("records", len(chunk)),
				zap.Error(err))
			w.cfg.Metrics.RecordFlush(context.Background(), "error", len(chunk), durationMs)
			w.cfg.Metrics.RecordDropped(context.Background(), "write_failed")
			if w.cfg.OnDropBatch != nil {
				dropped := make([]record.Record, len(chunk))
				copy(dropped, chunk)
				w.cfg.OnDropBatch(dropped, err)
			}
			if firstErr == nil {
				firstErr = err
			}
		} else {
			w.cfg.Metrics.RecordFlush(context.Background(), "success", len(chunk), durationMs)
		}
	}

	*batch = (*batch)[:0]
	return firstErr
}

// insertWithRetry submits one chunk with bounded exponential backoff.
func (w *Writer) insertWithRetry(chunk []record.Record) error {
	delay := w.cfg.RetryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = w.st.InsertBatch(context.Background(), chunk)
		if err == nil {
			return nil
		}
		if attempt >= w.cfg.MaxRetries {
			return err
		}
		w.cfg.Logger.Warn("batch write failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		<-w.cfg.Clock.After(delay)
		delay *= 2
		if delay > w.cfg.MaxBackoff {
			delay = w.cfg.MaxBackoff
		}
	}
}

// Flush blocks until the records pending at call time are durably written
// or have failed terminally, and returns that outcome. Returns ErrStopped
// after shutdown, or the context error if ctx expires first.
func (w *Writer) Flush(ctx context.Context) error {
	req := flushRequest{reply: make(chan error, 1)}

	select {
	case w.flushCh <- req:
	case <-w.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the queue, waits for the forced final flush, and reports its
// outcome. The writer cannot be restarted. Safe to call more than once.
func (w *Writer) Stop(ctx context.Context) error {
	w.q.Close()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return w.finalErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
