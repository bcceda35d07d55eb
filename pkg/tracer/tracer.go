// Package tracer produces log and span records with parent/child linkage.
//
// Span state is carried through context.Context rather than ambient
// goroutine-local storage: each open span is one immutable node in a chain
// hanging off the context, and that chain is the LIFO stack of currently
// open spans for the execution path holding the context. A goroutine only
// sees spans whose context it was explicitly handed, so there is no
// cross-goroutine parent inference.
package tracer

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"

	"github.com/dan-solli/longtrace/pkg/record"
)

// Sink accepts records produced by a Tracer. The facade wires this to the
// ingest queue. Enqueue must not block beyond the queue's capacity policy.
type Sink interface {
	Enqueue(record.Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(record.Record) error

// Enqueue calls f(r).
func (f SinkFunc) Enqueue(r record.Record) error {
	return f(r)
}

// Tracer emits records for user calls. Safe for concurrent use by multiple
// goroutines; calls never block on storage.
type Tracer struct {
	sink    Sink
	root    *uuid.UUID
	clock   clockz.Clock
	onError func(error)
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithRootParent sets an explicit parent id used when no span is open,
// e.g. to attach all of a tracer's records under a caller-managed span.
func WithRootParent(id uuid.UUID) Option {
	return func(t *Tracer) {
		p := id
		t.root = &p
	}
}

// WithClock injects the clock used for record timestamps.
func WithClock(clock clockz.Clock) Option {
	return func(t *Tracer) {
		t.clock = clock
	}
}

// WithErrorFunc sets a callback invoked when the sink rejects a record.
// Without one, rejected records are dropped silently.
func WithErrorFunc(f func(error)) Option {
	return func(t *Tracer) {
		t.onError = f
	}
}

// New creates a tracer emitting into sink.
func New(sink Sink, opts ...Option) *Tracer {
	t := &Tracer{
		sink:  sink,
		clock: clockz.RealClock,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type ctxKey struct{}

// spanNode is one frame of the open-span stack. Nodes are immutable; the
// chain of parents reachable from a context is exactly the stack of spans
// opened and not yet ended on that context's path.
type spanNode struct {
	id     uuid.UUID
	parent *spanNode
}

func nodeFrom(ctx context.Context) *spanNode {
	if ctx == nil {
		return nil
	}
	n, _ := ctx.Value(ctxKey{}).(*spanNode)
	return n
}

// SpanID reports the id of the innermost open span in ctx.
func SpanID(ctx context.Context) (uuid.UUID, bool) {
	if n := nodeFrom(ctx); n != nil {
		return n.id, true
	}
	return uuid.UUID{}, false
}

// parentOf derives the parent id for a new record: the innermost open span,
// falling back to the tracer's root parent, then to none.
func (t *Tracer) parentOf(ctx context.Context) *uuid.UUID {
	if n := nodeFrom(ctx); n != nil {
		id := n.id
		return &id
	}
	if t.root != nil {
		id := *t.root
		return &id
	}
	return nil
}

// Log emits one log record parented to the innermost open span in ctx.
// Returns immediately; never blocks on storage.
func (t *Tracer) Log(ctx context.Context, message string, attr []byte) {
	t.emit(record.New(record.NewID(), t.parentOf(ctx), record.KindLog, t.clock.Now(), message, attr))
}

// Span opens a named span: emits its start record and returns a derived
// context carrying the span plus a guard whose End emits the paired end
// record. End with defer so the pairing holds on every exit path.
func (t *Tracer) Span(ctx context.Context, name string, attr []byte) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	id := record.NewID()
	parent := t.parentOf(ctx)
	t.emit(record.New(id, parent, record.KindSpanStart, t.clock.Now(), name, attr))

	child := context.WithValue(ctx, ctxKey{}, &spanNode{id: id, parent: nodeFrom(ctx)})
	return child, &Span{tracer: t, id: id, parent: parent, name: name}
}

func (t *Tracer) emit(r record.Record) {
	if err := t.sink.Enqueue(r); err != nil && t.onError != nil {
		t.onError(err)
	}
}

// Span guards an open span.
type Span struct {
	tracer *Tracer
	id     uuid.UUID
	parent *uuid.UUID
	name   string
	once   sync.Once
}

// ID returns the span's id, e.g. to pass as an explicit parent across
// goroutine boundaries.
func (s *Span) ID() uuid.UUID {
	return s.id
}

// End emits the span's end record, carrying the same span id and parent as
// its start. Idempotent: only the first call emits.
func (s *Span) End() {
	s.once.Do(func() {
		s.tracer.emit(record.New(s.id, s.parent, record.KindSpanEnd, s.tracer.clock.Now(), s.name, nil))
	})
}
