package runtimeevent

import (
	"context"
	"encoding/json"
	"sync/atomic"
)

// ChunkCallback receives one serialized wire envelope at a time, in the
// order Publish was called.
type ChunkCallback func(ctx context.Context, chunk []byte)

// Redactor masks secret values in outbound text. internal/redact.Redactor
// satisfies this.
type Redactor interface {
	Redact(text string) string
}

// Sink is a single-run-scoped object that assigns strictly monotonic
// sequence numbers to canonical events and hands the serialized wire
// envelope to a callback. It is safe to call Publish concurrently from a
// runtime's stdout and stderr reader goroutines: sequencing uses an atomic
// counter, so the only guarantee is assignment order, not content order
// across the two streams (matching design note "parallel stdout/stderr
// reading").
type Sink struct {
	counter  int64
	callback ChunkCallback
	redactor Redactor
}

// NewSink builds a Sink that hands serialized envelopes to callback. A nil
// callback is treated as NullSink. redactor may be nil.
func NewSink(callback ChunkCallback, redactor Redactor) *Sink {
	return &Sink{callback: callback, redactor: redactor}
}

// NullSink is used when no callback is registered; Publish is then a no-op
// save for dropping-empty-content accounting, which doesn't matter absent
// a subscriber.
func NullSink() *Sink {
	return &Sink{callback: nil}
}

// Publish drops events with empty content, assigns the next sequence
// number, redacts the content, serializes the envelope, and invokes the
// callback. It returns the assigned sequence, or 0 if the event was
// dropped.
func (s *Sink) Publish(ctx context.Context, e CanonicalEvent) int64 {
	if e.IsEmpty() {
		return 0
	}
	if s.callback == nil {
		return 0
	}

	content := e.Content
	if s.redactor != nil {
		content = s.redactor.Redact(content)
	}

	seq := atomic.AddInt64(&s.counter, 1)
	env := WireEnvelope{
		Marker:   WireMarker,
		Sequence: seq,
		Type:     e.Type,
		Content:  content,
		Metadata: e.Metadata,
	}

	payload, err := json.Marshal(env)
	if err != nil {
		// Marshaling a string-keyed map of strings cannot fail; guard
		// anyway so a future field addition can't panic the publisher.
		return seq
	}
	s.callback(ctx, payload)
	return seq
}

// Sequence returns the last sequence number assigned, for diagnostics.
func (s *Sink) Sequence() int64 {
	return atomic.LoadInt64(&s.counter)
}
