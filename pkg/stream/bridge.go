package stream

import "fmt"

// Bridge adapts a callback-driven push Source into a multicast Stream.
//
// A Bridge exclusively owns its source handle and is the source's only
// registered sink; a source must never be shared across two Bridges. The
// Bridge's internal Subject is private: consumers reach it only through the
// read-only view returned by Stream, so producer callbacks are the single
// path by which values and errors enter the stream.
type Bridge[T any] struct {
	source  Source[T]
	subject *Subject[T]
}

// NewBridge constructs a Bridge over src and registers it as the source's
// sink. Fails if the source already has a sink registered.
func NewBridge[T any](src Source[T]) (*Bridge[T], error) {
	b := &Bridge[T]{
		source:  src,
		subject: NewSubject[T](),
	}
	if err := src.SetSink(b); err != nil {
		return nil, fmt.Errorf("register sink: %w", err)
	}
	return b, nil
}

// Activate asks the source to start producing. The call is forwarded as-is:
// activating an already-active source behaves however the source defines.
func (b *Bridge[T]) Activate() error {
	return b.source.Activate()
}

// Deactivate asks the source to stop producing. Callbacks already in flight
// may still be delivered until the producer actually stops.
func (b *Bridge[T]) Deactivate() error {
	return b.source.Deactivate()
}

// Stream returns the read-only view of the bridge's stream.
func (b *Bridge[T]) Stream() Stream[T] {
	return view[T]{subject: b.subject}
}

// Close deactivates the source and completes the stream for all
// subscribers. Events racing the deactivation are dropped once the
// completion lands.
func (b *Bridge[T]) Close() error {
	err := b.source.Deactivate()
	b.subject.Complete()
	return err
}

// OnEvent implements Sink. Invoked by the source from an arbitrary
// goroutine; forwards into the subject, which drops the value silently if
// the stream has already terminated.
func (b *Bridge[T]) OnEvent(value T) {
	b.subject.Emit(value)
}

// OnError implements Sink. Fails the stream for every present and future
// subscriber; a second terminal callback is a no-op.
func (b *Bridge[T]) OnError(err error) {
	b.subject.Fail(err)
}

// view wraps a Subject and exposes only its subscribe surface.
type view[T any] struct {
	subject *Subject[T]
}

func (v view[T]) Subscribe(onValue func(T), onError func(error), onComplete func()) *Subscription[T] {
	return v.subject.Subscribe(onValue, onError, onComplete)
}
