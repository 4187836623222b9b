// Package stream provides a multicast, cancellable event-stream abstraction
// over callback-driven push sources.
//
// The package has two layers:
//
//   - Subject: a hot multicast primitive. Every value passed to Emit is
//     delivered to all currently active subscriptions; a single terminal
//     signal (completion or failure) ends the stream for everyone, including
//     subscribers that attach later.
//   - Bridge: adapts an external push Source into a Subject. The Bridge owns
//     the source handle, registers itself as the source's only callback sink,
//     and exposes a read-only Stream view plus pass-through activation
//     controls.
//
// There is no buffering and no replay: a subscription only sees values
// emitted while it is active. Delivery callbacks run synchronously on the
// caller's goroutine; consumers that want asynchronous delivery wrap their
// callbacks themselves.
package stream

// Stream is the read-only, subscribe-only view of a Subject. Consumers
// holding a Stream cannot emit values or terminate the underlying Subject.
type Stream[T any] interface {
	// Subscribe registers the given callbacks and returns a cancellable
	// subscription. Any of the callbacks may be nil.
	//
	// If the stream has already terminated, the terminal callback
	// (onError or onComplete) fires synchronously before Subscribe
	// returns, and the returned subscription is already inactive.
	Subscribe(onValue func(T), onError func(error), onComplete func()) *Subscription[T]
}

// Sink receives callbacks from a push source. OnEvent and OnError may be
// invoked from any goroutine the source chooses.
type Sink[T any] interface {
	// OnEvent delivers one value from the source.
	OnEvent(value T)

	// OnError reports a producer failure. A source invokes OnError at
	// most once; nothing may follow it.
	OnError(err error)
}

// Source is the contract an external push producer must satisfy to be
// bridged. A source accepts exactly one sink, registered before activation,
// and delivers data exclusively through it.
//
// Activate and Deactivate idempotency is source-defined: the Bridge forwards
// both calls as-is without any guard of its own. Events already in flight
// when Deactivate is called may still reach the sink until the producer
// actually stops.
type Source[T any] interface {
	// SetSink registers the sink. Returns ErrSinkRegistered if a sink is
	// already registered; a source never has more than one.
	SetSink(sink Sink[T]) error

	// Activate asks the source to start producing.
	Activate() error

	// Deactivate asks the source to stop producing.
	Deactivate() error
}
