package stream

import "sync"

// terminal is the immutable end-of-stream marker. A nil err means the
// stream completed; non-nil means it failed.
type terminal struct {
	err error
}

// Subject is a hot multicast stream.
//
// Thread safety: all methods are safe to call from any goroutine. A single
// mutex serializes mutations of the active-subscription set and the terminal
// marker. Delivery callbacks are always invoked outside that mutex, against
// an immutable snapshot of the active set, so a callback may re-enter
// Subscribe, Cancel or Emit on the same Subject without deadlocking.
//
// Ordering: each subscription sees values in emission order. A subscription
// added while an Emit is dispatching is not part of that Emit's snapshot and
// does not receive its value.
type Subject[T any] struct {
	mu       sync.Mutex
	subs     []*Subscription[T]
	terminal *terminal
}

// NewSubject creates an empty, non-terminated Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe adds a subscription with the given delivery callbacks.
//
// If the Subject has already terminated, the stored terminal signal is
// delivered synchronously and the returned subscription is never added to
// the active set.
func (s *Subject[T]) Subscribe(onValue func(T), onError func(error), onComplete func()) *Subscription[T] {
	sub := newSubscription(s, onValue, onError, onComplete)

	s.mu.Lock()
	if t := s.terminal; t != nil {
		s.mu.Unlock()
		sub.deliverTerminal(t)
		return sub
	}
	sub.active = true
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	return sub
}

// Emit delivers value to every subscription active at the time of the call.
// No-op once the Subject has terminated.
func (s *Subject[T]) Emit(value T) {
	s.mu.Lock()
	if s.terminal != nil {
		s.mu.Unlock()
		return
	}
	snapshot := make([]*Subscription[T], len(s.subs))
	copy(snapshot, s.subs)
	s.mu.Unlock()

	for _, sub := range snapshot {
		if sub.onValue != nil {
			sub.onValue(value)
		}
	}
}

// Complete terminates the Subject successfully. The first terminal call
// (Complete or Fail) wins; later ones are no-ops.
func (s *Subject[T]) Complete() {
	s.terminate(&terminal{})
}

// Fail terminates the Subject with the given producer error.
func (s *Subject[T]) Fail(err error) {
	s.terminate(&terminal{err: err})
}

// Terminated reports whether a terminal signal has been set.
func (s *Subject[T]) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal != nil
}

// SubscriptionCount returns the number of active subscriptions.
func (s *Subject[T]) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Subject[T]) terminate(t *terminal) {
	s.mu.Lock()
	if s.terminal != nil {
		s.mu.Unlock()
		return
	}
	s.terminal = t
	snapshot := s.subs
	s.subs = nil
	for _, sub := range snapshot {
		sub.active = false
	}
	s.mu.Unlock()

	for _, sub := range snapshot {
		sub.deliverTerminal(t)
	}
}

// cancel removes sub from the active set. Idempotent; harmless after
// termination.
func (s *Subject[T]) cancel(sub *Subscription[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sub.active {
		return
	}
	sub.active = false
	for i, cur := range s.subs {
		if cur == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}
