package stream

import "github.com/google/uuid"

// Subscription is a consumer's handle to a Subject, cancellable
// independently of other subscriptions.
type Subscription[T any] struct {
	id      string
	subject *Subject[T]

	onValue    func(T)
	onError    func(error)
	onComplete func()

	// active is guarded by subject.mu.
	active bool
}

func newSubscription[T any](s *Subject[T], onValue func(T), onError func(error), onComplete func()) *Subscription[T] {
	return &Subscription[T]{
		id:         uuid.New().String(),
		subject:    s,
		onValue:    onValue,
		onError:    onError,
		onComplete: onComplete,
	}
}

// ID returns the subscription's unique identifier.
func (s *Subscription[T]) ID() string {
	return s.id
}

// Cancel removes the subscription from its Subject's active set. Repeat
// calls are no-ops.
//
// Once Cancel returns, no new delivery to this subscription begins. A
// delivery already dispatching from a snapshot taken before Cancel may
// still land; that race is inherent to snapshot fan-out and is not
// suppressed.
func (s *Subscription[T]) Cancel() {
	s.subject.cancel(s)
}

// Active reports whether the subscription is still in its Subject's active
// set.
func (s *Subscription[T]) Active() bool {
	s.subject.mu.Lock()
	defer s.subject.mu.Unlock()
	return s.active
}

func (s *Subscription[T]) deliverTerminal(t *terminal) {
	if t.err != nil {
		if s.onError != nil {
			s.onError(t.err)
		}
		return
	}
	if s.onComplete != nil {
		s.onComplete()
	}
}
