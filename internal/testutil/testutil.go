// Package testutil provides shared test doubles for pushbridge tests.
package testutil

import (
	"sync"

	"github.com/pushbridge/pushbridge/internal/domain/events"
	"github.com/pushbridge/pushbridge/pkg/stream"
)

// MockSource implements stream.Source for tests. Tests drive it by calling
// Push and Fail, which forward to the registered sink.
type MockSource struct {
	mu            sync.Mutex
	sink          stream.Sink[events.Event]
	activations   int
	deactivations int
}

// NewMockSource creates an idle mock source.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// SetSink registers the sink, enforcing the exactly-one-sink precondition.
func (m *MockSource) SetSink(sink stream.Sink[events.Event]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sink != nil {
		return stream.ErrSinkRegistered
	}
	m.sink = sink
	return nil
}

// Activate records the call. Never errors, never dedups.
func (m *MockSource) Activate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activations++
	return nil
}

// Deactivate records the call.
func (m *MockSource) Deactivate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivations++
	return nil
}

// Push delivers an event through the sink, as the producer would.
func (m *MockSource) Push(e events.Event) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink != nil {
		sink.OnEvent(e)
	}
}

// Fail reports a producer failure through the sink.
func (m *MockSource) Fail(err error) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	if sink != nil {
		sink.OnError(err)
	}
}

// Counts returns how often Activate and Deactivate were called.
func (m *MockSource) Counts() (activations, deactivations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activations, m.deactivations
}

// HasSink reports whether a sink is registered.
func (m *MockSource) HasSink() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sink != nil
}

// Recorder is a stream consumer that records everything delivered to it.
type Recorder struct {
	mu        sync.Mutex
	events    []events.Event
	errs      []error
	completes int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Subscribe attaches the recorder to a stream and returns the subscription.
func (r *Recorder) Subscribe(st stream.Stream[events.Event]) *stream.Subscription[events.Event] {
	return st.Subscribe(
		func(e events.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, e)
		},
		func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
		func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completes++
		},
	)
}

// Events returns all recorded events.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Errors returns all recorded failure deliveries.
func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

// Completions returns the number of completion deliveries.
func (r *Recorder) Completions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completes
}
