package stream

import "errors"

// Sentinel errors for source registration.
var (
	ErrSinkRegistered = errors.New("stream: sink already registered")
	ErrNoSink         = errors.New("stream: no sink registered")
)
