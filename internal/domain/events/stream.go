package events

// StreamFailedPayload is the payload for stream_failed frames.
type StreamFailedPayload struct {
	Error string `json:"error"`
}

// NewStreamFailedEvent creates the terminal frame sent to consumers when the
// producer fails.
func NewStreamFailedEvent(err error) *BaseEvent {
	return NewEvent(EventTypeStreamFailed, StreamFailedPayload{
		Error: err.Error(),
	})
}

// NewStreamCompletedEvent creates the terminal frame sent to consumers when
// the stream completes.
func NewStreamCompletedEvent() *BaseEvent {
	return NewEvent(EventTypeStreamCompleted, nil)
}
