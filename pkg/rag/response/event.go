package response

import "context"

type EventType string

const (
	EventToken EventType = "token"
	EventField EventType = "field"
	EventEnd   EventType = "end"
	EventError EventType = "error"
)

// Event is one item of a streamed answer. Token is set for EventToken,
// Key and Value for EventField, Err for EventError.
type Event struct {
	Type  EventType
	Token string
	Key   string
	Value string
	Err   error
}

// Emit delivers ev unless ctx is cancelled first. A false return means the
// consumer is gone and the producer must stop.
func Emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
