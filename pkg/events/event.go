package events

import (
	"context"
	"time"
)

const (
	TypeSessionCreated = "SESSION_CREATED"
	TypeSessionDeleted = "SESSION_DELETED"
	TypeCorpusIngested = "CORPUS_INGESTED"
)

// Event is a domain fact announced to other services.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// Publisher delivers events. Delivery is best effort; callers log failures.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func SessionCreated(sessionID, filename string, pages, chunks int) Event {
	return BaseEvent{
		Type: TypeSessionCreated,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"filename":   filename,
			"pages":      pages,
			"chunks":     chunks,
		},
		OccurredAt: time.Now(),
	}
}

func SessionDeleted(sessionID, reason string) Event {
	return BaseEvent{
		Type: TypeSessionDeleted,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"reason":     reason,
		},
		OccurredAt: time.Now(),
	}
}

func CorpusIngested(collection string, documents, chunks, failed int) Event {
	return BaseEvent{
		Type: TypeCorpusIngested,
		Data: map[string]interface{}{
			"collection": collection,
			"documents":  documents,
			"chunks":     chunks,
			"failed":     failed,
		},
		OccurredAt: time.Now(),
	}
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
