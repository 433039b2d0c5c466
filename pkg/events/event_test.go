package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructors(t *testing.T) {
	created := SessionCreated("s1", "paper.pdf", 4, 12)
	assert.Equal(t, TypeSessionCreated, created.EventType())
	assert.Equal(t, "paper.pdf", created.Payload()["filename"])
	assert.False(t, created.Timestamp().IsZero())

	deleted := SessionDeleted("s1", "expired")
	assert.Equal(t, TypeSessionDeleted, deleted.EventType())
	assert.Equal(t, "expired", deleted.Payload()["reason"])

	ingested := CorpusIngested("papers", 3, 40, 1)
	assert.Equal(t, TypeCorpusIngested, ingested.EventType())
	assert.Equal(t, 40, ingested.Payload()["chunks"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), SessionDeleted("x", "manual")))
}
