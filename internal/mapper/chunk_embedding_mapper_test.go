package mapper

import (
	"testing"

	"research-assistant-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

func TestChunkEmbeddingMapperKeepsSpanInMetadata(t *testing.T) {
	m := NewChunkEmbeddingMapper()
	in := store.Record{
		Chunk: store.Chunk{
			ID:       "abc",
			Text:     "body",
			Metadata: store.PageMetadata{Source: "paper.pdf", PageNumber: 3},
			Span:     store.Span{Start: 800, End: 804},
		},
		Embedding: []float32{0.5, 0.5},
	}

	models := m.ToModels("papers", []store.Record{in, in}, 7)
	assert.Equal(t, int64(7), models[0].Seq)
	assert.Equal(t, int64(8), models[1].Seq)
	assert.Equal(t, "papers", models[0].Collection)
	assert.JSONEq(t, `{"source":"paper.pdf","page_number":3,"char_span":{"start":800,"end":804}}`, string(models[0].Metadata))

	out := m.ToRecord(models[0])
	assert.Equal(t, in, out)
}
