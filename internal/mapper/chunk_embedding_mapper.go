package mapper

import (
	"encoding/json"

	"research-assistant-be/internal/model"
	"research-assistant-be/pkg/store"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type ChunkEmbeddingMapper struct{}

func NewChunkEmbeddingMapper() *ChunkEmbeddingMapper {
	return &ChunkEmbeddingMapper{}
}

type chunkMetadata struct {
	Source     string     `json:"source"`
	PageNumber int        `json:"page_number"`
	CharSpan   store.Span `json:"char_span"`
}

func (m *ChunkEmbeddingMapper) ToRecord(e *model.ChunkEmbedding) store.Record {
	chunk := store.Chunk{
		ID:   e.ChunkId,
		Text: e.Content,
		Metadata: store.PageMetadata{
			Source:     e.Source,
			PageNumber: e.PageNumber,
		},
	}

	var meta chunkMetadata
	if len(e.Metadata) > 0 && json.Unmarshal(e.Metadata, &meta) == nil {
		chunk.Span = meta.CharSpan
	}

	return store.Record{
		Chunk:     chunk,
		Embedding: e.EmbeddingValue.Slice(),
	}
}

func (m *ChunkEmbeddingMapper) ToModel(collection string, r store.Record, seq int64) *model.ChunkEmbedding {
	meta, _ := json.Marshal(chunkMetadata{
		Source:     r.Chunk.Metadata.Source,
		PageNumber: r.Chunk.Metadata.PageNumber,
		CharSpan:   r.Chunk.Span,
	})

	return &model.ChunkEmbedding{
		Collection:     collection,
		ChunkId:        r.Chunk.ID,
		Content:        r.Chunk.Text,
		Source:         r.Chunk.Metadata.Source,
		PageNumber:     r.Chunk.Metadata.PageNumber,
		Metadata:       datatypes.JSON(meta),
		EmbeddingValue: pgvector.NewVector(r.Embedding),
		Seq:            seq,
	}
}

func (m *ChunkEmbeddingMapper) ToModels(collection string, records []store.Record, firstSeq int64) []*model.ChunkEmbedding {
	models := make([]*model.ChunkEmbedding, len(records))
	for i, r := range records {
		models[i] = m.ToModel(collection, r, firstSeq+int64(i))
	}
	return models
}
