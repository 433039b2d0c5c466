package contract

import (
	"research-assistant-be/pkg/vectorstore"
)

// ChunkEmbeddingRepository is a vector store backed by Postgres + pgvector,
// scoped to one collection.
type ChunkEmbeddingRepository interface {
	vectorstore.Store
}
