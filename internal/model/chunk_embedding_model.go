package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// VectorCollection records the fixed embedding dimension of a named index.
type VectorCollection struct {
	Name      string    `gorm:"type:text;primaryKey"`
	Dimension int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (VectorCollection) TableName() string {
	return "vector_collections"
}

type ChunkEmbedding struct {
	Collection     string          `gorm:"type:text;primaryKey"`
	ChunkId        string          `gorm:"type:text;primaryKey"`
	Content        string          `gorm:"type:text;not null"`
	Source         string          `gorm:"type:text;not null;index"`
	PageNumber     int             `gorm:"not null"`
	Metadata       datatypes.JSON  `gorm:"type:jsonb"` // page metadata and char span as stored in the chunk
	EmbeddingValue pgvector.Vector `gorm:"type:vector"` // dimension enforced per collection, not per column
	Seq            int64           `gorm:"not null;default:0"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
}

func (ChunkEmbedding) TableName() string {
	return "chunk_embeddings"
}
