package implementation

import (
	"context"
	"errors"
	"fmt"

	"research-assistant-be/internal/mapper"
	"research-assistant-be/internal/model"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/vectorstore"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChunkEmbeddingRepositoryImpl struct {
	db         *gorm.DB
	collection string
	mapper     *mapper.ChunkEmbeddingMapper
}

// NewChunkEmbeddingRepository migrates the schema and registers the collection.
func NewChunkEmbeddingRepository(ctx context.Context, db *gorm.DB, collection string) (contract.ChunkEmbeddingRepository, error) {
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if err := db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&model.VectorCollection{}, &model.ChunkEmbedding{}); err != nil {
		return nil, fmt.Errorf("migrate vector tables: %w", err)
	}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.VectorCollection{Name: collection}).Error; err != nil {
		return nil, fmt.Errorf("register collection: %w", err)
	}

	return &ChunkEmbeddingRepositoryImpl{
		db:         db,
		collection: collection,
		mapper:     mapper.NewChunkEmbeddingMapper(),
	}, nil
}

func (r *ChunkEmbeddingRepositoryImpl) Dimension(ctx context.Context) (int, error) {
	var c model.VectorCollection
	if err := r.db.WithContext(ctx).Where("name = ?", r.collection).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return c.Dimension, nil
}

func (r *ChunkEmbeddingRepositoryImpl) Upsert(ctx context.Context, records []store.Record) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// row lock serialises concurrent writers on the same collection
		var c model.VectorCollection
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", r.collection).First(&c).Error; err != nil {
			return fmt.Errorf("lock collection: %w", err)
		}

		dim := c.Dimension
		for _, rec := range records {
			if dim == 0 {
				dim = len(rec.Embedding)
			}
			if len(rec.Embedding) != dim || dim == 0 {
				return fmt.Errorf("%w: collection %q has %d, got %d",
					vectorstore.ErrDimensionMismatch, r.collection, dim, len(rec.Embedding))
			}
		}
		if c.Dimension == 0 {
			if err := tx.Model(&c).Update("dimension", dim).Error; err != nil {
				return fmt.Errorf("record dimension: %w", err)
			}
		}

		var maxSeq int64
		if err := tx.Model(&model.ChunkEmbedding{}).
			Where("collection = ?", r.collection).
			Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return err
		}

		models := r.mapper.ToModels(r.collection, records, maxSeq+1)
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"content", "source", "page_number", "metadata", "embedding_value", "updated_at"}),
		}).CreateInBatches(models, 200).Error
	})
}

// Search ranks by cosine similarity. pgvector's <=> is cosine distance, so
// similarity is 1 - distance.
func (r *ChunkEmbeddingRepositoryImpl) Search(ctx context.Context, query []float32, k int) ([]store.ScoredChunk, error) {
	if k <= 0 {
		return []store.ScoredChunk{}, nil
	}

	dim, err := r.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return []store.ScoredChunk{}, nil
	}
	if len(query) != dim {
		return nil, fmt.Errorf("%w: collection %q has %d, query has %d",
			vectorstore.ErrDimensionMismatch, r.collection, dim, len(query))
	}

	type result struct {
		model.ChunkEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(query)
	err = r.db.WithContext(ctx).
		Table("chunk_embeddings").
		Select("chunk_embeddings.*, 1 - (embedding_value <=> ?) AS similarity", queryVector).
		Where("collection = ?", r.collection).
		Order("similarity DESC, seq ASC").
		Limit(k).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]store.ScoredChunk, len(results))
	for i, res := range results {
		rec := r.mapper.ToRecord(&res.ChunkEmbedding)
		scored[i] = store.ScoredChunk{Chunk: rec.Chunk, Score: float32(res.Similarity)}
	}
	return scored, nil
}

func (r *ChunkEmbeddingRepositoryImpl) Count(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChunkEmbedding{}).
		Where("collection = ?", r.collection).
		Count(&count).Error
	return int(count), err
}

// Close releases the connection pool. The repository owns the *gorm.DB it
// was built with, so nothing else may use it afterwards.
func (r *ChunkEmbeddingRepositoryImpl) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
