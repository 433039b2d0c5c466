package implementation

import (
	"context"
	"os"
	"testing"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/database"
	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/vectorstore"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkEmbeddingRepositoryRoundTrip(t *testing.T) {
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	ctx := context.Background()
	db, err := database.NewGormDBFromDSN(ctx, dsn, logger.NewNopLogger(), false)
	require.NoError(t, err)

	collection := "test_" + uuid.NewString()
	t.Cleanup(func() {
		cleanup, err := database.NewGormDBFromDSN(ctx, dsn, logger.NewNopLogger(), false)
		if err != nil {
			return
		}
		cleanup.Exec("DELETE FROM chunk_embeddings WHERE collection = ?", collection)
		cleanup.Exec("DELETE FROM vector_collections WHERE name = ?", collection)
		if sqlDB, err := cleanup.DB(); err == nil {
			sqlDB.Close()
		}
	})

	repo, err := NewChunkEmbeddingRepository(ctx, db, collection)
	require.NoError(t, err)

	res, err := repo.Search(ctx, []float32{1, 0, 0}, 4)
	require.NoError(t, err)
	assert.Empty(t, res)

	records := []store.Record{
		{Chunk: store.Chunk{ID: "a", Text: "alpha", Metadata: store.PageMetadata{Source: "a.txt", PageNumber: 1}, Span: store.Span{Start: 0, End: 5}}, Embedding: []float32{1, 0, 0}},
		{Chunk: store.Chunk{ID: "b", Text: "beta", Metadata: store.PageMetadata{Source: "b.txt", PageNumber: 1}, Span: store.Span{Start: 0, End: 4}}, Embedding: []float32{0, 1, 0}},
	}
	require.NoError(t, repo.Upsert(ctx, records))
	require.NoError(t, repo.Upsert(ctx, records[:1]))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err = repo.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "beta", res[0].Chunk.Text)
	assert.Equal(t, store.Span{Start: 0, End: 4}, res[0].Chunk.Span)
	assert.InDelta(t, 1.0, res[0].Score, 1e-5)

	err = repo.Upsert(ctx, []store.Record{{Chunk: store.Chunk{ID: "c"}, Embedding: []float32{1, 0}}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	require.NoError(t, repo.Close())
	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.PingContext(ctx), "pool should be closed with the repository")
}
