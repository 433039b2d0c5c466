// Package vectorstore defines the persistence contract behind a vector index.
package vectorstore

import (
	"context"
	"errors"
	"math"
	"sort"

	"research-assistant-be/pkg/store"
)

// ErrDimensionMismatch is returned when a vector does not match the
// dimension already recorded for the collection.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Store holds (chunk, embedding) records of a single collection.
type Store interface {
	// Upsert inserts records, replacing any record with the same chunk ID.
	Upsert(ctx context.Context, records []store.Record) error
	// Search returns at most k records ordered by non-increasing cosine similarity.
	Search(ctx context.Context, query []float32, k int) ([]store.ScoredChunk, error)
	// Dimension is 0 until the first record is stored.
	Dimension(ctx context.Context) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// CosineSimilarity returns 0 when either vector has zero magnitude.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// TopK scores every record against query and keeps the best k.
// Ties keep insertion order.
func TopK(records []store.Record, query []float32, k int) []store.ScoredChunk {
	if k <= 0 || len(records) == 0 {
		return []store.ScoredChunk{}
	}
	scored := make([]store.ScoredChunk, len(records))
	for i, r := range records {
		scored[i] = store.ScoredChunk{Chunk: r.Chunk, Score: CosineSimilarity(r.Embedding, query)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}
