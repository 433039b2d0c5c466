// Package index embeds chunks and answers k-NN queries over a vector store.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/embedding"
	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/vectorstore"

	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 4
	defaultBatchSize   = 64
)

type Index struct {
	store       vectorstore.Store
	embedder    embedding.EmbeddingProvider
	concurrency int
	batchSize   int
}

type Option func(*Index)

// WithConcurrency bounds the number of in-flight embedding requests.
func WithConcurrency(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// WithBatchSize sets how many chunks are embedded before each store write.
func WithBatchSize(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

func New(s vectorstore.Store, embedder embedding.EmbeddingProvider, opts ...Option) *Index {
	ix := &Index{
		store:       s,
		embedder:    embedder,
		concurrency: defaultConcurrency,
		batchSize:   defaultBatchSize,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Add embeds and upserts chunks batch by batch. Records written by earlier
// batches stay in the store if a later batch fails.
func (ix *Index) Add(ctx context.Context, chunks []store.Chunk) error {
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		records, err := ix.embedBatch(ctx, chunks[start:end])
		if err != nil {
			return err
		}
		if err := ix.store.Upsert(ctx, records); err != nil {
			if errors.Is(err, vectorstore.ErrDimensionMismatch) {
				return apperror.Wrap(apperror.KindEmbeddingError, err, "embedding dimension does not match the index")
			}
			return fmt.Errorf("store chunks: %w", err)
		}
	}
	return nil
}

func (ix *Index) embedBatch(ctx context.Context, chunks []store.Chunk) ([]store.Record, error) {
	records := make([]store.Record, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			res, err := ix.embedder.Generate(gctx, chunk.Text, embedding.TaskRetrievalDocument)
			if err != nil {
				return err
			}
			if len(res.Embedding.Values) == 0 {
				return fmt.Errorf("empty embedding for chunk %s", chunk.ID)
			}
			records[i] = store.Record{Chunk: chunk, Embedding: res.Embedding.Values}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperror.Wrap(apperror.KindEmbeddingError, err, "failed to embed chunks")
	}

	dim := len(records[0].Embedding)
	for _, r := range records[1:] {
		if len(r.Embedding) != dim {
			return nil, apperror.Newf(apperror.KindEmbeddingError,
				"embedding provider returned mixed dimensions (%d and %d)", dim, len(r.Embedding))
		}
	}
	return records, nil
}

// Query returns at most k chunks most similar to text, best first.
// An empty index yields an empty result.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]store.ScoredChunk, error) {
	if k <= 0 {
		return nil, apperror.Newf(apperror.KindInvalidQuery, "k must be positive, got %d", k)
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperror.New(apperror.KindInvalidQuery, "query must not be empty")
	}

	count, err := ix.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count index: %w", err)
	}
	if count == 0 {
		return []store.ScoredChunk{}, nil
	}

	res, err := ix.embedder.Generate(ctx, text, embedding.TaskRetrievalQuery)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperror.Wrap(apperror.KindEmbeddingError, err, "failed to embed query")
	}

	hits, err := ix.store.Search(ctx, res.Embedding.Values, k)
	if err != nil {
		if errors.Is(err, vectorstore.ErrDimensionMismatch) {
			return nil, apperror.Wrap(apperror.KindEmbeddingError, err, "query embedding does not match the index")
		}
		return nil, fmt.Errorf("search index: %w", err)
	}
	return hits, nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx)
}

func (ix *Index) Close() error {
	return ix.store.Close()
}
