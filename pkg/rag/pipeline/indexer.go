// Package pipeline holds the single chunk-and-index path shared by corpus
// ingestion and document upload.
package pipeline

import (
	"context"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/chunker"
	"research-assistant-be/pkg/embedding"
	"research-assistant-be/pkg/rag/index"
	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/vectorstore"
	"research-assistant-be/pkg/vectorstore/memory"
)

const moduleName = "Indexer"

type Indexer struct {
	embedder    embedding.EmbeddingProvider
	concurrency int
	logger      logger.ILogger
}

func NewIndexer(embedder embedding.EmbeddingProvider, concurrency int, log logger.ILogger) *Indexer {
	return &Indexer{
		embedder:    embedder,
		concurrency: concurrency,
		logger:      log,
	}
}

// IndexInto chunks doc with cfg and adds the chunks to target.
// Returns the number of chunks written.
func (p *Indexer) IndexInto(ctx context.Context, target *index.Index, doc *store.Document, cfg chunker.Config) (int, error) {
	chunks, err := chunker.Split(doc, cfg)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, apperror.Newf(apperror.KindEmptyDocument, "%s produced no chunks", doc.Source)
	}

	if err := target.Add(ctx, chunks); err != nil {
		return 0, err
	}

	p.logger.Debug(moduleName, "Document indexed", map[string]interface{}{
		"source":     doc.Source,
		"pages":      len(doc.Pages),
		"chunks":     len(chunks),
		"chunk_size": cfg.ChunkSize,
		"overlap":    cfg.Overlap,
	})
	return len(chunks), nil
}

// BuildEphemeral indexes doc into a fresh in-memory index.
func (p *Indexer) BuildEphemeral(ctx context.Context, doc *store.Document, cfg chunker.Config) (*index.Index, error) {
	ix := p.Wrap(memory.NewStore())
	if _, err := p.IndexInto(ctx, ix, doc, cfg); err != nil {
		return nil, err
	}
	return ix, nil
}

// Wrap binds a store to the shared embedder.
func (p *Indexer) Wrap(s vectorstore.Store) *index.Index {
	return index.New(s, p.embedder, index.WithConcurrency(p.concurrency))
}
