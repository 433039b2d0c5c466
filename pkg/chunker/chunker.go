// Package chunker splits loaded documents into overlapping fixed-size chunks.
package chunker

import (
	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/utils"
)

// Config is a chunking policy, counted in characters.
type Config struct {
	ChunkSize int
	Overlap   int
}

// CorpusConfig is the policy used for batch corpus ingestion.
func CorpusConfig() Config {
	return Config{ChunkSize: 800, Overlap: 120}
}

// UploadConfig is the policy used for ad-hoc uploaded documents.
func UploadConfig() Config {
	return Config{ChunkSize: 1000, Overlap: 150}
}

// Validate returns an InvalidChunkConfig error for unusable policies.
func (c Config) Validate() error {
	return utils.ValidateChunkConfig(c.ChunkSize, c.Overlap)
}

// Split cuts every page of doc into windows. Chunks never cross a page boundary,
// so each chunk inherits exactly one page's metadata.
func Split(doc *store.Document, cfg Config) ([]store.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	var chunks []store.Chunk
	for _, page := range doc.Pages {
		windows, err := utils.SplitText(page.Text, cfg.ChunkSize, cfg.Overlap)
		if err != nil {
			return nil, err
		}
		for _, w := range windows {
			span := store.Span{Start: w.Start, End: w.End}
			chunks = append(chunks, store.Chunk{
				ID:       store.ChunkID(page.Metadata, span, w.Text),
				Text:     w.Text,
				Metadata: page.Metadata,
				Span:     span,
			})
		}
	}
	return chunks, nil
}
