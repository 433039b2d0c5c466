package pipeline

import (
	"context"
	"strings"
	"testing"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/chunker"
	"research-assistant-be/pkg/embedding"
	"research-assistant-be/pkg/store"
	"research-assistant-be/pkg/vectorstore/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// letterEmbedder counts letters a-z, enough to make identical texts score 1.
type letterEmbedder struct{}

func (letterEmbedder) Generate(_ context.Context, text, _ string) (*embedding.EmbeddingResponse, error) {
	vec := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			vec[r-'a']++
		}
	}
	vec[0] += 0.001 // never all-zero
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: vec}}, nil
}

func doc(source string, pages ...string) *store.Document {
	d := &store.Document{Source: source}
	for i, p := range pages {
		d.Pages = append(d.Pages, store.Page{Text: p, Metadata: store.PageMetadata{Source: source, PageNumber: i + 1}})
	}
	return d
}

func TestBuildEphemeral(t *testing.T) {
	p := NewIndexer(letterEmbedder{}, 2, logger.NewNopLogger())
	text := strings.Repeat("zebra quartz ", 200)

	ix, err := p.BuildEphemeral(context.Background(), doc("paper.pdf", text), chunker.UploadConfig())
	require.NoError(t, err)

	n, _ := ix.Count(context.Background())
	assert.Greater(t, n, 1)
}

func TestBuildEphemeralRejectsBadConfig(t *testing.T) {
	p := NewIndexer(letterEmbedder{}, 2, logger.NewNopLogger())
	_, err := p.BuildEphemeral(context.Background(), doc("a.txt", "text"), chunker.Config{ChunkSize: 10, Overlap: 10})
	assert.ErrorIs(t, err, apperror.ErrInvalidChunkConfig)
}

func TestBuildEphemeralEmptyDocument(t *testing.T) {
	p := NewIndexer(letterEmbedder{}, 2, logger.NewNopLogger())
	_, err := p.BuildEphemeral(context.Background(), doc("a.txt", ""), chunker.UploadConfig())
	assert.ErrorIs(t, err, apperror.ErrEmptyDocument)
}

func TestPersistentRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := NewIndexer(letterEmbedder{}, 4, logger.NewNopLogger())

	s, err := sqlite.Open(ctx, dir, "research_papers")
	require.NoError(t, err)
	ix := p.Wrap(s)

	pages := []string{
		"Gradient descent minimises a loss function iteratively.",
		"Xylophones and jazz: a quirky study of rhythm.",
	}
	n, err := p.IndexInto(ctx, ix, doc("notes.md", pages...), chunker.CorpusConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, ix.Close())

	s, err = sqlite.Open(ctx, dir, "research_papers")
	require.NoError(t, err)
	reopened := p.Wrap(s)
	defer reopened.Close()

	hits, err := reopened.Query(ctx, pages[1], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, pages[1], hits[0].Chunk.Text)
	assert.Equal(t, 2, hits[0].Chunk.Metadata.PageNumber)
}
