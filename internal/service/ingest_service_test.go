package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/chunker"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/loader"
	"research-assistant-be/pkg/rag/index"
	"research-assistant-be/pkg/rag/pipeline"
	"research-assistant-be/pkg/vectorstore/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newIngest(emb wordEmbedder, pub events.Publisher) (IIngestService, *index.Index) {
	log := logger.NewNopLogger()
	indexer := pipeline.NewIndexer(emb, 2, log)
	target := indexer.Wrap(memory.NewStore())
	svc := NewIngestService(
		loader.NewLoader(loader.OCROptions{}, loader.ExecRunner{}, log),
		indexer,
		target,
		"papers",
		chunker.CorpusConfig(),
		"INGEST_DOCUMENT",
		pub,
		log,
	)
	return svc, target
}

func TestIngestIndexesSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "a.txt", "A transformer trained on a large dataset.")
	writeCorpusFile(t, dir, "nested/b.md", "# Results\nThe result is strong.")
	writeCorpusFile(t, dir, "table.csv", "x,y\n1,2\n")
	writeCorpusFile(t, dir, "broken.pdf", "garbage bytes")
	writeCorpusFile(t, dir, "blank.txt", "   \n\n ")

	pub := &recordingPublisher{}
	svc, target := newIngest(wordEmbedder{}, pub)

	report, err := svc.Ingest(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, "papers", report.Collection)
	assert.Equal(t, 5, report.Discovered)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, []string{filepath.Join(dir, "table.csv")}, report.Skipped)

	var failed []string
	for _, f := range report.Failed {
		failed = append(failed, filepath.Base(f.Path))
	}
	sort.Strings(failed)
	assert.Equal(t, []string{"blank.txt", "broken.pdf"}, failed)

	count, err := target.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.Chunks, count)
	assert.Positive(t, count)

	hits, err := target.Query(context.Background(), "transformer", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a.txt", hits[0].Chunk.Metadata.Source)

	assert.Equal(t, []string{events.TypeCorpusIngested}, pub.types())
}

func TestIngestFailsWhenNothingLoads(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "only.csv", "a,b")

	pub := &recordingPublisher{}
	svc, _ := newIngest(wordEmbedder{}, pub)

	report, err := svc.Ingest(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrEmptyDocument)
	require.NotNil(t, report)
	assert.Zero(t, report.Loaded)
	assert.Len(t, report.Skipped, 1)
	assert.Empty(t, pub.types())
}

func TestIngestEmbeddingFailuresAreReported(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "a.txt", "some text")

	svc, _ := newIngest(wordEmbedder{fail: true}, nil)

	report, err := svc.Ingest(context.Background(), dir)
	assert.ErrorIs(t, err, apperror.ErrEmptyDocument)
	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Error, "embedder offline")
}

func TestIngestMissingDirectory(t *testing.T) {
	svc, _ := newIngest(wordEmbedder{}, nil)

	_, err := svc.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, apperror.ErrInvalidRequest)
}
