package bootstrap

import (
	"context"
	"fmt"

	"research-assistant-be/internal/config"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/implementation"
	"research-assistant-be/pkg/chunker"
	"research-assistant-be/pkg/database"
	"research-assistant-be/pkg/embedding"
	"research-assistant-be/pkg/embedding/jina"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/loader"
	pktNats "research-assistant-be/pkg/nats"
	"research-assistant-be/pkg/rag/index"
	"research-assistant-be/pkg/rag/pipeline"
	"research-assistant-be/pkg/vectorstore"
	"research-assistant-be/pkg/vectorstore/sqlite"
)

// Infrastructure is what both the REST server and the ingest CLI need:
// the embedder, the persistent collection and the document loader.
type Infrastructure struct {
	Config            *config.Config
	Logger            logger.ILogger
	EmbeddingProvider embedding.EmbeddingProvider
	Indexer           *pipeline.Indexer
	Corpus            *index.Index
	Loader            *loader.Loader
	Publisher         events.Publisher
	CorpusChunking    chunker.Config
	UploadChunking    chunker.Config

	closers []func()
}

func NewInfrastructure(ctx context.Context, cfg *config.Config, sysLogger logger.ILogger) (*Infrastructure, error) {
	infra := &Infrastructure{
		Config: cfg,
		Logger: sysLogger,
		CorpusChunking: chunker.Config{
			ChunkSize: cfg.Chunking.CorpusChunkSize,
			Overlap:   cfg.Chunking.CorpusOverlap,
		},
		UploadChunking: chunker.Config{
			ChunkSize: cfg.Chunking.UploadChunkSize,
			Overlap:   cfg.Chunking.UploadOverlap,
		},
	}

	if err := infra.CorpusChunking.Validate(); err != nil {
		return nil, fmt.Errorf("corpus chunking: %w", err)
	}
	if err := infra.UploadChunking.Validate(); err != nil {
		return nil, fmt.Errorf("upload chunking: %w", err)
	}

	provider, err := newEmbeddingProvider(cfg)
	if err != nil {
		return nil, err
	}
	infra.EmbeddingProvider = provider
	sysLogger.Info("Bootstrap", "Embedding provider selected", map[string]interface{}{
		"provider": cfg.Ai.EmbeddingProvider,
	})

	infra.Indexer = pipeline.NewIndexer(provider, cfg.Ai.EmbedConcurrency, sysLogger)

	store, err := openVectorStore(ctx, cfg, sysLogger)
	if err != nil {
		return nil, err
	}
	infra.Corpus = infra.Indexer.Wrap(store)
	// closes the sqlite file or the postgres pool
	infra.closers = append(infra.closers, func() { infra.Corpus.Close() })

	infra.Loader = loader.NewLoader(loader.OCROptions{
		Enabled:       cfg.OCR.Enabled,
		PdftoppmPath:  cfg.OCR.PdftoppmPath,
		TesseractPath: cfg.OCR.TesseractPath,
		Language:      cfg.OCR.Language,
		DPI:           cfg.OCR.DPI,
		MaxConcurrent: cfg.OCR.MaxConcurrent,
	}, loader.ExecRunner{}, sysLogger)

	infra.Publisher = events.NopPublisher{}
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "NATS unavailable, domain events disabled", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			infra.Publisher = natsPub
			infra.closers = append(infra.closers, natsPub.Close)
		}
	}

	return infra, nil
}

// Close releases resources in reverse order of acquisition.
func (i *Infrastructure) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.Logger.Sync()
}

func newEmbeddingProvider(cfg *config.Config) (embedding.EmbeddingProvider, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "ollama", "":
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel, cfg.Ai.OllamaKeepAlive, cfg.Ai.EmbedTimeout), nil
	case "jina":
		if cfg.Keys.Jina == "" {
			return nil, fmt.Errorf("jina embedding provider requires JINA_API_KEY")
		}
		return jina.NewJinaProvider(cfg.Keys.Jina, cfg.Ai.EmbedTimeout), nil
	case "gemini":
		if cfg.Keys.GoogleGemini == "" {
			return nil, fmt.Errorf("gemini embedding provider requires GOOGLE_GEMINI_API_KEY")
		}
		return embedding.NewGeminiProvider(cfg.Keys.GoogleGemini, cfg.Ai.EmbedTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
}

func openVectorStore(ctx context.Context, cfg *config.Config, sysLogger logger.ILogger) (vectorstore.Store, error) {
	switch cfg.Index.Backend {
	case "sqlite", "":
		s, err := sqlite.Open(ctx, cfg.Index.Directory, cfg.Index.Collection)
		if err != nil {
			return nil, fmt.Errorf("open sqlite index: %w", err)
		}
		sysLogger.Info("Bootstrap", "Vector index opened", map[string]interface{}{
			"backend":    "sqlite",
			"path":       s.Path(),
			"collection": s.Collection(),
		})
		return s, nil
	case "pgvector":
		if cfg.Database.Connection == "" {
			return nil, fmt.Errorf("pgvector backend requires DB_CONNECTION_STRING")
		}
		db, err := database.NewGormDBFromDSN(ctx, cfg.Database.Connection, sysLogger, cfg.App.Environment != "production")
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		repo, err := implementation.NewChunkEmbeddingRepository(ctx, db, cfg.Index.Collection)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return nil, err
		}
		sysLogger.Info("Bootstrap", "Vector index opened", map[string]interface{}{
			"backend":    "pgvector",
			"collection": cfg.Index.Collection,
		})
		return repo, nil
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Index.Backend)
	}
}
