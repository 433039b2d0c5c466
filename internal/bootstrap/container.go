package bootstrap

import (
	"context"
	"fmt"

	"research-assistant-be/internal/config"
	"research-assistant-be/internal/controller"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/memory"
	"research-assistant-be/internal/service"
	"research-assistant-be/pkg/llm/factory"
	"research-assistant-be/pkg/rag/extract"
	"research-assistant-be/pkg/rag/response"
	"research-assistant-be/pkg/rag/session"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	CorpusController   controller.ICorpusController
	HealthController   controller.IHealthController

	Logger    logger.ILogger
	llmLogger logger.ILogger
	infra     *Infrastructure
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.LogLevel, cfg.App.Environment == "production")
	// prompts and model output go to their own file so the main log stays readable
	llmLogger := logger.NewIsolatedLogger(cfg.App.LLMLogFilePath)

	infra, err := NewInfrastructure(ctx, cfg, sysLogger)
	if err != nil {
		return nil, err
	}

	llmBaseURL := cfg.Ai.LLMBaseURL
	if llmBaseURL == "" && (cfg.Ai.LLMProvider == "ollama" || cfg.Ai.LLMProvider == "") {
		llmBaseURL = cfg.Ai.OllamaBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(factory.Params{
		Provider:  cfg.Ai.LLMProvider,
		Model:     cfg.Ai.LLMModel,
		BaseURL:   llmBaseURL,
		APIKey:    cfg.Keys.HuggingFace,
		KeepAlive: cfg.Ai.OllamaKeepAlive,
		Timeout:   cfg.Ai.LLMTimeout,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	sysLogger.Info("Bootstrap", "LLM provider selected", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	sessionRepo := memory.NewSessionRepository(cfg.Session.TTL, cfg.Session.CleanupInterval, cfg.Session.MaxEntries)
	sessionManager := session.NewManager(sessionRepo, infra.Indexer, infra.UploadChunking, sysLogger)

	synthesizer := response.NewSynthesizer(llmProvider, cfg.Retrieval.TopK, cfg.Ai.Temperature, llmLogger)
	extractor := extract.NewExtractor(llmProvider, cfg.Retrieval.ExtractMaxChars, cfg.Ai.Temperature, llmLogger)

	documentService := service.NewDocumentService(infra.Loader, sessionManager, synthesizer, extractor, infra.Publisher, sysLogger)
	corpusService := service.NewCorpusService(infra.Corpus, synthesizer, sysLogger)

	return &Container{
		DocumentController: controller.NewDocumentController(documentService),
		CorpusController:   controller.NewCorpusController(corpusService),
		HealthController:   controller.NewHealthController(documentService, corpusService, cfg.Index.Backend, cfg.Index.Collection),
		Logger:             sysLogger,
		llmLogger:          llmLogger,
		infra:              infra,
	}, nil
}

func (c *Container) Close() {
	c.llmLogger.Sync()
	c.infra.Close()
}
