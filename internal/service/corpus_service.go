package service

import (
	"context"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/rag/index"
	"research-assistant-be/pkg/rag/response"

	"go.opentelemetry.io/otel/attribute"
)

const excerptRunes = 240

type ICorpusService interface {
	Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error)
	IndexedChunks(ctx context.Context) (int, error)
}

type corpusService struct {
	index       *index.Index
	synthesizer *response.Synthesizer
	logger      logger.ILogger
}

func NewCorpusService(ix *index.Index, synthesizer *response.Synthesizer, log logger.ILogger) ICorpusService {
	return &corpusService{
		index:       ix,
		synthesizer: synthesizer,
		logger:      log,
	}
}

func (s *corpusService) Ask(ctx context.Context, req *dto.AskRequest) (*dto.AskResponse, error) {
	ctx, span := tracer.Start(ctx, "CorpusService.Ask")
	defer span.End()

	k := dto.DefaultAskK
	if req.K != nil {
		k = *req.K
	}
	span.SetAttributes(attribute.Int("retrieval.k", k))

	answer, err := s.synthesizer.Ask(ctx, s.index, req.Query, k)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	sources := make([]dto.SourceResponse, 0, len(answer.Sources))
	for _, hit := range answer.Sources {
		sources = append(sources, dto.SourceResponse{
			Source:     hit.Chunk.Metadata.Source,
			PageNumber: hit.Chunk.Metadata.PageNumber,
			Score:      hit.Score,
			Excerpt:    excerpt(hit.Chunk.Text),
		})
	}

	s.logger.Info("CorpusService", "Question answered", map[string]interface{}{
		"k":       k,
		"sources": len(sources),
	})

	return &dto.AskResponse{Answer: answer.Text, Sources: sources}, nil
}

func (s *corpusService) IndexedChunks(ctx context.Context) (int, error) {
	return s.index.Count(ctx)
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptRunes {
		return text
	}
	return string(runes[:excerptRunes]) + "..."
}
