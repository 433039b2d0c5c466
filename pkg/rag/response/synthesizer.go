package response

import (
	"context"
	"strings"
	"time"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/rag/prompt"
	"research-assistant-be/pkg/store"
)

// NoContextMessage is returned instead of calling the model when retrieval finds nothing.
const NoContextMessage = "No documents / context found for your query."

const moduleName = "Synthesizer"

// Retriever is the read side of a vector index.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]store.ScoredChunk, error)
}

type Synthesizer struct {
	llm         llm.LLMProvider
	topK        int
	temperature float64
	logger      logger.ILogger
}

func NewSynthesizer(provider llm.LLMProvider, topK int, temperature float64, log logger.ILogger) *Synthesizer {
	if topK <= 0 {
		topK = 4
	}
	return &Synthesizer{
		llm:         provider,
		topK:        topK,
		temperature: temperature,
		logger:      log,
	}
}

// Answer streams a grounded answer to query. Retrieval uses the query alone;
// history only shapes the prompt. The channel is closed after EventEnd or
// EventError, or as soon as ctx is cancelled.
func (s *Synthesizer) Answer(ctx context.Context, r Retriever, query string, history []llm.Message) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)
		start := time.Now()

		hits, err := r.Query(ctx, query, s.topK)
		if err != nil {
			if ctx.Err() == nil {
				Emit(ctx, out, Event{Type: EventError, Err: err})
			}
			return
		}

		if len(hits) == 0 {
			if Emit(ctx, out, Event{Type: EventToken, Token: NoContextMessage}) {
				Emit(ctx, out, Event{Type: EventEnd})
			}
			return
		}

		promptText := prompt.NewGroundedBuilder(query, history, hits).Build()
		s.logger.Debug(moduleName, "Grounded prompt built", map[string]interface{}{
			"query":   query,
			"chunks":  len(hits),
			"history": len(history),
			"prompt":  promptText,
		})

		tokens := 0
		err = s.llm.ChatStream(ctx, llm.UserMessage(promptText), func(tok string) error {
			if !Emit(ctx, out, Event{Type: EventToken, Token: tok}) {
				return ctx.Err()
			}
			tokens++
			return nil
		}, llm.WithTemperature(s.temperature))

		if ctx.Err() != nil {
			s.logger.Info(moduleName, "Answer stream cancelled by caller", map[string]interface{}{
				"tokens": tokens,
			})
			return
		}
		if err != nil {
			s.logger.Error(moduleName, "Model stream failed", map[string]interface{}{
				"error":  err.Error(),
				"tokens": tokens,
			})
			Emit(ctx, out, Event{Type: EventError, Err: apperror.Wrap(apperror.KindModelGenerationError, err, "model generation failed")})
			return
		}

		s.logger.Debug(moduleName, "Answer streamed", map[string]interface{}{
			"tokens":      tokens,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		Emit(ctx, out, Event{Type: EventEnd})
	}()

	return out
}

type Answer struct {
	Text    string
	Sources []store.ScoredChunk
}

// Ask answers a single question against r without streaming.
func (s *Synthesizer) Ask(ctx context.Context, r Retriever, query string, k int) (*Answer, error) {
	hits, err := r.Query(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return &Answer{Text: NoContextMessage, Sources: []store.ScoredChunk{}}, nil
	}

	promptText := prompt.NewGroundedBuilder(query, nil, hits).Build()
	s.logger.Debug(moduleName, "Grounded prompt built", map[string]interface{}{
		"query":  query,
		"chunks": len(hits),
		"prompt": promptText,
	})

	text, err := s.llm.Chat(ctx, llm.UserMessage(promptText), llm.WithTemperature(s.temperature))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperror.Wrap(apperror.KindModelGenerationError, err, "model generation failed")
	}

	return &Answer{Text: strings.TrimSpace(text), Sources: hits}, nil
}
