// Package extract pulls a fixed set of bibliographic and analytical fields
// out of a document, one model call per field.
package extract

import (
	"context"
	"strings"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/rag/prompt"
	"research-assistant-be/pkg/rag/response"
)

const moduleName = "Extractor"

type Field struct {
	Key      string
	Question string
}

// Fields are emitted in this order.
var Fields = []Field{
	{Key: "Title", Question: "What is the title of this document?"},
	{Key: "Authors", Question: "Who are the authors of this document? List their names separated by commas."},
	{Key: "Year", Question: "In what year was this document published?"},
	{Key: "Journal", Question: "In which journal, conference or venue was this document published?"},
	{Key: "Abstract", Question: "Summarise the abstract of this document."},
	{Key: "Research Gap", Question: "What research gap or open problem does this document address?"},
	{Key: "Methodology", Question: "What methodology or approach does this document use?"},
	{Key: "Key Findings", Question: "What are the key findings of this document?"},
	{Key: "Limitations", Question: "What limitations does this document acknowledge?"},
	{Key: "Conclusion", Question: "What is the conclusion of this document?"},
}

type Extractor struct {
	llm         llm.LLMProvider
	maxChars    int
	temperature float64
	logger      logger.ILogger
}

func NewExtractor(provider llm.LLMProvider, maxChars int, temperature float64, log logger.ILogger) *Extractor {
	return &Extractor{
		llm:         provider,
		maxChars:    maxChars,
		temperature: temperature,
		logger:      log,
	}
}

// Extract emits one EventField per entry of Fields, then EventEnd. A model
// failure emits EventError and stops; remaining fields are not attempted.
func (e *Extractor) Extract(ctx context.Context, fullText string) <-chan response.Event {
	out := make(chan response.Event)

	go func() {
		defer close(out)

		for _, f := range Fields {
			value, err := e.answer(ctx, fullText, f)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				e.logger.Error(moduleName, "Field extraction failed", map[string]interface{}{
					"field": f.Key,
					"error": err.Error(),
				})
				response.Emit(ctx, out, response.Event{
					Type: response.EventError,
					Err:  apperror.Wrap(apperror.KindModelGenerationError, err, "failed to extract "+f.Key),
				})
				return
			}
			if !response.Emit(ctx, out, response.Event{Type: response.EventField, Key: f.Key, Value: value}) {
				return
			}
		}
		response.Emit(ctx, out, response.Event{Type: response.EventEnd})
	}()

	return out
}

// answer assembles the streamed model output for one field.
func (e *Extractor) answer(ctx context.Context, fullText string, f Field) (string, error) {
	promptText := prompt.NewExtractionBuilder(fullText, f.Question, e.maxChars).Build()

	var sb strings.Builder
	err := e.llm.ChatStream(ctx, llm.UserMessage(promptText), func(tok string) error {
		sb.WriteString(tok)
		return nil
	}, llm.WithTemperature(e.temperature))
	if err != nil {
		return "", err
	}

	value := strings.TrimSpace(sb.String())
	if value == "" {
		value = prompt.NotFound
	}
	return value, nil
}
