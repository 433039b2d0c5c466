package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/internal/repository/memory"
	"research-assistant-be/pkg/chunker"
	"research-assistant-be/pkg/embedding"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/loader"
	"research-assistant-be/pkg/rag/extract"
	"research-assistant-be/pkg/rag/pipeline"
	"research-assistant-be/pkg/rag/response"
	"research-assistant-be/pkg/rag/session"
)

// wordEmbedder counts a few marker words so related text scores higher.
type wordEmbedder struct {
	fail bool
}

func (w wordEmbedder) Generate(_ context.Context, text, _ string) (*embedding.EmbeddingResponse, error) {
	if w.fail {
		return nil, errors.New("embedder offline")
	}
	lower := strings.ToLower(text)
	vec := []float32{
		float32(strings.Count(lower, "transformer")),
		float32(strings.Count(lower, "dataset")),
		float32(strings.Count(lower, "result")),
		0.1,
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{
		Values: embedding.NormalizeVector(vec),
	}}, nil
}

type scriptedLLM struct {
	tokens []string
	err    error
}

func (s scriptedLLM) Chat(_ context.Context, _ []llm.Message, _ ...llm.Option) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return strings.Join(s.tokens, ""), nil
}

func (s scriptedLLM) ChatStream(_ context.Context, _ []llm.Message, onToken llm.TokenHandler, _ ...llm.Option) error {
	if s.err != nil {
		return s.err
	}
	for _, tok := range s.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func (s scriptedLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return s.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// promptLLM records every prompt it is given and answers with a fixed reply.
type promptLLM struct {
	scriptedLLM
	mu      sync.Mutex
	prompts []string
}

func (p *promptLLM) ChatStream(ctx context.Context, history []llm.Message, onToken llm.TokenHandler, opts ...llm.Option) error {
	p.mu.Lock()
	for _, m := range history {
		p.prompts = append(p.prompts, m.Content)
	}
	p.mu.Unlock()
	return p.scriptedLLM.ChatStream(ctx, history, onToken, opts...)
}

func (p *promptLLM) lastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

type logEntry struct {
	level   string
	message string
	details map[string]interface{}
}

// captureLogger keeps every entry so tests can assert on what reached the log.
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (c *captureLogger) add(level, msg string, d map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, logEntry{level: level, message: msg, details: d})
}

func (c *captureLogger) Debug(_, msg string, d map[string]interface{}) { c.add("debug", msg, d) }
func (c *captureLogger) Info(_, msg string, d map[string]interface{})  { c.add("info", msg, d) }
func (c *captureLogger) Warn(_, msg string, d map[string]interface{})  { c.add("warn", msg, d) }
func (c *captureLogger) Error(_, msg string, d map[string]interface{}) { c.add("error", msg, d) }
func (c *captureLogger) Sync() error                                   { return nil }

func (c *captureLogger) errors() []logEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []logEntry
	for _, e := range c.entries {
		if e.level == "error" {
			out = append(out, e)
		}
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.EventType())
	}
	return out
}

type fixture struct {
	indexer   *pipeline.Indexer
	manager   *session.Manager
	loader    *loader.Loader
	publisher *recordingPublisher
	sysLog    *captureLogger
	service   IDocumentService
}

// newFixture gives the model components a silent logger and the service a
// capturing one, mirroring the split between the LLM trace and system logs.
func newFixture(model llm.LLMProvider) *fixture {
	log := logger.NewNopLogger()
	sysLog := &captureLogger{}
	indexer := pipeline.NewIndexer(wordEmbedder{}, 2, log)
	manager := session.NewManager(memory.NewSessionRepository(0, 0, 0), indexer, chunker.UploadConfig(), log)
	docLoader := loader.NewLoader(loader.OCROptions{}, loader.ExecRunner{}, log)
	pub := &recordingPublisher{}

	svc := NewDocumentService(
		docLoader,
		manager,
		response.NewSynthesizer(model, 4, 0.1, log),
		extract.NewExtractor(model, 0, 0.1, log),
		pub,
		sysLog,
	)
	return &fixture{indexer: indexer, manager: manager, loader: docLoader, publisher: pub, sysLog: sysLog, service: svc}
}

func drain(ch <-chan response.Event) []response.Event {
	var out []response.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}
