package service

import (
	"context"
	"strings"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/loader"
	"research-assistant-be/pkg/rag/extract"
	"research-assistant-be/pkg/rag/response"
	"research-assistant-be/pkg/rag/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("research-assistant-be/service")

type IDocumentService interface {
	// Upload loads the PDF stored at path and opens a session for it.
	Upload(ctx context.Context, filename, path string) (*dto.UploadDocumentResponse, error)
	Analyze(ctx context.Context, req *dto.AnalyzeDocumentRequest) (<-chan response.Event, error)
	Chat(ctx context.Context, req *dto.ChatDocumentRequest) (<-chan response.Event, error)
	DeleteSession(ctx context.Context, sessionId string) error
	SessionCount() int
}

type documentService struct {
	loader      *loader.Loader
	sessions    *session.Manager
	synthesizer *response.Synthesizer
	extractor   *extract.Extractor
	publisher   events.Publisher
	logger      logger.ILogger
}

func NewDocumentService(
	docLoader *loader.Loader,
	sessions *session.Manager,
	synthesizer *response.Synthesizer,
	extractor *extract.Extractor,
	publisher events.Publisher,
	log logger.ILogger,
) IDocumentService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &documentService{
		loader:      docLoader,
		sessions:    sessions,
		synthesizer: synthesizer,
		extractor:   extractor,
		publisher:   publisher,
		logger:      log,
	}
}

func (s *documentService) Upload(ctx context.Context, filename, path string) (*dto.UploadDocumentResponse, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("document.filename", filename))

	fileType, err := loader.DetectFileType(filename)
	if err != nil || fileType != loader.FileTypePDF {
		return nil, apperror.Newf(apperror.KindUnsupportedFormat, "only PDF uploads are supported, got %q", filename)
	}

	doc, err := s.loader.Load(ctx, path, loader.FileTypePDF, loader.WithDisplayName(filename))
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	sess, err := s.sessions.Create(ctx, filename, doc)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	chunks, _ := sess.Index.Count(ctx)
	span.SetAttributes(
		attribute.String("session.id", sess.ID.String()),
		attribute.Int("document.pages", len(doc.Pages)),
		attribute.Int("document.chunks", chunks),
	)
	s.publish(ctx, events.SessionCreated(sess.ID.String(), filename, len(doc.Pages), chunks))

	return &dto.UploadDocumentResponse{
		SessionId: sess.ID.String(),
		Filename:  filename,
		Pages:     len(doc.Pages),
	}, nil
}

func (s *documentService) Analyze(ctx context.Context, req *dto.AnalyzeDocumentRequest) (<-chan response.Event, error) {
	sess, err := s.sessions.Get(req.SessionId)
	if err != nil {
		return nil, err
	}

	s.logger.Info("DocumentService", "Analysis started", map[string]interface{}{
		"session_id": req.SessionId,
		"filename":   sess.Filename,
	})
	return s.observe(ctx, "analyze", req.SessionId, s.extractor.Extract(ctx, sess.FullText)), nil
}

func (s *documentService) Chat(ctx context.Context, req *dto.ChatDocumentRequest) (<-chan response.Event, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apperror.New(apperror.KindInvalidQuery, "query must not be empty")
	}

	sess, err := s.sessions.Get(req.SessionId)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	return s.observe(ctx, "chat", req.SessionId, s.synthesizer.Answer(ctx, sess.Index, query, history)), nil
}

// observe relays a stream unchanged and reports its failure to the system
// log; the producers only write to the LLM trace file.
func (s *documentService) observe(ctx context.Context, op, sessionId string, in <-chan response.Event) <-chan response.Event {
	out := make(chan response.Event)
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Type == response.EventError {
				s.logger.Error("DocumentService", "Stream failed", map[string]interface{}{
					"operation":  op,
					"session_id": sessionId,
					"kind":       string(apperror.KindOf(ev.Err)),
					"error":      ev.Err.Error(),
				})
			}
			if !response.Emit(ctx, out, ev) {
				return
			}
		}
	}()
	return out
}

func (s *documentService) DeleteSession(ctx context.Context, sessionId string) error {
	if err := s.sessions.Delete(sessionId); err != nil {
		return err
	}
	s.publish(ctx, events.SessionDeleted(sessionId, "deleted"))
	return nil
}

func (s *documentService) SessionCount() int {
	return s.sessions.Count()
}

func (s *documentService) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("DocumentService", "Failed to publish event", map[string]interface{}{
			"event": ev.EventType(),
			"error": err.Error(),
		})
	}
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
