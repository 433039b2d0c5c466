package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/chunker"
	"research-assistant-be/pkg/events"
	"research-assistant-be/pkg/loader"
	"research-assistant-be/pkg/rag/index"
	"research-assistant-be/pkg/rag/pipeline"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IIngestService interface {
	// Ingest indexes every supported file under dataDir into the persistent
	// collection. It fails only when no document at all could be indexed.
	Ingest(ctx context.Context, dataDir string) (*dto.IngestReport, error)
}

type ingestService struct {
	loader     *loader.Loader
	indexer    *pipeline.Indexer
	target     *index.Index
	collection string
	chunking   chunker.Config
	topicName  string
	publisher  events.Publisher
	logger     logger.ILogger
}

func NewIngestService(
	docLoader *loader.Loader,
	indexer *pipeline.Indexer,
	target *index.Index,
	collection string,
	chunking chunker.Config,
	topicName string,
	publisher events.Publisher,
	log logger.ILogger,
) IIngestService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &ingestService{
		loader:     docLoader,
		indexer:    indexer,
		target:     target,
		collection: collection,
		chunking:   chunking,
		topicName:  topicName,
		publisher:  publisher,
		logger:     log,
	}
}

func (s *ingestService) Ingest(ctx context.Context, dataDir string) (*dto.IngestReport, error) {
	ctx, span := tracer.Start(ctx, "IngestService.Ingest")
	defer span.End()

	if err := s.chunking.Validate(); err != nil {
		return nil, err
	}

	report := &dto.IngestReport{Collection: s.collection, Skipped: []string{}, Failed: []dto.IngestFailure{}}

	jobs, err := s.discover(dataDir, report)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	// Publish blocks until the consumer acks, so the queue never holds more
	// than one file and every outcome is recorded once the loop ends.
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		logger.NewWatermillAdapter(s.logger, "IngestQueue"),
	)
	defer pubSub.Close()

	var mu sync.Mutex
	record := func(o IngestOutcome) {
		mu.Lock()
		defer mu.Unlock()
		if o.Err != nil {
			report.Failed = append(report.Failed, dto.IngestFailure{Path: o.Job.Path, Error: o.Err.Error()})
			return
		}
		report.Loaded++
		report.Chunks += o.Chunks
	}

	consumer := NewConsumerService(pubSub, s.topicName, s.loader, s.indexer, s.target, s.chunking, record, s.logger)
	if err := consumer.Consume(ctx); err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", s.topicName, err)
	}

	for _, job := range jobs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := publishJob(pubSub, s.topicName, job); err != nil {
			return nil, err
		}
	}

	mu.Lock()
	defer mu.Unlock()

	s.logger.Info("IngestService", "Ingestion finished", map[string]interface{}{
		"collection": s.collection,
		"discovered": report.Discovered,
		"loaded":     report.Loaded,
		"chunks":     report.Chunks,
		"failed":     len(report.Failed),
		"skipped":    len(report.Skipped),
	})

	if report.Loaded == 0 {
		return report, apperror.Newf(apperror.KindEmptyDocument, "no documents could be loaded from %s", dataDir)
	}

	if err := s.publisher.Publish(ctx, events.CorpusIngested(s.collection, report.Loaded, report.Chunks, len(report.Failed))); err != nil {
		s.logger.Warn("IngestService", "Failed to publish event", map[string]interface{}{"error": err.Error()})
	}
	return report, nil
}

// discover walks dataDir recursively and returns one job per supported file.
func (s *ingestService) discover(dataDir string, report *dto.IngestReport) ([]dto.IngestJob, error) {
	var jobs []dto.IngestJob

	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dataDir {
				return err
			}
			s.logger.Warn("IngestService", "Skipping unreadable path", map[string]interface{}{
				"path":  path,
				"error": err.Error(),
			})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		report.Discovered++
		if _, err := loader.DetectFileType(path); err != nil {
			s.logger.Warn("IngestService", "Unsupported file skipped", map[string]interface{}{"path": path})
			report.Skipped = append(report.Skipped, path)
			return nil
		}

		name, relErr := filepath.Rel(dataDir, path)
		if relErr != nil {
			name = filepath.Base(path)
		}
		jobs = append(jobs, dto.IngestJob{Path: path, DisplayName: filepath.ToSlash(name)})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.Newf(apperror.KindInvalidRequest, "data directory %s does not exist", dataDir)
		}
		return nil, fmt.Errorf("walk %s: %w", dataDir, err)
	}
	return jobs, nil
}

func publishJob(publisher message.Publisher, topic string, job dto.IngestJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", job.Path, err)
	}
	return nil
}
