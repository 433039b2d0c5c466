package service

import (
	"context"
	"encoding/json"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/chunker"
	"research-assistant-be/pkg/loader"
	"research-assistant-be/pkg/rag/index"
	"research-assistant-be/pkg/rag/pipeline"

	"github.com/ThreeDotsLabs/watermill/message"
)

// IngestOutcome is the result of indexing one queued file.
type IngestOutcome struct {
	Job    dto.IngestJob
	Chunks int
	Err    error
}

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	loader     *loader.Loader
	indexer    *pipeline.Indexer
	target     *index.Index
	chunking   chunker.Config
	onOutcome  func(IngestOutcome)
	logger     logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	docLoader *loader.Loader,
	indexer *pipeline.Indexer,
	target *index.Index,
	chunking chunker.Config,
	onOutcome func(IngestOutcome),
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		loader:     docLoader,
		indexer:    indexer,
		target:     target,
		chunking:   chunking,
		onOutcome:  onOutcome,
		logger:     log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage always acks: a file that fails to load or embed is reported
// and skipped, never retried.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var job dto.IngestJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		cs.logger.Error("IngestConsumer", "Failed to unmarshal job", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		return
	}

	outcome := IngestOutcome{Job: job}
	doc, err := cs.loader.LoadFile(ctx, job.Path, loader.WithDisplayName(job.DisplayName))
	if err == nil {
		outcome.Chunks, err = cs.indexer.IndexInto(ctx, cs.target, doc, cs.chunking)
	}
	outcome.Err = err

	if err != nil {
		cs.logger.Error("IngestConsumer", "Failed to ingest file", map[string]interface{}{
			"path":  job.Path,
			"error": err.Error(),
		})
	} else {
		cs.logger.Info("IngestConsumer", "File ingested", map[string]interface{}{
			"source": job.DisplayName,
			"pages":  len(doc.Pages),
			"chunks": outcome.Chunks,
		})
	}

	if cs.onOutcome != nil {
		cs.onOutcome(outcome)
	}
}
