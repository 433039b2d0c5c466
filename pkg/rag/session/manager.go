package session

import (
	"context"
	"time"

	"research-assistant-be/internal/pkg/logger"
	"research-assistant-be/pkg/apperror"
	"research-assistant-be/pkg/chunker"
	"research-assistant-be/pkg/rag/pipeline"
	"research-assistant-be/pkg/store"

	"github.com/google/uuid"
)

const moduleName = "SessionManager"

// Manager handles session operations
type Manager struct {
	repo     Repository
	indexer  *pipeline.Indexer
	chunking chunker.Config
	logger   logger.ILogger
	now      func() time.Time
}

func NewManager(repo Repository, indexer *pipeline.Indexer, chunking chunker.Config, log logger.ILogger) *Manager {
	return &Manager{
		repo:     repo,
		indexer:  indexer,
		chunking: chunking,
		logger:   log,
		now:      time.Now,
	}
}

// Create indexes doc into a private in-memory index and registers a new session.
func (m *Manager) Create(ctx context.Context, filename string, doc *store.Document) (*Session, error) {
	ix, err := m.indexer.BuildEphemeral(ctx, doc, m.chunking)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.New(),
		Filename:  filename,
		FullText:  doc.FullText(),
		Index:     ix,
		CreatedAt: m.now(),
	}

	evicted := m.repo.Save(s)
	if len(evicted) > 0 {
		m.logger.Info(moduleName, "Sessions evicted at capacity", map[string]interface{}{
			"evicted": evicted,
		})
	}

	m.logger.Info(moduleName, "Session created", map[string]interface{}{
		"session_id": s.ID.String(),
		"filename":   filename,
	})
	return s, nil
}

// Get returns SessionNotFound for unknown, expired or malformed IDs.
func (m *Manager) Get(id string) (*Session, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Newf(apperror.KindSessionNotFound, "session %q not found", id)
	}
	s, ok := m.repo.Get(parsed.String())
	if !ok {
		return nil, apperror.Newf(apperror.KindSessionNotFound, "session %q not found", id)
	}
	return s, nil
}

func (m *Manager) Delete(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || !m.repo.Delete(parsed.String()) {
		return apperror.Newf(apperror.KindSessionNotFound, "session %q not found", id)
	}
	m.logger.Info(moduleName, "Session deleted", map[string]interface{}{"session_id": id})
	return nil
}

func (m *Manager) Count() int {
	return m.repo.Count()
}
