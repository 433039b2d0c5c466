// Package session owns per-upload document sessions and their ephemeral indexes.
package session

import (
	"time"

	"research-assistant-be/pkg/rag/index"

	"github.com/google/uuid"
)

// Session is created once per upload and never mutated afterwards.
type Session struct {
	ID        uuid.UUID
	Filename  string
	FullText  string
	Index     *index.Index
	CreatedAt time.Time
}

// Repository is the storage the Manager keeps sessions in.
type Repository interface {
	// Save stores s and returns the IDs of sessions evicted to make room.
	Save(s *Session) []string
	Get(id string) (*Session, bool)
	Delete(id string) bool
	Count() int
}
