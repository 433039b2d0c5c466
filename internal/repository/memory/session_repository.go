package memory

import (
	"sync"
	"time"

	"research-assistant-be/pkg/rag/session"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps sessions in a TTL cache bounded by maxEntries.
// A ttl of 0 keeps sessions until capacity eviction; maxEntries of 0 is unbounded.
type SessionRepository struct {
	cache      *cache.Cache
	maxEntries int
	mu         sync.Mutex // serialises capacity checks with inserts
}

var _ session.Repository = (*SessionRepository)(nil)

func NewSessionRepository(ttl, cleanupInterval time.Duration, maxEntries int) *SessionRepository {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(_ string, v interface{}) {
		if s, ok := v.(*session.Session); ok && s.Index != nil {
			s.Index.Close()
		}
	})
	return &SessionRepository{
		cache:      c,
		maxEntries: maxEntries,
	}
}

func (r *SessionRepository) Save(s *session.Session) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	if r.maxEntries > 0 {
		items := r.cache.Items()
		for len(items) >= r.maxEntries {
			oldestID := ""
			var oldest time.Time
			for id, item := range items {
				sess := item.Object.(*session.Session)
				if oldestID == "" || sess.CreatedAt.Before(oldest) {
					oldestID, oldest = id, sess.CreatedAt
				}
			}
			r.cache.Delete(oldestID)
			delete(items, oldestID)
			evicted = append(evicted, oldestID)
		}
	}

	r.cache.Set(s.ID.String(), s, cache.DefaultExpiration)
	return evicted
}

func (r *SessionRepository) Get(sessionID string) (*session.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*session.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) bool {
	if _, found := r.cache.Get(sessionID); !found {
		return false
	}
	r.cache.Delete(sessionID)
	return true
}

// Count excludes sessions that have expired but not yet been purged.
func (r *SessionRepository) Count() int {
	return len(r.cache.Items())
}
