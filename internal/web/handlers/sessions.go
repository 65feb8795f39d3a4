package handlers

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fefal-etl/internal/pipeline"
)

// Session is one completed run under review
type Session struct {
	ID        uuid.UUID `json:"id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`

	mu     sync.Mutex
	result *pipeline.Result
}

// View runs fn with the result locked
func (s *Session) View(fn func(res *pipeline.Result) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.result)
}

// Sessions keeps the most recent runs; the oldest is dropped past max
type Sessions struct {
	mu    sync.RWMutex
	max   int
	byID  map[uuid.UUID]*Session
	order []uuid.UUID
	now   func() time.Time
}

// NewSessions creates a session registry; max <= 0 keeps every run
func NewSessions(max int) *Sessions {
	return &Sessions{max: max, byID: make(map[uuid.UUID]*Session), now: time.Now}
}

// Add registers a result under a new id
func (s *Sessions) Add(source string, res *pipeline.Result) *Session {
	sess := &Session{ID: uuid.New(), Source: source, CreatedAt: s.now(), result: res}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sess.ID] = sess
	s.order = append(s.order, sess.ID)
	for s.max > 0 && len(s.order) > s.max {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
	return sess
}

// Get returns the session with id
func (s *Sessions) Get(id uuid.UUID) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	return sess, ok
}

// List returns the sessions oldest first
func (s *Sessions) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}
