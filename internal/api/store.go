package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// Session is one conversation. State holds the engine snapshot taken after
// its last turn, or nil when snapshots are disabled.
type Session struct {
	ID       string
	Context  *llmodel.PromptContext
	State    []byte
	Created  time.Time
	LastUsed time.Time
}

type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

func (s *SessionStore) Create(defaults llmodel.PromptContext, now time.Time) *Session {
	pc := defaults
	pc.Tokens = nil
	pc.NPast = 0
	pc.NLastBatchTokens = 0
	sess := &Session{
		ID:       "sess_" + uuid.NewString(),
		Context:  &pc,
		Created:  now,
		LastUsed: now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
