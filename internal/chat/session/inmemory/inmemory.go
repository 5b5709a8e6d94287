package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/insightflow/insightflow/internal/chat/session"
)

type entry struct {
	turns     []session.Turn
	expiresAt time.Time
}

// Store is the process-local session store used when redis is not
// configured. History does not survive restarts.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// New builds an in-memory store bounded to maxTurns per session.
func New(maxTurns int, ttl time.Duration) *Store {
	if maxTurns <= 0 {
		maxTurns = 12
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Store{
		sessions: make(map[string]*entry),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *Store) AppendTurn(_ context.Context, sessionID string, turn session.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok || s.now().After(e.expiresAt) {
		e = &entry{}
		s.sessions[sessionID] = e
	}
	e.turns = append(e.turns, turn)
	if len(e.turns) > s.maxTurns {
		e.turns = e.turns[len(e.turns)-s.maxTurns:]
	}
	e.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *Store) Turns(_ context.Context, sessionID string) ([]session.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sessionID]
	if !ok || s.now().After(e.expiresAt) {
		return nil, nil
	}
	return append([]session.Turn(nil), e.turns...), nil
}

func (s *Store) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
