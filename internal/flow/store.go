package flow

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrSessionNotFound is returned by Store.Get for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// Store persists session state. Save writes the scalar state and the
// accumulated score arrays; turns are append-only and recorded separately
// through AppendTurn. Get returns the full session including its history.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	AppendTurn(ctx context.Context, sessionID string, t Turn) error
	ListByStudent(ctx context.Context, studentID string, limit int) ([]*Session, error)
}

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := s.Clone()
	if prev, ok := m.sessions[s.ID]; ok {
		saved.History = prev.History
	}
	m.sessions[s.ID] = saved
	return nil
}

func (m *MemoryStore) AppendTurn(_ context.Context, sessionID string, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.History = append(s.History, t)
	return nil
}

func (m *MemoryStore) ListByStudent(_ context.Context, studentID string, limit int) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.StudentID == studentID {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
