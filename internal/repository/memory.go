package repository

import (
	"context"
	"sync"
	"time"

	"evercart/internal/domain"
)

// MemoryStore in-memory хранилище сессий
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]domain.Session),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ SessionRepository = (*MemoryStore)(nil)

func (m *MemoryStore) Create(ctx context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok || expired(&s, m.now()) {
		return nil, ErrNotFound
	}
	cp := s.Clone()
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || expired(&s, m.now()) {
		return nil, ErrNotFound
	}
	work := s.Clone()
	if err := fn(&work); err != nil {
		return nil, err
	}
	work.ID = id
	work.UpdatedAt = m.now()
	m.sessions[id] = work.Clone()
	return &work, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if expired(&s, now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}
