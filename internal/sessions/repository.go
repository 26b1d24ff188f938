package sessions

import (
	"context"
	"sync"
	"time"
)

// Repository provides session persistence operations
type Repository interface {
	Save(ctx context.Context, s *Session) error
	// Get returns (nil, nil) for unknown or expired sessions.
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
	// TakeFlow atomically returns the stored flow marker and clears it.
	// Unknown or expired sessions yield NoFlow.
	TakeFlow(ctx context.Context, id string) (FlowState, error)
}

// MemoryRepository keeps sessions in process; used by tests and single-node setups.
type MemoryRepository struct {
	mu    sync.Mutex
	store map[string]Session
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: map[string]Session{}}
}

func (m *MemoryRepository) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[s.ID] = *s
	return nil
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, nil
	}
	if time.Now().UTC().After(s.ExpiresAt) {
		delete(m.store, id)
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, id)
	return nil
}

func (m *MemoryRepository) TakeFlow(ctx context.Context, id string) (FlowState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || time.Now().UTC().After(s.ExpiresAt) {
		return NoFlow(), nil
	}
	f := s.Flow
	s.Flow = NoFlow()
	m.store[id] = s
	return f, nil
}
