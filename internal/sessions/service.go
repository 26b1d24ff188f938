package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service wraps repository operations with the binder rules.
type Service struct {
	repo Repository
	ttl  time.Duration
}

func NewService(r Repository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{repo: r, ttl: ttl}
}

// Start creates and stores an anonymous session.
func (s *Service) Start(ctx context.Context) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{ID: uuid.NewString(), CreatedAt: now}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load returns (nil, nil) when the session is unknown or expired.
func (s *Service) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, nil
	}
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// Identify binds the session to a customer after a completed Workspace login.
func (s *Service) Identify(ctx context.Context, sess *Session, customerID string) error {
	sess.CustomerID = customerID
	return s.save(ctx, sess)
}

// SetFlow stashes the marker for the next Accounting callback, replacing any earlier one.
func (s *Service) SetFlow(ctx context.Context, sess *Session, f FlowState) error {
	sess.Flow = f
	return s.save(ctx, sess)
}

// TakeFlow returns the stored marker and clears it, so a replayed or concurrent
// callback on the same session finds no marker. The stored copy is
// authoritative; sess.Flow is only updated to match.
func (s *Service) TakeFlow(ctx context.Context, sess *Session) (FlowState, error) {
	if sess == nil {
		return NoFlow(), nil
	}
	f, err := s.repo.TakeFlow(ctx, sess.ID)
	if err != nil {
		return NoFlow(), err
	}
	sess.Flow = NoFlow()
	return f, nil
}

// Forget drops the server-side session entirely.
func (s *Service) Forget(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	return s.repo.Delete(ctx, sess.ID)
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.ExpiresAt = time.Now().UTC().Add(s.ttl)
	if err := s.repo.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
