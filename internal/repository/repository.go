package repository

import (
	"context"
	"errors"
	"time"

	"evercart/internal/domain"
)

// ErrNotFound возвращается, когда сессия не найдена или истекла
var ErrNotFound = errors.New("not found")

// SessionRepository хранилище серверных сессий браузера
type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Update applies fn to the stored session atomically. The session is
	// saved only when fn returns nil.
	Update(ctx context.Context, id string, fn func(*domain.Session) error) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

func expired(s *domain.Session, now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
