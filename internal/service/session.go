package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
	"evercart/internal/repository"
	"evercart/internal/telemetry"
)

// SessionManager создаёт, загружает и атомарно меняет сессии
type SessionManager struct {
	repo    repository.SessionRepository
	ttl     time.Duration
	metrics *telemetry.Metrics
	log     *zap.Logger
}

func NewSessionManager(repo repository.SessionRepository, ttl time.Duration, metrics *telemetry.Metrics, log *zap.Logger) *SessionManager {
	return &SessionManager{repo: repo, ttl: ttl, metrics: metrics, log: log}
}

func (m *SessionManager) New(ctx context.Context) (*domain.Session, error) {
	now := time.Now().UTC()
	s := &domain.Session{ID: uuid.NewString(), CreatedAt: now, ExpiresAt: now.Add(m.ttl)}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, err
	}
	m.metrics.SessionsCreated.Add(ctx, 1)
	return s, nil
}

// Load returns the session for id, or a fresh one when id is unknown or
// expired. created reports the latter.
func (m *SessionManager) Load(ctx context.Context, id string) (sess *domain.Session, created bool, err error) {
	if id != "" {
		s, err := m.repo.Get(ctx, id)
		if err == nil {
			return s, false, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, false, err
		}
	}
	s, err := m.New(ctx)
	return s, true, err
}

// Update applies fn to the stored session and copies the result into sess.
func (m *SessionManager) Update(ctx context.Context, sess *domain.Session, fn func(*domain.Session)) error {
	updated, err := m.repo.Update(ctx, sess.ID, func(s *domain.Session) error {
		fn(s)
		return nil
	})
	if err != nil {
		fn(sess)
		return err
	}
	*sess = *updated
	return nil
}

func (m *SessionManager) Delete(ctx context.Context, id string) error {
	err := m.repo.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// RunJanitor removes expired sessions every interval until ctx is done.
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := m.repo.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				m.log.Warn("expired session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.log.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}

// Bind returns a backend client that reads and refreshes sess's tokens.
func (m *SessionManager) Bind(api *apiclient.Client, sess *domain.Session) *apiclient.Client {
	return api.WithTokens(&sessionTokens{m: m, sess: sess})
}

type sessionTokens struct {
	mu   sync.Mutex
	m    *SessionManager
	sess *domain.Session
}

var _ apiclient.TokenSource = (*sessionTokens)(nil)

func (t *sessionTokens) AccessToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess.AccessToken
}

func (t *sessionTokens) RefreshToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess.RefreshToken
}

func (t *sessionTokens) IsAdmin() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sess.IsAdmin
}

func (t *sessionTokens) SetAccessToken(ctx context.Context, access string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m.Update(ctx, t.sess, func(s *domain.Session) { s.AccessToken = access })
}

func (t *sessionTokens) Clear(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.m.Update(ctx, t.sess, func(s *domain.Session) { s.ClearAuth() })
}
