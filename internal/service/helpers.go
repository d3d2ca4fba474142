package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
	"evercart/internal/events"
)

// retryOnce repeats a read once, unless the failure is one a second try
// cannot fix.
func retryOnce[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err == nil || !retryable(ctx, err) {
		return v, err
	}
	return fn(ctx)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, apiclient.ErrSessionExpired) {
		return false
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		return false
	}
	return true
}

func requireAuth(sess *domain.Session) error {
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

func userID(sess *domain.Session) int64 {
	if sess == nil || sess.User == nil {
		return 0
	}
	return sess.User.ID
}

// publish never fails the caller: a lost event is only logged.
func publish(ctx context.Context, pub events.Publisher, log *zap.Logger, e events.Event) {
	if err := pub.Publish(ctx, e); err != nil {
		log.Warn("event publish failed", zap.String("type", string(e.Type)), zap.Error(err))
	}
}

func requireAdmin(sess *domain.Session) error {
	if !sess.Authenticated() {
		return ErrUnauthenticated
	}
	if !sess.IsAdmin {
		return ErrForbidden
	}
	return nil
}
