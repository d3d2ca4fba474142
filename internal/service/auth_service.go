package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
	"evercart/internal/events"
)

// AuthService вход, регистрация и восстановление пользователя сессии
type AuthService struct {
	api      *apiclient.Client
	sessions *SessionManager
	events   events.Publisher
	log      *zap.Logger

	bg        sync.WaitGroup
	bgTimeout time.Duration
}

func NewAuthService(api *apiclient.Client, sessions *SessionManager, pub events.Publisher, log *zap.Logger) *AuthService {
	return &AuthService{api: api, sessions: sessions, events: pub, log: log, bgTimeout: 10 * time.Second}
}

type LoginOptions struct {
	AdminOnly bool
	CSRFToken string
}

func (s *AuthService) Login(ctx context.Context, sess *domain.Session, creds apiclient.Credentials, opts LoginOptions) (*domain.User, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	verr := &ValidationError{}
	if creds.Username == "" {
		verr.add("username", "username is required")
	}
	if creds.Password == "" {
		verr.add("password", "password is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	var (
		resp *apiclient.LoginResponse
		err  error
	)
	if opts.AdminOnly {
		resp, err = s.api.AdminLogin(ctx, creds, opts.CSRFToken)
	} else {
		resp, err = s.api.Login(ctx, creds)
	}
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) {
		x.ClearAuth()
		x.AccessToken = resp.Access
		x.RefreshToken = resp.Refresh
		x.IsAdmin = opts.AdminOnly
	}); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}

	user := resp.User
	if user == nil {
		user = s.fetchProfile(ctx, sess, opts.AdminOnly)
	}
	if user == nil {
		user = &domain.User{Username: creds.Username, IsCustomer: true, DateJoined: time.Now().UTC()}
	}

	isAdmin := user.HasAdminAccess()
	if opts.AdminOnly && !isAdmin {
		if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.ClearAuth() }); err != nil {
			s.log.Warn("clear non-admin session", zap.Error(err))
		}
		return nil, ErrAdminOnly
	}

	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) {
		u := *user
		x.User = &u
		x.IsAdmin = isAdmin
	}); err != nil {
		return nil, fmt.Errorf("store user: %w", err)
	}

	s.log.Info("user logged in", zap.String("username", user.Username), zap.Bool("admin", isAdmin))
	publish(ctx, s.events, s.log, events.New(events.UserLoggedIn, user.ID, map[string]any{"admin": isAdmin}))
	return user, nil
}

func (s *AuthService) fetchProfile(ctx context.Context, sess *domain.Session, admin bool) *domain.User {
	client := s.sessions.Bind(s.api, sess)
	var (
		u   *domain.User
		err error
	)
	if admin {
		u, err = client.AdminProfile(ctx)
	} else {
		u, err = client.Profile(ctx)
	}
	if err != nil {
		s.log.Warn("profile fetch failed", zap.Error(err))
		return nil
	}
	return u
}

func (s *AuthService) Register(ctx context.Context, sess *domain.Session, in apiclient.RegisterRequest) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	verr := &ValidationError{}
	if in.Username == "" {
		verr.add("username", "username is required")
	}
	if in.Email == "" {
		verr.add("email", "email is required")
	}
	if in.Password == "" {
		verr.add("password", "password is required")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	if err := s.api.Register(ctx, in); err != nil {
		return nil, err
	}
	return s.Login(ctx, sess, apiclient.Credentials{Username: in.Username, Password: in.Password}, LoginOptions{})
}

// Logout always clears the session; the backend call is best effort.
// It returns where the browser should go next.
func (s *AuthService) Logout(ctx context.Context, sess *domain.Session, fromPath string) string {
	if sess.Authenticated() {
		if err := s.sessions.Bind(s.api, sess).Logout(ctx); err != nil {
			s.log.Warn("backend logout failed", zap.Error(err))
		}
	}
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.ClearAuth() }); err != nil {
		s.log.Warn("clear session on logout", zap.Error(err))
	}
	if strings.HasPrefix(fromPath, "/admin") {
		return "/admin/login"
	}
	return "/login"
}

// CurrentUser answers from the session when it can and refreshes the
// stored profile in the background.
func (s *AuthService) CurrentUser(ctx context.Context, sess *domain.Session) (*domain.User, error) {
	if !sess.Authenticated() {
		return nil, nil
	}
	if sess.User != nil {
		u := *sess.User
		snapshot := sess.Clone()
		s.bg.Add(1)
		go func() {
			defer s.bg.Done()
			bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.bgTimeout)
			defer cancel()
			s.refreshProfile(bctx, &snapshot)
		}()
		return &u, nil
	}

	u := s.fetchProfile(ctx, sess, sess.IsAdmin)
	if u == nil {
		return nil, nil
	}
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) {
		cp := *u
		x.User = &cp
	}); err != nil {
		s.log.Warn("store profile", zap.Error(err))
	}
	return u, nil
}

// Wait blocks until background profile refreshes have finished.
func (s *AuthService) Wait() { s.bg.Wait() }

func (s *AuthService) refreshProfile(ctx context.Context, sess *domain.Session) {
	before, _ := json.Marshal(sess.User)
	fresh := s.fetchProfile(ctx, sess, sess.IsAdmin)
	if fresh == nil {
		return
	}
	after, _ := json.Marshal(fresh)
	if string(before) == string(after) {
		return
	}
	err := s.sessions.Update(ctx, sess, func(x *domain.Session) {
		if x.Authenticated() {
			cp := *fresh
			x.User = &cp
		}
	})
	if err != nil {
		s.log.Warn("background profile refresh", zap.Error(err))
	}
}

func (s *AuthService) UpdateProfile(ctx context.Context, sess *domain.Session, in apiclient.ProfileUpdate) (*domain.User, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	u, err := s.sessions.Bind(s.api, sess).UpdateProfile(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) {
		cp := *u
		x.User = &cp
	}); err != nil {
		return nil, err
	}
	return u, nil
}
