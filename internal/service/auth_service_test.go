package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"evercart/internal/apiclient"
	"evercart/internal/events"
)

func TestLogin_StoresTokensAndUser(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	sess := e.session(t)

	u, err := e.auth.Login(ctx, sess, apiclient.Credentials{Username: "  sita ", Password: "secret123"}, LoginOptions{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Username != "sita" || sess.IsAdmin {
		t.Fatalf("unexpected user %+v admin=%v", u, sess.IsAdmin)
	}

	stored, created, err := e.sessions.Load(ctx, sess.ID)
	if err != nil || created {
		t.Fatalf("load: created=%v err=%v", created, err)
	}
	if !stored.Authenticated() || stored.RefreshToken == "" || stored.User == nil || stored.User.Username != "sita" {
		t.Fatalf("session not persisted: %+v", stored)
	}
	if got := e.events.Types(); len(got) != 1 || got[0] != events.UserLoggedIn {
		t.Fatalf("events %v", got)
	}
}

func TestLogin_Validation(t *testing.T) {
	e := setup(t)
	_, err := e.auth.Login(context.Background(), e.session(t), apiclient.Credentials{Username: " "}, LoginOptions{})
	var verr *ValidationError
	if !errors.As(err, &verr) || !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if verr.Fields["username"] == "" || verr.Fields["password"] == "" {
		t.Fatalf("fields %v", verr.Fields)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	e := setup(t)
	sess := e.session(t)
	_, err := e.auth.Login(context.Background(), sess, apiclient.Credentials{Username: "sita", Password: "nope"}, LoginOptions{})
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if sess.Authenticated() {
		t.Fatalf("session should stay anonymous")
	}
	if e.backend.Hits(http.MethodPost, "/api/users/refresh/") != 0 {
		t.Fatalf("login failure must not trigger a refresh")
	}
}

func TestLogin_FetchesProfileWhenMissing(t *testing.T) {
	e := setup(t)
	e.backend.SetOmitLoginUser(true)
	sess := e.login(t, "sita")
	if sess.User == nil || sess.User.Email != "sita@example.com" {
		t.Fatalf("profile not loaded: %+v", sess.User)
	}
	if e.backend.Hits(http.MethodGet, "/api/users/profile/") != 1 {
		t.Fatalf("expected one profile call")
	}
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	sess := e.session(t)
	_, err := e.auth.Login(ctx, sess, apiclient.Credentials{Username: "boss", Password: "secret123"}, LoginOptions{AdminOnly: true, CSRFToken: "tok"})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if !sess.IsAdmin || e.backend.LastCSRF() != "tok" {
		t.Fatalf("admin=%v csrf=%q", sess.IsAdmin, e.backend.LastCSRF())
	}

	other := e.session(t)
	_, err = e.auth.Login(ctx, other, apiclient.Credentials{Username: "sita", Password: "secret123"}, LoginOptions{AdminOnly: true})
	if !errors.Is(err, apiclient.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if other.Authenticated() || other.IsAdmin {
		t.Fatalf("customer must not get an admin session")
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	sess := e.session(t)
	u, err := e.auth.Register(ctx, sess, apiclient.RegisterRequest{Username: "hari", Email: "hari@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "hari" || !sess.Authenticated() {
		t.Fatalf("expected signed-in session after register")
	}

	_, err = e.auth.Register(ctx, e.session(t), apiclient.RegisterRequest{Username: "hari", Email: "x@example.com", Password: "secret123"})
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) || !errors.Is(err, apiclient.ErrBadRequest) {
		t.Fatalf("expected bad request, got %v", err)
	}
	if apiErr.Message() != "username: A user with that username already exists." {
		t.Fatalf("message %q", apiErr.Message())
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	sess := e.login(t, "sita")
	if next := e.auth.Logout(ctx, sess, "/orders"); next != "/login" {
		t.Fatalf("redirect %q", next)
	}
	if sess.Authenticated() || sess.User != nil {
		t.Fatalf("session not cleared")
	}
	if e.backend.Hits(http.MethodPost, "/api/users/logout/") != 1 {
		t.Fatalf("backend logout not called")
	}

	admin := e.loginAdmin(t)
	e.backend.Fail(http.MethodPost, "/api/users/logout/", http.StatusInternalServerError, -1)
	if next := e.auth.Logout(ctx, admin, "/admin/orders"); next != "/admin/login" {
		t.Fatalf("redirect %q", next)
	}
	if admin.Authenticated() {
		t.Fatalf("backend failure must still clear the session")
	}
}

func TestCurrentUser_RefreshesInBackground(t *testing.T) {
	ctx := context.Background()
	e := setup(t)

	anon := e.session(t)
	if u, err := e.auth.CurrentUser(ctx, anon); u != nil || err != nil {
		t.Fatalf("anonymous: %v %v", u, err)
	}

	sess := e.login(t, "sita")
	other := e.login(t, "sita")
	first := "Sita"
	if _, err := e.auth.UpdateProfile(ctx, other, apiclient.ProfileUpdate{FirstName: &first}); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	u, err := e.auth.CurrentUser(ctx, sess)
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if u.FirstName != "" {
		t.Fatalf("expected the cached profile first, got %q", u.FirstName)
	}
	e.auth.Wait()

	stored, _, err := e.sessions.Load(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.User.FirstName != "Sita" {
		t.Fatalf("background refresh not stored: %+v", stored.User)
	}
}
