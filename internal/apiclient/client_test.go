package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"evercart/internal/apiclient"
	"evercart/internal/telemetry"
	"evercart/internal/testutil/fakebackend"
)

type memTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
	admin   bool
	cleared bool
}

func (m *memTokens) AccessToken() string  { m.mu.Lock(); defer m.mu.Unlock(); return m.access }
func (m *memTokens) RefreshToken() string { m.mu.Lock(); defer m.mu.Unlock(); return m.refresh }
func (m *memTokens) IsAdmin() bool        { m.mu.Lock(); defer m.mu.Unlock(); return m.admin }

func (m *memTokens) SetAccessToken(_ context.Context, access string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
	return nil
}

func (m *memTokens) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access, m.refresh, m.cleared = "", "", true
	return nil
}

func newClient(t *testing.T, baseURL string) *apiclient.Client {
	t.Helper()
	log, tracer, metrics := telemetry.Nop()
	c, err := apiclient.New(baseURL, &http.Client{Timeout: 5 * time.Second}, log, tracer, metrics)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func setup(t *testing.T) (*fakebackend.Backend, *apiclient.Client) {
	t.Helper()
	b := fakebackend.New(t)
	b.AddUser("sita", "secret123", false)
	b.AddUser("boss", "secret123", true)
	return b, newClient(t, b.URL())
}

func TestClient_RefreshOn401(t *testing.T) {
	b, c := setup(t)
	ts := &memTokens{access: "not-a-jwt", refresh: b.MintRefresh("sita")}

	u, err := c.WithTokens(ts).Profile(context.Background())
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if u.Username != "sita" {
		t.Fatalf("unexpected user %q", u.Username)
	}
	if b.Hits(http.MethodPost, "/api/users/refresh/") != 1 {
		t.Fatalf("expected one refresh")
	}
	if b.Hits(http.MethodGet, "/api/users/profile/") != 2 {
		t.Fatalf("expected original request retried once")
	}
	if ts.AccessToken() == "not-a-jwt" {
		t.Fatalf("access token not replaced")
	}
}

func TestClient_ProactiveRefreshOnExpiredJWT(t *testing.T) {
	b, c := setup(t)
	ts := &memTokens{access: b.MintAccess("sita", -time.Minute), refresh: b.MintRefresh("sita")}

	if _, err := c.WithTokens(ts).Profile(context.Background()); err != nil {
		t.Fatalf("profile: %v", err)
	}
	if b.Hits(http.MethodGet, "/api/users/profile/") != 1 {
		t.Fatalf("expired token should be refreshed before sending")
	}
	if b.Hits(http.MethodPost, "/api/users/refresh/") != 1 {
		t.Fatalf("expected one refresh")
	}
}

func TestClient_AdminSessionUsesAdminRefresh(t *testing.T) {
	b, c := setup(t)
	ts := &memTokens{access: "stale", refresh: b.MintRefresh("boss"), admin: true}

	if _, err := c.WithTokens(ts).AdminProfile(context.Background()); err != nil {
		t.Fatalf("admin profile: %v", err)
	}
	if b.Hits(http.MethodPost, "/api/admin/refresh/") != 1 || b.Hits(http.MethodPost, "/api/users/refresh/") != 0 {
		t.Fatalf("wrong refresh endpoint used")
	}
}

func TestClient_RefreshFailureClearsSession(t *testing.T) {
	b, c := setup(t)
	ts := &memTokens{access: "stale", refresh: "garbage"}

	_, err := c.WithTokens(ts).Profile(context.Background())
	if !errors.Is(err, apiclient.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if !ts.cleared || ts.AccessToken() != "" {
		t.Fatalf("tokens not cleared")
	}
	if b.Hits(http.MethodGet, "/api/users/profile/") != 1 {
		t.Fatalf("request must not be retried after failed refresh")
	}
}

func TestClient_SecondUnauthorizedIsReturned(t *testing.T) {
	b, c := setup(t)
	ts := &memTokens{access: "stale", refresh: b.MintRefresh("sita")}
	b.Fail(http.MethodGet, "/api/users/profile/", http.StatusUnauthorized, 2)

	_, err := c.WithTokens(ts).Profile(context.Background())
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if b.Hits(http.MethodPost, "/api/users/refresh/") != 1 {
		t.Fatalf("refresh must happen once per request")
	}
}

func TestClient_AnonymousUnauthorizedSkipsRefresh(t *testing.T) {
	b, c := setup(t)
	_, err := c.Profile(context.Background())
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if b.Hits(http.MethodPost, "/api/users/refresh/") != 0 {
		t.Fatalf("anonymous request attempted refresh")
	}
}

func TestClient_ListShapes(t *testing.T) {
	b, c := setup(t)
	b.AddProduct("Lamp", "1200.00", 3)
	b.AddProduct("Mug", "350.50", 10)
	b.AddCategory("Home")

	for _, paginate := range []bool{false, true} {
		b.SetPaginate(paginate)
		page, err := c.ListProducts(context.Background(), apiclient.ProductQuery{})
		if err != nil {
			t.Fatalf("list products (paginate=%v): %v", paginate, err)
		}
		if len(page.Results) != 2 || page.Count != 2 {
			t.Fatalf("paginate=%v: got %d results, count %d", paginate, len(page.Results), page.Count)
		}
		cats, err := c.ListCategories(context.Background())
		if err != nil || len(cats) != 1 {
			t.Fatalf("categories (paginate=%v): %v", paginate, err)
		}
	}
}

func TestClient_AdminLoginForwardsCSRF(t *testing.T) {
	b, c := setup(t)
	resp, err := c.AdminLogin(context.Background(), apiclient.Credentials{Username: "boss", Password: "secret123"}, "csrf-abc")
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	if resp.Access == "" || resp.Refresh == "" || resp.User == nil {
		t.Fatalf("incomplete login response: %+v", resp)
	}
	if b.LastCSRF() != "csrf-abc" {
		t.Fatalf("csrf header not forwarded, got %q", b.LastCSRF())
	}
}

func TestClient_BackendValidationError(t *testing.T) {
	_, c := setup(t)
	err := c.Register(context.Background(), apiclient.RegisterRequest{Username: "sita", Email: "s@example.com", Password: "secret123"})
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if !errors.Is(err, apiclient.ErrBadRequest) {
		t.Fatalf("expected bad request")
	}
	if apiErr.Message() != "username: A user with that username already exists." {
		t.Fatalf("message %q", apiErr.Message())
	}
}

