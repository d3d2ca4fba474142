package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
	"evercart/internal/events"
	"evercart/internal/repository"
	"evercart/internal/telemetry"
	"evercart/internal/testutil/fakebackend"
)

type env struct {
	backend  *fakebackend.Backend
	sessions *SessionManager
	events   *events.Recorder

	auth     *AuthService
	catalog  *CatalogService
	cart     *CartService
	orders   *OrderService
	checkout *CheckoutService
	payments *PaymentService
	admin    *AdminService
}

func setup(t *testing.T) *env {
	t.Helper()
	b := fakebackend.New(t)
	b.AddUser("sita", "secret123", false)
	b.AddUser("boss", "secret123", true)

	log, tracer, metrics := telemetry.Nop()
	api, err := apiclient.New(b.URL(), &http.Client{Timeout: 5 * time.Second}, log, tracer, metrics)
	if err != nil {
		t.Fatal(err)
	}
	rec := &events.Recorder{}
	sessions := NewSessionManager(repository.NewMemoryStore(), time.Hour, metrics, log)
	orders := NewOrderService(api, sessions)
	cart := NewCartService(api, sessions, rec, metrics, log)
	return &env{
		backend:  b,
		sessions: sessions,
		events:   rec,
		auth:     NewAuthService(api, sessions, rec, log),
		catalog:  NewCatalogService(api, sessions),
		cart:     cart,
		orders:   orders,
		checkout: NewCheckoutService(api, sessions, orders, rec, metrics, tracer, log, "http://shop.test/"),
		payments: NewPaymentService(api, sessions, cart, rec, metrics, log, 10*time.Millisecond),
		admin:    NewAdminService(api, sessions, log),
	}
}

// session returns a stored anonymous session.
func (e *env) session(t *testing.T) *domain.Session {
	t.Helper()
	sess, err := e.sessions.New(context.Background())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess
}

func (e *env) login(t *testing.T, username string) *domain.Session {
	t.Helper()
	sess := e.session(t)
	_, err := e.auth.Login(context.Background(), sess, apiclient.Credentials{Username: username, Password: "secret123"}, LoginOptions{})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return sess
}

func (e *env) loginAdmin(t *testing.T) *domain.Session {
	t.Helper()
	sess := e.session(t)
	_, err := e.auth.Login(context.Background(), sess, apiclient.Credentials{Username: "boss", Password: "secret123"}, LoginOptions{AdminOnly: true})
	if err != nil {
		t.Fatalf("admin login: %v", err)
	}
	return sess
}

func validShipping() ShippingDetails {
	return ShippingDetails{Address: "Lakeside 4", City: "Pokhara", PostalCode: "33700", Phone: "+977 9800000000"}
}
