package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"evercart/docs"
	"evercart/internal/apiclient"
	"evercart/internal/domain"
	"evercart/internal/events"
	"evercart/internal/repository"
	"evercart/internal/service"
	"evercart/internal/telemetry"
	"evercart/internal/testutil/fakebackend"
)

const cookieName = "evercart_session"

var routeParam = regexp.MustCompile(`:(\w+)`)

func setupServer(t *testing.T) (*Server, *fakebackend.Backend) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := fakebackend.New(t)
	b.AddUser("sita", "secret123", false)
	b.AddUser("boss", "secret123", true)

	log, tracer, metrics := telemetry.Nop()
	api, err := apiclient.New(b.URL(), &http.Client{Timeout: 5 * time.Second}, log, tracer, metrics)
	if err != nil {
		t.Fatal(err)
	}
	pub := events.Nop{}
	sessions := service.NewSessionManager(repository.NewMemoryStore(), time.Hour, metrics, log)
	orders := service.NewOrderService(api, sessions)
	cart := service.NewCartService(api, sessions, pub, metrics, log)
	svc := Services{
		Sessions: sessions,
		Auth:     service.NewAuthService(api, sessions, pub, log),
		Catalog:  service.NewCatalogService(api, sessions),
		Cart:     cart,
		Orders:   orders,
		Checkout: service.NewCheckoutService(api, sessions, orders, pub, metrics, tracer, log, "http://shop.test/"),
		Payments: service.NewPaymentService(api, sessions, cart, pub, metrics, log, 10*time.Millisecond),
		Admin:    service.NewAdminService(api, sessions, log),
	}
	opts := Options{
		CORSOrigins:   []string{"http://shop.test"},
		CookieName:    cookieName,
		SessionTTL:    time.Hour,
		WatchInterval: 10 * time.Millisecond,
	}
	return NewServer(svc, opts, log, tracer), b
}

// browser keeps the session cookie between requests.
type browser struct {
	t      *testing.T
	s      *Server
	cookie *http.Cookie
}

func newBrowser(t *testing.T, s *Server) *browser { return &browser{t: t, s: s} }

func (br *browser) doJSON(method, path string, body any) *httptest.ResponseRecorder {
	br.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			br.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if br.cookie != nil {
		req.AddCookie(br.cookie)
	}
	w := httptest.NewRecorder()
	br.s.Engine().ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == cookieName {
			br.cookie = ck
		}
	}
	return w
}

func (br *browser) login(username string) {
	br.t.Helper()
	path := "/api/v1/auth/login"
	if username == "boss" {
		path = "/api/v1/auth/admin/login"
	}
	w := br.doJSON(http.MethodPost, path, map[string]any{"username": username, "password": "secret123"})
	if w.Code != http.StatusOK {
		br.t.Fatalf("login %s: %d %s", username, w.Code, w.Body)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body, err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s, _ := setupServer(t)
	w := newBrowser(t, s).doJSON(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ok") {
		t.Fatalf("health %d %s", w.Code, w.Body)
	}
}

func TestSessionCookie(t *testing.T) {
	s, _ := setupServer(t)
	br := newBrowser(t, s)

	w := br.doJSON(http.MethodGet, "/api/v1/auth/me", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me %d", w.Code)
	}
	if br.cookie == nil || !br.cookie.HttpOnly || br.cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie %+v", br.cookie)
	}
	first := br.cookie.Value

	w = br.doJSON(http.MethodGet, "/api/v1/auth/me", nil)
	if len(w.Result().Cookies()) != 0 {
		t.Fatalf("known session must not be reissued")
	}
	if br.cookie.Value != first {
		t.Fatalf("session changed")
	}
}

func TestAuthFlow(t *testing.T) {
	s, _ := setupServer(t)
	br := newBrowser(t, s)

	br.login("sita")
	me := decode[map[string]any](t, br.doJSON(http.MethodGet, "/api/v1/auth/me", nil))
	if me["authenticated"] != true || me["is_admin"] != false {
		t.Fatalf("me %v", me)
	}
	user, _ := me["user"].(map[string]any)
	if user["username"] != "sita" {
		t.Fatalf("user %v", user)
	}

	w := br.doJSON(http.MethodPost, "/api/v1/auth/logout", nil)
	if w.Code != http.StatusOK || decode[map[string]string](t, w)["redirect"] != "/login" {
		t.Fatalf("logout %d %s", w.Code, w.Body)
	}
	me = decode[map[string]any](t, br.doJSON(http.MethodGet, "/api/v1/auth/me", nil))
	if me["authenticated"] != false {
		t.Fatalf("still signed in: %v", me)
	}
}

func TestLogin_Errors(t *testing.T) {
	s, _ := setupServer(t)
	br := newBrowser(t, s)

	w := br.doJSON(http.MethodPost, "/api/v1/auth/login", map[string]any{"username": "sita", "password": "nope"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password %d", w.Code)
	}
	if msg := decode[map[string]any](t, w)["error"]; msg != "No active account found with the given credentials" {
		t.Fatalf("message %v", msg)
	}

	w = br.doJSON(http.MethodPost, "/api/v1/auth/login", map[string]any{})
	body := decode[map[string]any](t, w)
	fields, _ := body["fields"].(map[string]any)
	if w.Code != http.StatusBadRequest || fields["username"] != "username is required" {
		t.Fatalf("empty form %d %v", w.Code, body)
	}

	w = br.doJSON(http.MethodPost, "/api/v1/auth/admin/login", map[string]any{"username": "sita", "password": "secret123"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("customer admin login %d", w.Code)
	}
}

func TestGuards(t *testing.T) {
	s, _ := setupServer(t)
	br := newBrowser(t, s)

	w := br.doJSON(http.MethodGet, "/api/v1/cart", nil)
	body := decode[map[string]string](t, w)
	if w.Code != http.StatusUnauthorized || body["login_url"] != "/login?next=%2Fapi%2Fv1%2Fcart" {
		t.Fatalf("anonymous cart %d %v", w.Code, body)
	}

	br.login("sita")
	w = br.doJSON(http.MethodGet, "/api/v1/admin/stats", nil)
	body = decode[map[string]string](t, w)
	if w.Code != http.StatusForbidden || body["error"] != "admin access required" || body["login_url"] != "/admin/login" {
		t.Fatalf("customer on admin route %d %v", w.Code, body)
	}
}

func TestCatalog(t *testing.T) {
	s, b := setupServer(t)
	br := newBrowser(t, s)
	lamp := b.AddProduct("Lamp", "1200", 5)
	b.AddProduct("Desk", "8000", 2)

	w := br.doJSON(http.MethodGet, "/api/v1/products?max_price=5000", nil)
	page := decode[domain.Page[domain.Product]](t, w)
	if w.Code != http.StatusOK || len(page.Results) != 1 || page.Results[0].ID != lamp.ID {
		t.Fatalf("filtered list %d %+v", w.Code, page)
	}

	for _, q := range []string{"min_price=abc", "ordering=random", "min_price=10&max_price=5", "category=x"} {
		if w := br.doJSON(http.MethodGet, "/api/v1/products?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: %d", q, w.Code)
		}
	}

	w = br.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/products/%d", lamp.ID), nil)
	if w.Code != http.StatusOK || decode[domain.Product](t, w).Title != "Lamp" {
		t.Fatalf("get %d %s", w.Code, w.Body)
	}
	if w := br.doJSON(http.MethodGet, "/api/v1/products/9999", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing product %d", w.Code)
	}
	if w := br.doJSON(http.MethodGet, "/api/v1/products/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id %d", w.Code)
	}
}

func TestCartCheckoutAndPayment(t *testing.T) {
	s, b := setupServer(t)
	br := newBrowser(t, s)
	lamp := b.AddProduct("Lamp", "1200", 5)
	br.login("sita")

	w := br.doJSON(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": lamp.ID})
	if w.Code != http.StatusCreated || decode[domain.CartItem](t, w).Quantity != 1 {
		t.Fatalf("add %d %s", w.Code, w.Body)
	}
	view := decode[service.CartView](t, br.doJSON(http.MethodGet, "/api/v1/cart", nil))
	if view.Count != 1 || view.Total.String() != "1200" {
		t.Fatalf("cart %+v", view)
	}

	quote := decode[service.Quote](t, br.doJSON(http.MethodGet, "/api/v1/checkout/quote", nil))
	if quote.Total.String() != "1350" {
		t.Fatalf("quote %+v", quote)
	}

	w = br.doJSON(http.MethodPost, "/api/v1/checkout", map[string]any{"gateway": "esewa", "shipping": map[string]any{}})
	body := decode[map[string]any](t, w)
	fields, _ := body["fields"].(map[string]any)
	if w.Code != http.StatusBadRequest || fields["shipping_address"] != "Address is required" {
		t.Fatalf("invalid shipping %d %v", w.Code, body)
	}

	w = br.doJSON(http.MethodPost, "/api/v1/checkout", map[string]any{
		"gateway": "bank",
		"shipping": map[string]any{
			"shipping_address":     "Lakeside 4",
			"shipping_city":        "Pokhara",
			"shipping_postal_code": "33700",
			"shipping_phone":       "+977 9800000000",
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout %d %s", w.Code, w.Body)
	}
	res := decode[service.CheckoutResult](t, w)
	if res.Action != service.ActionInstructions || res.OrderID == 0 {
		t.Fatalf("checkout result %+v", res)
	}

	b.PayOnFetch(res.OrderID, 1)
	w = br.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/payments/success?order_id=%d", res.OrderID), nil)
	out := decode[service.PaymentOutcome](t, w)
	if w.Code != http.StatusOK || !out.Paid || !out.CartCleared {
		t.Fatalf("success %d %+v", w.Code, out)
	}
	if len(b.Cart("sita")) != 0 {
		t.Fatalf("cart should be empty")
	}

	w = br.doJSON(http.MethodGet, "/api/v1/payments/failure?order_id=oops", nil)
	if w.Code != http.StatusOK || decode[service.FailureInfo](t, w).OrderID != 0 {
		t.Fatalf("failure page %d %s", w.Code, w.Body)
	}
}

func TestOrders(t *testing.T) {
	s, b := setupServer(t)
	br := newBrowser(t, s)
	lamp := b.AddProduct("Lamp", "1200", 5)
	b.SeedCart("sita", lamp.ID, 1)
	br.login("sita")

	res := decode[service.CheckoutResult](t, br.doJSON(http.MethodPost, "/api/v1/checkout", map[string]any{
		"gateway": "khalti",
		"shipping": map[string]any{
			"shipping_address": "Lakeside 4", "shipping_city": "Pokhara",
			"shipping_postal_code": "33700", "shipping_phone": "+977 9800000000",
		},
	}))

	list := decode[[]domain.Order](t, br.doJSON(http.MethodGet, "/api/v1/orders", nil))
	if len(list) != 1 || list[0].ID != res.OrderID {
		t.Fatalf("orders %+v", list)
	}
	w := br.doJSON(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/cancel", res.OrderID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel %d %s", w.Code, w.Body)
	}
	if w := br.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", res.OrderID), nil); w.Code != http.StatusNotFound {
		t.Fatalf("cancelled order %d", w.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	s, b := setupServer(t)
	lamp := b.AddProduct("Lamp", "20", 5)
	b.SeedCart("sita", lamp.ID, 1)
	customer := newBrowser(t, s)
	customer.login("sita")
	placed := decode[service.CheckoutResult](t, customer.doJSON(http.MethodPost, "/api/v1/checkout", map[string]any{
		"gateway": "bank",
		"shipping": map[string]any{
			"shipping_address": "Lakeside 4", "shipping_city": "Pokhara",
			"shipping_postal_code": "33700", "shipping_phone": "+977 9800000000",
		},
	}))
	statusPath := fmt.Sprintf("/api/v1/admin/orders/%d/status", placed.OrderID)

	admin := newBrowser(t, s)
	admin.login("boss")

	users := decode[struct {
		Users []domain.User     `json:"users"`
		Stats service.UserStats `json:"stats"`
	}](t, admin.doJSON(http.MethodGet, "/api/v1/admin/users?role=admin", nil))
	if len(users.Users) != 1 || users.Users[0].Username != "boss" || users.Stats.Total != 2 {
		t.Fatalf("users %+v", users)
	}

	orders := decode[struct {
		Orders []domain.Order     `json:"orders"`
		Stats  service.OrderStats `json:"stats"`
	}](t, admin.doJSON(http.MethodGet, "/api/v1/admin/orders?status=paid", nil))
	if len(orders.Orders) != 0 || orders.Stats.Total != 1 || orders.Stats.Pending != 1 {
		t.Fatalf("orders %+v", orders)
	}

	w := admin.doJSON(http.MethodPatch, statusPath, map[string]any{"status": "shipped"})
	if w.Code != http.StatusOK || decode[domain.Order](t, w).Status != domain.OrderStatusShipped {
		t.Fatalf("status %d %s", w.Code, w.Body)
	}
	w = admin.doJSON(http.MethodPatch, statusPath, map[string]any{"status": "lost"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad status %d", w.Code)
	}

	w = admin.doJSON(http.MethodGet, "/api/v1/admin/orders/export", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("export %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type %q", ct)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="orders-`) {
		t.Fatalf("disposition %q", w.Header().Get("Content-Disposition"))
	}

	w = admin.doJSON(http.MethodPost, "/api/v1/admin/users", map[string]any{"username": "ram", "email": "ram@example.com", "password": "123"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short password %d", w.Code)
	}
}

func TestMapErrorToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", service.ErrEmptyCart), http.StatusBadRequest},
		{service.ErrNoValidItems, http.StatusBadRequest},
		{&service.ValidationError{Fields: map[string]string{"a": "b"}}, http.StatusBadRequest},
		{service.ErrUnauthenticated, http.StatusUnauthorized},
		{apiclient.ErrSessionExpired, http.StatusUnauthorized},
		{service.ErrAdminOnly, http.StatusForbidden},
		{service.ErrForbidden, http.StatusForbidden},
		{repository.ErrNotFound, http.StatusNotFound},
		{&apiclient.APIError{StatusCode: http.StatusConflict}, http.StatusConflict},
		{&apiclient.APIError{StatusCode: http.StatusInternalServerError}, http.StatusBadGateway},
		{fmt.Errorf("dial: %w", apiclient.ErrBackendUnavailable), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := mapErrorToStatus(c.err); got != c.want {
			t.Errorf("%v: got %d want %d", c.err, got, c.want)
		}
	}
}

func TestWatchOrder(t *testing.T) {
	s, b := setupServer(t)
	lamp := b.AddProduct("Lamp", "1200", 5)
	b.SeedCart("sita", lamp.ID, 1)
	br := newBrowser(t, s)
	br.login("sita")
	res := decode[service.CheckoutResult](t, br.doJSON(http.MethodPost, "/api/v1/checkout", map[string]any{
		"gateway": "khalti",
		"shipping": map[string]any{
			"shipping_address": "Lakeside 4", "shipping_city": "Pokhara",
			"shipping_postal_code": "33700", "shipping_phone": "+977 9800000000",
		},
	}))
	b.PayOnFetch(res.OrderID, 2)

	ts := httptest.NewServer(s.Engine())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/api/v1/orders/%d/watch", res.OrderID)
	header := http.Header{}
	header.Set("Cookie", cookieName+"="+br.cookie.Value)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var seen []domain.OrderStatus
	for {
		var o domain.Order
		if err := conn.ReadJSON(&o); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.Fatalf("read: %v", err)
			}
			break
		}
		seen = append(seen, o.Status)
	}
	if len(seen) != 2 || seen[0] != domain.OrderStatusPending || seen[1] != domain.OrderStatusPaid {
		t.Fatalf("statuses %v", seen)
	}
}

func TestWatchOrder_ForbiddenClosesWithPolicyViolation(t *testing.T) {
	s, b := setupServer(t)
	lamp := b.AddProduct("Lamp", "1200", 5)
	b.SeedCart("sita", lamp.ID, 1)
	br := newBrowser(t, s)
	br.login("sita")
	res := decode[service.CheckoutResult](t, br.doJSON(http.MethodPost, "/api/v1/checkout", map[string]any{
		"gateway": "khalti",
		"shipping": map[string]any{
			"shipping_address": "Lakeside 4", "shipping_city": "Pokhara",
			"shipping_postal_code": "33700", "shipping_phone": "+977 9800000000",
		},
	}))
	b.Fail(http.MethodGet, fmt.Sprintf("/api/orders/orders/%d/", res.OrderID), http.StatusForbidden, -1)

	ts := httptest.NewServer(s.Engine())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/api/v1/orders/%d/watch", res.OrderID)
	header := http.Header{}
	header.Set("Cookie", cookieName+"="+br.cookie.Value)
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read error frame: %v", err)
	}
	if _, ok := frame["error"]; !ok {
		t.Fatalf("expected error frame, got %v", frame)
	}
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestCartItemValidation(t *testing.T) {
	s, b := setupServer(t)
	br := newBrowser(t, s)
	lamp := b.AddProduct("Lamp", "1200", 5)
	br.login("sita")

	w := br.doJSON(http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": lamp.ID, "quantity": -1})
	body := decode[map[string]any](t, w)
	fields, _ := body["fields"].(map[string]any)
	if w.Code != http.StatusBadRequest || fields["quantity"] != "quantity must be at least 1" {
		t.Fatalf("negative quantity %d %v", w.Code, body)
	}

	w = br.doJSON(http.MethodPost, "/api/v1/cart/items", map[string]any{"quantity": 2})
	fields, _ = decode[map[string]any](t, w)["fields"].(map[string]any)
	if w.Code != http.StatusBadRequest || fields["product_id"] != "product_id is required" {
		t.Fatalf("missing product %d %v", w.Code, fields)
	}

	w = br.doJSON(http.MethodPatch, "/api/v1/cart/items/1", map[string]any{})
	fields, _ = decode[map[string]any](t, w)["fields"].(map[string]any)
	if w.Code != http.StatusBadRequest || fields["quantity"] != "quantity is required" {
		t.Fatalf("empty update %d %v", w.Code, fields)
	}

	if w := br.doJSON(http.MethodPost, "/api/v1/cart/items", "not an object"); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body %d", w.Code)
	}
	if b.Hits(http.MethodPost, "/api/orders/cart/") != 0 {
		t.Fatalf("rejected requests must not reach the backend")
	}
}

func TestOrderFromCartAndPayments(t *testing.T) {
	s, b := setupServer(t)
	br := newBrowser(t, s)
	lamp := b.AddProduct("Lamp", "250", 5)
	b.SeedCart("sita", lamp.ID, 2)
	br.login("sita")

	w := br.doJSON(http.MethodPost, "/api/v1/orders", map[string]any{"shipping_city": "Pokhara"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("incomplete shipping %d %s", w.Code, w.Body)
	}

	w = br.doJSON(http.MethodPost, "/api/v1/orders", map[string]any{
		"shipping_address": "Lakeside 4", "shipping_city": "Pokhara",
		"shipping_postal_code": "33700", "shipping_phone": "+977 9800000000",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("order from cart %d %s", w.Code, w.Body)
	}
	if o := decode[domain.Order](t, w); o.Total.String() != "500" {
		t.Fatalf("order %+v", o)
	}
	if len(b.Cart("sita")) != 0 {
		t.Fatalf("cart should be empty")
	}

	b.SeedCart("sita", lamp.ID, 1)
	res := decode[service.CheckoutResult](t, br.doJSON(http.MethodPost, "/api/v1/checkout", map[string]any{
		"gateway": "khalti",
		"shipping": map[string]any{
			"shipping_address": "Lakeside 4", "shipping_city": "Pokhara",
			"shipping_postal_code": "33700", "shipping_phone": "+977 9800000000",
		},
	}))

	w = br.doJSON(http.MethodGet, "/api/v1/payments", nil)
	list := decode[[]domain.Payment](t, w)
	if w.Code != http.StatusOK || len(list) != 1 || list[0].Order != res.OrderID {
		t.Fatalf("payments %d %+v", w.Code, list)
	}
	w = br.doJSON(http.MethodGet, fmt.Sprintf("/api/v1/payments/%d", list[0].ID), nil)
	if w.Code != http.StatusOK || decode[domain.Payment](t, w).Gateway != domain.GatewayKhalti {
		t.Fatalf("payment %d %s", w.Code, w.Body)
	}
	if w := br.doJSON(http.MethodGet, "/api/v1/payments/abc", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad payment id %d", w.Code)
	}

	anon := newBrowser(t, s)
	if w := anon.doJSON(http.MethodGet, "/api/v1/payments", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous payments %d", w.Code)
	}
}

func TestSwaggerCoversRoutes(t *testing.T) {
	s, _ := setupServer(t)
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc); err != nil {
		t.Fatalf("swagger document: %v", err)
	}

	documented := 0
	for _, r := range s.Engine().Routes() {
		path, ok := strings.CutPrefix(r.Path, "/api/v1")
		if !ok {
			continue
		}
		path = routeParam.ReplaceAllString(path, "{$1}")
		if _, ok := doc.Paths[path][strings.ToLower(r.Method)]; !ok {
			t.Errorf("%s %s is not documented", r.Method, path)
			continue
		}
		documented++
	}
	total := 0
	for _, ops := range doc.Paths {
		total += len(ops)
	}
	if documented != total {
		t.Errorf("document lists %d operations, router serves %d", total, documented)
	}
}
