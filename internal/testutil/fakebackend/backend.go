// Package fakebackend is an in-process stand-in for the storefront REST API,
// served by gin on an httptest.Server.
package fakebackend

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"evercart/internal/domain"
)

var secret = []byte("fake-backend-secret")

type account struct {
	user     domain.User
	password string
}

type failure struct {
	status int
	times  int
}

type Backend struct {
	Server *httptest.Server

	mu             sync.Mutex
	nextID         int64
	paginate       bool
	omitLoginUser  bool
	accessTTL      time.Duration
	accounts       map[string]*account
	products       map[int64]domain.Product
	categories     map[int64]domain.Category
	cart           map[int64]domain.CartItem
	orders         map[int64]domain.Order
	payments       map[int64]domain.Payment
	payOnFetch     map[int64]int
	fetches        map[int64]int
	gatewayReplies map[domain.PaymentGateway]gin.H
	failures       map[string]*failure
	hits           map[string]int
	lastCSRF       string
}

// New starts a backend that is closed when the test ends.
func New(t *testing.T) *Backend {
	t.Helper()
	gin.SetMode(gin.TestMode)
	b := &Backend{
		accessTTL:      15 * time.Minute,
		accounts:       make(map[string]*account),
		products:       make(map[int64]domain.Product),
		categories:     make(map[int64]domain.Category),
		cart:           make(map[int64]domain.CartItem),
		orders:         make(map[int64]domain.Order),
		payments:       make(map[int64]domain.Payment),
		payOnFetch:     make(map[int64]int),
		fetches:        make(map[int64]int),
		gatewayReplies: make(map[domain.PaymentGateway]gin.H),
		failures:       make(map[string]*failure),
		hits:           make(map[string]int),
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API base URL with a trailing slash.
func (b *Backend) URL() string { return b.Server.URL + "/" }

func (b *Backend) routes() *gin.Engine {
	r := gin.New()
	r.Use(b.track)

	r.POST("/api/users/login/", b.login(false))
	r.POST("/api/admin/login/", b.login(true))
	r.POST("/api/users/register/", b.register)
	r.POST("/api/users/refresh/", b.refresh(false))
	r.POST("/api/admin/refresh/", b.refresh(true))

	user := r.Group("/api", b.auth(false))
	user.POST("/users/logout/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"detail": "Successfully logged out."}) })
	user.GET("/users/profile/", b.profile)
	user.PATCH("/users/profile/", b.updateProfile)

	user.GET("/orders/cart/", b.listCart)
	user.POST("/orders/cart/", b.addCart)
	user.PATCH("/orders/cart/:id/", b.updateCart)
	user.DELETE("/orders/cart/:id/", b.removeCart)
	user.DELETE("/orders/cart/clear/", b.clearCart)

	user.GET("/orders/orders/", b.listOrders)
	user.GET("/orders/orders/:id/", b.getOrder)
	user.POST("/orders/orders/:id/cancel/", b.cancelOrder)
	user.POST("/orders/submit/", b.submitOrder)
	user.POST("/orders/create-from-cart/", b.createFromCart)

	user.GET("/payments/", b.listPayments)
	user.GET("/payments/:id/", b.getPayment)
	user.POST("/payments/initiate/", b.initiatePayment)

	r.GET("/api/products/products/", b.listProducts)
	r.GET("/api/products/products/:id/", b.getProduct)
	r.GET("/api/products/categories/", b.listCategories)
	r.GET("/api/products/categories/:id/", b.getCategory)

	admin := r.Group("/api", b.auth(true))
	admin.GET("/admin/profile/", b.profile)
	admin.GET("/users/", b.listUsers)
	admin.GET("/users/:id/", b.getUser)
	admin.POST("/users/", b.createUser)
	admin.PATCH("/users/:id/", b.updateUser)
	admin.DELETE("/users/:id/", b.deleteUser)
	admin.POST("/products/products/", b.createProduct)
	admin.PATCH("/products/products/:id/", b.updateProduct)
	admin.DELETE("/products/products/:id/", b.deleteProduct)
	admin.POST("/products/categories/", b.createCategory)
	admin.PATCH("/products/categories/:id/", b.updateCategory)
	admin.DELETE("/products/categories/:id/", b.deleteCategory)
	admin.POST("/orders/orders/", b.adminCreateOrder)
	admin.PATCH("/orders/orders/:id/", b.adminUpdateOrder)
	admin.DELETE("/orders/orders/:id/", b.adminDeleteOrder)

	return r
}

// --- knobs ---

// SetPaginate switches list endpoints to the {count,next,previous,results} shape.
func (b *Backend) SetPaginate(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paginate = v
}

func (b *Backend) SetOmitLoginUser(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitLoginUser = v
}

// Fail makes the next times requests to method+path answer status.
// A negative times fails forever.
func (b *Backend) Fail(method, path string, status, times int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = &failure{status: status, times: times}
}

// Hits counts requests to method+path, injected failures included.
func (b *Backend) Hits(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[method+" "+path]
}

func (b *Backend) LastCSRF() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastCSRF
}

// SetGatewayReply overrides the initiate answer for one payment method.
func (b *Backend) SetGatewayReply(method domain.PaymentGateway, reply gin.H) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gatewayReplies[method] = reply
}

// PayOnFetch reports the order as paid from its n-th GET on.
func (b *Backend) PayOnFetch(orderID int64, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payOnFetch[orderID] = n
}

func (b *Backend) MarkPaid(orderID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markPaidLocked(orderID)
}

// --- seeding and inspection ---

func (b *Backend) AddUser(username, password string, admin bool) domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	u := domain.User{
		ID:         b.nextID,
		Username:   username,
		Email:      username + "@example.com",
		IsCustomer: !admin,
		IsAdmin:    admin,
		IsStaff:    admin,
		DateJoined: time.Now().UTC(),
	}
	b.accounts[username] = &account{user: u, password: password}
	return u
}

func (b *Backend) AddCategory(name string) domain.Category {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	cat := domain.Category{ID: b.nextID, Name: name, Slug: strings.ToLower(name), CreatedAt: time.Now().UTC()}
	b.categories[cat.ID] = cat
	return cat
}

func (b *Backend) AddProduct(title, price string, inventory int64) domain.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	p := domain.Product{
		ID:        b.nextID,
		Title:     title,
		Slug:      strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Price:     mustDecimal(price),
		Inventory: inventory,
		Images:    []domain.ProductImage{},
		CreatedAt: time.Now().UTC().Add(time.Duration(b.nextID) * time.Second),
	}
	b.products[p.ID] = p
	return p
}

func (b *Backend) SeedCart(username string, productID, qty int64) domain.CartItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[username]
	it, _ := b.addCartLocked(acc.user.ID, productID, qty)
	return it
}

func (b *Backend) Cart(username string) []domain.CartItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cartOfLocked(b.accounts[username].user.ID)
}

func (b *Backend) Order(id int64) (domain.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	return o, ok
}

func (b *Backend) User(username string) (domain.User, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[username]
	if !ok {
		return domain.User{}, false
	}
	return acc.user, true
}

// --- tokens ---

func mint(username, typ string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub": username,
		"typ": typ,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		panic(err)
	}
	return tok
}

// MintAccess issues an access token; a negative ttl yields an expired one.
func (b *Backend) MintAccess(username string, ttl time.Duration) string {
	return mint(username, "access", ttl)
}

func (b *Backend) MintRefresh(username string) string {
	return mint(username, "refresh", 24*time.Hour)
}

func parse(raw, typ string) (string, error) {
	tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, _ := tok.Claims.(jwt.MapClaims)
	if claims["typ"] != typ {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.GetSubject()
}

// --- middleware ---

func (b *Backend) track(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	b.mu.Lock()
	b.hits[key]++
	f, ok := b.failures[key]
	fail := ok && f.times != 0
	var status int
	if fail {
		status = f.status
		if f.times > 0 {
			f.times--
		}
	}
	b.mu.Unlock()
	if fail {
		c.AbortWithStatusJSON(status, gin.H{"detail": "injected failure"})
		return
	}
	c.Next()
}

func (b *Backend) auth(admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
			return
		}
		username, err := parse(raw, "access")
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Given token not valid for any token type", "code": "token_not_valid"})
			return
		}
		b.mu.Lock()
		acc, found := b.accounts[username]
		b.mu.Unlock()
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "User not found"})
			return
		}
		if admin && !acc.user.HasAdminAccess() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
			return
		}
		c.Set("user", acc.user)
		c.Next()
	}
}

func current(c *gin.Context) domain.User {
	u, _ := c.Get("user")
	return u.(domain.User)
}

// --- helpers ---

func writeList[T any](c *gin.Context, paginate bool, items []T) {
	if items == nil {
		items = []T{}
	}
	if paginate {
		c.JSON(http.StatusOK, gin.H{"count": len(items), "next": nil, "previous": nil, "results": items})
		return
	}
	c.JSON(http.StatusOK, items)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return 0, false
	}
	return id, true
}

func notFound(c *gin.Context) { c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."}) }

func sortedByID[T any](m map[int64]T, id func(T) int64) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func (b *Backend) accountByIDLocked(id int64) *account {
	for _, acc := range b.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func (b *Backend) markPaidLocked(orderID int64) {
	o, ok := b.orders[orderID]
	if !ok {
		return
	}
	o.Status = domain.OrderStatusPaid
	o.IsPaid = true
	b.orders[orderID] = o
	for id, p := range b.payments {
		if p.Order == orderID {
			p.Status = domain.PaymentStatusCompleted
			b.payments[id] = p
		}
	}
}
