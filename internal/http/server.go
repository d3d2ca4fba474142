package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"evercart/internal/service"
)

// Services набор сервисов, которые обслуживает HTTP слой
type Services struct {
	Sessions *service.SessionManager
	Auth     *service.AuthService
	Catalog  *service.CatalogService
	Cart     *service.CartService
	Orders   *service.OrderService
	Checkout *service.CheckoutService
	Payments *service.PaymentService
	Admin    *service.AdminService
}

type Options struct {
	CORSOrigins   []string
	CookieName    string
	CookieSecure  bool
	SessionTTL    time.Duration
	WatchInterval time.Duration
}

type Server struct {
	engine *gin.Engine
	svc    Services
	opts   Options
	log    *zap.Logger
	tracer trace.Tracer
}

func NewServer(svc Services, opts Options, log *zap.Logger, tracer trace.Tracer) *Server {
	if opts.CookieName == "" {
		opts.CookieName = "evercart_session"
	}
	if opts.WatchInterval <= 0 {
		opts.WatchInterval = 3 * time.Second
	}
	useJSONNames()
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log, tracer))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-CSRFToken"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	s := &Server{engine: r, svc: svc, opts: opts, log: log, tracer: tracer}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.engine.Group("/api/v1", s.session())
	{
		auth := v1.Group("/auth")
		auth.POST("/login", s.login)
		auth.POST("/admin/login", s.adminLogin)
		auth.POST("/register", s.register)
		auth.POST("/logout", s.logout)
		auth.GET("/me", s.me)
		auth.PATCH("/profile", requireAuth(), s.updateProfile)

		v1.GET("/products", s.listProducts)
		v1.GET("/products/:id", s.getProduct)
		v1.GET("/categories", s.listCategories)
		v1.GET("/categories/:id", s.getCategory)

		cart := v1.Group("/cart", requireAuth())
		cart.GET("", s.getCart)
		cart.POST("/items", s.addCartItem)
		cart.PATCH("/items/:id", s.updateCartItem)
		cart.DELETE("/items/:id", s.removeCartItem)
		cart.DELETE("", s.clearCart)

		checkout := v1.Group("/checkout", requireAuth())
		checkout.GET("/quote", s.checkoutQuote)
		checkout.POST("", s.startCheckout)

		orders := v1.Group("/orders", requireAuth())
		orders.GET("", s.listOrders)
		orders.POST("", s.createOrderFromCart)
		orders.GET("/:id", s.getOrder)
		orders.POST("/:id/cancel", s.cancelOrder)
		orders.GET("/:id/watch", s.watchOrder)

		v1.GET("/payments", requireAuth(), s.listPayments)
		v1.GET("/payments/:id", requireAuth(), s.getPayment)
		v1.GET("/payments/success", requireAuth(), s.paymentSuccess)
		v1.GET("/payments/failure", s.paymentFailure)

		admin := v1.Group("/admin", requireAuth(), requireAdmin())
		admin.GET("/stats", s.adminStats)

		admin.GET("/users", s.adminListUsers)
		admin.GET("/users/:id", s.adminGetUser)
		admin.POST("/users", s.adminCreateUser)
		admin.PATCH("/users/:id", s.adminUpdateUser)
		admin.DELETE("/users/:id", s.adminDeleteUser)

		admin.GET("/products", s.adminListProducts)
		admin.POST("/products", s.adminCreateProduct)
		admin.PATCH("/products/:id", s.adminUpdateProduct)
		admin.DELETE("/products/:id", s.adminDeleteProduct)

		admin.POST("/categories", s.adminCreateCategory)
		admin.PATCH("/categories/:id", s.adminUpdateCategory)
		admin.DELETE("/categories/:id", s.adminDeleteCategory)

		admin.GET("/orders", s.adminListOrders)
		admin.GET("/orders/recent", s.adminRecentOrders)
		admin.GET("/orders/export", s.adminExportOrders)
		admin.POST("/orders", s.adminCreateOrder)
		admin.PATCH("/orders/:id/status", s.adminUpdateOrderStatus)
		admin.POST("/orders/:id/toggle-paid", s.adminTogglePaid)
		admin.DELETE("/orders/:id", s.adminDeleteOrder)

		admin.GET("/payments", s.adminListPayments)
	}
}
