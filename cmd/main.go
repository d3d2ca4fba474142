package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"evercart/internal/apiclient"
	"evercart/internal/config"
	"evercart/internal/events"
	httpapi "evercart/internal/http"
	"evercart/internal/repository"
	"evercart/internal/service"
	"evercart/internal/telemetry"

	_ "evercart/docs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config: " + err.Error())
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	log, tracer, meter, shutdownTelemetry, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		panic("telemetry: " + err.Error())
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownTelemetry(sctx)
	}()

	metrics, err := telemetry.NewMetrics(meter)
	if err != nil {
		log.Fatal("metrics", zap.Error(err))
	}

	var store repository.SessionRepository
	switch cfg.SessionStore {
	case config.StorePostgres:
		pg, err := repository.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("open session store", zap.Error(err))
		}
		store = pg
	default:
		store = repository.NewMemoryStore()
	}
	log.Info("session store ready", zap.String("store", cfg.SessionStore))

	var pub events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := events.EnsureTopic(tctx, cfg.KafkaBrokers[0], cfg.KafkaTopic, 3, 1); err != nil {
			log.Warn("kafka topic not created, relying on auto creation", zap.Error(err))
		}
		cancel()
		pub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	defer pub.Close()

	api, err := apiclient.New(cfg.APIBaseURL, &http.Client{Timeout: cfg.BackendTimeout}, log, tracer, metrics)
	if err != nil {
		log.Fatal("api client", zap.Error(err))
	}

	sessions := service.NewSessionManager(store, cfg.SessionTTL, metrics, log)
	go sessions.RunJanitor(ctx, 10*time.Minute)

	orders := service.NewOrderService(api, sessions)
	cart := service.NewCartService(api, sessions, pub, metrics, log)
	auth := service.NewAuthService(api, sessions, pub, log)
	srv := httpapi.NewServer(httpapi.Services{
		Sessions: sessions,
		Auth:     auth,
		Catalog:  service.NewCatalogService(api, sessions),
		Cart:     cart,
		Orders:   orders,
		Checkout: service.NewCheckoutService(api, sessions, orders, pub, metrics, tracer, log, cfg.PublicOrigin),
		Payments: service.NewPaymentService(api, sessions, cart, pub, metrics, log, cfg.PaymentPollDelay),
		Admin:    service.NewAdminService(api, sessions, log),
	}, httpapi.Options{
		CORSOrigins:   cfg.CORSOrigins,
		CookieName:    cfg.SessionCookie,
		CookieSecure:  cfg.CookieSecure,
		SessionTTL:    cfg.SessionTTL,
		WatchInterval: cfg.OrderWatchInterval,
	}, log, tracer)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr), zap.String("backend", cfg.APIBaseURL))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")
	stop()

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(sctx); err != nil {
		log.Error("shutdown error", zap.Error(err))
	}
	// profile refreshes still write to the session store
	auth.Wait()
}
