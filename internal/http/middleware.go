package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"evercart/internal/domain"
)

const sessionKey = "session"

// requestLogger opens a server span per request and logs the outcome.
func requestLogger(log *zap.Logger, tracer trace.Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Request.Method),
				semconv.HTTPRoute(route),
				semconv.URLPath(c.Request.URL.Path),
			),
		)
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// session loads the caller's session, creating one when the cookie is
// missing or stale, and refreshes the cookie.
func (s *Server) session() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(s.opts.CookieName)
		sess, created, err := s.svc.Sessions.Load(c.Request.Context(), id)
		if err != nil {
			s.log.Error("load session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		if created || id != sess.ID {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(s.opts.CookieName, sess.ID, int(s.opts.SessionTTL.Seconds()), "/", "", s.opts.CookieSecure, true)
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

func sessionOf(c *gin.Context) *domain.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return &domain.Session{}
	}
	return v.(*domain.Session)
}

func loginURL(c *gin.Context) string {
	if isAdminPath(c.Request.URL.Path) {
		return "/admin/login"
	}
	return "/login?next=" + url.QueryEscape(c.Request.URL.RequestURI())
}

func isAdminPath(p string) bool {
	return strings.HasPrefix(p, "/api/v1/admin")
}

func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sessionOf(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "authentication required",
				"login_url": loginURL(c),
			})
			return
		}
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !sessionOf(c).IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "admin access required",
				"login_url": "/admin/login",
			})
			return
		}
		c.Next()
	}
}
