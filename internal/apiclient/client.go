package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"evercart/internal/telemetry"
)

const (
	userRefreshPath  = "api/users/refresh/"
	adminRefreshPath = "api/admin/refresh/"
	maxBodyBytes     = 4 << 20
)

// TokenSource хранит токены одной сессии браузера
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	IsAdmin() bool
	SetAccessToken(ctx context.Context, access string) error
	Clear(ctx context.Context) error
}

// Client типизированный клиент REST API бэкенда
type Client struct {
	base    *url.URL
	http    *http.Client
	log     *zap.Logger
	tracer  trace.Tracer
	metrics *telemetry.Metrics
	tokens  TokenSource
	flight  *singleflight.Group
	now     func() time.Time
}

func New(baseURL string, httpClient *http.Client, log *zap.Logger, tracer trace.Tracer, metrics *telemetry.Metrics) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		base:    base,
		http:    httpClient,
		log:     log,
		tracer:  tracer,
		metrics: metrics,
		flight:  &singleflight.Group{},
		now:     time.Now,
	}, nil
}

// WithTokens returns a copy of the client bound to one session.
func (c *Client) WithTokens(ts TokenSource) *Client {
	cp := *c
	cp.tokens = ts
	return &cp
}

type request struct {
	method    string
	path      string
	query     url.Values
	body      any
	header    http.Header
	anonymous bool
}

type response struct {
	status int
	body   []byte
}

// do sends r, refreshing the access token at most once per call.
func (c *Client) do(ctx context.Context, r request, out any) error {
	refreshed := false
	if c.canRefresh(r) && c.tokens.RefreshToken() != "" && tokenExpired(c.tokens.AccessToken(), c.now()) {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		refreshed = true
	}

	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}

	if resp.status == http.StatusUnauthorized && !refreshed && c.canRefresh(r) {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		if resp, err = c.send(ctx, r); err != nil {
			return err
		}
	}

	if resp.status < 200 || resp.status >= 300 {
		return newAPIError(resp.status, resp.body)
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) canRefresh(r request) bool {
	if r.anonymous || c.tokens == nil {
		return false
	}
	return c.tokens.AccessToken() != "" || c.tokens.RefreshToken() != ""
}

func (c *Client) refresh(ctx context.Context) error {
	rt := c.tokens.RefreshToken()
	if rt == "" {
		return c.expire(ctx, fmt.Errorf("no refresh token"))
	}
	path := userRefreshPath
	if c.tokens.IsAdmin() {
		path = adminRefreshPath
	}

	v, err, shared := c.flight.Do(path+rt, func() (any, error) {
		// detached so one cancelled waiter does not fail the others
		timeout := c.http.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		resp, err := c.send(rctx, request{
			method:    http.MethodPost,
			path:      path,
			body:      map[string]string{"refresh": rt},
			anonymous: true,
		})
		if err != nil {
			return "", err
		}
		if resp.status < 200 || resp.status >= 300 {
			return "", newAPIError(resp.status, resp.body)
		}
		var out struct {
			Access string `json:"access"`
		}
		if err := json.Unmarshal(resp.body, &out); err != nil {
			return "", fmt.Errorf("decode refresh: %w", err)
		}
		if out.Access == "" {
			return "", fmt.Errorf("refresh returned empty access token")
		}
		return out.Access, nil
	})
	if err != nil {
		c.metrics.TokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "failed")))
		return c.expire(ctx, err)
	}
	c.metrics.TokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "ok")))
	c.log.Debug("access token refreshed", zap.Bool("admin", c.tokens.IsAdmin()), zap.Bool("shared", shared))
	return c.tokens.SetAccessToken(ctx, v.(string))
}

func (c *Client) expire(ctx context.Context, cause error) error {
	c.log.Info("session expired", zap.Error(cause))
	if err := c.tokens.Clear(ctx); err != nil {
		c.log.Warn("clear session tokens", zap.Error(err))
	}
	return fmt.Errorf("%w: %v", ErrSessionExpired, cause)
}

func (c *Client) send(ctx context.Context, r request) (response, error) {
	ctx, span := c.tracer.Start(ctx, r.method+" "+r.path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.method),
			attribute.String("url.path", r.path),
		),
	)
	defer span.End()

	u := c.base.ResolveReference(&url.URL{Path: r.path})
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return response{}, fmt.Errorf("encode %s %s: %w", r.method, r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if !r.anonymous && c.tokens != nil {
		if tok := c.tokens.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.BackendRequests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", r.method), attribute.String("status", "error")))
		return response{}, fmt.Errorf("%w: %s %s: %v", ErrBackendUnavailable, r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		span.RecordError(err)
		return response{}, fmt.Errorf("%w: read %s: %v", ErrBackendUnavailable, r.path, err)
	}

	status := strconv.Itoa(resp.StatusCode)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, status)
	}
	c.metrics.BackendRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", r.method), attribute.String("status", status)))
	c.metrics.BackendLatency.Record(ctx, elapsed, metric.WithAttributes(attribute.String("method", r.method)))

	return response{status: resp.StatusCode, body: data}, nil
}

// tokenExpired reads the exp claim without verifying the signature. Tokens
// that cannot be parsed are left to the backend to judge.
func tokenExpired(access string, now time.Time) bool {
	if access == "" {
		return false
	}
	tok, _, err := jwt.NewParser().ParseUnverified(access, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := tok.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
