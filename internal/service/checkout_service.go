package service

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
	"evercart/internal/events"
	"evercart/internal/telemetry"
)

var (
	freeShippingOver = decimal.NewFromInt(5000)
	flatShipping     = decimal.NewFromInt(150)
	phoneStrip       = regexp.MustCompile(`[^0-9+]`)
)

const defaultCountry = "Nepal"

// Quote стоимость корзины с доставкой
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// QuoteItems prices a cart: shipping is free above 5000, otherwise flat 150.
func QuoteItems(items []domain.CartItem) Quote {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	shipping := flatShipping
	if subtotal.GreaterThan(freeShippingOver) {
		shipping = decimal.Zero
	}
	return Quote{Subtotal: subtotal, Shipping: shipping, Total: subtotal.Add(shipping)}
}

// ValidateShipping trims the form, defaults the country and checks the
// required fields.
func ValidateShipping(d ShippingDetails) (ShippingDetails, error) {
	d.Address = strings.TrimSpace(d.Address)
	d.City = strings.TrimSpace(d.City)
	d.PostalCode = strings.TrimSpace(d.PostalCode)
	d.Country = strings.TrimSpace(d.Country)
	d.Phone = strings.TrimSpace(d.Phone)
	if d.Country == "" {
		d.Country = defaultCountry
	}

	verr := &ValidationError{}
	if d.Address == "" {
		verr.add("shipping_address", "Address is required")
	}
	if d.City == "" {
		verr.add("shipping_city", "City is required")
	}
	if d.PostalCode == "" {
		verr.add("shipping_postal_code", "Postal code is required")
	}
	switch {
	case d.Phone == "":
		verr.add("shipping_phone", "Phone number is required")
	case len(phoneStrip.ReplaceAllString(d.Phone, "")) < 7:
		verr.add("shipping_phone", "Enter a valid phone number")
	}
	return d, verr.orNil()
}

type PaymentAction string

const (
	ActionFormPost     PaymentAction = "form_post"
	ActionRedirect     PaymentAction = "redirect"
	ActionInstructions PaymentAction = "instructions"
	ActionPending      PaymentAction = "pending"
)

type CheckoutRequest struct {
	Shipping ShippingDetails       `json:"shipping"`
	Gateway  domain.PaymentGateway `json:"gateway"`
}

// CheckoutResult что браузер должен сделать дальше
type CheckoutResult struct {
	OrderID       int64           `json:"order_id"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Quote         Quote           `json:"quote"`
	Action        PaymentAction   `json:"action"`
	URL           string          `json:"url,omitempty"`
	Params        map[string]any  `json:"params,omitempty"`
	Instructions  json.RawMessage `json:"instructions,omitempty"`
	Message       string          `json:"message"`
}

// CheckoutService оформление заказа и запуск оплаты
type CheckoutService struct {
	api      *apiclient.Client
	sessions *SessionManager
	orders   *OrderService
	events   events.Publisher
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	log      *zap.Logger
	origin   string
}

func NewCheckoutService(api *apiclient.Client, sessions *SessionManager, orders *OrderService, pub events.Publisher,
	metrics *telemetry.Metrics, tracer trace.Tracer, log *zap.Logger, publicOrigin string) *CheckoutService {
	return &CheckoutService{
		api: api, sessions: sessions, orders: orders, events: pub,
		metrics: metrics, tracer: tracer, log: log,
		origin: strings.TrimRight(publicOrigin, "/"),
	}
}

// Quote prices the current server cart.
func (s *CheckoutService) Quote(ctx context.Context, sess *domain.Session) (Quote, error) {
	if err := requireAuth(sess); err != nil {
		return Quote{}, err
	}
	items, err := retryOnce(ctx, s.sessions.Bind(s.api, sess).ListCart)
	if err != nil {
		return Quote{}, err
	}
	return QuoteItems(items), nil
}

// Start creates an unpaid order from the server cart and initiates payment.
// The cart stays intact until the payment is confirmed.
func (s *CheckoutService) Start(ctx context.Context, sess *domain.Session, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "Checkout", trace.WithAttributes(attribute.String("payment.gateway", string(req.Gateway))))
	defer span.End()

	res, err := s.start(ctx, sess, req)
	gateway := string(req.Gateway)
	if gateway == "" {
		gateway = string(domain.GatewayESewa)
	}
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("order.id", res.OrderID), attribute.String("payment.action", string(res.Action)))
		span.SetStatus(codes.Ok, "")
	}
	s.metrics.Checkouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gateway", gateway), attribute.String("result", result)))
	return res, err
}

func (s *CheckoutService) start(ctx context.Context, sess *domain.Session, req CheckoutRequest) (*CheckoutResult, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	shipping, err := ValidateShipping(req.Shipping)
	if err != nil {
		return nil, err
	}
	gateway := req.Gateway
	if gateway == "" {
		gateway = domain.GatewayESewa
	}
	if !gateway.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"gateway": "choose esewa, khalti, fonepay or bank"}}
	}

	client := s.sessions.Bind(s.api, sess)
	items, err := client.ListCart(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.Cart.SetItems(items) }); err != nil {
		return nil, err
	}

	lines := make([]OrderLine, 0, len(items))
	for _, it := range items {
		pid := it.Product
		if pid == 0 && it.ProductDetails != nil {
			pid = it.ProductDetails.ID
		}
		lines = append(lines, OrderLine{ProductID: pid, Quantity: it.Quantity})
	}
	submitted, err := s.orders.Submit(ctx, sess, SubmitOrder{Items: lines, Shipping: shipping})
	if err != nil {
		return nil, err
	}

	orderID := strconv.FormatInt(submitted.OrderID, 10)
	reply, err := client.InitiatePayment(ctx, apiclient.InitiatePaymentRequest{
		Method:    gateway,
		OrderID:   submitted.OrderID,
		ReturnURL: s.origin + "/payment/success?order_id=" + url.QueryEscape(orderID),
		CancelURL: s.origin + "/checkout",
	})
	if err != nil {
		return nil, err
	}

	res := interpret(reply, gateway, s.origin, submitted.OrderID)
	res.Quote = QuoteItems(items)
	res.TransactionID = submitted.TransactionID
	if reply.TransactionID != "" {
		res.TransactionID = reply.TransactionID
	}

	s.log.Info("checkout initiated",
		zap.Int64("order_id", res.OrderID),
		zap.String("gateway", string(gateway)),
		zap.String("action", string(res.Action)),
	)
	e := events.New(events.CheckoutInitiated, userID(sess), map[string]any{
		"gateway": string(gateway),
		"total":   submitted.Total.String(),
		"action":  string(res.Action),
	})
	e.OrderID = res.OrderID
	publish(ctx, s.events, s.log, e)
	return res, nil
}

// interpret maps the gateway answer onto the browser's next step, in the
// order: form post, redirect, bank instructions, wait.
func interpret(r *apiclient.InitiatePaymentResponse, gateway domain.PaymentGateway, origin string, orderID int64) *CheckoutResult {
	res := &CheckoutResult{OrderID: orderID}
	hasInstructions := len(r.Instructions) > 0 && string(r.Instructions) != "null"
	switch {
	case r.URL != "" && r.Params != nil:
		res.Action, res.URL, res.Params = ActionFormPost, r.URL, r.Params
		res.Message = "Redirecting to the payment gateway."
	case r.URL != "":
		res.Action, res.URL = ActionRedirect, r.URL
		res.Message = "Redirecting to the payment gateway."
	case r.PaymentURL != "":
		res.Action, res.URL = ActionRedirect, r.PaymentURL
		res.Message = "Redirecting to the payment gateway."
	case hasInstructions && gateway == domain.GatewayBank:
		res.Action, res.Instructions = ActionInstructions, r.Instructions
		res.URL = origin + "/payment/success?order_id=" + strconv.FormatInt(orderID, 10)
		res.Message = "Bank instructions generated."
	default:
		res.Action = ActionPending
		res.Message = "Payment initialized. Follow the gateway instructions."
	}
	return res
}
