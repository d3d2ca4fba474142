package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
	"evercart/internal/events"
	"evercart/internal/telemetry"
)

// PaymentService сверка оплаты после возврата со шлюза
type PaymentService struct {
	api       *apiclient.Client
	sessions  *SessionManager
	cart      *CartService
	events    events.Publisher
	metrics   *telemetry.Metrics
	log       *zap.Logger
	pollDelay time.Duration
}

func NewPaymentService(api *apiclient.Client, sessions *SessionManager, cart *CartService, pub events.Publisher,
	metrics *telemetry.Metrics, log *zap.Logger, pollDelay time.Duration) *PaymentService {
	return &PaymentService{api: api, sessions: sessions, cart: cart, events: pub, metrics: metrics, log: log, pollDelay: pollDelay}
}

type PaymentOutcome struct {
	Order       *domain.Order `json:"order"`
	Paid        bool          `json:"paid"`
	CartCleared bool          `json:"cart_cleared"`
	Message     string        `json:"message"`
}

// ConfirmReturn handles the gateway's return URL. An unpaid order is
// fetched once more after the poll delay; a paid one empties the cart the
// first time it is confirmed in this session.
func (s *PaymentService) ConfirmReturn(ctx context.Context, sess *domain.Session, orderID int64) (*PaymentOutcome, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	if orderID <= 0 {
		return nil, ErrInvalidInput
	}
	client := s.sessions.Bind(s.api, sess)
	order, err := client.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Paid() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollDelay):
		}
		again, err := client.GetOrder(ctx, orderID)
		if err != nil {
			s.log.Warn("payment status refetch failed", zap.Int64("order_id", orderID), zap.Error(err))
		} else {
			order = again
		}
	}

	out := &PaymentOutcome{Order: order, Paid: order.Paid()}
	if !out.Paid {
		out.Message = "We are processing your payment. If this page does not update, check your orders list shortly."
		return out, nil
	}
	out.Message = "Thank you! Your order has been confirmed. Order ID: #" + strconv.FormatInt(orderID, 10)

	// the return page may be reloaded; the side effects run once per order
	var first bool
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { first = x.MarkConfirmed(orderID) }); err != nil {
		s.log.Warn("remember confirmed order", zap.Int64("order_id", orderID), zap.Error(err))
	}
	if !first {
		return out, nil
	}

	if err := s.cart.Clear(ctx, sess); err != nil {
		s.log.Warn("cart clear after payment failed", zap.Int64("order_id", orderID), zap.Error(err))
	} else {
		out.CartCleared = true
	}
	s.metrics.PaymentsConfirmed.Add(ctx, 1)
	e := events.New(events.PaymentConfirmed, userID(sess), map[string]any{"total": order.Total.String()})
	e.OrderID = orderID
	publish(ctx, s.events, s.log, e)
	return out, nil
}

type FailureInfo struct {
	OrderID int64              `json:"order_id,omitempty"`
	Status  domain.OrderStatus `json:"status,omitempty"`
	Message string             `json:"message"`
}

// DescribeFailure builds the failure page text. Any order lookup problem
// falls back to a pending status.
func (s *PaymentService) DescribeFailure(ctx context.Context, sess *domain.Session, orderIDParam string) FailureInfo {
	id, err := strconv.ParseInt(strings.TrimSpace(orderIDParam), 10, 64)
	if err != nil || id <= 0 {
		return FailureInfo{Message: "We could not verify your payment details. Please return to checkout and try again."}
	}
	status := domain.OrderStatusPending
	if sess.Authenticated() {
		if o, err := s.sessions.Bind(s.api, sess).GetOrder(ctx, id); err == nil && o.Status != "" {
			status = o.Status
		}
	}
	return FailureInfo{
		OrderID: id,
		Status:  status,
		Message: "We could not confirm the payment for order #" + strconv.FormatInt(id, 10) +
			". The current status is " + string(status) + ". You can try the payment again or choose a different gateway.",
	}
}

// Watch polls the order and emits every status change until it is paid,
// ctx ends or emit fails.
func (s *PaymentService) Watch(ctx context.Context, sess *domain.Session, orderID int64, interval time.Duration, emit func(*domain.Order) error) error {
	if err := requireAuth(sess); err != nil {
		return err
	}
	if orderID <= 0 {
		return ErrInvalidInput
	}
	client := s.sessions.Bind(s.api, sess)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last domain.OrderStatus
	var lastPaid bool
	first := true
	for {
		o, err := client.GetOrder(ctx, orderID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// 4xx and an expired session will not change on the next poll
			if !retryable(ctx, err) {
				return err
			}
			s.log.Warn("order watch poll failed", zap.Int64("order_id", orderID), zap.Error(err))
		} else if first || o.Status != last || o.IsPaid != lastPaid {
			first = false
			last, lastPaid = o.Status, o.IsPaid
			if err := emit(o); err != nil {
				return err
			}
			if o.Paid() {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *PaymentService) List(ctx context.Context, sess *domain.Session) ([]domain.Payment, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	return retryOnce(ctx, s.sessions.Bind(s.api, sess).ListPayments)
}

func (s *PaymentService) Get(ctx context.Context, sess *domain.Session, id int64) (*domain.Payment, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.Bind(s.api, sess).GetPayment(ctx, id)
}
