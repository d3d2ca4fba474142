package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
	"evercart/internal/events"
	"evercart/internal/telemetry"
)

// CartService синхронизирует серверную корзину и её зеркало в сессии
type CartService struct {
	api      *apiclient.Client
	sessions *SessionManager
	events   events.Publisher
	metrics  *telemetry.Metrics
	log      *zap.Logger
}

func NewCartService(api *apiclient.Client, sessions *SessionManager, pub events.Publisher, metrics *telemetry.Metrics, log *zap.Logger) *CartService {
	return &CartService{api: api, sessions: sessions, events: pub, metrics: metrics, log: log}
}

// CartView корзина в ответе API. Stale означает, что сервер не ответил и
// показано последнее известное состояние.
type CartView struct {
	Items []domain.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
	Count int64             `json:"count"`
	Stale bool              `json:"stale"`
}

func viewOf(c domain.CartSnapshot, stale bool) CartView {
	items := c.Items
	if items == nil {
		items = []domain.CartItem{}
	}
	return CartView{Items: items, Total: c.Total(), Count: c.ItemCount(), Stale: stale}
}

func (s *CartService) Get(ctx context.Context, sess *domain.Session) (CartView, error) {
	if !sess.Authenticated() {
		if len(sess.Cart.Items) > 0 {
			if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.Cart.Clear() }); err != nil {
				s.log.Warn("clear anonymous cart mirror", zap.Error(err))
			}
		}
		return viewOf(domain.CartSnapshot{}, false), nil
	}

	client := s.sessions.Bind(s.api, sess)
	items, err := retryOnce(ctx, client.ListCart)
	if err != nil {
		if errors.Is(err, apiclient.ErrSessionExpired) {
			return CartView{}, err
		}
		s.log.Warn("cart fetch failed, serving mirror", zap.Error(err))
		return viewOf(sess.Cart, true), nil
	}
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.Cart.SetItems(items) }); err != nil {
		return CartView{}, err
	}
	return viewOf(sess.Cart, false), nil
}

func (s *CartService) Add(ctx context.Context, sess *domain.Session, productID, quantity int64) (*domain.CartItem, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	if productID <= 0 || quantity < 1 {
		return nil, fmt.Errorf("%w: product and a quantity of at least 1 are required", ErrInvalidInput)
	}
	item, err := s.sessions.Bind(s.api, sess).AddCartItem(ctx, productID, quantity)
	if err != nil {
		return nil, err
	}
	s.count(ctx, "add")
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.Cart.AddItem(*item) }); err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.log, events.New(events.CartItemAdded, userID(sess), map[string]any{
		"product_id": productID,
		"quantity":   quantity,
	}))
	return item, nil
}

func (s *CartService) Update(ctx context.Context, sess *domain.Session, itemID, quantity int64) (*domain.CartItem, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	if itemID <= 0 || quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	item, err := s.sessions.Bind(s.api, sess).UpdateCartItem(ctx, itemID, quantity)
	if err != nil {
		return nil, err
	}
	s.count(ctx, "update")
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.Cart.UpdateItem(item.ID, item.Quantity) }); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CartService) Remove(ctx context.Context, sess *domain.Session, itemID int64) error {
	if err := requireAuth(sess); err != nil {
		return err
	}
	if itemID <= 0 {
		return ErrInvalidInput
	}
	if err := s.sessions.Bind(s.api, sess).RemoveCartItem(ctx, itemID); err != nil {
		return err
	}
	s.count(ctx, "remove")
	return s.sessions.Update(ctx, sess, func(x *domain.Session) { x.Cart.RemoveItem(itemID) })
}

// Clear empties the server cart. Backends without the bulk endpoint get
// the items removed one by one.
func (s *CartService) Clear(ctx context.Context, sess *domain.Session) error {
	if err := requireAuth(sess); err != nil {
		return err
	}
	client := s.sessions.Bind(s.api, sess)
	err := client.ClearCart(ctx)
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == 404 || apiErr.StatusCode == 405) {
		err = s.clearEach(ctx, client)
	}
	if err != nil {
		return err
	}
	s.count(ctx, "clear")
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.Cart.Clear() }); err != nil {
		return err
	}
	publish(ctx, s.events, s.log, events.New(events.CartCleared, userID(sess), nil))
	return nil
}

func (s *CartService) clearEach(ctx context.Context, client *apiclient.Client) error {
	items, err := client.ListCart(ctx)
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, it := range items {
		id := it.ID
		g.Go(func() error { return client.RemoveCartItem(gctx, id) })
	}
	return g.Wait()
}

func (s *CartService) count(ctx context.Context, op string) {
	s.metrics.CartMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
