package service

import (
	"context"
	"strings"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
)

// OrderService заказы текущего покупателя
type OrderService struct {
	api      *apiclient.Client
	sessions *SessionManager
}

func NewOrderService(api *apiclient.Client, sessions *SessionManager) *OrderService {
	return &OrderService{api: api, sessions: sessions}
}

// ShippingDetails адрес доставки из формы оформления заказа
type ShippingDetails struct {
	Address    string `json:"shipping_address"`
	City       string `json:"shipping_city"`
	PostalCode string `json:"shipping_postal_code"`
	Country    string `json:"shipping_country"`
	Phone      string `json:"shipping_phone"`
}

func (d ShippingDetails) wire() apiclient.Shipping {
	return apiclient.Shipping{
		Address:    strings.TrimSpace(d.Address),
		City:       strings.TrimSpace(d.City),
		PostalCode: strings.TrimSpace(d.PostalCode),
		Country:    strings.TrimSpace(d.Country),
		Phone:      strings.TrimSpace(d.Phone),
	}
}

type OrderLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type SubmitOrder struct {
	Items    []OrderLine
	Shipping ShippingDetails
}

// List is empty for anonymous sessions.
func (s *OrderService) List(ctx context.Context, sess *domain.Session) ([]domain.Order, error) {
	if !sess.Authenticated() {
		return []domain.Order{}, nil
	}
	return retryOnce(ctx, s.sessions.Bind(s.api, sess).ListOrders)
}

func (s *OrderService) Get(ctx context.Context, sess *domain.Session, id int64) (*domain.Order, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	client := s.sessions.Bind(s.api, sess)
	return retryOnce(ctx, func(ctx context.Context) (*domain.Order, error) { return client.GetOrder(ctx, id) })
}

// orderItems drops lines without a product and defaults quantity to 1.
func orderItems(lines []OrderLine) []apiclient.OrderItemInput {
	out := make([]apiclient.OrderItemInput, 0, len(lines))
	for _, l := range lines {
		if l.ProductID <= 0 {
			continue
		}
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		out = append(out, apiclient.OrderItemInput{Product: l.ProductID, Quantity: qty})
	}
	return out
}

func (s *OrderService) Submit(ctx context.Context, sess *domain.Session, in SubmitOrder) (*apiclient.SubmitOrderResponse, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	items := orderItems(in.Items)
	if len(items) == 0 {
		return nil, ErrNoValidItems
	}
	return s.sessions.Bind(s.api, sess).SubmitOrder(ctx, apiclient.SubmitOrderRequest{
		Items:    items,
		Shipping: in.Shipping.wire(),
	})
}

// CreateFromCart turns the whole server cart into an order.
func (s *OrderService) CreateFromCart(ctx context.Context, sess *domain.Session, shipping ShippingDetails) (*domain.Order, error) {
	if err := requireAuth(sess); err != nil {
		return nil, err
	}
	shipping, err := ValidateShipping(shipping)
	if err != nil {
		return nil, err
	}
	o, err := s.sessions.Bind(s.api, sess).CreateOrderFromCart(ctx, shipping.wire())
	if err != nil {
		return nil, err
	}
	// the backend empties the cart for this path
	if err := s.sessions.Update(ctx, sess, func(x *domain.Session) { x.Cart.Clear() }); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) Cancel(ctx context.Context, sess *domain.Session, id int64) error {
	if err := requireAuth(sess); err != nil {
		return err
	}
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.sessions.Bind(s.api, sess).CancelOrder(ctx, id)
}
