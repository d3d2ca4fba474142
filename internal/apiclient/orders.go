package apiclient

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"evercart/internal/domain"
)

// Shipping адрес доставки в формате бэкенда
type Shipping struct {
	Address    string `json:"shipping_address"`
	City       string `json:"shipping_city"`
	PostalCode string `json:"shipping_postal_code"`
	Country    string `json:"shipping_country"`
	Phone      string `json:"shipping_phone,omitempty"`
}

type OrderItemInput struct {
	Product  int64 `json:"product"`
	Quantity int64 `json:"quantity"`
}

type SubmitOrderRequest struct {
	Items []OrderItemInput `json:"items"`
	Shipping
}

type SubmitOrderResponse struct {
	OrderID       int64           `json:"order_id"`
	Total         decimal.Decimal `json:"total"`
	TransactionID string          `json:"transaction_id"`
}

// AdminOrderPayload тело ручного создания и изменения заказа
type AdminOrderPayload struct {
	User               *int64              `json:"user,omitempty"`
	Status             *domain.OrderStatus `json:"status,omitempty"`
	IsPaid             *bool               `json:"is_paid,omitempty"`
	TransactionID      *string             `json:"transaction_id,omitempty"`
	ShippingAddress    *string             `json:"shipping_address,omitempty"`
	ShippingCity       *string             `json:"shipping_city,omitempty"`
	ShippingPostalCode *string             `json:"shipping_postal_code,omitempty"`
	ShippingCountry    *string             `json:"shipping_country,omitempty"`
	ShippingPhone      *string             `json:"shipping_phone,omitempty"`
	ItemsData          []OrderItemInput    `json:"items_data,omitempty"`
}

func orderPath(id int64) string { return "api/orders/orders/" + strconv.FormatInt(id, 10) + "/" }

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return getList[domain.Order](ctx, c, "api/orders/orders/")
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: orderPath(id)}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) SubmitOrder(ctx context.Context, in SubmitOrderRequest) (*SubmitOrderResponse, error) {
	var out SubmitOrderResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "api/orders/submit/", body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrderFromCart(ctx context.Context, in Shipping) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, request{method: http.MethodPost, path: "api/orders/create-from-cart/", body: in}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) CancelOrder(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodPost, path: orderPath(id) + "cancel/"}, nil)
}

func (c *Client) AdminCreateOrder(ctx context.Context, in AdminOrderPayload) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, request{method: http.MethodPost, path: "api/orders/orders/", body: in}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) AdminUpdateOrder(ctx context.Context, id int64, in AdminOrderPayload) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, request{method: http.MethodPatch, path: orderPath(id), body: in}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) AdminDeleteOrder(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: orderPath(id)}, nil)
}
