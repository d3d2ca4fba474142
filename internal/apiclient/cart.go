package apiclient

import (
	"context"
	"net/http"
	"strconv"

	"evercart/internal/domain"
)

func cartItemPath(id int64) string { return "api/orders/cart/" + strconv.FormatInt(id, 10) + "/" }

func (c *Client) ListCart(ctx context.Context) ([]domain.CartItem, error) {
	return getList[domain.CartItem](ctx, c, "api/orders/cart/")
}

func (c *Client) AddCartItem(ctx context.Context, productID, quantity int64) (*domain.CartItem, error) {
	var it domain.CartItem
	body := map[string]int64{"product": productID, "quantity": quantity}
	if err := c.do(ctx, request{method: http.MethodPost, path: "api/orders/cart/", body: body}, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) UpdateCartItem(ctx context.Context, id, quantity int64) (*domain.CartItem, error) {
	var it domain.CartItem
	body := map[string]int64{"quantity": quantity}
	if err := c.do(ctx, request{method: http.MethodPatch, path: cartItemPath(id), body: body}, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) RemoveCartItem(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: cartItemPath(id)}, nil)
}

// ClearCart uses the bulk endpoint; not every backend exposes it.
func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "api/orders/cart/clear/"}, nil)
}
