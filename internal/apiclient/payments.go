package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"evercart/internal/domain"
)

type InitiatePaymentRequest struct {
	Method    domain.PaymentGateway `json:"method"`
	OrderID   int64                 `json:"order_id"`
	ReturnURL string                `json:"return_url,omitempty"`
	CancelURL string                `json:"cancel_url,omitempty"`
}

// InitiatePaymentResponse ответ шлюза. Набор полей зависит от метода оплаты:
// форма (url+params), редирект (url или payment_url) или инструкции банка.
type InitiatePaymentResponse struct {
	URL           string          `json:"url,omitempty"`
	PaymentURL    string          `json:"payment_url,omitempty"`
	Params        map[string]any  `json:"params,omitempty"`
	Instructions  json.RawMessage `json:"instructions,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
}

func (c *Client) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return getList[domain.Payment](ctx, c, "api/payments/")
}

func (c *Client) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	var p domain.Payment
	path := "api/payments/" + strconv.FormatInt(id, 10) + "/"
	if err := c.do(ctx, request{method: http.MethodGet, path: path}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) InitiatePayment(ctx context.Context, in InitiatePaymentRequest) (*InitiatePaymentResponse, error) {
	var out InitiatePaymentResponse
	if err := c.do(ctx, request{method: http.MethodPost, path: "api/payments/initiate/", body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
