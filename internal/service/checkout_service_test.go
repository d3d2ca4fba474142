package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"evercart/internal/domain"
	"evercart/internal/events"
)

func TestQuoteItems(t *testing.T) {
	line := func(price string, qty int64) domain.CartItem {
		return domain.CartItem{Quantity: qty, ProductDetails: &domain.Product{Price: decimal.RequireFromString(price)}}
	}

	q := QuoteItems([]domain.CartItem{line("2500", 2)})
	if !q.Shipping.Equal(decimal.NewFromInt(150)) || q.Total.String() != "5150" {
		t.Fatalf("exactly 5000 still pays shipping: %+v", q)
	}
	q = QuoteItems([]domain.CartItem{line("2500.01", 2)})
	if !q.Shipping.IsZero() || q.Total.String() != "5000.02" {
		t.Fatalf("free shipping above 5000: %+v", q)
	}
	if q := QuoteItems(nil); !q.Subtotal.IsZero() || q.Total.String() != "150" {
		t.Fatalf("empty quote %+v", q)
	}
}

func TestValidateShipping(t *testing.T) {
	d, err := ValidateShipping(ShippingDetails{Address: " Lakeside ", City: "Pokhara", PostalCode: "33700", Phone: "98-0000-0000"})
	if err != nil {
		t.Fatalf("valid form rejected: %v", err)
	}
	if d.Country != "Nepal" || d.Address != "Lakeside" {
		t.Fatalf("normalised %+v", d)
	}

	_, err = ValidateShipping(ShippingDetails{Phone: "12-34"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := map[string]string{
		"shipping_address":     "Address is required",
		"shipping_city":        "City is required",
		"shipping_postal_code": "Postal code is required",
		"shipping_phone":       "Enter a valid phone number",
	}
	for k, v := range want {
		if verr.Fields[k] != v {
			t.Errorf("%s: got %q want %q", k, verr.Fields[k], v)
		}
	}

	_, err = ValidateShipping(ShippingDetails{Address: "a", City: "b", PostalCode: "c"})
	if !errors.As(err, &verr) || verr.Fields["shipping_phone"] != "Phone number is required" {
		t.Fatalf("missing phone: %v", err)
	}
}

func TestCheckout_Gateways(t *testing.T) {
	cases := []struct {
		gateway domain.PaymentGateway
		action  PaymentAction
		url     string
	}{
		{"", ActionFormPost, "https://rc-epay.esewa.com.np/api/epay/main/v2/form"},
		{domain.GatewayKhalti, ActionRedirect, "https://test-pay.khalti.com/?pidx="},
		{domain.GatewayFonepay, ActionRedirect, "https://dev-clientapi.fonepay.com/api/merchantRequest?PRN="},
		{domain.GatewayBank, ActionInstructions, "http://shop.test/payment/success?order_id="},
	}
	for _, c := range cases {
		t.Run(string(c.action)+"/"+string(c.gateway), func(t *testing.T) {
			ctx := context.Background()
			e := setup(t)
			lamp := e.backend.AddProduct("Lamp", "1200", 5)
			e.backend.SeedCart("sita", lamp.ID, 2)
			sess := e.login(t, "sita")

			res, err := e.checkout.Start(ctx, sess, CheckoutRequest{Shipping: validShipping(), Gateway: c.gateway})
			if err != nil {
				t.Fatalf("checkout: %v", err)
			}
			if res.Action != c.action {
				t.Fatalf("action %s, want %s", res.Action, c.action)
			}
			if len(res.URL) < len(c.url) || res.URL[:len(c.url)] != c.url {
				t.Fatalf("url %q", res.URL)
			}
			if res.OrderID == 0 || res.TransactionID == "" || res.Quote.Total.String() != "2550" {
				t.Fatalf("result %+v", res)
			}
			if len(e.backend.Cart("sita")) != 1 {
				t.Fatalf("cart must survive until payment is confirmed")
			}
			types := e.events.Types()
			if types[len(types)-1] != events.CheckoutInitiated {
				t.Fatalf("events %v", types)
			}
		})
	}
}

func TestCheckout_EsewaFormParams(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	lamp := e.backend.AddProduct("Lamp", "1200", 5)
	e.backend.SeedCart("sita", lamp.ID, 1)
	sess := e.login(t, "sita")

	res, err := e.checkout.Start(ctx, sess, CheckoutRequest{Shipping: validShipping(), Gateway: domain.GatewayESewa})
	if err != nil {
		t.Fatal(err)
	}
	success, _ := res.Params["success_url"].(string)
	if success != "http://shop.test/payment/success?order_id="+jsonInt(res.OrderID) {
		t.Fatalf("success url %q", success)
	}
	if res.Params["failure_url"] != "http://shop.test/checkout" {
		t.Fatalf("failure url %v", res.Params["failure_url"])
	}
}

func TestCheckout_BankInstructionsAndPending(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	lamp := e.backend.AddProduct("Lamp", "1200", 5)
	e.backend.SeedCart("sita", lamp.ID, 1)
	sess := e.login(t, "sita")

	res, err := e.checkout.Start(ctx, sess, CheckoutRequest{Shipping: validShipping(), Gateway: domain.GatewayBank})
	if err != nil {
		t.Fatal(err)
	}
	var instr map[string]string
	if err := json.Unmarshal(res.Instructions, &instr); err != nil || instr["bank"] != "Nabil Bank" {
		t.Fatalf("instructions %s: %v", res.Instructions, err)
	}
	if res.Message != "Bank instructions generated." {
		t.Fatalf("message %q", res.Message)
	}

	e.backend.SetGatewayReply(domain.GatewayKhalti, gin.H{"status": "queued"})
	res, err = e.checkout.Start(ctx, sess, CheckoutRequest{Shipping: validShipping(), Gateway: domain.GatewayKhalti})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionPending || res.Message != "Payment initialized. Follow the gateway instructions." {
		t.Fatalf("pending result %+v", res)
	}
}

func TestCheckout_Rejections(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	sess := e.login(t, "sita")

	if _, err := e.checkout.Start(ctx, e.session(t), CheckoutRequest{Shipping: validShipping()}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous: %v", err)
	}
	if _, err := e.checkout.Start(ctx, sess, CheckoutRequest{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty shipping: %v", err)
	}
	if _, err := e.checkout.Start(ctx, sess, CheckoutRequest{Shipping: validShipping(), Gateway: "paypal"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("unknown gateway: %v", err)
	}
	if _, err := e.checkout.Start(ctx, sess, CheckoutRequest{Shipping: validShipping()}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("empty cart: %v", err)
	}
}

func TestCheckout_Quote(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	lamp := e.backend.AddProduct("Lamp", "3000", 5)
	e.backend.SeedCart("sita", lamp.ID, 2)
	sess := e.login(t, "sita")

	q, err := e.checkout.Quote(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	if q.Subtotal.String() != "6000" || !q.Shipping.IsZero() {
		t.Fatalf("quote %+v", q)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
