package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"evercart/internal/apiclient"
)

func TestOrders_SubmitListCancel(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	lamp := e.backend.AddProduct("Lamp", "250", 5)
	desk := e.backend.AddProduct("Desk", "1000", 5)
	sess := e.login(t, "sita")

	resp, err := e.orders.Submit(ctx, sess, SubmitOrder{
		Items: []OrderLine{
			{ProductID: lamp.ID, Quantity: 2},
			{ProductID: 0, Quantity: 9},
			{ProductID: desk.ID, Quantity: 0},
		},
		Shipping: validShipping(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Total.String() != "1500" || resp.TransactionID == "" {
		t.Fatalf("submit response %+v", resp)
	}
	stored, ok := e.backend.Order(resp.OrderID)
	if !ok || len(stored.Items) != 2 || stored.ShippingCity != "Pokhara" {
		t.Fatalf("stored order %+v", stored)
	}

	list, err := e.orders.List(ctx, sess)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	got, err := e.orders.Get(ctx, sess, resp.OrderID)
	if err != nil || got.ID != resp.OrderID {
		t.Fatalf("get: %v %v", got, err)
	}

	if err := e.orders.Cancel(ctx, sess, resp.OrderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok := e.backend.Order(resp.OrderID); ok {
		t.Fatalf("order should be gone")
	}
}

func TestOrders_SubmitWithoutValidItems(t *testing.T) {
	e := setup(t)
	sess := e.login(t, "sita")
	_, err := e.orders.Submit(context.Background(), sess, SubmitOrder{Items: []OrderLine{{ProductID: -1, Quantity: 1}}})
	if !errors.Is(err, ErrNoValidItems) {
		t.Fatalf("expected no valid items, got %v", err)
	}
}

func TestOrders_CancelPaidIsRejected(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	lamp := e.backend.AddProduct("Lamp", "250", 5)
	sess := e.login(t, "sita")
	resp, err := e.orders.Submit(ctx, sess, SubmitOrder{Items: []OrderLine{{ProductID: lamp.ID, Quantity: 1}}, Shipping: validShipping()})
	if err != nil {
		t.Fatal(err)
	}
	e.backend.MarkPaid(resp.OrderID)

	var apiErr *apiclient.APIError
	if err := e.orders.Cancel(ctx, sess, resp.OrderID); !errors.As(err, &apiErr) || apiErr.Message() != "Paid orders cannot be cancelled." {
		t.Fatalf("expected backend refusal, got %v", err)
	}
}

func TestOrders_AnonymousAndForeign(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	e.backend.AddUser("ram", "secret123", false)
	lamp := e.backend.AddProduct("Lamp", "250", 5)

	list, err := e.orders.List(ctx, e.session(t))
	if err != nil || len(list) != 0 {
		t.Fatalf("anonymous list: %v %v", list, err)
	}
	if _, err := e.orders.Get(ctx, e.session(t), 1); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous get: %v", err)
	}

	sita := e.login(t, "sita")
	resp, err := e.orders.Submit(ctx, sita, SubmitOrder{Items: []OrderLine{{ProductID: lamp.ID, Quantity: 1}}})
	if err != nil {
		t.Fatal(err)
	}
	ram := e.login(t, "ram")
	if _, err := e.orders.Get(ctx, ram, resp.OrderID); !errors.Is(err, apiclient.ErrNotFound) {
		t.Fatalf("foreign order: %v", err)
	}
}

func TestOrders_ListRetriesOnce(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	sess := e.login(t, "sita")
	e.backend.Fail(http.MethodGet, "/api/orders/orders/", http.StatusServiceUnavailable, 1)

	if _, err := e.orders.List(ctx, sess); err != nil {
		t.Fatalf("list should succeed on retry: %v", err)
	}
	if hits := e.backend.Hits(http.MethodGet, "/api/orders/orders/"); hits != 2 {
		t.Fatalf("hits %d", hits)
	}
}

func TestOrders_CreateFromCart(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	lamp := e.backend.AddProduct("Lamp", "250", 5)
	e.backend.SeedCart("sita", lamp.ID, 3)
	sess := e.login(t, "sita")
	if _, err := e.cart.Get(ctx, sess); err != nil {
		t.Fatal(err)
	}

	if _, err := e.orders.CreateFromCart(ctx, sess, ShippingDetails{City: "Pokhara"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if e.backend.Hits(http.MethodPost, "/api/orders/create-from-cart/") != 0 {
		t.Fatalf("invalid shipping must not reach the backend")
	}

	o, err := e.orders.CreateFromCart(ctx, sess, validShipping())
	if err != nil {
		t.Fatalf("create from cart: %v", err)
	}
	if o.Total.String() != "750" || len(sess.Cart.Items) != 0 || len(e.backend.Cart("sita")) != 0 {
		t.Fatalf("order %+v mirror %+v", o, sess.Cart.Items)
	}
}
