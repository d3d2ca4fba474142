package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"evercart/internal/apiclient"
)

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Hello, World!", "hello-world"},
		{"Desk   Lamp", "desk-lamp"},
		{"snake_case stays", "snake_case-stays"},
		{"--Already--dashed--", "-already-dashed-"},
		{" padded ", "-padded-"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Slugify(c.in); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestListProducts_Filters(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	e.backend.AddProduct("Cheap Lamp", "100", 1)
	e.backend.AddProduct("Fancy Lamp", "900", 1)
	e.backend.AddProduct("Desk", "500", 1)
	sess := e.session(t)

	floor := decimal.NewFromInt(200)
	page, err := e.catalog.ListProducts(ctx, sess, ProductFilter{Search: " lamp ", MinPrice: &floor})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].Title != "Fancy Lamp" {
		t.Fatalf("results %+v", page.Results)
	}

	page, err = e.catalog.ListProducts(ctx, sess, ProductFilter{Ordering: "-price"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Results[0].Title != "Fancy Lamp" || page.Count != 3 {
		t.Fatalf("ordering ignored: %+v", page.Results)
	}
}

func TestListProducts_RejectsBadFilter(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	sess := e.session(t)
	lo, hi := decimal.NewFromInt(10), decimal.NewFromInt(5)
	neg := decimal.NewFromInt(-1)

	bad := []ProductFilter{
		{Ordering: "popularity"},
		{MinPrice: &lo, MaxPrice: &hi},
		{MinPrice: &neg},
		{Page: -1},
	}
	for _, f := range bad {
		if _, err := e.catalog.ListProducts(ctx, sess, f); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("filter %+v: expected invalid input, got %v", f, err)
		}
	}
}

func TestProductAdmin(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	cat := e.backend.AddCategory("Lighting")

	customer := e.login(t, "sita")
	if _, err := e.catalog.CreateProduct(ctx, customer, ProductForm{Title: "Lamp"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer create: %v", err)
	}

	admin := e.loginAdmin(t)
	if _, err := e.catalog.CreateProduct(ctx, admin, ProductForm{Price: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("invalid form: %v", err)
	}

	p, err := e.catalog.CreateProduct(ctx, admin, ProductForm{
		Title:    "  Brass Desk Lamp!  ",
		Price:    decimal.RequireFromString("2499.50"),
		Category: &cat.ID,
		Images:   []apiclient.ProductImageInput{{Image: "https://cdn.test/lamp.jpg"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Slug != "brass-desk-lamp" || p.CategoryDetails == nil || len(p.Images) != 1 {
		t.Fatalf("created %+v", p)
	}

	p, err = e.catalog.UpdateProduct(ctx, admin, p.ID, ProductForm{Title: "Brass Lamp", Slug: "brass", Price: p.Price, Inventory: 3})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Slug != "brass" || p.Inventory != 3 {
		t.Fatalf("updated %+v", p)
	}

	if err := e.catalog.DeleteProduct(ctx, admin, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.catalog.GetProduct(ctx, admin, p.ID); !errors.Is(err, apiclient.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCategoryAdmin(t *testing.T) {
	ctx := context.Background()
	e := setup(t)
	admin := e.loginAdmin(t)

	if _, err := e.catalog.CreateCategory(ctx, admin, CategoryForm{Name: "  "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank name: %v", err)
	}
	cat, err := e.catalog.CreateCategory(ctx, admin, CategoryForm{Name: "Garden", Description: "Outdoor"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.catalog.UpdateCategory(ctx, admin, cat.ID, CategoryForm{Name: "Garden & Patio"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := e.catalog.GetCategory(ctx, e.session(t), cat.ID)
	if err != nil || got.Name != "Garden & Patio" {
		t.Fatalf("get: %+v %v", got, err)
	}
	list, err := e.catalog.ListCategories(ctx, e.session(t))
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	if err := e.catalog.DeleteCategory(ctx, admin, cat.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
