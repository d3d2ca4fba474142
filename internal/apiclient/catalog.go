package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"evercart/internal/domain"
)

// ProductQuery параметры списка товаров; нулевые значения не передаются
type ProductQuery struct {
	Category int64
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Ordering string
	Page     int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Category > 0 {
		v.Set("category", strconv.FormatInt(q.Category, 10))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.MinPrice != nil {
		v.Set("min_price", q.MinPrice.String())
	}
	if q.MaxPrice != nil {
		v.Set("max_price", q.MaxPrice.String())
	}
	if q.Ordering != "" {
		v.Set("ordering", q.Ordering)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

type ProductImageInput struct {
	Image     string `json:"image"`
	AltText   string `json:"alt_text,omitempty"`
	IsPrimary bool   `json:"is_primary,omitempty"`
}

// ProductPayload тело создания и изменения товара
type ProductPayload struct {
	Title       *string             `json:"title,omitempty"`
	Slug        *string             `json:"slug,omitempty"`
	Description *string             `json:"description,omitempty"`
	Price       *decimal.Decimal    `json:"price,omitempty"`
	Inventory   *int64              `json:"inventory,omitempty"`
	Category    *int64              `json:"category,omitempty"`
	Images      []ProductImageInput `json:"images,omitempty"`
}

type CategoryPayload struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func productPath(id int64) string {
	return "api/products/products/" + strconv.FormatInt(id, 10) + "/"
}

func categoryPath(id int64) string {
	return "api/products/categories/" + strconv.FormatInt(id, 10) + "/"
}

// ListProducts keeps the page metadata when the backend paginates.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) (domain.Page[domain.Product], error) {
	return getPage[domain.Product](ctx, c, "api/products/products/", q.values())
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, request{method: http.MethodGet, path: productPath(id)}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreateProduct(ctx context.Context, in ProductPayload) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, request{method: http.MethodPost, path: "api/products/products/", body: in}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductPayload) (*domain.Product, error) {
	var p domain.Product
	if err := c.do(ctx, request{method: http.MethodPatch, path: productPath(id), body: in}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: productPath(id)}, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return getList[domain.Category](ctx, c, "api/products/categories/")
}

func (c *Client) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	var cat domain.Category
	if err := c.do(ctx, request{method: http.MethodGet, path: categoryPath(id)}, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) CreateCategory(ctx context.Context, in CategoryPayload) (*domain.Category, error) {
	var cat domain.Category
	if err := c.do(ctx, request{method: http.MethodPost, path: "api/products/categories/", body: in}, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, in CategoryPayload) (*domain.Category, error) {
	var cat domain.Category
	if err := c.do(ctx, request{method: http.MethodPatch, path: categoryPath(id), body: in}, &cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: categoryPath(id)}, nil)
}
