package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
)

// CatalogService товары и категории витрины и админки
type CatalogService struct {
	api      *apiclient.Client
	sessions *SessionManager
}

func NewCatalogService(api *apiclient.Client, sessions *SessionManager) *CatalogService {
	return &CatalogService{api: api, sessions: sessions}
}

type ProductFilter struct {
	Category int64
	Search   string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Ordering string
	Page     int
}

var orderings = map[string]bool{"": true, "price": true, "-price": true, "name": true, "-created_at": true}

func (f ProductFilter) validate() error {
	if !orderings[f.Ordering] {
		return fmt.Errorf("%w: ordering must be one of price, -price, name, -created_at", ErrInvalidInput)
	}
	if f.MinPrice != nil && f.MinPrice.IsNegative() || f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return fmt.Errorf("%w: price bounds must not be negative", ErrInvalidInput)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return fmt.Errorf("%w: min_price is greater than max_price", ErrInvalidInput)
	}
	if f.Category < 0 || f.Page < 0 {
		return ErrInvalidInput
	}
	return nil
}

func (s *CatalogService) ListProducts(ctx context.Context, sess *domain.Session, f ProductFilter) (domain.Page[domain.Product], error) {
	if err := f.validate(); err != nil {
		return domain.Page[domain.Product]{}, err
	}
	return s.sessions.Bind(s.api, sess).ListProducts(ctx, apiclient.ProductQuery{
		Category: f.Category,
		Search:   strings.TrimSpace(f.Search),
		MinPrice: f.MinPrice,
		MaxPrice: f.MaxPrice,
		Ordering: f.Ordering,
		Page:     f.Page,
	})
}

func (s *CatalogService) GetProduct(ctx context.Context, sess *domain.Session, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.Bind(s.api, sess).GetProduct(ctx, id)
}

func (s *CatalogService) ListCategories(ctx context.Context, sess *domain.Session) ([]domain.Category, error) {
	return s.sessions.Bind(s.api, sess).ListCategories(ctx)
}

func (s *CatalogService) GetCategory(ctx context.Context, sess *domain.Session, id int64) (*domain.Category, error) {
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return s.sessions.Bind(s.api, sess).GetCategory(ctx, id)
}

// ProductForm поля формы товара в админке
type ProductForm struct {
	Title       string                        `json:"title"`
	Slug        string                        `json:"slug"`
	Description string                        `json:"description"`
	Price       decimal.Decimal               `json:"price"`
	Inventory   int64                         `json:"inventory"`
	Category    *int64                        `json:"category"`
	Images      []apiclient.ProductImageInput `json:"images"`
}

func (f ProductForm) payload() (apiclient.ProductPayload, error) {
	verr := &ValidationError{}
	title := strings.TrimSpace(f.Title)
	if title == "" {
		verr.add("title", "title is required")
	}
	if f.Price.IsNegative() {
		verr.add("price", "price must not be negative")
	}
	if f.Inventory < 0 {
		verr.add("inventory", "inventory must not be negative")
	}
	if err := verr.orNil(); err != nil {
		return apiclient.ProductPayload{}, err
	}
	slug := strings.TrimSpace(f.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	desc := strings.TrimSpace(f.Description)
	price, inv := f.Price, f.Inventory
	return apiclient.ProductPayload{
		Title:       &title,
		Slug:        &slug,
		Description: &desc,
		Price:       &price,
		Inventory:   &inv,
		Category:    f.Category,
		Images:      f.Images,
	}, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, sess *domain.Session, f ProductForm) (*domain.Product, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	p, err := f.payload()
	if err != nil {
		return nil, err
	}
	return s.sessions.Bind(s.api, sess).CreateProduct(ctx, p)
}

func (s *CatalogService) UpdateProduct(ctx context.Context, sess *domain.Session, id int64, f ProductForm) (*domain.Product, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	p, err := f.payload()
	if err != nil {
		return nil, err
	}
	return s.sessions.Bind(s.api, sess).UpdateProduct(ctx, id, p)
}

func (s *CatalogService) DeleteProduct(ctx context.Context, sess *domain.Session, id int64) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.sessions.Bind(s.api, sess).DeleteProduct(ctx, id)
}

type CategoryForm struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (f CategoryForm) payload() (apiclient.CategoryPayload, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return apiclient.CategoryPayload{}, &ValidationError{Fields: map[string]string{"name": "name is required"}}
	}
	desc := strings.TrimSpace(f.Description)
	return apiclient.CategoryPayload{Name: &name, Description: &desc}, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, sess *domain.Session, f CategoryForm) (*domain.Category, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	p, err := f.payload()
	if err != nil {
		return nil, err
	}
	return s.sessions.Bind(s.api, sess).CreateCategory(ctx, p)
}

func (s *CatalogService) UpdateCategory(ctx context.Context, sess *domain.Session, id int64, f CategoryForm) (*domain.Category, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	p, err := f.payload()
	if err != nil {
		return nil, err
	}
	return s.sessions.Bind(s.api, sess).UpdateCategory(ctx, id, p)
}

func (s *CatalogService) DeleteCategory(ctx context.Context, sess *domain.Session, id int64) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	if id <= 0 {
		return ErrInvalidInput
	}
	return s.sessions.Bind(s.api, sess).DeleteCategory(ctx, id)
}

var (
	slugStrip  = regexp.MustCompile(`[^\w\s-]`)
	slugSpaces = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// Slugify turns a title into a URL slug: "Hello, World!" -> "hello-world".
// Edge whitespace has already become a dash by the final trim, so callers
// pass trimmed text.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.TrimSpace(s)
}
