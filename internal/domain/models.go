package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// User учётная запись покупателя или администратора
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsCustomer  bool      `json:"is_customer"`
	IsAdmin     bool      `json:"is_admin"`
	IsStaff     bool      `json:"is_staff"`
	IsSuperuser bool      `json:"is_superuser"`
	DateJoined  time.Time `json:"date_joined"`
}

// HasAdminAccess reports whether the user may enter the admin area.
func (u User) HasAdminAccess() bool {
	return u.IsAdmin || u.IsStaff || u.IsSuperuser
}

func (u User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full != "" {
		return full
	}
	return u.Username
}

// Category категория каталога
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProductImage struct {
	ID      int64  `json:"id"`
	Image   string `json:"image"`
	AltText string `json:"alt_text,omitempty"`
}

// Product товар витрины. Category приходит то числом, то строкой,
// поэтому хранится как есть.
type Product struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Name            string          `json:"name,omitempty"`
	Slug            string          `json:"slug"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Inventory       int64           `json:"inventory"`
	StockQuantity   *int64          `json:"stock_quantity,omitempty"`
	SKU             string          `json:"sku,omitempty"`
	Category        json.RawMessage `json:"category,omitempty"`
	CategoryDetails *Category       `json:"category_details,omitempty"`
	Images          []ProductImage  `json:"images"`
	Image           string          `json:"image,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

func (p Product) DisplayName() string {
	switch {
	case p.Title != "":
		return p.Title
	case p.Name != "":
		return p.Name
	default:
		return "Product #" + strconv.FormatInt(p.ID, 10)
	}
}

// CartItem позиция корзины на сервере
type CartItem struct {
	ID             int64     `json:"id"`
	User           int64     `json:"user"`
	Product        int64     `json:"product"`
	ProductDetails *Product  `json:"product_details,omitempty"`
	Quantity       int64     `json:"quantity"`
	AddedAt        time.Time `json:"added_at"`
}

// LineTotal is price × quantity; an item without product details counts as zero.
func (i CartItem) LineTotal() decimal.Decimal {
	if i.ProductDetails == nil {
		return decimal.Zero
	}
	return i.ProductDetails.Price.Mul(decimal.NewFromInt(i.Quantity))
}

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusShipped OrderStatus = "shipped"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped:
		return true
	}
	return false
}

// OrderItem позиция в заказе
type OrderItem struct {
	ID             int64           `json:"id"`
	Product        int64           `json:"product"`
	ProductDetails *Product        `json:"product_details,omitempty"`
	ProductID      int64           `json:"product_id,omitempty"`
	Quantity       int64           `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
}

// Order сущность заказа
type Order struct {
	ID                 int64           `json:"id"`
	User               int64           `json:"user"`
	UserDetails        *User           `json:"user_details,omitempty"`
	Items              []OrderItem     `json:"items"`
	Total              decimal.Decimal `json:"total"`
	Status             OrderStatus     `json:"status"`
	IsPaid             bool            `json:"is_paid"`
	TransactionID      string          `json:"transaction_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	ShippingAddress    string          `json:"shipping_address,omitempty"`
	ShippingCity       string          `json:"shipping_city,omitempty"`
	ShippingPostalCode string          `json:"shipping_postal_code,omitempty"`
	ShippingCountry    string          `json:"shipping_country,omitempty"`
	ShippingPhone      string          `json:"shipping_phone,omitempty"`
	PaymentDetails     *Payment        `json:"payment_details,omitempty"`
}

func (o Order) Paid() bool {
	return o.Status == OrderStatusPaid || o.IsPaid
}

// ItemsSummary lists product names for admin tables.
func (o Order) ItemsSummary() string {
	if len(o.Items) == 0 {
		return "No items"
	}
	names := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		if it.ProductDetails != nil && (it.ProductDetails.Title != "" || it.ProductDetails.Name != "") {
			names = append(names, it.ProductDetails.DisplayName())
			continue
		}
		id := it.ProductID
		if id == 0 {
			id = it.Product
		}
		names = append(names, "Product #"+strconv.FormatInt(id, 10))
	}
	return strings.Join(names, ", ")
}

type PaymentGateway string

const (
	GatewayESewa   PaymentGateway = "esewa"
	GatewayKhalti  PaymentGateway = "khalti"
	GatewayFonepay PaymentGateway = "fonepay"
	GatewayBank    PaymentGateway = "bank"
)

func (g PaymentGateway) Valid() bool {
	switch g {
	case GatewayESewa, GatewayKhalti, GatewayFonepay, GatewayBank:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Payment платёж по заказу
type Payment struct {
	ID            int64           `json:"id"`
	Order         int64           `json:"order"`
	OrderDetails  *Order          `json:"order_details,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Gateway       PaymentGateway  `json:"gateway"`
	Method        PaymentGateway  `json:"method,omitempty"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Page постраничный ответ бэкенда
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
