package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
)

// AdminService панель администратора: сводка, пользователи, заказы
type AdminService struct {
	api      *apiclient.Client
	sessions *SessionManager
	log      *zap.Logger
}

func NewAdminService(api *apiclient.Client, sessions *SessionManager, log *zap.Logger) *AdminService {
	return &AdminService{api: api, sessions: sessions, log: log}
}

// AdminStats сводка для дашборда. Проценты изменения фиксированы:
// истории у бэкенда нет.
type AdminStats struct {
	TotalUsers     int64           `json:"totalUsers"`
	TotalProducts  int64           `json:"totalProducts"`
	TotalOrders    int64           `json:"totalOrders"`
	TotalRevenue   decimal.Decimal `json:"totalRevenue"`
	UsersChange    string          `json:"usersChange"`
	ProductsChange string          `json:"productsChange"`
	OrdersChange   string          `json:"ordersChange"`
	RevenueChange  string          `json:"revenueChange"`
}

func (s *AdminService) client(sess *domain.Session) (*apiclient.Client, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	return s.sessions.Bind(s.api, sess), nil
}

func (s *AdminService) Stats(ctx context.Context, sess *domain.Session) (AdminStats, error) {
	client, err := s.client(sess)
	if err != nil {
		return AdminStats{}, err
	}

	var (
		products domain.Page[domain.Product]
		orders   []domain.Order
		users    []domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = client.ListProducts(gctx, apiclient.ProductQuery{})
		return err
	})
	g.Go(func() error {
		var err error
		orders, err = client.ListOrders(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		if users, err = client.ListUsers(gctx); err != nil {
			s.log.Warn("admin stats: users unavailable", zap.Error(err))
			users = nil
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return AdminStats{}, err
	}

	revenue := decimal.Zero
	for _, o := range orders {
		revenue = revenue.Add(o.Total)
	}
	productCount := products.Count
	if productCount == 0 {
		productCount = int64(len(products.Results))
	}
	return AdminStats{
		TotalUsers:     int64(len(users)),
		TotalProducts:  productCount,
		TotalOrders:    int64(len(orders)),
		TotalRevenue:   revenue,
		UsersChange:    "+12%",
		ProductsChange: "+8%",
		OrdersChange:   "+23%",
		RevenueChange:  "+15%",
	}, nil
}

// --- users ---

type UserRole string

const (
	RoleAll      UserRole = "all"
	RoleAdmin    UserRole = "admin"
	RoleStaff    UserRole = "staff"
	RoleCustomer UserRole = "customer"
)

func (r UserRole) matches(u domain.User) bool {
	switch r {
	case RoleAdmin:
		return u.IsAdmin
	case RoleStaff:
		return u.IsStaff && !u.IsAdmin
	case RoleCustomer:
		return u.IsCustomer && !u.IsAdmin
	default:
		return true
	}
}

func userMatches(u domain.User, term string) bool {
	if term == "" {
		return true
	}
	full := strings.ToLower(strings.TrimSpace(u.FirstName + " " + u.LastName))
	return strings.Contains(strings.ToLower(u.Username), term) ||
		strings.Contains(strings.ToLower(u.Email), term) ||
		strings.Contains(full, term)
}

// FilterUsers applies the admin table's search box and role tabs.
func FilterUsers(users []domain.User, search string, role UserRole) []domain.User {
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		if role.matches(u) && userMatches(u, term) {
			out = append(out, u)
		}
	}
	return out
}

func (s *AdminService) ListUsers(ctx context.Context, sess *domain.Session, search string, role UserRole) ([]domain.User, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	users, err := client.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return FilterUsers(users, search, role), nil
}

type UserStats struct {
	Total    int `json:"total"`
	Admin    int `json:"admin"`
	Staff    int `json:"staff"`
	Customer int `json:"customer"`
}

// CountUsers puts every user in one bucket: admin wins over staff, staff over customer.
func CountUsers(users []domain.User) UserStats {
	st := UserStats{Total: len(users)}
	for _, u := range users {
		if u.IsAdmin {
			st.Admin++
		} else if u.IsStaff {
			st.Staff++
		} else if u.IsCustomer {
			st.Customer++
		}
	}
	return st
}

func (s *AdminService) GetUser(ctx context.Context, sess *domain.Session, id int64) (*domain.User, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	return client.GetUser(ctx, id)
}

func (s *AdminService) DeleteUser(ctx context.Context, sess *domain.Session, id int64) error {
	client, err := s.client(sess)
	if err != nil {
		return err
	}
	if id <= 0 {
		return ErrInvalidInput
	}
	return client.DeleteUser(ctx, id)
}

// UserForm форма создания и редактирования пользователя
type UserForm struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	IsCustomer  bool   `json:"is_customer"`
	IsAdmin     bool   `json:"is_admin"`
	IsStaff     bool   `json:"is_staff"`
	IsSuperuser bool   `json:"is_superuser"`
}

// BuildUserPayload validates the form. The password is required only when
// requirePassword is set; names are omitted when blank and role flags are
// always sent.
func BuildUserPayload(f UserForm, requirePassword bool) (apiclient.UserPayload, error) {
	var verr ValidationError
	username := strings.TrimSpace(f.Username)
	email := strings.TrimSpace(f.Email)
	password := strings.TrimSpace(f.Password)
	if username == "" {
		verr.add("username", "Username is required")
	}
	if email == "" {
		verr.add("email", "Email is required")
	}
	if (requirePassword || password != "") && len(password) < 6 {
		verr.add("password", "Password must be at least 6 characters")
	}
	if err := verr.orNil(); err != nil {
		return apiclient.UserPayload{}, err
	}

	p := apiclient.UserPayload{
		Username:    &username,
		Email:       &email,
		IsCustomer:  &f.IsCustomer,
		IsAdmin:     &f.IsAdmin,
		IsStaff:     &f.IsStaff,
		IsSuperuser: &f.IsSuperuser,
	}
	if password != "" {
		p.Password = &password
	}
	if first := strings.TrimSpace(f.FirstName); first != "" {
		p.FirstName = &first
	}
	if last := strings.TrimSpace(f.LastName); last != "" {
		p.LastName = &last
	}
	return p, nil
}

func (s *AdminService) CreateUser(ctx context.Context, sess *domain.Session, f UserForm) (*domain.User, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	p, err := BuildUserPayload(f, true)
	if err != nil {
		return nil, err
	}
	return client.CreateUser(ctx, p)
}

func (s *AdminService) UpdateUser(ctx context.Context, sess *domain.Session, id int64, f UserForm) (*domain.User, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	p, err := BuildUserPayload(f, false)
	if err != nil {
		return nil, err
	}
	return client.UpdateUser(ctx, id, p)
}

// --- orders ---

// FilterOrders keeps orders with the given status ("" or "all" keeps every
// status) whose id or customer name contains search, newest first.
func FilterOrders(orders []domain.Order, status, search string) []domain.Order {
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if status != "" && status != "all" && string(o.Status) != status {
			continue
		}
		if term != "" && !orderMatches(o, term) {
			continue
		}
		out = append(out, o)
	}
	sortNewestFirst(out)
	return out
}

func orderMatches(o domain.Order, term string) bool {
	if strings.Contains(strconv.FormatInt(o.ID, 10), term) {
		return true
	}
	return o.UserDetails != nil && strings.Contains(strings.ToLower(o.UserDetails.Username), term)
}

func sortNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func (s *AdminService) ListOrders(ctx context.Context, sess *domain.Session, status, search string) ([]domain.Order, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	orders, err := retryOnce(ctx, client.ListOrders)
	if err != nil {
		return nil, err
	}
	return FilterOrders(orders, status, search), nil
}

func (s *AdminService) RecentOrders(ctx context.Context, sess *domain.Session, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 5
	}
	orders, err := s.ListOrders(ctx, sess, "all", "")
	if err != nil {
		return nil, err
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

type OrderStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Paid    int `json:"paid"`
	Shipped int `json:"shipped"`
}

func CountOrders(orders []domain.Order) OrderStats {
	st := OrderStats{Total: len(orders)}
	for _, o := range orders {
		switch o.Status {
		case domain.OrderStatusPending:
			st.Pending++
		case domain.OrderStatusPaid:
			st.Paid++
		case domain.OrderStatusShipped:
			st.Shipped++
		}
	}
	return st
}

// ManualOrderForm заказ, заведённый администратором вручную
type ManualOrderForm struct {
	UserID             int64              `json:"user_id"`
	Items              []OrderLine        `json:"items"`
	Status             domain.OrderStatus `json:"status"`
	IsPaid             bool               `json:"is_paid"`
	TransactionID      string             `json:"transaction_id"`
	ShippingAddress    string             `json:"shipping_address"`
	ShippingCity       string             `json:"shipping_city"`
	ShippingPostalCode string             `json:"shipping_postal_code"`
	ShippingCountry    string             `json:"shipping_country"`
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func BuildManualOrderPayload(f ManualOrderForm) (apiclient.AdminOrderPayload, error) {
	var verr ValidationError
	if f.UserID <= 0 {
		verr.add("user", "Enter a valid user ID")
	}
	items := make([]apiclient.OrderItemInput, 0, len(f.Items))
	for _, l := range f.Items {
		if l.ProductID > 0 && l.Quantity > 0 {
			items = append(items, apiclient.OrderItemInput{Product: l.ProductID, Quantity: l.Quantity})
		}
	}
	if len(items) == 0 {
		verr.add("items", "Add at least one valid product and quantity")
	}
	status := f.Status
	if status == "" {
		status = domain.OrderStatusPending
	}
	if !status.Valid() {
		verr.add("status", "Choose pending, paid or shipped")
	}
	if err := verr.orNil(); err != nil {
		return apiclient.AdminOrderPayload{}, err
	}

	user, paid := f.UserID, f.IsPaid
	return apiclient.AdminOrderPayload{
		User:               &user,
		Status:             &status,
		IsPaid:             &paid,
		TransactionID:      optional(f.TransactionID),
		ShippingAddress:    optional(f.ShippingAddress),
		ShippingCity:       optional(f.ShippingCity),
		ShippingPostalCode: optional(f.ShippingPostalCode),
		ShippingCountry:    optional(f.ShippingCountry),
		ItemsData:          items,
	}, nil
}

func (s *AdminService) CreateOrder(ctx context.Context, sess *domain.Session, f ManualOrderForm) (*domain.Order, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	p, err := BuildManualOrderPayload(f)
	if err != nil {
		return nil, err
	}
	return client.AdminCreateOrder(ctx, p)
}

// UpdateOrderStatus returns the order untouched when it already has status.
func (s *AdminService) UpdateOrderStatus(ctx context.Context, sess *domain.Session, id int64, status domain.OrderStatus) (*domain.Order, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	o, err := client.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}
	return client.AdminUpdateOrder(ctx, id, apiclient.AdminOrderPayload{Status: &status})
}

func (s *AdminService) TogglePaid(ctx context.Context, sess *domain.Session, id int64) (*domain.Order, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, ErrInvalidInput
	}
	o, err := client.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	paid := !o.IsPaid
	return client.AdminUpdateOrder(ctx, id, apiclient.AdminOrderPayload{IsPaid: &paid})
}

func (s *AdminService) DeleteOrder(ctx context.Context, sess *domain.Session, id int64) error {
	client, err := s.client(sess)
	if err != nil {
		return err
	}
	if id <= 0 {
		return ErrInvalidInput
	}
	return client.AdminDeleteOrder(ctx, id)
}

var exportHeaders = []string{"ID", "Customer", "Items", "Total", "Status", "Paid", "Transaction", "Created"}

// ExportOrders writes every order, newest first, as an xlsx workbook.
func (s *AdminService) ExportOrders(ctx context.Context, sess *domain.Session, w io.Writer) error {
	orders, err := s.ListOrders(ctx, sess, "all", "")
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetString(h)
	}
	for _, o := range orders {
		row := sheet.AddRow()
		row.AddCell().SetInt64(o.ID)
		row.AddCell().SetString(customerName(o))
		row.AddCell().SetString(o.ItemsSummary())
		row.AddCell().SetString(o.Total.StringFixed(2))
		row.AddCell().SetString(string(o.Status))
		row.AddCell().SetString(yesNo(o.Paid()))
		row.AddCell().SetString(o.TransactionID)
		row.AddCell().SetString(o.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func customerName(o domain.Order) string {
	if o.UserDetails != nil && o.UserDetails.Username != "" {
		return o.UserDetails.Username
	}
	return "User " + strconv.FormatInt(o.User, 10)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// --- catalog and payments ---

func (s *AdminService) ListProducts(ctx context.Context, sess *domain.Session, search string) ([]domain.Product, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	page, err := client.ListProducts(ctx, apiclient.ProductQuery{Search: strings.TrimSpace(search)})
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (s *AdminService) ListPayments(ctx context.Context, sess *domain.Session) ([]domain.Payment, error) {
	client, err := s.client(sess)
	if err != nil {
		return nil, err
	}
	return retryOnce(ctx, client.ListPayments)
}
