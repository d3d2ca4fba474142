package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// CartSnapshot локальное зеркало серверной корзины
type CartSnapshot struct {
	Items []CartItem `json:"items"`
}

func (c *CartSnapshot) SetItems(items []CartItem) {
	c.Items = append([]CartItem(nil), items...)
}

// AddItem merges by product: an existing line for the same product grows
// by item.Quantity, otherwise the item is appended.
func (c *CartSnapshot) AddItem(item CartItem) {
	for i := range c.Items {
		if c.Items[i].Product == item.Product {
			c.Items[i].Quantity += item.Quantity
			return
		}
	}
	c.Items = append(c.Items, item)
}

func (c *CartSnapshot) UpdateItem(id, quantity int64) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			c.Items[i].Quantity = quantity
		}
	}
}

func (c *CartSnapshot) RemoveItem(id int64) {
	out := c.Items[:0]
	for _, it := range c.Items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	c.Items = out
}

func (c *CartSnapshot) Clear() { c.Items = nil }

func (c CartSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c CartSnapshot) ItemCount() int64 {
	var n int64
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Session серверная сессия браузера: токены, пользователь, зеркало корзины
type Session struct {
	ID              string       `json:"id"`
	AccessToken     string       `json:"-"`
	RefreshToken    string       `json:"-"`
	User            *User        `json:"user,omitempty"`
	IsAdmin         bool         `json:"is_admin"`
	Cart            CartSnapshot `json:"cart"`
	ConfirmedOrders []int64      `json:"confirmed_orders,omitempty"` // заказы с уже подтверждённой оплатой
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

func (s *Session) Authenticated() bool { return s != nil && s.AccessToken != "" }

// ClearAuth drops everything tied to the signed-in user.
func (s *Session) ClearAuth() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.User = nil
	s.IsAdmin = false
	s.Cart.Clear()
	s.ConfirmedOrders = nil
}

const maxConfirmedOrders = 20

// MarkConfirmed records orderID and reports whether it was not recorded yet.
// Only the latest orders are kept.
func (s *Session) MarkConfirmed(orderID int64) bool {
	if slices.Contains(s.ConfirmedOrders, orderID) {
		return false
	}
	s.ConfirmedOrders = append(s.ConfirmedOrders, orderID)
	if n := len(s.ConfirmedOrders); n > maxConfirmedOrders {
		s.ConfirmedOrders = s.ConfirmedOrders[n-maxConfirmedOrders:]
	}
	return true
}

// Clone returns a deep enough copy for callers outside the store lock.
func (s Session) Clone() Session {
	cp := s
	if s.User != nil {
		u := *s.User
		cp.User = &u
	}
	cp.Cart.Items = append([]CartItem(nil), s.Cart.Items...)
	cp.ConfirmedOrders = append([]int64(nil), s.ConfirmedOrders...)
	return cp
}
