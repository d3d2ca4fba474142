package fakebackend

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"evercart/internal/apiclient"
	"evercart/internal/domain"
)

func mustDecimal(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- auth ---

func (b *Backend) login(admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in apiclient.Credentials
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		acc, ok := b.accounts[in.Username]
		if !ok || acc.password != in.Password {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "No active account found with the given credentials"})
			return
		}
		if admin {
			b.lastCSRF = c.GetHeader("X-CSRFToken")
			if !acc.user.HasAdminAccess() {
				c.JSON(http.StatusForbidden, gin.H{"detail": "You do not have admin access."})
				return
			}
		}
		resp := gin.H{
			"access":  mint(acc.user.Username, "access", b.accessTTL),
			"refresh": mint(acc.user.Username, "refresh", 24*time.Hour),
		}
		if !b.omitLoginUser {
			resp["user"] = acc.user
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (b *Backend) register(c *gin.Context) {
	var in apiclient.RegisterRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fields := gin.H{}
	if in.Username == "" {
		fields["username"] = []string{"This field is required."}
	} else if _, taken := b.accounts[in.Username]; taken {
		fields["username"] = []string{"A user with that username already exists."}
	}
	if in.Email == "" {
		fields["email"] = []string{"This field is required."}
	}
	if len(in.Password) < 6 {
		fields["password"] = []string{"Ensure this field has at least 6 characters."}
	}
	if len(fields) > 0 {
		c.JSON(http.StatusBadRequest, fields)
		return
	}
	b.nextID++
	u := domain.User{
		ID: b.nextID, Username: in.Username, Email: in.Email,
		FirstName: in.FirstName, LastName: in.LastName,
		IsCustomer: true, DateJoined: time.Now().UTC(),
	}
	b.accounts[u.Username] = &account{user: u, password: in.Password}
	c.JSON(http.StatusCreated, u)
}

func (b *Backend) refresh(admin bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in struct {
			Refresh string `json:"refresh"`
		}
		_ = c.ShouldBindJSON(&in)
		username, err := parse(in.Refresh, "refresh")
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired", "code": "token_not_valid"})
			return
		}
		b.mu.Lock()
		acc, ok := b.accounts[username]
		ttl := b.accessTTL
		b.mu.Unlock()
		if !ok || (admin && !acc.user.HasAdminAccess()) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token is invalid or expired"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"access": mint(username, "access", ttl)})
	}
}

func (b *Backend) profile(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, b.accounts[current(c).Username].user)
}

func (b *Backend) updateProfile(c *gin.Context) {
	var in apiclient.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accounts[current(c).Username]
	if in.FirstName != nil {
		acc.user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		acc.user.LastName = *in.LastName
	}
	if in.Email != nil {
		acc.user.Email = *in.Email
	}
	c.JSON(http.StatusOK, acc.user)
}

// --- users ---

func (b *Backend) listUsers(c *gin.Context) {
	b.mu.Lock()
	users := make([]domain.User, 0, len(b.accounts))
	for _, acc := range b.accounts {
		users = append(users, acc.user)
	}
	paginate := b.paginate
	b.mu.Unlock()
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	writeList(c, paginate, users)
}

func (b *Backend) getUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accountByIDLocked(id)
	if acc == nil {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, acc.user)
}

func applyUser(u *domain.User, in apiclient.UserPayload) {
	if in.Username != nil {
		u.Username = *in.Username
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.IsCustomer != nil {
		u.IsCustomer = *in.IsCustomer
	}
	if in.IsAdmin != nil {
		u.IsAdmin = *in.IsAdmin
	}
	if in.IsStaff != nil {
		u.IsStaff = *in.IsStaff
	}
	if in.IsSuperuser != nil {
		u.IsSuperuser = *in.IsSuperuser
	}
}

func (b *Backend) createUser(c *gin.Context) {
	var in apiclient.UserPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	if in.Username == nil || *in.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"username": []string{"This field is required."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, taken := b.accounts[*in.Username]; taken {
		c.JSON(http.StatusBadRequest, gin.H{"username": []string{"A user with that username already exists."}})
		return
	}
	b.nextID++
	u := domain.User{ID: b.nextID, DateJoined: time.Now().UTC()}
	applyUser(&u, in)
	pw := ""
	if in.Password != nil {
		pw = *in.Password
	}
	b.accounts[u.Username] = &account{user: u, password: pw}
	c.JSON(http.StatusCreated, u)
}

func (b *Backend) updateUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in apiclient.UserPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accountByIDLocked(id)
	if acc == nil {
		notFound(c)
		return
	}
	old := acc.user.Username
	applyUser(&acc.user, in)
	if in.Password != nil {
		acc.password = *in.Password
	}
	if acc.user.Username != old {
		delete(b.accounts, old)
		b.accounts[acc.user.Username] = acc
	}
	c.JSON(http.StatusOK, acc.user)
}

func (b *Backend) deleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.accountByIDLocked(id)
	if acc == nil {
		notFound(c)
		return
	}
	delete(b.accounts, acc.user.Username)
	c.Status(http.StatusNoContent)
}

// --- catalog ---

func (b *Backend) listProducts(c *gin.Context) {
	b.mu.Lock()
	items := sortedByID(b.products, func(p domain.Product) int64 { return p.ID })
	paginate := b.paginate
	b.mu.Unlock()

	search := strings.ToLower(c.Query("search"))
	category, _ := strconv.ParseInt(c.Query("category"), 10, 64)
	minPrice, minErr := decimal.NewFromString(c.Query("min_price"))
	maxPrice, maxErr := decimal.NewFromString(c.Query("max_price"))

	out := make([]domain.Product, 0, len(items))
	for _, p := range items {
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) {
			continue
		}
		if category > 0 && (p.CategoryDetails == nil || p.CategoryDetails.ID != category) {
			continue
		}
		if minErr == nil && p.Price.LessThan(minPrice) {
			continue
		}
		if maxErr == nil && p.Price.GreaterThan(maxPrice) {
			continue
		}
		out = append(out, p)
	}
	switch c.Query("ordering") {
	case "price":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case "-price":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	case "name":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	case "-created_at":
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	writeList(c, paginate, out)
}

func (b *Backend) getProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, found := b.products[id]
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No Product matches the given query."})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (b *Backend) applyProductLocked(p *domain.Product, in apiclient.ProductPayload) {
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Slug != nil {
		p.Slug = *in.Slug
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Inventory != nil {
		p.Inventory = *in.Inventory
	}
	if in.Category != nil {
		p.Category = json.RawMessage(strconv.FormatInt(*in.Category, 10))
		if cat, ok := b.categories[*in.Category]; ok {
			p.CategoryDetails = &cat
		}
	}
	if in.Images != nil {
		p.Images = p.Images[:0]
		for i, img := range in.Images {
			p.Images = append(p.Images, domain.ProductImage{ID: int64(i + 1), Image: img.Image, AltText: img.AltText})
		}
	}
}

func (b *Backend) createProduct(c *gin.Context) {
	var in apiclient.ProductPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	if in.Title == nil || *in.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"title": []string{"This field is required."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	p := domain.Product{ID: b.nextID, Images: []domain.ProductImage{}, CreatedAt: time.Now().UTC()}
	b.applyProductLocked(&p, in)
	b.products[p.ID] = p
	c.JSON(http.StatusCreated, p)
}

func (b *Backend) updateProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in apiclient.ProductPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, found := b.products[id]
	if !found {
		notFound(c)
		return
	}
	b.applyProductLocked(&p, in)
	now := time.Now().UTC()
	p.UpdatedAt = &now
	b.products[id] = p
	c.JSON(http.StatusOK, p)
}

func (b *Backend) deleteProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.products[id]; !found {
		notFound(c)
		return
	}
	delete(b.products, id)
	c.Status(http.StatusNoContent)
}

func (b *Backend) listCategories(c *gin.Context) {
	b.mu.Lock()
	items := sortedByID(b.categories, func(cat domain.Category) int64 { return cat.ID })
	paginate := b.paginate
	b.mu.Unlock()
	writeList(c, paginate, items)
}

func (b *Backend) getCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cat, found := b.categories[id]
	if !found {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (b *Backend) createCategory(c *gin.Context) {
	var in apiclient.CategoryPayload
	if err := c.ShouldBindJSON(&in); err != nil || in.Name == nil || *in.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"name": []string{"This field is required."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	cat := domain.Category{ID: b.nextID, Name: *in.Name, Slug: strings.ToLower(*in.Name), CreatedAt: time.Now().UTC()}
	if in.Description != nil {
		cat.Description = *in.Description
	}
	b.categories[cat.ID] = cat
	c.JSON(http.StatusCreated, cat)
}

func (b *Backend) updateCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in apiclient.CategoryPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cat, found := b.categories[id]
	if !found {
		notFound(c)
		return
	}
	if in.Name != nil {
		cat.Name = *in.Name
	}
	if in.Description != nil {
		cat.Description = *in.Description
	}
	b.categories[id] = cat
	c.JSON(http.StatusOK, cat)
}

func (b *Backend) deleteCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.categories[id]; !found {
		notFound(c)
		return
	}
	delete(b.categories, id)
	c.Status(http.StatusNoContent)
}

// --- cart ---

func (b *Backend) cartOfLocked(userID int64) []domain.CartItem {
	out := make([]domain.CartItem, 0)
	for _, it := range sortedByID(b.cart, func(it domain.CartItem) int64 { return it.ID }) {
		if it.User == userID {
			if p, ok := b.products[it.Product]; ok {
				it.ProductDetails = &p
			}
			out = append(out, it)
		}
	}
	return out
}

func (b *Backend) addCartLocked(userID, productID, qty int64) (domain.CartItem, bool) {
	p, ok := b.products[productID]
	if !ok {
		return domain.CartItem{}, false
	}
	for id, it := range b.cart {
		if it.User == userID && it.Product == productID {
			it.Quantity += qty
			b.cart[id] = it
			it.ProductDetails = &p
			return it, true
		}
	}
	b.nextID++
	it := domain.CartItem{ID: b.nextID, User: userID, Product: productID, Quantity: qty, AddedAt: time.Now().UTC()}
	b.cart[it.ID] = it
	it.ProductDetails = &p
	return it, true
}

func (b *Backend) listCart(c *gin.Context) {
	b.mu.Lock()
	items := b.cartOfLocked(current(c).ID)
	paginate := b.paginate
	b.mu.Unlock()
	writeList(c, paginate, items)
}

func (b *Backend) addCart(c *gin.Context) {
	var in struct {
		Product  int64 `json:"product"`
		Quantity int64 `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"quantity": []string{"Ensure this value is greater than or equal to 1."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it, ok := b.addCartLocked(current(c).ID, in.Product, in.Quantity)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"product": []string{"Invalid pk \"" + strconv.FormatInt(in.Product, 10) + "\" - object does not exist."}})
		return
	}
	// the reply carries only the quantity added, the way the client mirror expects
	it.Quantity = in.Quantity
	c.JSON(http.StatusCreated, it)
}

func (b *Backend) updateCart(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in struct {
		Quantity int64 `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || in.Quantity < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"quantity": []string{"Ensure this value is greater than or equal to 1."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it, found := b.cart[id]
	if !found || it.User != current(c).ID {
		notFound(c)
		return
	}
	it.Quantity = in.Quantity
	b.cart[id] = it
	if p, ok := b.products[it.Product]; ok {
		it.ProductDetails = &p
	}
	c.JSON(http.StatusOK, it)
}

func (b *Backend) removeCart(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	it, found := b.cart[id]
	if !found || it.User != current(c).ID {
		notFound(c)
		return
	}
	delete(b.cart, id)
	c.Status(http.StatusNoContent)
}

func (b *Backend) clearCart(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	uid := current(c).ID
	for id, it := range b.cart {
		if it.User == uid {
			delete(b.cart, id)
		}
	}
	c.Status(http.StatusNoContent)
}

// --- orders ---

func (b *Backend) newOrderLocked(userID int64, items []apiclient.OrderItemInput) (domain.Order, string) {
	b.nextID++
	o := domain.Order{
		ID:            b.nextID,
		User:          userID,
		Status:        domain.OrderStatusPending,
		TransactionID: "TXN-" + strconv.FormatInt(b.nextID, 10),
		CreatedAt:     time.Now().UTC().Add(time.Duration(b.nextID) * time.Second),
		Total:         decimal.Zero,
	}
	if acc := b.accountByIDLocked(userID); acc != nil {
		u := acc.user
		o.UserDetails = &u
	}
	for _, in := range items {
		p, ok := b.products[in.Product]
		if !ok {
			return domain.Order{}, "Invalid product " + strconv.FormatInt(in.Product, 10)
		}
		b.nextID++
		o.Items = append(o.Items, domain.OrderItem{ID: b.nextID, Product: p.ID, ProductDetails: &p, Quantity: in.Quantity, Price: p.Price})
		o.Total = o.Total.Add(p.Price.Mul(decimal.NewFromInt(in.Quantity)))
	}
	return o, ""
}

func (b *Backend) visibleOrderLocked(c *gin.Context) (domain.Order, bool) {
	id, ok := pathID(c)
	if !ok {
		return domain.Order{}, false
	}
	u := current(c)
	o, found := b.orders[id]
	if !found || (o.User != u.ID && !u.HasAdminAccess()) {
		notFound(c)
		return domain.Order{}, false
	}
	return o, true
}

func (b *Backend) listOrders(c *gin.Context) {
	u := current(c)
	b.mu.Lock()
	out := make([]domain.Order, 0)
	for _, o := range sortedByID(b.orders, func(o domain.Order) int64 { return o.ID }) {
		if u.HasAdminAccess() || o.User == u.ID {
			out = append(out, o)
		}
	}
	paginate := b.paginate
	b.mu.Unlock()
	writeList(c, paginate, out)
}

func (b *Backend) getOrder(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.visibleOrderLocked(c)
	if !ok {
		return
	}
	b.fetches[o.ID]++
	if n, set := b.payOnFetch[o.ID]; set && b.fetches[o.ID] >= n {
		b.markPaidLocked(o.ID)
		delete(b.payOnFetch, o.ID)
		o = b.orders[o.ID]
	}
	c.JSON(http.StatusOK, o)
}

func (b *Backend) cancelOrder(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.visibleOrderLocked(c)
	if !ok {
		return
	}
	if o.Paid() {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Paid orders cannot be cancelled."})
		return
	}
	delete(b.orders, o.ID)
	c.JSON(http.StatusOK, gin.H{"detail": "Order cancelled."})
}

func (b *Backend) submitOrder(c *gin.Context) {
	var in apiclient.SubmitOrderRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	if len(in.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"items": []string{"This field is required."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	o, msg := b.newOrderLocked(current(c).ID, in.Items)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"items": []string{msg}})
		return
	}
	o.ShippingAddress, o.ShippingCity = in.Address, in.City
	o.ShippingPostalCode, o.ShippingCountry, o.ShippingPhone = in.PostalCode, in.Country, in.Phone
	b.orders[o.ID] = o
	c.JSON(http.StatusCreated, gin.H{"order_id": o.ID, "total": o.Total, "transaction_id": o.TransactionID})
}

func (b *Backend) createFromCart(c *gin.Context) {
	var in apiclient.Shipping
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	uid := current(c).ID
	var items []apiclient.OrderItemInput
	for _, it := range b.cartOfLocked(uid) {
		items = append(items, apiclient.OrderItemInput{Product: it.Product, Quantity: it.Quantity})
	}
	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Cart is empty."})
		return
	}
	o, msg := b.newOrderLocked(uid, items)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": msg})
		return
	}
	o.ShippingAddress, o.ShippingCity = in.Address, in.City
	o.ShippingPostalCode, o.ShippingCountry = in.PostalCode, in.Country
	b.orders[o.ID] = o
	for id, it := range b.cart {
		if it.User == uid {
			delete(b.cart, id)
		}
	}
	c.JSON(http.StatusCreated, o)
}

func applyOrder(o *domain.Order, in apiclient.AdminOrderPayload) {
	if in.Status != nil {
		o.Status = *in.Status
	}
	if in.IsPaid != nil {
		o.IsPaid = *in.IsPaid
	}
	if in.TransactionID != nil {
		o.TransactionID = *in.TransactionID
	}
	if in.ShippingAddress != nil {
		o.ShippingAddress = *in.ShippingAddress
	}
	if in.ShippingCity != nil {
		o.ShippingCity = *in.ShippingCity
	}
	if in.ShippingPostalCode != nil {
		o.ShippingPostalCode = *in.ShippingPostalCode
	}
	if in.ShippingCountry != nil {
		o.ShippingCountry = *in.ShippingCountry
	}
	if in.ShippingPhone != nil {
		o.ShippingPhone = *in.ShippingPhone
	}
}

func (b *Backend) adminCreateOrder(c *gin.Context) {
	var in apiclient.AdminOrderPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if in.User == nil || b.accountByIDLocked(*in.User) == nil {
		c.JSON(http.StatusBadRequest, gin.H{"user": []string{"Invalid pk - object does not exist."}})
		return
	}
	if len(in.ItemsData) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"items_data": []string{"This field is required."}})
		return
	}
	o, msg := b.newOrderLocked(*in.User, in.ItemsData)
	if msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"items_data": []string{msg}})
		return
	}
	applyOrder(&o, in)
	b.orders[o.ID] = o
	c.JSON(http.StatusCreated, o)
}

func (b *Backend) adminUpdateOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in apiclient.AdminOrderPayload
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	o, found := b.orders[id]
	if !found {
		notFound(c)
		return
	}
	applyOrder(&o, in)
	b.orders[id] = o
	c.JSON(http.StatusOK, o)
}

func (b *Backend) adminDeleteOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, found := b.orders[id]; !found {
		notFound(c)
		return
	}
	delete(b.orders, id)
	c.Status(http.StatusNoContent)
}

// --- payments ---

func (b *Backend) listPayments(c *gin.Context) {
	u := current(c)
	b.mu.Lock()
	out := make([]domain.Payment, 0)
	for _, p := range sortedByID(b.payments, func(p domain.Payment) int64 { return p.ID }) {
		if u.HasAdminAccess() || b.orders[p.Order].User == u.ID {
			out = append(out, p)
		}
	}
	paginate := b.paginate
	b.mu.Unlock()
	writeList(c, paginate, out)
}

func (b *Backend) getPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, found := b.payments[id]
	if !found {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (b *Backend) initiatePayment(c *gin.Context) {
	var in apiclient.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid payload"})
		return
	}
	if !in.Method.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"method": []string{"\"" + string(in.Method) + "\" is not a valid choice."}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	o, found := b.orders[in.OrderID]
	if !found || o.User != current(c).ID {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Order not found."})
		return
	}
	b.nextID++
	now := time.Now().UTC()
	pay := domain.Payment{
		ID: b.nextID, Order: o.ID, Amount: o.Total, Gateway: in.Method,
		Status: domain.PaymentStatusPending, TransactionID: o.TransactionID,
		CreatedAt: now, UpdatedAt: now,
	}
	b.payments[pay.ID] = pay

	if reply, ok := b.gatewayReplies[in.Method]; ok {
		c.JSON(http.StatusOK, reply)
		return
	}
	switch in.Method {
	case domain.GatewayESewa:
		c.JSON(http.StatusOK, gin.H{
			"url": "https://rc-epay.esewa.com.np/api/epay/main/v2/form",
			"params": gin.H{
				"amount":           o.Total.String(),
				"transaction_uuid": o.TransactionID,
				"product_code":     "EPAYTEST",
				"success_url":      in.ReturnURL,
				"failure_url":      in.CancelURL,
			},
			"transaction_id": o.TransactionID,
		})
	case domain.GatewayKhalti:
		c.JSON(http.StatusOK, gin.H{"payment_url": "https://test-pay.khalti.com/?pidx=" + o.TransactionID, "transaction_id": o.TransactionID})
	case domain.GatewayFonepay:
		c.JSON(http.StatusOK, gin.H{"url": "https://dev-clientapi.fonepay.com/api/merchantRequest?PRN=" + o.TransactionID, "transaction_id": o.TransactionID})
	case domain.GatewayBank:
		c.JSON(http.StatusOK, gin.H{
			"instructions": gin.H{
				"bank":           "Nabil Bank",
				"account_name":   "Evercart Pvt. Ltd.",
				"account_number": "0123456789012",
				"reference":      o.TransactionID,
			},
			"transaction_id": o.TransactionID,
		})
	}
}
