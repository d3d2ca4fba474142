package httpapi

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"evercart/internal/domain"
	"evercart/internal/service"
)

// @Summary Dashboard totals
// @Tags admin
// @Produce json
// @Success 200 {object} service.AdminStats
// @Failure 403 {object} map[string]any
// @Router /admin/stats [get]
func (s *Server) adminStats(c *gin.Context) {
	st, err := s.svc.Admin.Stats(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary List users
// @Tags admin
// @Produce json
// @Param search query string false "Username, email or name"
// @Param role query string false "all, admin, staff or customer"
// @Success 200 {object} map[string]any
// @Router /admin/users [get]
func (s *Server) adminListUsers(c *gin.Context) {
	all, err := s.svc.Admin.ListUsers(c.Request.Context(), sessionOf(c), "", service.RoleAll)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": service.FilterUsers(all, c.Query("search"), service.UserRole(c.Query("role"))),
		"stats": service.CountUsers(all),
	})
}

// @Summary Get user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} domain.User
// @Router /admin/users/{id} [get]
func (s *Server) adminGetUser(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	u, err := s.svc.Admin.GetUser(c.Request.Context(), sessionOf(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// @Summary Create user
// @Tags admin
// @Accept json
// @Produce json
// @Param input body service.UserForm true "User"
// @Success 201 {object} domain.User
// @Failure 400 {object} map[string]any
// @Router /admin/users [post]
func (s *Server) adminCreateUser(c *gin.Context) {
	var f service.UserForm
	if err := c.ShouldBindJSON(&f); err != nil {
		bindError(c, err)
		return
	}
	u, err := s.svc.Admin.CreateUser(c.Request.Context(), sessionOf(c), f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param input body service.UserForm true "User, empty password keeps the current one"
// @Success 200 {object} domain.User
// @Router /admin/users/{id} [patch]
func (s *Server) adminUpdateUser(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var f service.UserForm
	if err := c.ShouldBindJSON(&f); err != nil {
		bindError(c, err)
		return
	}
	u, err := s.svc.Admin.UpdateUser(c.Request.Context(), sessionOf(c), id, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// @Summary Delete user
// @Tags admin
// @Param id path int true "User ID"
// @Success 204
// @Router /admin/users/{id} [delete]
func (s *Server) adminDeleteUser(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.svc.Admin.DeleteUser(c.Request.Context(), sessionOf(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags admin
// @Produce json
// @Param search query string false "Search term"
// @Success 200 {array} domain.Product
// @Router /admin/products [get]
func (s *Server) adminListProducts(c *gin.Context) {
	list, err := s.svc.Admin.ListProducts(c.Request.Context(), sessionOf(c), c.Query("search"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Create product
// @Tags admin
// @Accept json
// @Produce json
// @Param input body service.ProductForm true "Product"
// @Success 201 {object} domain.Product
// @Router /admin/products [post]
func (s *Server) adminCreateProduct(c *gin.Context) {
	var f service.ProductForm
	if err := c.ShouldBindJSON(&f); err != nil {
		bindError(c, err)
		return
	}
	p, err := s.svc.Catalog.CreateProduct(c.Request.Context(), sessionOf(c), f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Update product
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param input body service.ProductForm true "Product"
// @Success 200 {object} domain.Product
// @Router /admin/products/{id} [patch]
func (s *Server) adminUpdateProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var f service.ProductForm
	if err := c.ShouldBindJSON(&f); err != nil {
		bindError(c, err)
		return
	}
	p, err := s.svc.Catalog.UpdateProduct(c.Request.Context(), sessionOf(c), id, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags admin
// @Param id path int true "Product ID"
// @Success 204
// @Router /admin/products/{id} [delete]
func (s *Server) adminDeleteProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.svc.Catalog.DeleteProduct(c.Request.Context(), sessionOf(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Create category
// @Tags admin
// @Accept json
// @Produce json
// @Param input body service.CategoryForm true "Category"
// @Success 201 {object} domain.Category
// @Router /admin/categories [post]
func (s *Server) adminCreateCategory(c *gin.Context) {
	var f service.CategoryForm
	if err := c.ShouldBindJSON(&f); err != nil {
		bindError(c, err)
		return
	}
	cat, err := s.svc.Catalog.CreateCategory(c.Request.Context(), sessionOf(c), f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// @Summary Update category
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Category ID"
// @Param input body service.CategoryForm true "Category"
// @Success 200 {object} domain.Category
// @Router /admin/categories/{id} [patch]
func (s *Server) adminUpdateCategory(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var f service.CategoryForm
	if err := c.ShouldBindJSON(&f); err != nil {
		bindError(c, err)
		return
	}
	cat, err := s.svc.Catalog.UpdateCategory(c.Request.Context(), sessionOf(c), id, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}

// @Summary Delete category
// @Tags admin
// @Param id path int true "Category ID"
// @Success 204
// @Router /admin/categories/{id} [delete]
func (s *Server) adminDeleteCategory(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.svc.Catalog.DeleteCategory(c.Request.Context(), sessionOf(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List orders
// @Tags admin
// @Produce json
// @Param status query string false "all, pending, paid or shipped"
// @Param search query string false "Order id or customer"
// @Success 200 {object} map[string]any
// @Router /admin/orders [get]
func (s *Server) adminListOrders(c *gin.Context) {
	all, err := s.svc.Admin.ListOrders(c.Request.Context(), sessionOf(c), "", "")
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": service.FilterOrders(all, c.Query("status"), c.Query("search")),
		"stats":  service.CountOrders(all),
	})
}

// @Summary Newest orders
// @Tags admin
// @Produce json
// @Param limit query int false "How many, 5 by default"
// @Success 200 {array} domain.Order
// @Router /admin/orders/recent [get]
func (s *Server) adminRecentOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := s.svc.Admin.RecentOrders(c.Request.Context(), sessionOf(c), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Export orders to Excel
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /admin/orders/export [get]
func (s *Server) adminExportOrders(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.svc.Admin.ExportOrders(c.Request.Context(), sessionOf(c), &buf); err != nil {
		s.writeError(c, err)
		return
	}
	name := "orders-" + time.Now().Format("20060102") + ".xlsx"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Header("Content-Transfer-Encoding", "binary")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// @Summary Create order on behalf of a customer
// @Tags admin
// @Accept json
// @Produce json
// @Param input body service.ManualOrderForm true "Order"
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]any
// @Router /admin/orders [post]
func (s *Server) adminCreateOrder(c *gin.Context) {
	var f service.ManualOrderForm
	if err := c.ShouldBindJSON(&f); err != nil {
		bindError(c, err)
		return
	}
	o, err := s.svc.Admin.CreateOrder(c.Request.Context(), sessionOf(c), f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

type orderStatusReq struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

// @Summary Change order status
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param input body orderStatusReq true "pending, paid or shipped"
// @Success 200 {object} domain.Order
// @Router /admin/orders/{id}/status [patch]
func (s *Server) adminUpdateOrderStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req orderStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	o, err := s.svc.Admin.UpdateOrderStatus(c.Request.Context(), sessionOf(c), id, req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Flip the paid flag
// @Tags admin
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Router /admin/orders/{id}/toggle-paid [post]
func (s *Server) adminTogglePaid(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	o, err := s.svc.Admin.TogglePaid(c.Request.Context(), sessionOf(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Delete order
// @Tags admin
// @Param id path int true "Order ID"
// @Success 204
// @Router /admin/orders/{id} [delete]
func (s *Server) adminDeleteOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.svc.Admin.DeleteOrder(c.Request.Context(), sessionOf(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List payments
// @Tags admin
// @Produce json
// @Success 200 {array} domain.Payment
// @Router /admin/payments [get]
func (s *Server) adminListPayments(c *gin.Context) {
	list, err := s.svc.Admin.ListPayments(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
