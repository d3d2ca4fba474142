package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addCartItemReq struct {
	ProductID int64 `json:"product_id" binding:"required,min=1"`
	Quantity  int64 `json:"quantity" binding:"omitempty,min=1"`
}

type updateCartItemReq struct {
	Quantity int64 `json:"quantity" binding:"required,min=1"`
}

// @Summary Current cart
// @Tags cart
// @Produce json
// @Success 200 {object} service.CartView
// @Failure 401 {object} map[string]any
// @Router /cart [get]
func (s *Server) getCart(c *gin.Context) {
	view, err := s.svc.Cart.Get(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// @Summary Add product to cart
// @Tags cart
// @Accept json
// @Produce json
// @Param input body addCartItemReq true "Product and quantity, 1 when omitted"
// @Success 201 {object} domain.CartItem
// @Failure 400 {object} map[string]any
// @Router /cart/items [post]
func (s *Server) addCartItem(c *gin.Context) {
	var req addCartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	item, err := s.svc.Cart.Add(c.Request.Context(), sessionOf(c), req.ProductID, req.Quantity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// @Summary Change cart item quantity
// @Tags cart
// @Accept json
// @Produce json
// @Param id path int true "Cart item ID"
// @Param input body updateCartItemReq true "Quantity"
// @Success 200 {object} domain.CartItem
// @Router /cart/items/{id} [patch]
func (s *Server) updateCartItem(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	var req updateCartItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	item, err := s.svc.Cart.Update(c.Request.Context(), sessionOf(c), id, req.Quantity)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// @Summary Remove cart item
// @Tags cart
// @Param id path int true "Cart item ID"
// @Success 204
// @Router /cart/items/{id} [delete]
func (s *Server) removeCartItem(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.svc.Cart.Remove(c.Request.Context(), sessionOf(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary Empty the cart
// @Tags cart
// @Success 204
// @Router /cart [delete]
func (s *Server) clearCart(c *gin.Context) {
	if err := s.svc.Cart.Clear(c.Request.Context(), sessionOf(c)); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
