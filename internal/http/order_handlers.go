package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"evercart/internal/domain"
	"evercart/internal/service"
)

// @Summary Own orders
// @Tags orders
// @Produce json
// @Success 200 {array} domain.Order
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.svc.Orders.List(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Order the whole cart
// @Description The backend turns the cart into an order and empties it. No payment is started.
// @Tags orders
// @Accept json
// @Produce json
// @Param input body service.ShippingDetails true "Shipping details"
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]any
// @Router /orders [post]
func (s *Server) createOrderFromCart(c *gin.Context) {
	var req service.ShippingDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	o, err := s.svc.Orders.CreateFromCart(c.Request.Context(), sessionOf(c), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary Get own order
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} map[string]any
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	o, err := s.svc.Orders.Get(c.Request.Context(), sessionOf(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Cancel an unpaid order
// @Tags orders
// @Param id path int true "Order ID"
// @Success 204
// @Failure 400 {object} map[string]any
// @Router /orders/{id}/cancel [post]
func (s *Server) cancelOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if err := s.svc.Orders.Cancel(c.Request.Context(), sessionOf(c), id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(s.opts.CORSOrigins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// @Summary Stream order status changes
// @Description Websocket. Sends the order as JSON on every status change and closes once it is paid.
// @Tags orders
// @Param id path int true "Order ID"
// @Success 101
// @Router /orders/{id}/watch [get]
func (s *Server) watchOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	up := s.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = s.svc.Payments.Watch(ctx, sessionOf(c), id, s.opts.WatchInterval, func(o *domain.Order) error {
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(o)
	})
	closeCode, reason := websocket.CloseNormalClosure, "done"
	if err != nil {
		status := mapErrorToStatus(err)
		_ = conn.WriteJSON(gin.H{"error": errorMessage(err, status)})
		closeCode, reason = websocket.CloseInternalServerErr, "watch failed"
		if status < http.StatusInternalServerError {
			closeCode = websocket.ClosePolicyViolation
		}
	}
	msg := websocket.FormatCloseMessage(closeCode, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
