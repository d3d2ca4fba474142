package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"evercart/internal/service"
)

// @Summary Price the current cart
// @Tags checkout
// @Produce json
// @Success 200 {object} service.Quote
// @Router /checkout/quote [get]
func (s *Server) checkoutQuote(c *gin.Context) {
	q, err := s.svc.Checkout.Quote(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// @Summary Place the order and start payment
// @Tags checkout
// @Accept json
// @Produce json
// @Param input body service.CheckoutRequest true "Shipping details and gateway"
// @Success 201 {object} service.CheckoutResult
// @Failure 400 {object} map[string]any
// @Router /checkout [post]
func (s *Server) startCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := s.svc.Checkout.Start(c.Request.Context(), sessionOf(c), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary Own payments
// @Tags payments
// @Produce json
// @Success 200 {array} domain.Payment
// @Router /payments [get]
func (s *Server) listPayments(c *gin.Context) {
	list, err := s.svc.Payments.List(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get own payment
// @Tags payments
// @Produce json
// @Param id path int true "Payment ID"
// @Success 200 {object} domain.Payment
// @Failure 404 {object} map[string]any
// @Router /payments/{id} [get]
func (s *Server) getPayment(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	p, err := s.svc.Payments.Get(c.Request.Context(), sessionOf(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Gateway success return
// @Tags payments
// @Produce json
// @Param order_id query int true "Order ID"
// @Success 200 {object} service.PaymentOutcome
// @Router /payments/success [get]
func (s *Server) paymentSuccess(c *gin.Context) {
	id, err := parseID(c.Query("order_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	out, err := s.svc.Payments.ConfirmReturn(c.Request.Context(), sessionOf(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary Gateway failure return
// @Tags payments
// @Produce json
// @Param order_id query int false "Order ID"
// @Success 200 {object} service.FailureInfo
// @Router /payments/failure [get]
func (s *Server) paymentFailure(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Payments.DescribeFailure(c.Request.Context(), sessionOf(c), c.Query("order_id")))
}
