package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"evercart/internal/service"
)

func productFilter(c *gin.Context) (service.ProductFilter, error) {
	f := service.ProductFilter{Search: c.Query("search"), Ordering: c.Query("ordering")}
	var err error
	if v := c.Query("category"); v != "" {
		if f.Category, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, fmt.Errorf("%w: category must be a number", service.ErrInvalidInput)
		}
	}
	if v := c.Query("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil {
			return f, fmt.Errorf("%w: page must be a number", service.ErrInvalidInput)
		}
	}
	if f.MinPrice, err = priceParam(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = priceParam(c, "max_price"); err != nil {
		return f, err
	}
	return f, nil
}

func priceParam(c *gin.Context, name string) (*decimal.Decimal, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", service.ErrInvalidInput, name)
	}
	return &d, nil
}

// @Summary List products
// @Tags catalog
// @Produce json
// @Param category query int false "Category ID"
// @Param search query string false "Search term"
// @Param min_price query number false "Lowest price"
// @Param max_price query number false "Highest price"
// @Param ordering query string false "price, -price, name or -created_at"
// @Param page query int false "Page"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	f, err := productFilter(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	page, err := s.svc.Catalog.ListProducts(c.Request.Context(), sessionOf(c), f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// @Summary Get product by id
// @Tags catalog
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 404 {object} map[string]any
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	p, err := s.svc.Catalog.GetProduct(c.Request.Context(), sessionOf(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary List categories
// @Tags catalog
// @Produce json
// @Success 200 {array} domain.Category
// @Router /categories [get]
func (s *Server) listCategories(c *gin.Context) {
	list, err := s.svc.Catalog.ListCategories(c.Request.Context(), sessionOf(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get category by id
// @Tags catalog
// @Produce json
// @Param id path int true "Category ID"
// @Success 200 {object} domain.Category
// @Router /categories/{id} [get]
func (s *Server) getCategory(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	cat, err := s.svc.Catalog.GetCategory(c.Request.Context(), sessionOf(c), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cat)
}
