package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"evercart/internal/apiclient"
	"evercart/internal/service"
)

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// @Summary Sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginReq true "Credentials"
// @Success 200 {object} domain.User
// @Failure 400 {object} map[string]any
// @Failure 401 {object} map[string]any
// @Router /auth/login [post]
func (s *Server) login(c *gin.Context) {
	s.doLogin(c, service.LoginOptions{})
}

// @Summary Sign in to the admin panel
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginReq true "Credentials"
// @Param X-CSRFToken header string false "CSRF token forwarded to the backend"
// @Success 200 {object} domain.User
// @Failure 403 {object} map[string]any
// @Router /auth/admin/login [post]
func (s *Server) adminLogin(c *gin.Context) {
	s.doLogin(c, service.LoginOptions{AdminOnly: true, CSRFToken: c.GetHeader("X-CSRFToken")})
}

func (s *Server) doLogin(c *gin.Context, opts service.LoginOptions) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := s.svc.Auth.Login(c.Request.Context(), sessionOf(c), apiclient.Credentials{Username: req.Username, Password: req.Password}, opts)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// @Summary Create an account and sign in
// @Tags auth
// @Accept json
// @Produce json
// @Param input body apiclient.RegisterRequest true "Account"
// @Success 201 {object} domain.User
// @Failure 400 {object} map[string]any
// @Router /auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req apiclient.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := s.svc.Auth.Register(c.Request.Context(), sessionOf(c), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// @Summary Sign out
// @Tags auth
// @Produce json
// @Param from query string false "Page the user signed out from"
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	next := s.svc.Auth.Logout(c.Request.Context(), sessionOf(c), c.Query("from"))
	c.JSON(http.StatusOK, gin.H{"redirect": next})
}

// @Summary Current user
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]any
// @Router /auth/me [get]
func (s *Server) me(c *gin.Context) {
	sess := sessionOf(c)
	u, err := s.svc.Auth.CurrentUser(c.Request.Context(), sess)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": u != nil,
		"user":          u,
		"is_admin":      u != nil && sess.IsAdmin,
	})
}

// @Summary Update own profile
// @Tags auth
// @Accept json
// @Produce json
// @Param input body apiclient.ProfileUpdate true "Changed fields"
// @Success 200 {object} domain.User
// @Router /auth/profile [patch]
func (s *Server) updateProfile(c *gin.Context) {
	var req apiclient.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	u, err := s.svc.Auth.UpdateProfile(c.Request.Context(), sessionOf(c), req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
