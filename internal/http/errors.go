package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"evercart/internal/apiclient"
	"evercart/internal/repository"
	"evercart/internal/service"
)

var errInvalidID = errors.New("invalid id")

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func mapErrorToStatus(err error) int {
	var apiErr *apiclient.APIError
	switch {
	case errors.Is(err, errInvalidID),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrNoValidItems):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, apiclient.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAdminOnly), errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &apiErr):
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, apiclient.ErrBackendUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the text shown to the user for err.
func errorMessage(err error, status int) string {
	var apiErr *apiclient.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message()
	case errors.Is(err, apiclient.ErrSessionExpired):
		return "your session has expired, please sign in again"
	case status >= http.StatusInternalServerError:
		return http.StatusText(status)
	}
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return "please correct the highlighted fields"
	}
	return err.Error()
}

func errorFields(err error) map[string]string {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		out := make(map[string]string, len(apiErr.Fields))
		for k, v := range apiErr.Fields {
			out[k] = strings.Join(v, " ")
		}
		return out
	}
	return nil
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	body := gin.H{"error": errorMessage(err, status)}
	if fields := errorFields(err); fields != nil {
		body["fields"] = fields
	}
	if status == http.StatusUnauthorized {
		body["login_url"] = loginURL(c)
	}
	c.JSON(status, body)
}

func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please correct the highlighted fields", "fields": bindingFields(verrs)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
}
