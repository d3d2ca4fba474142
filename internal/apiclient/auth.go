package apiclient

import (
	"context"
	"net/http"
	"strconv"

	"evercart/internal/domain"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse пара токенов; user присылается не всегда
type LoginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *domain.User `json:"user,omitempty"`
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

// UserPayload тело создания и изменения пользователя в админке
type UserPayload struct {
	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	Password    *string `json:"password,omitempty"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	IsCustomer  *bool   `json:"is_customer,omitempty"`
	IsAdmin     *bool   `json:"is_admin,omitempty"`
	IsStaff     *bool   `json:"is_staff,omitempty"`
	IsSuperuser *bool   `json:"is_superuser,omitempty"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "api/users/login/", body: creds, anonymous: true}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminLogin forwards csrfToken as X-CSRFToken when it is set.
func (c *Client) AdminLogin(ctx context.Context, creds Credentials, csrfToken string) (*LoginResponse, error) {
	r := request{method: http.MethodPost, path: "api/admin/login/", body: creds, anonymous: true}
	if csrfToken != "" {
		r.header = http.Header{}
		r.header.Set("X-CSRFToken", csrfToken)
	}
	var out LoginResponse
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, in RegisterRequest) error {
	return c.do(ctx, request{method: http.MethodPost, path: "api/users/register/", body: in, anonymous: true}, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "api/users/logout/"}, nil)
}

func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "api/users/profile/"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) AdminProfile(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "api/admin/profile/"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, request{method: http.MethodPatch, path: "api/users/profile/", body: in}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func userPath(id int64) string { return "api/users/" + strconv.FormatInt(id, 10) + "/" }

func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	return getList[domain.User](ctx, c, "api/users/")
}

func (c *Client) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, request{method: http.MethodGet, path: userPath(id)}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) CreateUser(ctx context.Context, in UserPayload) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, request{method: http.MethodPost, path: "api/users/", body: in}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int64, in UserPayload) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, request{method: http.MethodPatch, path: userPath(id), body: in}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, request{method: http.MethodDelete, path: userPath(id)}, nil)
}
