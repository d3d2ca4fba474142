package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrBadRequest         = errors.New("bad request")
	ErrSessionExpired     = errors.New("session expired")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// APIError ответ бэкенда со статусом вне 2xx
type APIError struct {
	StatusCode int
	Detail     string
	Fields     map[string][]string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message())
}

// Message is the text worth showing to a user.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		k := keys[0]
		if k == "non_field_errors" {
			return strings.Join(e.Fields[k], " ")
		}
		return k + ": " + strings.Join(e.Fields[k], " ")
	}
	if t := http.StatusText(e.StatusCode); t != "" {
		return t
	}
	return "request failed"
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	}
	return false
}

// newAPIError understands DRF style bodies: {"detail": "..."} and
// {"field": ["msg", ...]}.
func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: body}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return e
	}
	for _, key := range []string{"detail", "message", "error"} {
		var s string
		if raw, ok := obj[key]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			e.Detail = s
			break
		}
	}
	for k, raw := range obj {
		if k == "detail" || k == "message" || k == "error" {
			continue
		}
		var list []string
		if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
			if e.Fields == nil {
				e.Fields = make(map[string][]string)
			}
			e.Fields[k] = list
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			if e.Fields == nil {
				e.Fields = make(map[string][]string)
			}
			e.Fields[k] = []string{s}
		}
	}
	return e
}
