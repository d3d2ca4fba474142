package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"evercart/internal/domain"
)

// decodePage accepts both a bare JSON array and a paginated
// {count,next,previous,results} object.
func decodePage[T any](data []byte) (domain.Page[T], error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return domain.Page[T]{Results: []T{}}, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return domain.Page[T]{}, err
		}
		if items == nil {
			items = []T{}
		}
		return domain.Page[T]{Count: int64(len(items)), Results: items}, nil
	}
	var page domain.Page[T]
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return domain.Page[T]{}, err
	}
	if page.Results == nil {
		page.Results = []T{}
	}
	return page, nil
}

func getPage[T any](ctx context.Context, c *Client, path string, q url.Values) (domain.Page[T], error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: path, query: q}, &raw); err != nil {
		return domain.Page[T]{}, err
	}
	page, err := decodePage[T](raw)
	if err != nil {
		return domain.Page[T]{}, fmt.Errorf("decode list %s: %w", path, err)
	}
	return page, nil
}

func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	page, err := getPage[T](ctx, c, path, nil)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}
