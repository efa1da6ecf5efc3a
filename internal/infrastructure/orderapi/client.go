package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/kitchen-ops/internal/domain/order"
)

const DefaultTimeout = 10 * time.Second

// Client talks JSON to the remote order persistence API.
type Client struct {
	base *url.URL
	http *http.Client
}

var _ domain.API = (*Client)(nil)

func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("orderapi: base url: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{base: u, http: &http.Client{Timeout: timeout}}, nil
}

func (c *Client) Create(ctx context.Context, d domain.Draft) (*domain.Order, error) {
	var o domain.Order
	if err := c.do(ctx, http.MethodPost, "/orders", d, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) PatchStatus(ctx context.Context, id string, s domain.Status) error {
	return c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id), map[string]any{"status": s}, nil)
}

func (c *Client) PatchPriority(ctx context.Context, id string, p domain.Priority) error {
	return c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id), map[string]any{"priority": p}, nil)
}

func (c *Client) PatchNotes(ctx context.Context, id, notes string) error {
	return c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id), map[string]any{"chefNotes": notes}, nil)
}

func (c *Client) PatchItemStatus(ctx context.Context, id, itemID string, s domain.ItemStatus) error {
	path := "/orders/" + url.PathEscape(id) + "/items/" + url.PathEscape(itemID)
	return c.do(ctx, http.MethodPatch, path, map[string]any{"status": s}, nil)
}

func (c *Client) List(ctx context.Context) ([]*domain.Order, error) {
	var out []*domain.Order
	if err := c.do(ctx, http.MethodGet, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("orderapi: encode: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("orderapi: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("orderapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("orderapi: %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("orderapi: decode: %w", err)
	}
	return nil
}
