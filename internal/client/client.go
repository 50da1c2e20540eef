// Package client implements core.Store over the dashboard JSON API, so a
// leapboard UI or CLI can run against a remote backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/leapstack-labs/leapboard/internal/api"
	"github.com/leapstack-labs/leapboard/internal/dashboards"
	"github.com/leapstack-labs/leapboard/pkg/core"
)

// DefaultTimeout bounds each request when no HTTP client is supplied.
const DefaultTimeout = 10 * time.Second

// Client talks to a leapboard API server.
type Client struct {
	baseURL string
	http    *http.Client
	user    string
	token   string
}

var _ core.Store = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUser sets the user sent with mutations.
func WithUser(user string) Option {
	return func(c *Client) { c.user = user }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateDashboard creates d on the server and fills in the assigned ID and
// timestamps.
func (c *Client) CreateDashboard(ctx context.Context, d *core.Dashboard) error {
	var out core.Dashboard
	if err := c.do(ctx, http.MethodPost, "", d.Data, &out); err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}
	*d = out
	return nil
}

// GetDashboard retrieves a dashboard by ID.
func (c *Client) GetDashboard(ctx context.Context, id string) (*core.Dashboard, error) {
	var out core.Dashboard
	if err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get dashboard: %w", err)
	}
	return &out, nil
}

// ListDashboards returns every dashboard.
func (c *Client) ListDashboards(ctx context.Context) ([]*core.Dashboard, error) {
	var out []*core.Dashboard
	if err := c.do(ctx, http.MethodGet, "", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	return out, nil
}

// UpdateDashboard sends the full representation of d and returns the
// dashboard echoed by the server.
func (c *Client) UpdateDashboard(ctx context.Context, d *core.Dashboard) (*core.Dashboard, error) {
	var out core.Dashboard
	if err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(d.ID), d, &out); err != nil {
		return nil, fmt.Errorf("failed to update dashboard: %w", err)
	}
	return &out, nil
}

// DeleteDashboard removes a dashboard.
func (c *Client) DeleteDashboard(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("failed to delete dashboard: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+api.Prefix+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.Header.Set(api.UserHeader, c.user)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var e api.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		msg = e.Error
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = core.ErrNotFound
	case http.StatusBadRequest:
		sentinel = dashboards.ErrInvalidDashboard
	}
	if sentinel != nil {
		return fmt.Errorf("%w (server: %s)", sentinel, msg)
	}
	return errors.New("server returned " + resp.Status + ": " + msg)
}
