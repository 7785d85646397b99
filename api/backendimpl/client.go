// Package backendimpl implements the rendering backend contract over HTTP.
package backendimpl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/backend"
	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/log"
)

// ErrorCode defines error types for backend calls
type ErrorCode string

const (
	// ErrUnexpectedStatus represents a non-2xx answer from a backend
	ErrUnexpectedStatus ErrorCode = "UnexpectedStatus"

	// ErrMalformedPayload represents a body that is not the expected JSON shape
	ErrMalformedPayload ErrorCode = "MalformedPayload"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}

// maxBodySize caps how much of a backend response is read
const maxBodySize = 16 << 20

// Client is a backend.Client speaking JSON over HTTP
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
}

var _ backend.Client = (*Client)(nil)

// New creates a Client whose transport logs every call at debug level
func New(userAgent string) *Client {
	return &Client{
		HTTPClient: &http.Client{Transport: log.Transport(nil)},
		UserAgent:  userAgent,
	}
}

// Targets implements backend.Client
func (c *Client) Targets(ctx context.Context, b backend.Backend) ([]jsonvalue.Value, error) {
	return c.getList(ctx, b, b.Endpoint("render-targets"))
}

// Sitemap implements backend.Client
func (c *Client) Sitemap(ctx context.Context, b backend.Backend, since *time.Time) ([]jsonvalue.Value, error) {
	u := b.Endpoint("sitemap")
	if since != nil {
		q := u.Query()
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
		u.RawQuery = q.Encode()
	}
	return c.getList(ctx, b, u)
}

// Index implements backend.Client
func (c *Client) Index(ctx context.Context, b backend.Backend) ([]jsonvalue.Value, error) {
	return c.getList(ctx, b, b.Endpoint("index"))
}

// Render implements backend.Client
func (c *Client) Render(ctx context.Context, b backend.Backend, call backend.RenderCall) (jsonvalue.Value, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return jsonvalue.Value{}, failure.Wrap(err)
	}

	u := b.Endpoint("render")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return jsonvalue.Value{}, failure.Wrap(err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, b)
}

func (c *Client) getList(ctx context.Context, b backend.Backend, u *url.URL) ([]jsonvalue.Value, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, failure.Wrap(err)
	}

	v, err := c.do(req, b)
	if err != nil {
		return nil, err
	}
	if v.Kind != jsonvalue.KindList {
		return nil, failure.New(ErrMalformedPayload,
			failure.Message("Backend listing is not a JSON array"),
			failure.Context{
				"backend": b.Name,
				"url":     u.String(),
				"kind":    v.Kind.String(),
			},
		)
	}
	return v.List, nil
}

func (c *Client) do(req *http.Request, b backend.Backend) (jsonvalue.Value, error) {
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return jsonvalue.Value{}, failure.Wrap(err, failure.Context{"backend": b.Name})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return jsonvalue.Value{}, failure.New(ErrUnexpectedStatus,
			failure.Message("Backend answered with a non-success status"),
			failure.Context{
				"backend": b.Name,
				"url":     req.URL.String(),
				"status":  strconv.Itoa(resp.StatusCode),
			},
		)
	}

	var v jsonvalue.Value
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&v); err != nil {
		return jsonvalue.Value{}, failure.Translate(err, ErrMalformedPayload,
			failure.Message("Backend body is not valid JSON"),
			failure.Context{
				"backend": b.Name,
				"url":     req.URL.String(),
			},
		)
	}
	return v, nil
}
