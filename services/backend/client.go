// Package backend is the HTTP client of the evaluation backend REST API.
package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerRequestID     = "X-Request-ID"

	mimeJSON = "application/json"
	mimeForm = "application/x-www-form-urlencoded"
)

// TokenSource yields the current session token, "" if there is none.
type TokenSource interface {
	Token() string
}

type Option func(*Client)

// WithHTTPClient sends requests through `hc` (eg. to share a transport).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.rest.HTTPClient = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// Client sends single-attempt requests to the backend: no retry, no timeout of its own.
// Every request carries the default headers; when a TokenSource is set and yields a token,
// it is sent as a bearer credential.
type Client struct {
	baseURL string
	rest    *rest.Client

	mu      sync.RWMutex
	headers map[string]string
	tokens  TokenSource
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    &rest.Client{HTTPClient: http.DefaultClient},
		headers: map[string]string{headerAccept: mimeJSON},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// SetHeader sets a default header sent with every request.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

// SetBearer makes every later request carry `token` as a bearer credential.
func (c *Client) SetBearer(token string) {
	c.SetHeader(headerAuthorization, "Bearer "+token)
}

// ClearBearer stops sending the default bearer credential.
func (c *Client) ClearBearer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.headers, headerAuthorization)
}

func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

func (c *Client) requestHeaders(ctx context.Context) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	headers := make(map[string]string, len(c.headers)+2)
	for k, v := range c.headers {
		headers[k] = v
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			headers[headerAuthorization] = "Bearer " + token
		}
	}
	if reqID := RequestIDFrom(ctx); reqID != "" {
		headers[headerRequestID] = reqID
	}
	return headers
}

// do sends `body` (JSON, or form-encoded if it is url.Values) to `path`, and decodes the
// JSON response into `out` (if not nil).
// Statuses >= 400 are returned as *APIError.
func (c *Client) do(ctx context.Context, method rest.Method, path string, body, out interface{}) error {
	req := rest.Request{
		Method:  method,
		BaseURL: c.baseURL + path,
		Headers: c.requestHeaders(ctx),
	}

	switch b := body.(type) {
	case nil:
	case url.Values:
		req.Headers[headerContentType] = mimeForm
		req.Body = []byte(b.Encode())
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encoding %s %s", method, path)
		}
		req.Headers[headerContentType] = mimeJSON
		req.Body = data
	}

	resp, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp)
	}

	if out != nil {
		if err := json.Unmarshal([]byte(resp.Body), out); err != nil {
			return errors.Wrapf(err, "decoding %s %s", method, path)
		}
	}
	return nil
}

type ctxKey int

const requestIDKey ctxKey = iota

// WithRequestID makes requests sent with the returned context carry `id` as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
