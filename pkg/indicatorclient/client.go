// Package indicatorclient is a client for the stock indicator calculation
// service. Every public method maps onto one REST endpoint; responses are
// returned as opaque JSON payloads.
package indicatorclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/indicator-client/pkg/httpclient"
)

const (
	// DefaultBaseURL is the loopback address the service listens on by default.
	DefaultBaseURL = "http://127.0.0.1:8000"
	// DefaultTimeout bounds every single HTTP round trip.
	DefaultTimeout = 30 * time.Second
)

// Client talks to the indicator service. It holds no mutable state after
// construction and is safe for concurrent use.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     httpclient.Client
	log      Logger
	observer Observer
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the resty transport.
func WithHTTPClient(hc httpclient.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger attaches a logger used for request diagnostics.
func WithLogger(log Logger) Option {
	return func(c *Client) { c.log = ensureLogger(log) }
}

// WithObserver attaches a request/poll observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New builds a client for baseURL. An empty baseURL falls back to
// DefaultBaseURL; trailing slashes are stripped.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: baseURL,
		timeout: DefaultTimeout,
		log:     noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http == nil {
		c.http = httpclient.NewRestyClient(c.timeout)
	}
	return c
}

// BaseURL returns the normalized service address.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

var jsonHeaders = map[string]string{
	"Content-Type": "application/json",
	"Accept":       "application/json",
}

// dispatch issues one request against baseURL+path and decodes the JSON reply.
// body is only sent for POST and PUT.
func (c *Client) dispatch(ctx context.Context, method, path string, body any, query params) (Payload, error) {
	target := c.baseURL + path
	if q := query.Encode(); q != "" {
		target += "?" + q
	}

	req := httpclient.Request{
		Method:  method,
		URL:     target,
		Headers: jsonHeaders,
	}
	if body != nil && (method == http.MethodPost || method == http.MethodPut) {
		raw, err := json.Marshal(body)
		if err != nil {
			return Payload{}, &RequestError{Method: method, Path: path, Err: fmt.Errorf("encode request body: %w", err)}
		}
		req.Body = raw
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.observe(method, path, 0, start, err)
		return Payload{}, c.failed(&RequestError{Method: method, Path: path, Err: err})
	}

	code := resp.StatusCode()
	if code < http.StatusOK || code >= http.StatusMultipleChoices {
		reqErr := &RequestError{Method: method, Path: path, StatusCode: code, Status: resp.Status()}
		c.observe(method, path, code, start, reqErr)
		return Payload{}, c.failed(reqErr)
	}

	payload, err := newPayload(resp.Body())
	if err != nil {
		reqErr := &RequestError{Method: method, Path: path, StatusCode: code, Err: err}
		c.observe(method, path, code, start, reqErr)
		return Payload{}, c.failed(reqErr)
	}

	c.observe(method, path, code, start, nil)
	return payload, nil
}

func (c *Client) failed(err *RequestError) error {
	c.log.DebugObj("indicator service request failed", "request_error", map[string]any{
		"method":      err.Method,
		"path":        err.Path,
		"status_code": err.StatusCode,
		"error":       err.Error(),
	})
	return err
}

func (c *Client) observe(method, path string, code int, start time.Time, err error) {
	if c.observer == nil {
		return
	}
	c.observer.ObserveRequest(method, path, code, time.Since(start), err)
}
