// Package transport sends pre-encoded requests over HTTP without touching their query order.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"binconn/pkg/core"
)

const formContentType = "application/x-www-form-urlencoded"

// Config holds the settings of an HTTP transport.
type Config struct {
	BaseURL string            `validate:"required,url"`
	Timeout time.Duration     `validate:"min=1ms"`
	Headers map[string]string `validate:"omitempty"`
	// HTTPClient replaces the default client, for example to share a pool or use a proxy.
	HTTPClient *http.Client `validate:"-"`
}

// Request is a request whose parameters are already canonical.
type Request struct {
	Method  string
	Path    string
	Query   string
	Headers map[string]string
}

// Response is the raw answer of the server.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// IsSuccess returns true if the response status code indicates success (2xx).
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client wraps a resty client. Retries are disabled; a request is sent exactly once.
type Client struct {
	client  *resty.Client
	logger  zerolog.Logger
	baseURL string

	mu     sync.RWMutex
	closed bool
}

var validate = validator.New()

// NewClient creates a transport for config.BaseURL.
func NewClient(config *Config, logger zerolog.Logger) (*Client, error) {
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}

	var client *resty.Client
	if config.HTTPClient != nil {
		client = resty.NewWithClient(config.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(0)
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})
	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return &Client{
		client:  client,
		logger:  logger,
		baseURL: config.BaseURL,
	}, nil
}

// BaseURL returns the URL every request path is appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends req once. GET and DELETE carry Query after '?', POST and PUT send it
// as a form body. Only network level failures produce an error; any HTTP status
// is returned as a Response.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.ErrClientClosed
	}

	r := c.client.R().SetContext(ctx)
	for k, v := range req.Headers {
		r.SetHeader(k, v)
	}

	target := req.Path
	if core.HasBody(req.Method) {
		r.SetHeader("Content-Type", formContentType)
		r.SetBody(req.Query)
	} else if req.Query != "" {
		target += "?" + req.Query
	}

	var (
		resp *resty.Response
		err  error
	)
	switch req.Method {
	case http.MethodGet:
		resp, err = r.Get(target)
	case http.MethodPost:
		resp, err = r.Post(target)
	case http.MethodPut:
		resp, err = r.Put(target)
	case http.MethodDelete:
		resp, err = r.Delete(target)
	default:
		return nil, fmt.Errorf("unsupported http method: %s", req.Method)
	}

	if err != nil {
		c.logger.Error().Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Msg("http request failed")
		return nil, &core.TransportError{Op: req.Method, URL: c.baseURL + req.Path, Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Bytes(),
		Header:     resp.Header(),
	}, nil
}

// Close releases idle connections. Further calls fail with core.ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}
