// Package rest dispatches public, API-key and signed requests to the exchange REST API.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"binconn/internal/canonical"
	"binconn/internal/circuitbreaker"
	"binconn/internal/ratelimit"
	"binconn/internal/transport"
	"binconn/pkg/core"
	"binconn/pkg/credential"
)

// HeaderAPIKey carries the API key on key and signed requests.
const HeaderAPIKey = "X-MBX-APIKEY"

const orderBucket = "orders"

// Result is a successful response. Body is left undecoded.
type Result struct {
	StatusCode int
	Body       []byte
	// LimitUsage is nil unless limit usage reporting is on and the server sent usage headers.
	LimitUsage transport.LimitUsage
}

// Decode unmarshals the body into v.
func (r *Result) Decode(v any) error {
	return sonic.Unmarshal(r.Body, v)
}

// Field returns a top-level field of the body as a string.
func (r *Result) Field(key string) (string, error) {
	return core.ExtractField(r.Body, key)
}

// Client sends requests synchronously and never retries. It is safe for concurrent use.
type Client struct {
	config    *core.Config
	cred      *credential.Credential
	http      *transport.Client
	limiter   *ratelimit.Limiter
	breaker   *circuitbreaker.Breaker
	logger    zerolog.Logger
	now       func() time.Time
	showUsage atomic.Bool

	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for request and failure logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sends requests through hc instead of a private client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClock replaces time.Now for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a REST client. cred may be nil for a client that only calls public endpoints.
func New(config *core.Config, cred *credential.Credential, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	c := &Client{
		config: config,
		cred:   cred,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.showUsage.Store(config.ShowLimitUsage)

	httpClient, err := transport.NewClient(&transport.Config{
		BaseURL:    config.BaseURL,
		Timeout:    config.Timeout,
		HTTPClient: c.httpClient,
	}, c.logger)
	if err != nil {
		return nil, err
	}
	c.http = httpClient

	if config.RateLimitRequests > 0 || config.OrderRateLimit > 0 {
		c.limiter = ratelimit.New(config.RateLimitRequests, config.RateLimitPeriod)
		if config.OrderRateLimit > 0 {
			c.limiter.AddBucket(orderBucket, config.OrderRateLimit, config.OrderRateLimitPeriod)
		}
	}

	if config.CircuitBreakerEnabled {
		c.breaker = circuitbreaker.New(circuitbreaker.Config{
			FailThreshold:    config.CircuitBreakerFailThreshold,
			SuccessThreshold: config.CircuitBreakerSuccessThreshold,
			Timeout:          config.CircuitBreakerTimeout,
			OnStateChange: func(from, to circuitbreaker.State) {
				c.logger.Warn().
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("circuit breaker state change")
			},
		})
	}

	return c, nil
}

// SetShowLimitUsage toggles attaching rate-limit usage to results.
func (c *Client) SetShowLimitUsage(show bool) {
	c.showUsage.Store(show)
}

// SendPublic sends an unauthenticated request.
func (c *Client) SendPublic(ctx context.Context, path string, params *core.Params, method string) (*Result, error) {
	return c.send(ctx, call{method: method, path: path, params: params, security: core.SecurityNone, weight: 1})
}

// SendWithKey sends a request carrying the API key header but no signature.
func (c *Client) SendWithKey(ctx context.Context, path string, params *core.Params, method string) (*Result, error) {
	return c.send(ctx, call{method: method, path: path, params: params, security: core.SecurityAPIKey, weight: 1})
}

// SendSigned appends timestamp and recvWindow, signs the canonical query and
// sends it with the API key header.
func (c *Client) SendSigned(ctx context.Context, path string, params *core.Params, method string) (*Result, error) {
	return c.send(ctx, call{method: method, path: path, params: params, security: core.SecuritySigned, weight: 1})
}

// Invoke checks the endpoint's mandatory parameters and dispatches according
// to its security type and list encoding. Missing parameters are reported
// before anything is sent.
func (c *Client) Invoke(ctx context.Context, ep core.Endpoint, params *core.Params) (*Result, error) {
	if err := canonical.CheckMandatory(params, ep.Mandatory...); err != nil {
		return nil, err
	}
	return c.send(ctx, call{
		method:   ep.Method,
		path:     ep.Path,
		params:   params,
		security: ep.Security,
		encoding: ep.ListEncoding,
		weight:   ep.Weight,
		orders:   ep.Orders,
	})
}

type call struct {
	method   string
	path     string
	params   *core.Params
	security core.SecurityType
	encoding core.ListEncoding
	weight   int
	orders   int
}

func (c *Client) send(ctx context.Context, cl call) (*Result, error) {
	req, err := c.build(cl)
	if err != nil {
		return nil, err
	}

	if c.breaker != nil && !c.breaker.Allow() {
		return nil, &core.TransportError{Op: cl.method, URL: c.http.BaseURL() + cl.path, Err: core.ErrCircuitBreakerOpen}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, cl.weight); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		if cl.orders > 0 {
			if err := c.limiter.WaitBucket(ctx, orderBucket, cl.orders); err != nil {
				return nil, fmt.Errorf("order rate limit wait: %w", err)
			}
		}
	}

	resp, err := c.http.Do(ctx, req)
	if c.breaker != nil {
		c.breaker.Record(err == nil && resp.StatusCode < http.StatusInternalServerError)
	}
	if err != nil {
		return nil, err
	}

	if !resp.IsSuccess() {
		apiErr := core.NewAPIError(resp.StatusCode, resp.Body)
		c.logger.Debug().
			Str("method", cl.method).
			Str("path", cl.path).
			Int("status", apiErr.StatusCode).
			Int("code", apiErr.Code).
			Str("msg", apiErr.Message).
			Msg("api error")
		return nil, apiErr
	}

	result := &Result{StatusCode: resp.StatusCode, Body: resp.Body}
	if c.showUsage.Load() {
		result.LimitUsage = transport.ParseLimitUsage(resp.Header)
	}
	return result, nil
}

func (c *Client) build(cl call) (*transport.Request, error) {
	req := &transport.Request{Method: cl.method, Path: cl.path}

	switch cl.security {
	case core.SecurityNone:
		query, err := canonical.Encode(cl.params, cl.encoding)
		if err != nil {
			return nil, err
		}
		req.Query = query

	case core.SecurityAPIKey:
		if c.cred == nil {
			return nil, core.ErrNoCredentials
		}
		query, err := canonical.Encode(cl.params, cl.encoding)
		if err != nil {
			return nil, err
		}
		req.Query = query
		req.Headers = map[string]string{HeaderAPIKey: c.cred.APIKey()}

	case core.SecuritySigned:
		if !c.cred.CanSign() {
			return nil, core.ErrNoCredentials
		}
		signed, err := canonical.Sign(cl.params, c.cred.Signer(), canonical.Options{
			RecvWindow:   c.config.RecvWindow,
			ListEncoding: cl.encoding,
			Now:          c.now,
		})
		if err != nil {
			return nil, err
		}
		req.Query = signed.Query()
		req.Headers = map[string]string{HeaderAPIKey: c.cred.APIKey()}

	default:
		return nil, errors.New("unknown security type")
	}

	return req, nil
}

// RateLimitStats counts waits on the client-side pacing budgets.
type RateLimitStats = ratelimit.MetricsSnapshot

// BreakerStats describes the circuit breaker.
type BreakerStats = circuitbreaker.MetricsSnapshot

// Stats is a snapshot of the client-side guards. A field is nil when its
// guard is not configured.
type Stats struct {
	RateLimit *RateLimitStats
	Breaker   *BreakerStats
}

func (c *Client) Stats() Stats {
	var s Stats
	if c.limiter != nil {
		m := c.limiter.Metrics()
		s.RateLimit = &m
	}
	if c.breaker != nil {
		m := c.breaker.Metrics()
		s.Breaker = &m
	}
	return s
}

// ResetBreaker closes the circuit breaker so requests flow again before its
// timeout has passed. It does nothing when the breaker is off.
func (c *Client) ResetBreaker() {
	if c.breaker != nil {
		c.breaker.Reset()
	}
}

// Close releases the underlying HTTP transport.
func (c *Client) Close() error {
	return c.http.Close()
}
