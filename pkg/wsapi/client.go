// Package wsapi is a request/response client for the exchange websocket API.
// Requests are matched to responses by id; everything else goes to the
// callback given to Connect.
package wsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"binconn/internal/canonical"
	"binconn/internal/ws"
	"binconn/pkg/core"
	"binconn/pkg/credential"
)

// Client owns at most one socket at a time. It is safe for concurrent use.
type Client struct {
	config *core.Config
	cred   *credential.Credential
	logger zerolog.Logger
	now    func() time.Time
	newID  func() string
	state  ws.State

	mu      sync.Mutex
	conn    *ws.Conn
	current *socketHandler
	pending map[string]*Call
	onEvent func(Event)
	stop    chan struct{}
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock replaces time.Now for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithIDGenerator replaces the UUID generator used for request ids.
func WithIDGenerator(newID func() string) Option {
	return func(c *Client) {
		c.newID = newID
	}
}

// New creates a disconnected client for config.WSAPIURL. cred may be nil when
// no signed or keyed requests are made.
func New(config *core.Config, cred *credential.Credential, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if config.WSAPIURL == "" {
		return nil, fmt.Errorf("websocket API URL is required")
	}

	c := &Client{
		config:  config,
		cred:    cred,
		logger:  zerolog.Nop(),
		now:     time.Now,
		newID:   uuid.NewString,
		pending: make(map[string]*Call),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type socketHandler struct {
	client *Client
}

func (h *socketHandler) OnMessage(data []byte) { h.client.dispatch(data) }
func (h *socketHandler) OnClose(err error)     { h.client.dropped(h, err) }

// Connect opens the socket. onEvent receives unsolicited frames and lifecycle
// events on the read goroutine and may be nil. Calling Connect while a
// connection is open or being opened returns core.ErrAlreadyConnected.
func (c *Client) Connect(ctx context.Context, onEvent func(Event)) error {
	if !c.state.CompareAndSwap(ws.StateDisconnected, ws.StateConnecting) {
		if c.state.Load() == ws.StateClosing {
			return fmt.Errorf("connect: client is closing")
		}
		return core.ErrAlreadyConnected
	}

	c.mu.Lock()
	c.onEvent = onEvent
	if c.stop == nil {
		c.stop = make(chan struct{})
	}
	c.mu.Unlock()

	return c.dial(ctx)
}

// dial expects the state to be Connecting.
func (c *Client) dial(ctx context.Context) error {
	h := &socketHandler{client: c}
	c.mu.Lock()
	c.current = h
	c.mu.Unlock()

	conn, err := ws.Dial(ctx, ws.Config{
		URL:              c.config.WSAPIURL,
		HandshakeTimeout: c.config.Timeout,
		PingInterval:     c.config.PingInterval,
	}, h, c.logger)
	if err != nil {
		c.mu.Lock()
		if c.current == h {
			c.current = nil
		}
		c.mu.Unlock()
		c.state.CompareAndSwap(ws.StateConnecting, ws.StateDisconnected)
		return &core.TransportError{Op: "dial", URL: c.config.WSAPIURL, Err: err}
	}

	c.mu.Lock()
	if c.current != h || c.state.Load() != ws.StateConnecting {
		// closed or dropped before the handshake finished
		c.mu.Unlock()
		_ = conn.Close()
		return core.ErrConnectionClosed
	}
	c.conn = conn
	c.state.Store(ws.StateConnected)
	c.mu.Unlock()

	c.logger.Info().Str("url", c.config.WSAPIURL).Msg("websocket API connected")
	c.emit(Event{Type: EventOpen})
	return nil
}

type requestOptions struct {
	id     string
	signed bool
	keyed  bool
}

// RequestOption modifies a single request.
type RequestOption func(*requestOptions)

// Signed adds apiKey, timestamp, recvWindow and signature to the params.
func Signed() RequestOption {
	return func(o *requestOptions) {
		o.signed = true
	}
}

// WithAPIKey adds only the apiKey param, for methods that need the key but no signature.
func WithAPIKey() RequestOption {
	return func(o *requestOptions) {
		o.keyed = true
	}
}

// WithRequestID uses id instead of a generated one.
func WithRequestID(id string) RequestOption {
	return func(o *requestOptions) {
		o.id = id
	}
}

type outboundFrame struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Request sends method with params and returns without waiting for the answer.
// A "requestId" entry in params is removed and used as the id unless
// WithRequestID is given. params is not modified.
func (c *Client) Request(ctx context.Context, method string, params *core.Params, opts ...RequestOption) (*Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	p := params.Clone()
	if v, ok := p.Get("requestId"); ok {
		p.Delete("requestId")
		if ro.id == "" && v != nil {
			ro.id = fmt.Sprint(v)
		}
	}
	if ro.id == "" {
		ro.id = c.newID()
	}

	p, err := c.authorize(p, ro)
	if err != nil {
		return nil, err
	}

	frame := outboundFrame{ID: ro.id, Method: method}
	if p.Len() > 0 {
		frame.Params, err = canonical.EncodeJSON(p)
		if err != nil {
			return nil, err
		}
	}
	data, err := sonic.Marshal(&frame)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	call := newCall(ro.id, method)

	c.mu.Lock()
	conn := c.conn
	if conn == nil || c.state.Load() != ws.StateConnected {
		c.mu.Unlock()
		return nil, core.ErrNotConnected
	}
	if _, dup := c.pending[ro.id]; dup {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", core.ErrDuplicateRequestID, ro.id)
	}
	c.pending[ro.id] = call
	c.mu.Unlock()

	c.logger.Debug().Str("id", ro.id).Str("method", method).Msg("sending request")

	if err := conn.Write(data); err != nil {
		c.mu.Lock()
		if c.pending[ro.id] == call {
			delete(c.pending, ro.id)
		}
		c.mu.Unlock()
		return nil, &core.TransportError{Op: "write", URL: conn.URL(), Err: err}
	}
	return call, nil
}

func (c *Client) authorize(p *core.Params, ro requestOptions) (*core.Params, error) {
	switch {
	case ro.signed:
		if !c.cred.CanSign() {
			return nil, core.ErrNoCredentials
		}
		if !p.Has("apiKey") {
			p.Set("apiKey", c.cred.APIKey())
		}
		signed, err := canonical.Sign(p, c.cred.Signer(), canonical.Options{
			RecvWindow:   c.config.RecvWindow,
			ListEncoding: core.ListJSON,
			Now:          c.now,
		})
		if err != nil {
			return nil, err
		}
		return signed.Params.Set("signature", signed.Signature), nil

	case ro.keyed:
		if c.cred == nil {
			return nil, core.ErrNoCredentials
		}
		if !p.Has("apiKey") {
			p.Set("apiKey", c.cred.APIKey())
		}
	}
	return p, nil
}

// Do sends a request and waits for its response.
func (c *Client) Do(ctx context.Context, method string, params *core.Params, opts ...RequestOption) (*Response, error) {
	call, err := c.Request(ctx, method, params, opts...)
	if err != nil {
		return nil, err
	}
	return call.Wait(ctx)
}

func (c *Client) dispatch(data []byte) {
	id := frameID(data)
	var frame inboundFrame
	decodeErr := sonic.Unmarshal(data, &frame)

	if id != "" {
		c.mu.Lock()
		call, ok := c.pending[id]
		if ok {
			delete(c.pending, id)
		}
		c.mu.Unlock()

		if ok {
			if decodeErr != nil {
				c.logger.Warn().Err(decodeErr).Str("id", id).Msg("malformed response")
				call.resolve(&Response{ID: id, Raw: data}, fmt.Errorf("decode response %s: %w", id, decodeErr))
				return
			}
			resp := frame.response(id, data)
			if resp.Error != nil {
				call.resolve(resp, resp.Error)
			} else {
				call.resolve(resp, nil)
			}
			return
		}
		c.logger.Debug().Str("id", id).Msg("response without pending request")
	}

	if decodeErr != nil {
		c.logger.Warn().Err(decodeErr).Int("size", len(data)).Msg("dropping malformed frame")
		return
	}
	c.emit(Event{Type: EventMessage, Data: data})
}

func (c *Client) dropped(h *socketHandler, err error) {
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.conn = nil
	pending := c.takePending()
	stop := c.stop
	c.state.Store(ws.StateDisconnected)
	c.mu.Unlock()

	failAll(pending)
	c.emit(Event{Type: EventClosed, Err: err})

	if c.config.Reconnect.Enabled && stop != nil {
		go c.reconnect(stop)
	}
}

func (c *Client) reconnect(stop <-chan struct{}) {
	rc := c.config.Reconnect
	for attempt := 0; rc.MaxAttempts == 0 || attempt < rc.MaxAttempts; attempt++ {
		wait := ws.Backoff(attempt, rc.BaseWait, rc.MaxWait)
		c.emit(Event{Type: EventReconnecting, Attempt: attempt + 1})
		c.logger.Info().
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Msg("attempting reconnect")

		select {
		case <-time.After(wait):
		case <-stop:
			return
		}

		if !c.state.CompareAndSwap(ws.StateDisconnected, ws.StateConnecting) {
			return
		}
		select {
		case <-stop:
			c.state.CompareAndSwap(ws.StateConnecting, ws.StateDisconnected)
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
		err := c.dial(ctx)
		cancel()
		if err == nil {
			c.logger.Info().Int("attempt", attempt+1).Msg("reconnected")
			return
		}
		if errors.Is(err, core.ErrConnectionClosed) {
			return
		}
		c.logger.Error().Err(err).Int("attempt", attempt+1).Msg("reconnect failed")
	}

	c.emit(Event{Type: EventError, Err: fmt.Errorf("reconnect: gave up after %d attempts", rc.MaxAttempts)})
}

// Close closes the socket and fails every pending call with
// core.ErrConnectionClosed. It also stops a running reconnect loop.
// Calling Close on a closed client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	st := c.state.Load()
	if st == ws.StateClosing {
		c.mu.Unlock()
		return nil
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	conn := c.conn
	wasOpen := c.current != nil
	c.conn = nil
	c.current = nil
	pending := c.takePending()
	if st != ws.StateDisconnected {
		c.state.Store(ws.StateClosing)
	}
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	failAll(pending)
	c.state.Store(ws.StateDisconnected)

	if wasOpen {
		c.logger.Info().Str("url", c.config.WSAPIURL).Msg("websocket API closed")
		c.emit(Event{Type: EventClosed})
	}
	return err
}

// State returns the connection state.
func (c *Client) State() ConnState {
	return c.state.Load()
}

// Pending returns the number of requests waiting for a response.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// takePending must be called with mu held.
func (c *Client) takePending() map[string]*Call {
	pending := c.pending
	c.pending = make(map[string]*Call)
	return pending
}

func failAll(pending map[string]*Call) {
	for _, call := range pending {
		call.resolve(nil, core.ErrConnectionClosed)
	}
}

func (c *Client) emit(e Event) {
	c.mu.Lock()
	onEvent := c.onEvent
	c.mu.Unlock()

	if onEvent != nil {
		onEvent(e)
	}
}
