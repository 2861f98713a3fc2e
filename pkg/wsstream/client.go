// Package wsstream subscribes to market and user data streams. Every
// subscription owns its own socket and inbound frames are passed on untouched.
package wsstream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"binconn/internal/ws"
	"binconn/pkg/core"
)

// ConnectionID identifies one stream socket.
type ConnectionID string

// Event is one inbound frame. Stream is the name the connection was opened
// with; for combined streams it is the slash-joined list.
type Event struct {
	ConnectionID ConnectionID
	Stream       string
	Data         []byte
}

// Client manages independent stream sockets. It is safe for concurrent use.
type Client struct {
	config  *core.Config
	logger  zerolog.Logger
	onError func(ConnectionID, error)

	mu    sync.Mutex
	conns map[ConnectionID]*streamConn
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithErrorHandler is called when a connection is lost for good, either
// because reconnect is off or because it gave up.
func WithErrorHandler(fn func(ConnectionID, error)) Option {
	return func(c *Client) {
		c.onError = fn
	}
}

// New creates a client for config.StreamURL.
func New(config *core.Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if config.StreamURL == "" {
		return nil, fmt.Errorf("stream URL is required")
	}

	c := &Client{
		config: config,
		logger: zerolog.Nop(),
		conns:  make(map[ConnectionID]*streamConn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type streamConn struct {
	id      ConnectionID
	stream  string
	url     string
	onEvent func(Event)
	client  *Client
	closed  atomic.Bool

	// guarded by client.mu
	conn      *ws.Conn
	current   *socketHandler
	redialing bool
}

// socketHandler is created per dial so callbacks of a replaced socket can be ignored.
type socketHandler struct {
	s *streamConn
}

func (h *socketHandler) OnMessage(data []byte) {
	h.s.onEvent(Event{ConnectionID: h.s.id, Stream: h.s.stream, Data: data})
}

func (h *socketHandler) OnClose(err error) {
	h.s.client.dropped(h, err)
}

// Subscribe opens a socket for a single raw stream such as btcusdt@aggTrade.
func (c *Client) Subscribe(ctx context.Context, stream string, onEvent func(Event)) (ConnectionID, error) {
	if stream == "" {
		return "", &core.MissingParameterError{Name: "stream"}
	}
	return c.open(ctx, stream, c.baseURL()+"/ws/"+stream, onEvent)
}

// CombineStreams opens one socket carrying several streams. Frames arrive
// wrapped as {"stream":...,"data":...}; see SplitCombined.
func (c *Client) CombineStreams(ctx context.Context, streams []string, onEvent func(Event)) (ConnectionID, error) {
	if len(streams) == 0 {
		return "", &core.InvalidParameterError{Name: "streams", Reason: "at least one stream is required"}
	}
	if slices.Contains(streams, "") {
		return "", &core.InvalidParameterError{Name: "streams", Reason: "empty stream name"}
	}
	joined := strings.Join(streams, "/")
	return c.open(ctx, joined, c.baseURL()+"/stream?streams="+joined, onEvent)
}

// ListenUserStream opens the user data stream for a listen key obtained
// through the REST user data stream endpoints.
func (c *Client) ListenUserStream(ctx context.Context, listenKey string, onEvent func(Event)) (ConnectionID, error) {
	if listenKey == "" {
		return "", &core.MissingParameterError{Name: "listenKey"}
	}
	return c.open(ctx, listenKey, c.baseURL()+"/ws/"+listenKey, onEvent)
}

func (c *Client) baseURL() string {
	return strings.TrimRight(c.config.StreamURL, "/")
}

func (c *Client) open(ctx context.Context, stream, url string, onEvent func(Event)) (ConnectionID, error) {
	if onEvent == nil {
		return "", fmt.Errorf("event callback is required")
	}

	s := &streamConn{
		id:      ConnectionID(uuid.NewString()),
		stream:  stream,
		url:     url,
		onEvent: onEvent,
		client:  c,
	}

	// Registered before dialing so a drop during the handshake can unlist it.
	h := &socketHandler{s: s}
	c.mu.Lock()
	c.conns[s.id] = s
	s.current = h
	c.mu.Unlock()

	conn, err := ws.Dial(ctx, c.wsConfig(url), h, c.logger)
	if err != nil {
		c.unlist(s)
		return "", &core.TransportError{Op: "dial", URL: url, Err: err}
	}

	c.mu.Lock()
	if c.conns[s.id] != s || s.current != h || s.closed.Load() {
		c.mu.Unlock()
		c.unlist(s)
		_ = conn.Close()
		return "", &core.TransportError{Op: "dial", URL: url, Err: core.ErrConnectionClosed}
	}
	s.conn = conn
	c.mu.Unlock()

	c.logger.Info().
		Str("id", string(s.id)).
		Str("stream", stream).
		Msg("stream connected")
	return s.id, nil
}

func (c *Client) wsConfig(url string) ws.Config {
	return ws.Config{
		URL:              url,
		HandshakeTimeout: c.config.Timeout,
		PingInterval:     c.config.PingInterval,
	}
}

func (c *Client) unlist(s *streamConn) {
	c.mu.Lock()
	if c.conns[s.id] == s {
		delete(c.conns, s.id)
	}
	c.mu.Unlock()
}

func (c *Client) dropped(h *socketHandler, err error) {
	s := h.s
	if s.closed.Load() {
		return
	}

	reconnect := c.config.Reconnect.Enabled
	c.mu.Lock()
	if s.current != h {
		c.mu.Unlock()
		return
	}
	s.current = nil
	opening := s.conn == nil
	redialing := s.redialing
	if !opening && !redialing && reconnect {
		s.redialing = true
	}
	c.mu.Unlock()

	switch {
	case redialing:
		// the redial loop sees the lost attempt
	case opening:
		// open reports the failure; the caller never saw this id
		c.unlist(s)
		c.logger.Warn().Err(err).Str("stream", s.stream).Msg("stream dropped while connecting")
	case reconnect:
		go c.redial(s)
	default:
		c.lost(s, err)
	}
}

func (c *Client) lost(s *streamConn, err error) {
	c.unlist(s)

	c.logger.Warn().Err(err).Str("id", string(s.id)).Str("stream", s.stream).Msg("stream lost")
	if c.onError != nil {
		c.onError(s.id, err)
	}
}

func (c *Client) redial(s *streamConn) {
	rc := c.config.Reconnect
	var lastErr error
	for attempt := 0; rc.MaxAttempts == 0 || attempt < rc.MaxAttempts; attempt++ {
		wait := ws.Backoff(attempt, rc.BaseWait, rc.MaxWait)
		c.logger.Info().
			Str("stream", s.stream).
			Dur("wait", wait).
			Int("attempt", attempt+1).
			Msg("attempting stream reconnect")
		time.Sleep(wait)
		if s.closed.Load() {
			return
		}

		h := &socketHandler{s: s}
		c.mu.Lock()
		s.current = h
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
		conn, err := ws.Dial(ctx, c.wsConfig(s.url), h, c.logger)
		cancel()
		if err != nil {
			lastErr = err
			c.logger.Error().Err(err).Str("stream", s.stream).Int("attempt", attempt+1).Msg("stream reconnect failed")
			continue
		}

		c.mu.Lock()
		if s.closed.Load() {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		if s.current != h {
			c.mu.Unlock()
			_ = conn.Close()
			lastErr = core.ErrConnectionClosed
			continue
		}
		s.conn = conn
		s.redialing = false
		c.mu.Unlock()

		c.logger.Info().Str("stream", s.stream).Msg("stream reconnected")
		return
	}
	c.lost(s, fmt.Errorf("reconnect gave up after %d attempts: %w", rc.MaxAttempts, lastErr))
}

// CloseConnection closes one stream socket.
func (c *Client) CloseConnection(id ConnectionID) error {
	c.mu.Lock()
	s, ok := c.conns[id]
	if ok {
		delete(c.conns, id)
		s.closed.Store(true)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown connection %s", id)
	}
	return s.close()
}

// CloseAllConnections closes every socket. A failure on one socket does not
// stop the others; all failures are joined.
func (c *Client) CloseAllConnections() error {
	c.mu.Lock()
	conns := c.conns
	c.conns = make(map[ConnectionID]*streamConn)
	for _, s := range conns {
		s.closed.Store(true)
	}
	c.mu.Unlock()

	var errs []error
	for _, s := range conns {
		if err := s.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.id, err))
		}
	}
	return errors.Join(errs...)
}

func (s *streamConn) close() error {
	s.client.mu.Lock()
	conn := s.conn
	s.client.mu.Unlock()

	if conn == nil {
		// still dialing; open closes the socket when the handshake returns
		return nil
	}
	s.client.logger.Info().Str("id", string(s.id)).Str("stream", s.stream).Msg("stream closed")
	return conn.Close()
}

// Connections lists the open connection ids in sorted order. Sockets still
// being dialed are left out.
func (c *Client) Connections() []ConnectionID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]ConnectionID, 0, len(c.conns))
	for id, s := range c.conns {
		if s.conn != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Stream returns the stream name of an open connection.
func (c *Client) Stream(id ConnectionID) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.conns[id]
	if !ok || s.conn == nil {
		return "", false
	}
	return s.stream, true
}
