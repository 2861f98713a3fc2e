// Package ws wraps a single gws client socket with keepalive and a
// message/close callback, shared by the websocket API and stream clients.
package ws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lxzan/gws"
	"github.com/rs/zerolog"

	"binconn/pkg/core"
)

// Config describes one websocket connection.
type Config struct {
	URL    string
	Header http.Header
	// HandshakeTimeout bounds the upgrade; a context deadline shortens it further.
	HandshakeTimeout time.Duration
	// PingInterval of 0 disables client pings and the read deadline.
	PingInterval time.Duration
	PongWait     time.Duration
}

// Handler receives the frames and the end of one connection.
// Both methods run on the connection's read goroutine.
type Handler interface {
	// OnMessage gets a copy of the frame payload that it may keep.
	OnMessage(data []byte)
	OnClose(err error)
}

// Conn is an open websocket. Writes are safe for concurrent use.
type Conn struct {
	config  Config
	socket  *gws.Conn
	handler Handler
	logger  zerolog.Logger

	opened    chan struct{}
	done      chan struct{}
	closeErr  error
	closed    atomic.Bool
	abandoned atomic.Bool
	closeOnce sync.Once
}

type eventHandler struct {
	conn *Conn
}

// Dial opens a connection and returns once the handshake completed and the
// read loop is running.
func Dial(ctx context.Context, config Config, handler Handler, logger zerolog.Logger) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.PongWait == 0 {
		config.PongWait = 20 * time.Second
	}

	timeout := config.HandshakeTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); timeout == 0 || d < timeout {
			timeout = d
		}
	}

	c := &Conn{
		config:  config,
		handler: handler,
		logger:  logger,
		opened:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	socket, _, err := gws.NewClient(&eventHandler{conn: c}, &gws.ClientOption{
		Addr:             config.URL,
		RequestHeader:    config.Header,
		HandshakeTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", config.URL, err)
	}
	c.socket = socket

	go socket.ReadLoop()

	select {
	case <-c.opened:
	case <-c.done:
		return nil, fmt.Errorf("dial %s: %w", config.URL, c.closeErr)
	case <-ctx.Done():
		c.abandoned.Store(true)
		_ = socket.NetConn().Close()
		return nil, ctx.Err()
	}

	if config.PingInterval > 0 {
		go c.keepalive()
	}
	return c, nil
}

func (h *eventHandler) OnOpen(socket *gws.Conn) {
	h.conn.extendDeadline(socket)
	close(h.conn.opened)
}

func (h *eventHandler) OnClose(socket *gws.Conn, err error) {
	c := h.conn
	c.closeErr = err
	close(c.done)

	if c.abandoned.Load() {
		return
	}
	if !c.closed.Load() {
		c.logger.Warn().Err(err).Str("url", c.config.URL).Msg("websocket disconnected")
	}
	c.handler.OnClose(err)
}

func (h *eventHandler) OnPing(socket *gws.Conn, payload []byte) {
	h.conn.extendDeadline(socket)
	_ = socket.WritePong(payload)
}

func (h *eventHandler) OnPong(socket *gws.Conn, payload []byte) {
	h.conn.extendDeadline(socket)
}

func (h *eventHandler) OnMessage(socket *gws.Conn, message *gws.Message) {
	data := bytes.Clone(message.Bytes())
	message.Close()

	if len(data) == 0 {
		return
	}
	h.conn.handler.OnMessage(data)
}

func (c *Conn) extendDeadline(socket *gws.Conn) {
	if c.config.PingInterval > 0 {
		_ = socket.SetDeadline(time.Now().Add(c.config.PingInterval + c.config.PongWait))
	}
}

func (c *Conn) keepalive() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.socket.WritePing(nil); err != nil {
				c.logger.Debug().Err(err).Str("url", c.config.URL).Msg("ping failed")
				return
			}
		}
	}
}

// Write sends a text frame.
func (c *Conn) Write(data []byte) error {
	if c.closed.Load() {
		return core.ErrNotConnected
	}
	select {
	case <-c.done:
		return core.ErrNotConnected
	default:
	}
	return c.socket.WriteMessage(gws.OpcodeText, data)
}

// WriteJSON marshals v with sonic and sends it as a text frame.
func (c *Conn) WriteJSON(v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	return c.Write(data)
}

// Close drops the connection. The handler's OnClose still runs once the read
// loop notices. Calling Close more than once is a no-op.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if cerr := c.socket.NetConn().Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	})
	return err
}

// Done is closed after the read loop has stopped.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// URL returns the address the connection was dialed with.
func (c *Conn) URL() string {
	return c.config.URL
}

// MaxBackoff caps Backoff when no max is given.
const MaxBackoff = 10 * time.Minute

// Backoff returns base*2^attempt capped at max, or at MaxBackoff when max is 0.
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if max <= 0 {
		max = MaxBackoff
	}
	wait := base
	for range attempt {
		if wait >= max/2 {
			return max
		}
		wait *= 2
	}
	return min(wait, max)
}
