package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lxzan/gws"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binconn/pkg/core"
)

type echoServer struct {
	gws.BuiltinEventHandler
}

func (echoServer) OnMessage(socket *gws.Conn, message *gws.Message) {
	defer message.Close()
	_ = socket.WriteMessage(message.Opcode, message.Bytes())
}

func newEchoServer(t *testing.T) string {
	t.Helper()
	upgrader := gws.NewUpgrader(&echoServer{}, &gws.ServerOption{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r)
		if err != nil {
			return
		}
		go socket.ReadLoop()
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

type recorder struct {
	messages chan []byte
	closed   chan error
}

func newRecorder() *recorder {
	return &recorder{messages: make(chan []byte, 16), closed: make(chan error, 1)}
}

func (r *recorder) OnMessage(data []byte) { r.messages <- data }
func (r *recorder) OnClose(err error)     { r.closed <- err }

func TestConnState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closing", StateClosing.String())
	assert.Equal(t, "unknown", ConnState(42).String())
}

func TestState_CompareAndSwap(t *testing.T) {
	var s State
	assert.Equal(t, StateDisconnected, s.Load())
	assert.True(t, s.CompareAndSwap(StateDisconnected, StateConnecting))
	assert.False(t, s.CompareAndSwap(StateDisconnected, StateConnecting))
	s.Store(StateConnected)
	assert.Equal(t, StateConnected, s.Load())
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{100, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Backoff(tt.attempt, time.Second, 30*time.Second), "attempt %d", tt.attempt)
	}
}

func TestBackoff_Uncapped(t *testing.T) {
	assert.Equal(t, 40*time.Second, Backoff(2, 10*time.Second, 0))
	assert.Equal(t, MaxBackoff, Backoff(30, 10*time.Second, 0))
	assert.Equal(t, MaxBackoff, Backoff(1000, time.Hour, 0))
	assert.Equal(t, time.Duration(0), Backoff(3, 0, time.Second))
}

func TestDial_WriteAndReceive(t *testing.T) {
	url := newEchoServer(t)
	rec := newRecorder()

	conn, err := Dial(context.Background(), Config{URL: url}, rec, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, url, conn.URL())

	require.NoError(t, conn.Write([]byte(`{"hello":"world"}`)))
	select {
	case msg := <-rec.messages:
		assert.JSONEq(t, `{"hello":"world"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no echo received")
	}

	require.NoError(t, conn.WriteJSON(map[string]int{"id": 1}))
	select {
	case msg := <-rec.messages:
		assert.JSONEq(t, `{"id":1}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no echo received")
	}

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case <-rec.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnClose not called")
	}
	<-conn.Done()

	assert.ErrorIs(t, conn.Write([]byte("late")), core.ErrNotConnected)
}

func TestDial_Failure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	_, err := Dial(context.Background(), Config{URL: url, HandshakeTimeout: time.Second}, newRecorder(), zerolog.Nop())
	assert.Error(t, err)
}

func TestDial_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, Config{URL: "ws://127.0.0.1:1"}, newRecorder(), zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDial_Keepalive(t *testing.T) {
	url := newEchoServer(t)
	rec := newRecorder()

	conn, err := Dial(context.Background(), Config{URL: url, PingInterval: 20 * time.Millisecond, PongWait: time.Second}, rec, zerolog.Nop())
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(100 * time.Millisecond)

	select {
	case <-conn.Done():
		t.Fatal("connection dropped while pinging")
	default:
	}
}
