package wsapi

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bytedance/sonic"

	"binconn/pkg/core"
)

// Response is the answer to one request.
type Response struct {
	ID     string
	Status int
	// Result is the raw "result" member, nil on errors.
	Result []byte
	// RateLimits is the raw "rateLimits" member when the server sent one.
	RateLimits []byte
	// Raw is the whole frame.
	Raw   []byte
	Error *core.APIError
}

// Decode unmarshals the result into v.
func (r *Response) Decode(v any) error {
	return sonic.Unmarshal(r.Result, v)
}

// Call is an in-flight request. It completes exactly once, with a response or
// with core.ErrConnectionClosed.
type Call struct {
	id     string
	method string

	once sync.Once
	done chan struct{}
	resp *Response
	err  error
}

func newCall(id, method string) *Call {
	return &Call{id: id, method: method, done: make(chan struct{})}
}

func (c *Call) ID() string     { return c.id }
func (c *Call) Method() string { return c.method }

// Done is closed when the call completes.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call completes or ctx ends. A non-2xx response is
// returned together with its *core.APIError. Giving up on ctx does not cancel
// the call; a late answer is discarded.
func (c *Call) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Call) resolve(resp *Response, err error) {
	c.once.Do(func() {
		c.resp = resp
		c.err = err
		close(c.done)
	})
}

type inboundFrame struct {
	Status     int             `json:"status"`
	Result     json.RawMessage `json:"result"`
	RateLimits json.RawMessage `json:"rateLimits"`
	Error      *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

// frameID reads the id member on its own so a response whose other members
// do not decode can still be matched. Numeric ids are returned as written.
func frameID(data []byte) string {
	node, err := sonic.Get(data, "id")
	if err != nil {
		return ""
	}
	raw, err := node.Raw()
	if err != nil || raw == "" || raw == "null" {
		return ""
	}
	if raw[0] == '"' {
		id, err := node.String()
		if err != nil {
			return ""
		}
		return id
	}
	if raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9') {
		return raw
	}
	return ""
}

func (f *inboundFrame) response(id string, raw []byte) *Response {
	resp := &Response{
		ID:         id,
		Status:     f.Status,
		Result:     f.Result,
		RateLimits: f.RateLimits,
		Raw:        raw,
	}
	if f.Error != nil || (f.Status != 0 && (f.Status < 200 || f.Status > 299)) {
		if f.Error != nil {
			resp.Error = core.NewAPIErrorWithCode(f.Status, f.Error.Code, f.Error.Msg, raw)
		} else {
			resp.Error = core.NewAPIError(f.Status, raw)
		}
		resp.Result = nil
	}
	return resp
}
