package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"binconn/pkg/core"
	"binconn/pkg/credential"
)

var fixedNow = func() time.Time { return time.UnixMilli(1700000000000) }

func testConfig(url string) *core.Config {
	cfg := core.DefaultConfig()
	cfg.BaseURL = url
	cfg.Timeout = 2 * time.Second
	return cfg
}

func testCredential(t *testing.T) *credential.Credential {
	t.Helper()
	cred, err := credential.NewHMAC("api-key", "secret")
	require.NoError(t, err)
	return cred
}

func newTestClient(t *testing.T, cfg *core.Config, cred *credential.Credential) *Client {
	t.Helper()
	client, err := New(cfg, cred, WithClock(fixedNow))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	cfg := core.DefaultConfig()
	cfg.BaseURL = ""
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestSendSigned_ExactQuery(t *testing.T) {
	var rawQuery, apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		apiKey = r.Header.Get(HeaderAPIKey)
		assert.Equal(t, "/sapi/v1/margin/forceLiquidationRec", r.URL.Path)
		_, _ = w.Write([]byte(`{"rows":[],"total":0}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RecvWindow = 0
	client := newTestClient(t, cfg, testCredential(t))

	params := core.NewParams().Set("startTime", 12345678).Set("endTime", 12345679)
	res, err := client.Invoke(context.Background(), ForceLiquidationRec, params)
	require.NoError(t, err)

	assert.Equal(t, "startTime=12345678&endTime=12345679&timestamp=1700000000000"+
		"&signature=ed632e5e73459797b52b83eef04ab42d6e56e850bd8486cb43ce15f11a8cf84f", rawQuery)
	assert.Equal(t, "api-key", apiKey)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Nil(t, res.LimitUsage)

	// caller's params are not modified
	assert.Equal(t, 2, params.Len())
}

func TestSendSigned_AppendsRecvWindow(t *testing.T) {
	var rawQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), testCredential(t))

	_, err := client.SendSigned(context.Background(), "/api/v3/openOrders", core.NewParams().Set("symbol", "BNBUSDT"), http.MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "symbol=BNBUSDT&timestamp=1700000000000&recvWindow=5000"+
		"&signature=4ed7ad16194bf068098e88de5a80f93b0044dadf0ea82c70f83f79904e6af4db", rawQuery)
}

func TestSendSigned_PostUsesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Empty(t, r.URL.RawQuery)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "symbol=BNBUSDT&side=BUY&type=MARKET&quantity=1&timestamp=1700000000000")
		assert.Contains(t, string(body), "&signature=")
		_, _ = w.Write([]byte(`{"orderId":1}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), testCredential(t))

	params := core.NewParams().
		Set("symbol", "BNBUSDT").
		Set("side", "BUY").
		Set("type", "MARKET").
		Set("quantity", 1)
	res, err := client.Invoke(context.Background(), NewOrder, params)
	require.NoError(t, err)

	id, err := res.Field("orderId")
	require.NoError(t, err)
	assert.Equal(t, "1", id)
}

func TestInvoke_MissingParameterSendsNothing(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), testCredential(t))

	_, err := client.Invoke(context.Background(), NewOrder, core.NewParams().Set("symbol", "BNBUSDT").Set("side", "BUY"))
	require.Error(t, err)
	assert.True(t, core.IsMissingParameter(err))

	var missing *core.MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "type", missing.Name)

	_, err = client.Invoke(context.Background(), Klines, nil)
	assert.True(t, core.IsMissingParameter(err))

	assert.Zero(t, calls.Load())
}

func TestSend_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), nil)

	_, err := client.Invoke(context.Background(), Depth, core.NewParams().Set("symbol", "NOPE"))
	require.Error(t, err)

	var apiErr *core.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, -1121, apiErr.Code)
	assert.Equal(t, "Invalid symbol.", apiErr.Message)
	assert.JSONEq(t, `{"code":-1121,"msg":"Invalid symbol."}`, string(apiErr.Body))
	assert.False(t, core.IsTransportError(err))
}

func TestSend_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestClient(t, testConfig(url), nil)

	_, err := client.SendPublic(context.Background(), "/api/v3/ping", nil, http.MethodGet)
	require.Error(t, err)
	assert.True(t, core.IsTransportError(err))
	assert.False(t, core.IsAPIError(err))
}

func TestSend_NoRetry(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), nil)

	_, err := client.Invoke(context.Background(), Ping, nil)
	require.Error(t, err)
	assert.True(t, core.IsAPIError(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendWithKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "api-key", r.Header.Get(HeaderAPIKey))
		assert.Equal(t, "symbol=BTCUSDT&limit=10", r.URL.RawQuery)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), testCredential(t))

	_, err := client.Invoke(context.Background(), HistoricalTrades, core.NewParams().Set("symbol", "BTCUSDT").Set("limit", 10))
	require.NoError(t, err)
}

func TestSend_NoCredentials(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), nil)

	_, err := client.Invoke(context.Background(), Account, nil)
	assert.ErrorIs(t, err, core.ErrNoCredentials)

	_, err = client.SendWithKey(context.Background(), "/api/v3/userDataStream", nil, http.MethodPost)
	assert.ErrorIs(t, err, core.ErrNoCredentials)

	keyOnly, err := credential.New("api-key", nil)
	require.NoError(t, err)
	client = newTestClient(t, testConfig(server.URL), keyOnly)
	_, err = client.Invoke(context.Background(), Account, nil)
	assert.ErrorIs(t, err, core.ErrNoCredentials)

	assert.Zero(t, calls.Load())
}

func TestSend_LimitUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-MBX-USED-WEIGHT-1M", "42")
		w.Header().Set("X-MBX-ORDER-COUNT-10S", "3")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.ShowLimitUsage = true
	client := newTestClient(t, cfg, nil)

	res, err := client.Invoke(context.Background(), Ping, nil)
	require.NoError(t, err)
	require.NotNil(t, res.LimitUsage)
	assert.Equal(t, "42", res.LimitUsage["x-mbx-used-weight-1m"])
	assert.Equal(t, "3", res.LimitUsage["x-mbx-order-count-10s"])

	client.SetShowLimitUsage(false)
	res, err = client.Invoke(context.Background(), Ping, nil)
	require.NoError(t, err)
	assert.Nil(t, res.LimitUsage)
}

func TestSend_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.WithCircuitBreaker(2, 1, time.Minute)
	client := newTestClient(t, cfg, nil)

	for range 2 {
		_, err := client.Invoke(context.Background(), Ping, nil)
		assert.True(t, core.IsAPIError(err))
	}

	_, err := client.Invoke(context.Background(), Ping, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCircuitBreakerOpen))
	assert.True(t, core.IsTransportError(err))
	assert.Equal(t, int32(2), calls.Load())

	stats := client.Stats()
	require.NotNil(t, stats.Breaker)
	assert.Nil(t, stats.RateLimit)
	assert.Equal(t, "OPEN", stats.Breaker.CurrentState)
	assert.Equal(t, int64(1), stats.Breaker.Rejected)

	client.ResetBreaker()
	_, err = client.Invoke(context.Background(), Ping, nil)
	assert.True(t, core.IsAPIError(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSend_ClientErrorsDoNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1102,"msg":"Mandatory parameter 'symbol' was not sent."}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.WithCircuitBreaker(1, 1, time.Minute)
	client := newTestClient(t, cfg, nil)

	for range 3 {
		_, err := client.SendPublic(context.Background(), "/api/v3/depth", nil, http.MethodGet)
		assert.True(t, core.IsAPIError(err))
	}
}

func TestSend_WeightAboveRateLimitBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbols":[]}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.WithRateLimit(10, time.Second)
	client := newTestClient(t, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := client.Invoke(ctx, ExchangeInfo, nil)
	require.NoError(t, err)

	stats := client.Stats()
	require.NotNil(t, stats.RateLimit)
	assert.Equal(t, int64(20), stats.RateLimit.WeightSpent)
	assert.Zero(t, stats.RateLimit.Rejected)
}

func TestSend_OrderRateLimit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.WithOrderRateLimit(1, time.Minute)
	client := newTestClient(t, cfg, testCredential(t))

	order := core.NewParams().Set("symbol", "BNBUSDT").Set("side", "BUY").Set("type", "MARKET")
	_, err := client.Invoke(context.Background(), NewOrder, order)
	require.NoError(t, err)

	// queries do not count against the order budget
	_, err = client.Invoke(context.Background(), OpenOrders, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Invoke(ctx, NewOrder, order)
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())

	stats := client.Stats()
	require.NotNil(t, stats.RateLimit)
	assert.Equal(t, 1, stats.RateLimit.Buckets)
	assert.Equal(t, int64(1), stats.RateLimit.Rejected)
}

func TestCreateUserStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/userDataStream", r.URL.Path)
		_, _ = w.Write([]byte(`{"listenKey":"abc123"}`))
	}))
	defer server.Close()

	client := newTestClient(t, testConfig(server.URL), testCredential(t))

	key, err := client.CreateUserStream(context.Background(), CreateListenKey)
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)
}

func TestEndpoints_Valid(t *testing.T) {
	names := make(map[string]bool)
	for _, ep := range Endpoints() {
		assert.NoError(t, ep.Validate(), ep.Name)
		assert.False(t, names[ep.Name], "duplicate endpoint %s", ep.Name)
		names[ep.Name] = true
		assert.Positive(t, ep.Weight, ep.Name)
	}
}
