package rest

import (
	"context"
	"net/http"

	"binconn/pkg/core"
)

func get(name, path string) core.Endpoint    { return core.NewEndpoint(name, http.MethodGet, path) }
func post(name, path string) core.Endpoint   { return core.NewEndpoint(name, http.MethodPost, path) }
func put(name, path string) core.Endpoint    { return core.NewEndpoint(name, http.MethodPut, path) }
func remove(name, path string) core.Endpoint { return core.NewEndpoint(name, http.MethodDelete, path) }

// Spot endpoints.
var (
	Ping             = get("ping", "/api/v3/ping")
	ServerTime       = get("time", "/api/v3/time")
	ExchangeInfo     = get("exchangeInfo", "/api/v3/exchangeInfo").WithListEncoding(core.ListJSON).WithWeight(20)
	Depth            = get("depth", "/api/v3/depth").WithMandatory("symbol").WithWeight(5)
	Trades           = get("trades", "/api/v3/trades").WithMandatory("symbol").WithWeight(25)
	HistoricalTrades = get("historicalTrades", "/api/v3/historicalTrades").WithMandatory("symbol").WithSecurity(core.SecurityAPIKey).WithWeight(25)
	AggTrades        = get("aggTrades", "/api/v3/aggTrades").WithMandatory("symbol").WithWeight(2)
	Klines           = get("klines", "/api/v3/klines").WithMandatory("symbol", "interval").WithWeight(2)
	AvgPrice         = get("avgPrice", "/api/v3/avgPrice").WithMandatory("symbol").WithWeight(2)
	Ticker24hr       = get("ticker24hr", "/api/v3/ticker/24hr").WithListEncoding(core.ListJSON).WithWeight(40)
	TickerPrice      = get("tickerPrice", "/api/v3/ticker/price").WithListEncoding(core.ListJSON).WithWeight(4)
	BookTicker       = get("bookTicker", "/api/v3/ticker/bookTicker").WithListEncoding(core.ListJSON).WithWeight(4)

	NewOrder     = post("newOrder", "/api/v3/order").WithMandatory("symbol", "side", "type").WithSecurity(core.SecuritySigned).WithOrders(1)
	TestNewOrder = post("testNewOrder", "/api/v3/order/test").WithMandatory("symbol", "side", "type").WithSecurity(core.SecuritySigned)
	GetOrder     = get("getOrder", "/api/v3/order").WithMandatory("symbol").WithSecurity(core.SecuritySigned).WithWeight(4)
	CancelOrder  = remove("cancelOrder", "/api/v3/order").WithMandatory("symbol").WithSecurity(core.SecuritySigned).WithOrders(1)
	OpenOrders   = get("openOrders", "/api/v3/openOrders").WithSecurity(core.SecuritySigned).WithWeight(6)
	Account      = get("account", "/api/v3/account").WithSecurity(core.SecuritySigned).WithWeight(20)
	MyTrades     = get("myTrades", "/api/v3/myTrades").WithMandatory("symbol").WithSecurity(core.SecuritySigned).WithWeight(20)

	CreateListenKey = post("createListenKey", "/api/v3/userDataStream").WithSecurity(core.SecurityAPIKey).WithWeight(2)
	ExtendListenKey = put("extendListenKey", "/api/v3/userDataStream").WithMandatory("listenKey").WithSecurity(core.SecurityAPIKey).WithWeight(2)
	CloseListenKey  = remove("closeListenKey", "/api/v3/userDataStream").WithMandatory("listenKey").WithSecurity(core.SecurityAPIKey).WithWeight(2)

	ForceLiquidationRec = get("forceLiquidationRec", "/sapi/v1/margin/forceLiquidationRec").WithSecurity(core.SecuritySigned)
	APITradingStatus    = get("apiTradingStatus", "/sapi/v1/account/apiTradingStatus").WithSecurity(core.SecuritySigned)
	DepositAddress      = get("depositAddress", "/sapi/v1/capital/deposit/address").WithMandatory("coin").WithSecurity(core.SecuritySigned).WithWeight(10)
)

// USDⓈ-M futures endpoints.
var (
	FuturesPing             = get("futuresPing", "/fapi/v1/ping")
	FuturesServerTime       = get("futuresTime", "/fapi/v1/time")
	FuturesExchangeInfo     = get("futuresExchangeInfo", "/fapi/v1/exchangeInfo")
	FuturesDepth            = get("futuresDepth", "/fapi/v1/depth").WithMandatory("symbol").WithWeight(5)
	FuturesTrades           = get("futuresTrades", "/fapi/v1/trades").WithMandatory("symbol").WithWeight(5)
	FuturesHistoricalTrades = get("futuresHistoricalTrades", "/fapi/v1/historicalTrades").WithMandatory("symbol").WithSecurity(core.SecurityAPIKey).WithWeight(20)
	FuturesAggTrades        = get("futuresAggTrades", "/fapi/v1/aggTrades").WithMandatory("symbol").WithWeight(20)
	FuturesKlines           = get("futuresKlines", "/fapi/v1/klines").WithMandatory("symbol", "interval").WithWeight(5)

	FuturesCreateListenKey = post("futuresCreateListenKey", "/fapi/v1/listenKey").WithSecurity(core.SecurityAPIKey)
	FuturesExtendListenKey = put("futuresExtendListenKey", "/fapi/v1/listenKey").WithMandatory("listenKey").WithSecurity(core.SecurityAPIKey)
	FuturesCloseListenKey  = remove("futuresCloseListenKey", "/fapi/v1/listenKey").WithSecurity(core.SecurityAPIKey)
)

// Endpoints lists every endpoint defined in this package.
func Endpoints() []core.Endpoint {
	return []core.Endpoint{
		Ping, ServerTime, ExchangeInfo, Depth, Trades, HistoricalTrades, AggTrades, Klines,
		AvgPrice, Ticker24hr, TickerPrice, BookTicker,
		NewOrder, TestNewOrder, GetOrder, CancelOrder, OpenOrders, Account, MyTrades,
		CreateListenKey, ExtendListenKey, CloseListenKey,
		ForceLiquidationRec, APITradingStatus, DepositAddress,
		FuturesPing, FuturesServerTime, FuturesExchangeInfo, FuturesDepth, FuturesTrades,
		FuturesHistoricalTrades, FuturesAggTrades, FuturesKlines,
		FuturesCreateListenKey, FuturesExtendListenKey, FuturesCloseListenKey,
	}
}

// CreateUserStream creates a listen key for the user data stream of ep's market
// (CreateListenKey or FuturesCreateListenKey) and returns it.
func (c *Client) CreateUserStream(ctx context.Context, ep core.Endpoint) (string, error) {
	res, err := c.Invoke(ctx, ep, nil)
	if err != nil {
		return "", err
	}
	return res.Field("listenKey")
}
