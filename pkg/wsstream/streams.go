package wsstream

import (
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// AggTradeStream names the aggregate trade stream of symbol.
func AggTradeStream(symbol string) string {
	return strings.ToLower(symbol) + "@aggTrade"
}

func TradeStream(symbol string) string {
	return strings.ToLower(symbol) + "@trade"
}

// KlineStream names the candlestick stream, for example btcusdt@kline_1m.
func KlineStream(symbol, interval string) string {
	return strings.ToLower(symbol) + "@kline_" + interval
}

func MiniTickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@miniTicker"
}

func TickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@ticker"
}

func BookTickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}

// AllMiniTickersStream names the mini ticker stream of every symbol.
const AllMiniTickersStream = "!miniTicker@arr"

// DepthStream names a depth stream. levels of 0 selects the diff stream,
// otherwise the partial book with that many levels. A speed of 0 keeps the
// server default update speed.
func DepthStream(symbol string, levels int, speed time.Duration) string {
	name := strings.ToLower(symbol) + "@depth"
	if levels > 0 {
		name += fmt.Sprint(levels)
	}
	if speed > 0 {
		name += fmt.Sprintf("@%dms", speed.Milliseconds())
	}
	return name
}

// SplitCombined unwraps a combined stream frame {"stream":...,"data":...}.
func SplitCombined(frame []byte) (stream string, data []byte, err error) {
	node, err := sonic.Get(frame, "stream")
	if err != nil {
		return "", nil, fmt.Errorf("combined frame stream: %w", err)
	}
	if stream, err = node.String(); err != nil {
		return "", nil, fmt.Errorf("combined frame stream: %w", err)
	}

	node, err = sonic.Get(frame, "data")
	if err != nil {
		return "", nil, fmt.Errorf("combined frame data: %w", err)
	}
	raw, err := node.Raw()
	if err != nil {
		return "", nil, fmt.Errorf("combined frame data: %w", err)
	}
	return stream, []byte(raw), nil
}
