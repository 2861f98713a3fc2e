package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_PreservesInsertionOrder(t *testing.T) {
	p := NewParams().
		Set("symbol", "BTCUSDT").
		Set("side", "BUY").
		Set("type", "LIMIT").
		Set("quantity", 1).
		Set("price", "9000")

	assert.Equal(t, []string{"symbol", "side", "type", "quantity", "price"}, p.Keys())
	assert.Equal(t, 5, p.Len())
}

func TestParams_SetReplacesInPlace(t *testing.T) {
	p := ParamsOf(Param{"a", 1}, Param{"b", 2}, Param{"c", 3})
	p.Set("a", 10)

	assert.Equal(t, []string{"a", "b", "c"}, p.Keys())
	v, ok := p.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestParams_Delete(t *testing.T) {
	p := ParamsOf(Param{"a", 1}, Param{"b", 2}, Param{"c", 3})

	assert.True(t, p.Delete("b"))
	assert.False(t, p.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, p.Keys())

	v, ok := p.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	p.Set("b", 4)
	assert.Equal(t, []string{"a", "c", "b"}, p.Keys())
}

func TestParams_CloneIsIndependent(t *testing.T) {
	orig := ParamsOf(Param{"symbol", "BNBUSDT"})
	clone := orig.Clone()
	clone.Set("timestamp", int64(1))
	clone.Set("symbol", "ETHUSDT")

	assert.Equal(t, []string{"symbol"}, orig.Keys())
	v, _ := orig.Get("symbol")
	assert.Equal(t, "BNBUSDT", v)
	assert.Equal(t, []string{"symbol", "timestamp"}, clone.Keys())
}

func TestParams_NilReads(t *testing.T) {
	var p *Params

	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Keys())
	assert.False(t, p.Has("x"))
	assert.False(t, p.Delete("x"))
	assert.Equal(t, 0, p.Clone().Len())

	for range p.All() {
		t.Fatal("nil params must not yield")
	}
}

func TestParams_WritesNeedNonNilSet(t *testing.T) {
	var nilParams *Params
	assert.Panics(t, func() { nilParams.Set("symbol", "BNBUSDT") })

	var zero Params
	zero.Set("symbol", "BNBUSDT").Set("limit", 5)
	assert.Equal(t, []string{"symbol", "limit"}, zero.Keys())
}

func TestParams_All(t *testing.T) {
	p := ParamsOf(Param{"x", 1}, Param{"y", "two"}, Param{"z", true})

	var keys []string
	var values []any
	for k, v := range p.All() {
		keys = append(keys, k)
		values = append(values, v)
	}

	assert.Equal(t, []string{"x", "y", "z"}, keys)
	assert.Equal(t, []any{1, "two", true}, values)
}
