// Package canonical turns an ordered parameter set into the exact query string
// that is signed and sent. Parameter order is never changed.
package canonical

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"binconn/pkg/core"
)

// Encode renders params as key=value pairs joined by & in insertion order.
// Nil values are skipped. Sequence values follow enc.
func Encode(params *core.Params, enc core.ListEncoding) (string, error) {
	var b strings.Builder
	for key, value := range params.All() {
		if value == nil {
			continue
		}

		if items, ok := asList(value); ok {
			if err := writeList(&b, key, items, enc); err != nil {
				return "", err
			}
			continue
		}

		s, err := FormatValue(key, value)
		if err != nil {
			return "", err
		}
		writePair(&b, key, s)
	}
	return b.String(), nil
}

func writePair(b *strings.Builder, key, value string) {
	if b.Len() > 0 {
		b.WriteByte('&')
	}
	b.WriteString(escape(key))
	b.WriteByte('=')
	b.WriteString(escape(value))
}

func writeList(b *strings.Builder, key string, items []any, enc core.ListEncoding) error {
	if enc == core.ListJSON {
		s, err := jsonList(key, items)
		if err != nil {
			return err
		}
		writePair(b, key, s)
		return nil
	}

	for _, item := range items {
		s, err := FormatValue(key, item)
		if err != nil {
			return err
		}
		writePair(b, key, s)
	}
	return nil
}

func jsonList(key string, items []any) (string, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		if s, ok := item.(string); ok {
			quoted, err := sonic.MarshalString(s)
			if err != nil {
				return "", &core.InvalidParameterTypeError{Name: key, Want: "string", Got: item}
			}
			b.WriteString(quoted)
			continue
		}
		s, err := FormatValue(key, item)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
	}
	b.WriteByte(']')
	return b.String(), nil
}

// escape percent-encodes like a form value but writes spaces as %20.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// FormatValue converts a scalar parameter to its wire form.
func FormatValue(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case int:
		return strconv.Itoa(v), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case *apd.Decimal:
		if v == nil {
			return "", &core.InvalidParameterTypeError{Name: key, Want: "decimal", Got: value}
		}
		return v.Text('f'), nil
	case apd.Decimal:
		return v.Text('f'), nil
	case time.Time:
		return strconv.FormatInt(v.UnixMilli(), 10), nil
	default:
		return "", &core.InvalidParameterTypeError{Name: key, Want: "string, number, boolean or list", Got: value}
	}
}

func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		return toAny(v), true
	case []int:
		return toAny(v), true
	case []int64:
		return toAny(v), true
	case []float64:
		return toAny(v), true
	case []*apd.Decimal:
		return toAny(v), true
	default:
		return nil, false
	}
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
