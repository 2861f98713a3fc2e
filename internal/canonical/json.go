package canonical

import (
	"bytes"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"

	"binconn/pkg/core"
)

// EncodeJSON renders params as a JSON object whose members keep insertion order.
// Numbers and booleans stay JSON literals; decimals and times are sent in their
// string wire form. Nil values are skipped.
func EncodeJSON(params *core.Params) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	first := true
	for key, value := range params.All() {
		if value == nil {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false

		k, err := sonic.MarshalString(key)
		if err != nil {
			return nil, err
		}
		b.WriteString(k)
		b.WriteByte(':')

		if items, ok := asList(value); ok {
			b.WriteByte('[')
			for i, item := range items {
				if i > 0 {
					b.WriteByte(',')
				}
				if err := writeJSONValue(&b, key, item); err != nil {
					return nil, err
				}
			}
			b.WriteByte(']')
			continue
		}
		if err := writeJSONValue(&b, key, value); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func writeJSONValue(b *bytes.Buffer, key string, value any) error {
	s, err := FormatValue(key, value)
	if err != nil {
		return err
	}
	switch value.(type) {
	case string, *apd.Decimal, apd.Decimal, time.Time:
		quoted, err := sonic.MarshalString(s)
		if err != nil {
			return err
		}
		b.WriteString(quoted)
	default:
		b.WriteString(s)
	}
	return nil
}
