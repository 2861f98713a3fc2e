package canonical

import (
	"github.com/cockroachdb/apd/v3"

	"binconn/pkg/core"
)

// Kind is the expected shape of a parameter value.
type Kind int

const (
	KindString Kind = iota
	KindInteger
	KindNumber
	KindBool
	KindList
)

var kindNames = [...]string{"string", "integer", "number", "boolean", "list"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// CheckMandatory returns a MissingParameterError for the first key that is
// absent, nil or an empty string.
func CheckMandatory(params *core.Params, keys ...string) error {
	for _, key := range keys {
		v, ok := params.Get(key)
		if !ok || v == nil {
			return &core.MissingParameterError{Name: key}
		}
		if s, isString := v.(string); isString && s == "" {
			return &core.MissingParameterError{Name: key}
		}
	}
	return nil
}

// CheckType verifies that key is present and holds a value of the given kind.
func CheckType(params *core.Params, key string, kind Kind) error {
	if err := CheckMandatory(params, key); err != nil {
		return err
	}
	v, _ := params.Get(key)
	if !isKind(v, kind) {
		return &core.InvalidParameterTypeError{Name: key, Want: kind.String(), Got: v}
	}
	return nil
}

// CheckExclusive rejects a parameter set carrying both a and b.
func CheckExclusive(params *core.Params, a, b string) error {
	if params.Has(a) && params.Has(b) {
		return &core.InvalidParameterError{Name: b, Reason: "cannot be sent together with " + a}
	}
	return nil
}

func isKind(v any, kind Kind) bool {
	switch kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindInteger:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
		return false
	case KindNumber:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64, *apd.Decimal, apd.Decimal:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindList:
		_, ok := asList(v)
		return ok
	default:
		return false
	}
}
