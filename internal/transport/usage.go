package transport

import (
	"net/http"
	"strconv"
	"strings"
)

var usagePrefixes = []string{
	"x-mbx-used-weight",
	"x-mbx-order-count",
	"x-sapi-used-",
}

// LimitUsage maps lower-cased rate-limit header names to their values,
// for example "x-mbx-used-weight-1m" -> "12".
type LimitUsage map[string]string

// ParseLimitUsage extracts the rate-limit headers. It returns nil when none are present.
func ParseLimitUsage(h http.Header) LimitUsage {
	var usage LimitUsage
	for name, values := range h {
		if len(values) == 0 {
			continue
		}
		lower := strings.ToLower(name)
		for _, prefix := range usagePrefixes {
			if strings.HasPrefix(lower, prefix) {
				if usage == nil {
					usage = make(LimitUsage)
				}
				usage[lower] = values[0]
				break
			}
		}
	}
	return usage
}

// UsedWeight returns the one-minute request weight, falling back to the
// interval-less header older endpoints send.
func (u LimitUsage) UsedWeight() (int, bool) {
	for _, key := range []string{"x-mbx-used-weight-1m", "x-mbx-used-weight"} {
		if n, ok := u.Int(key); ok {
			return n, true
		}
	}
	return 0, false
}

// OrderCount returns the order count for an interval such as "10s" or "1d".
func (u LimitUsage) OrderCount(interval string) (int, bool) {
	return u.Int("x-mbx-order-count-" + strings.ToLower(interval))
}

// Int returns the value of a header as an integer.
func (u LimitUsage) Int(key string) (int, bool) {
	v, ok := u[strings.ToLower(key)]
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
