package core

import "net/http"

// SecurityType tells the dispatcher how a request must be authenticated.
type SecurityType int

const (
	// SecurityNone sends the request without credentials.
	SecurityNone SecurityType = iota
	// SecurityAPIKey sends the API key header but no signature.
	SecurityAPIKey
	// SecuritySigned sends the API key header plus timestamp, recvWindow and signature.
	SecuritySigned
)

// String returns the string representation of the security type.
func (s SecurityType) String() string {
	switch s {
	case SecurityNone:
		return "NONE"
	case SecurityAPIKey:
		return "API_KEY"
	case SecuritySigned:
		return "SIGNED"
	default:
		return "UNKNOWN"
	}
}

// ListEncoding selects how sequence values are written into a query string.
type ListEncoding int

const (
	// ListRepeated writes key=v1&key=v2.
	ListRepeated ListEncoding = iota
	// ListJSON writes key=["v1","v2"].
	ListJSON
)

// Endpoint describes one REST operation. A table of these plus a single
// generic invoke function replaces a hand-written method per endpoint.
type Endpoint struct {
	Name         string       `json:"name"`
	Method       string       `json:"method" validate:"required,oneof=GET POST PUT DELETE"`
	Path         string       `json:"path" validate:"required,startswith=/"`
	Mandatory    []string     `json:"mandatory,omitempty"`
	Security     SecurityType `json:"security"`
	ListEncoding ListEncoding `json:"list_encoding"`
	Weight       int          `json:"weight"`
	// Orders is how many orders the call counts against the order rate limit.
	Orders int `json:"orders,omitempty" validate:"min=0"`
}

// NewEndpoint creates an unauthenticated endpoint with weight 1.
func NewEndpoint(name, method, path string) Endpoint {
	return Endpoint{
		Name:   name,
		Method: method,
		Path:   path,
		Weight: 1,
	}
}

// WithMandatory returns a copy requiring the given parameters.
func (e Endpoint) WithMandatory(keys ...string) Endpoint {
	e.Mandatory = append(append([]string(nil), e.Mandatory...), keys...)
	return e
}

// WithSecurity returns a copy using the given security type.
func (e Endpoint) WithSecurity(s SecurityType) Endpoint {
	e.Security = s
	return e
}

// WithListEncoding returns a copy using the given list encoding.
func (e Endpoint) WithListEncoding(enc ListEncoding) Endpoint {
	e.ListEncoding = enc
	return e
}

// WithWeight returns a copy with the given request weight.
func (e Endpoint) WithWeight(weight int) Endpoint {
	e.Weight = weight
	return e
}

// WithOrders returns a copy counting n orders against the order rate limit.
func (e Endpoint) WithOrders(n int) Endpoint {
	e.Orders = n
	return e
}

// Validate checks the endpoint description itself.
func (e Endpoint) Validate() error {
	return validate.Struct(e)
}

// HasBody reports whether parameters travel in a form body rather than the query string.
func HasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut
}
