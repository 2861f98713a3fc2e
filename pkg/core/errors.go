package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/bytedance/sonic"
)

// ErrorType represents the category of an exchange error.
type ErrorType int

// Error type constants categorize errors so callers can decide how to react.
const (
	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork indicates a network connectivity issue.
	ErrorTypeNetwork
	// ErrorTypeTimeout indicates the request exceeded its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit indicates a request weight or order count limit was exceeded.
	ErrorTypeRateLimit
	// ErrorTypeAuthentication indicates an invalid key, signature or timestamp.
	ErrorTypeAuthentication
	// ErrorTypeBadRequest indicates invalid request parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound indicates the requested resource does not exist.
	ErrorTypeNotFound
	// ErrorTypeServerError indicates a server-side error.
	ErrorTypeServerError
	// ErrorTypeInsufficientFunds indicates the account lacks required balance.
	ErrorTypeInsufficientFunds
	// ErrorTypeInvalidOrder indicates the order violates exchange rules.
	ErrorTypeInvalidOrder
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	if t < 0 || int(t) >= len(errorTypeNames) {
		return "UNKNOWN"
	}
	return errorTypeNames[t]
}

var errorTypeNames = [...]string{
	"UNKNOWN",
	"NETWORK",
	"TIMEOUT",
	"RATE_LIMIT",
	"AUTHENTICATION",
	"BAD_REQUEST",
	"NOT_FOUND",
	"SERVER_ERROR",
	"INSUFFICIENT_FUNDS",
	"INVALID_ORDER",
}

// Sentinel errors for common error conditions.
var (
	// ErrClientClosed is returned when attempting to use a closed client.
	ErrClientClosed = errors.New("client is closed")
	// ErrNotConnected is returned when a websocket operation needs an open connection.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrAlreadyConnected is returned by Connect while a connection is open or being opened.
	ErrAlreadyConnected = errors.New("websocket already connected")
	// ErrConnectionClosed resolves every in-flight websocket request when its connection goes away.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrDuplicateRequestID is returned when a websocket request id is already in flight.
	ErrDuplicateRequestID = errors.New("duplicate request id")
	// ErrCircuitBreakerOpen is returned when the circuit breaker rejects a call.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	// ErrNoCredentials is returned when an authenticated call has no API key or signer.
	ErrNoCredentials = errors.New("no credentials configured")
)

// APIError is a non-2xx answer from the exchange. Body keeps the raw payload
// so nothing the server said is lost when it does not follow {"code","msg"}.
type APIError struct {
	Type       ErrorType `json:"type"`
	StatusCode int       `json:"status_code"`
	Code       int       `json:"code"`
	Message    string    `json:"message"`
	Body       []byte    `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("api error %s (%d/%d): %s", e.Type, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %s (%d): %s", e.Type, e.StatusCode, e.Message)
}

type apiErrorBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// NewAPIError builds an APIError from an HTTP status and the raw response body.
// When the body carries {"code":..,"msg":..} both fields are extracted,
// otherwise the body text becomes the message.
func NewAPIError(statusCode int, body []byte) *APIError {
	e := &APIError{
		StatusCode: statusCode,
		Body:       body,
		Message:    string(body),
		Timestamp:  time.Now(),
	}

	var parsed apiErrorBody
	if len(body) > 0 && sonic.Unmarshal(body, &parsed) == nil && (parsed.Code != 0 || parsed.Msg != "") {
		e.Code = parsed.Code
		e.Message = parsed.Msg
	}

	e.Type = Classify(statusCode, e.Code)
	return e
}

// NewAPIErrorWithCode builds an APIError whose code and message are already known,
// as is the case for websocket API responses.
func NewAPIErrorWithCode(statusCode, code int, message string, body []byte) *APIError {
	return &APIError{
		Type:       Classify(statusCode, code),
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Body:       body,
		Timestamp:  time.Now(),
	}
}

// TransportError is a failure to reach the server or read its answer.
// No HTTP status is available.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the underlying failure was a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// MissingParameterError reports a mandatory parameter absent from a request.
// It is always returned before any I/O.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing mandatory parameter: %s", e.Name)
}

// InvalidParameterTypeError reports a parameter whose value has the wrong kind.
type InvalidParameterTypeError struct {
	Name string
	Want string
	Got  any
}

func (e *InvalidParameterTypeError) Error() string {
	return fmt.Sprintf("parameter %s must be %s, got %T", e.Name, e.Want, e.Got)
}

// InvalidParameterError reports a parameter combination the caller cannot send.
type InvalidParameterError struct {
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Name, e.Reason)
}

// SigningError reports a key that cannot be loaded or a payload that cannot be signed.
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing %s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// IsAPIError returns true if err wraps an APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// IsTransportError returns true if err wraps a TransportError.
func IsTransportError(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}

// IsTimeoutError returns true for transport deadlines and exchange-side timeouts.
func IsTimeoutError(err error) bool {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.Timeout()
	}
	return hasType(err, ErrorTypeTimeout)
}

// IsRateLimitError returns true if the error is a rate limit violation.
// The caller should back off before sending again.
func IsRateLimitError(err error) bool {
	return hasType(err, ErrorTypeRateLimit)
}

// IsAuthenticationError returns true if the exchange rejected the key or signature.
func IsAuthenticationError(err error) bool {
	return hasType(err, ErrorTypeAuthentication)
}

// IsMissingParameter returns true if err wraps a MissingParameterError.
func IsMissingParameter(err error) bool {
	var mErr *MissingParameterError
	return errors.As(err, &mErr)
}

// IsSigningError returns true if err wraps a SigningError.
func IsSigningError(err error) bool {
	var sErr *SigningError
	return errors.As(err, &sErr)
}

func hasType(err error, t ErrorType) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Type == t
	}
	return false
}
