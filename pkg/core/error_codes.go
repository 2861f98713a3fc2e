package core

import (
	"errors"
	"net/http"
)

// Exchange error codes returned in the "code" field of an error body.
const (
	CodeUnknown              = -1000
	CodeDisconnected         = -1001
	CodeUnauthorized         = -1002
	CodeTooManyRequests      = -1003
	CodeUnexpectedResponse   = -1006
	CodeTimeout              = -1007
	CodeTooManyOrders        = -1015
	CodeInvalidTimestamp     = -1021
	CodeInvalidSignature     = -1022
	CodeIllegalChars         = -1100
	CodeTooManyParameters    = -1101
	CodeMandatoryParamEmpty  = -1102
	CodeUnknownParam         = -1103
	CodeUnreadParameters     = -1104
	CodeParamEmpty           = -1105
	CodeBadSymbol            = -1121
	CodeInvalidListenKey     = -1125
	CodeNewOrderRejected     = -2010
	CodeCancelRejected       = -2011
	CodeNoSuchOrder          = -2013
	CodeBadAPIKeyFormat      = -2014
	CodeRejectedMBXKey       = -2015
	CodeNoTradingWindow      = -2016
	CodeInsufficientMargin   = -2019
	CodeUnableToFill         = -2020
	CodeReduceOnlyRejected   = -2022
	CodeInsufficientBalances = -2018
)

// Classify maps an HTTP status and an exchange error code to an ErrorType.
// The exchange code wins when it is recognized.
func Classify(statusCode, code int) ErrorType {
	if t := classifyCode(code); t != ErrorTypeUnknown {
		return t
	}
	return classifyStatus(statusCode)
}

func classifyCode(code int) ErrorType {
	switch code {
	case 0:
		return ErrorTypeUnknown
	case CodeTooManyRequests, CodeTooManyOrders:
		return ErrorTypeRateLimit
	case CodeUnauthorized, CodeInvalidSignature, CodeBadAPIKeyFormat, CodeRejectedMBXKey:
		return ErrorTypeAuthentication
	case CodeTimeout:
		return ErrorTypeTimeout
	case CodeDisconnected, CodeUnexpectedResponse, CodeUnknown:
		return ErrorTypeServerError
	case CodeNoSuchOrder:
		return ErrorTypeNotFound
	case CodeNewOrderRejected, CodeInsufficientBalances, CodeInsufficientMargin:
		return ErrorTypeInsufficientFunds
	}

	switch {
	case code <= -1000 && code > -2000:
		return ErrorTypeBadRequest
	case code <= -2000 && code > -3000:
		return ErrorTypeInvalidOrder
	default:
		return ErrorTypeUnknown
	}
}

func classifyStatus(statusCode int) ErrorType {
	switch {
	case statusCode >= http.StatusInternalServerError:
		if statusCode == http.StatusGatewayTimeout {
			return ErrorTypeTimeout
		}
		return ErrorTypeServerError
	case statusCode == http.StatusTooManyRequests, statusCode == http.StatusTeapot:
		return ErrorTypeRateLimit
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ErrorTypeAuthentication
	case statusCode == http.StatusBadRequest:
		return ErrorTypeBadRequest
	case statusCode == http.StatusNotFound:
		return ErrorTypeNotFound
	case statusCode == http.StatusRequestTimeout:
		return ErrorTypeTimeout
	default:
		return ErrorTypeUnknown
	}
}

// IsErrorCode checks whether err carries the given exchange error code.
func IsErrorCode(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
