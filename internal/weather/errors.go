package weather

import (
	"fmt"
	"net/http"
)

// Kind is the closed set of failure classes a lookup can end in. Every kind has
// a fixed HTTP status; adding a kind means extending StatusCode.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindRateLimited
	KindUpstreamRateLimited
	KindHTTPError
	KindEmptyBody
	KindMalformedBody
	KindConnectionFailed
	KindTimedOut
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstreamRateLimited:
		return "upstream_rate_limited"
	case KindHTTPError:
		return "http_error"
	case KindEmptyBody:
		return "empty_body"
	case KindMalformedBody:
		return "malformed_body"
	case KindConnectionFailed:
		return "connection_failed"
	case KindTimedOut:
		return "timed_out"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unexpected"
	}
}

// Client-facing messages.
const (
	MsgLocationRequired    = "Location parameter is required"
	MsgRateLimited         = "rate limit exceeded"
	MsgLimiterUnavailable  = "rate limiter unavailable"
	MsgUpstreamRateLimited = "request limit exceeded"
	MsgEmptyResponse       = "Empty response"
	MsgMalformedBody       = "Failed to decode JSON"
	MsgConnectionFailed    = "Connection error. Please check your internet connection."
	MsgTimedOut            = "Request timed out. Please try again later."
	MsgCircuitOpen         = "Weather provider temporarily unavailable. Please try again later."
	MsgRequestFailed       = "An error occurred while processing your request."
	MsgUnexpected          = "An unexpected error occurred."
)

// Error is the single error type returned by Service.Lookup.
type Error struct {
	Kind    Kind
	Message string

	// Status is the upstream status for KindHTTPError and KindEmptyBody.
	Status int

	// ResponseText carries the raw upstream body for KindMalformedBody.
	ResponseText string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error to the HTTP status returned to the client.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited, KindUpstreamRateLimited:
		return http.StatusTooManyRequests
	case KindHTTPError, KindEmptyBody:
		if e.Status >= 100 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	case KindMalformedBody, KindUnexpected:
		return http.StatusInternalServerError
	case KindConnectionFailed, KindUnavailable:
		return http.StatusServiceUnavailable
	case KindTimedOut:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
