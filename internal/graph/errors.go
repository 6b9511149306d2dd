package graph

import (
	"errors"
	"net/http"
)

// Sentinel errors for the Graph status codes callers branch on.
var (
	// ErrUnauthorised means the access token was rejected.
	ErrUnauthorised = errors.New("graph: unauthorised")

	// ErrForbidden means the account lacks permission for the resource.
	ErrForbidden = errors.New("graph: forbidden")

	// ErrNotFound means the resource no longer exists on the server.
	ErrNotFound = errors.New("graph: not found")

	// ErrRateLimited means Graph throttled the request.
	ErrRateLimited = errors.New("graph: rate limited")

	// ErrDeltaTokenExpired means the stored delta link is no longer
	// honoured and the collection must be resynced from scratch.
	ErrDeltaTokenExpired = errors.New("graph: delta token expired, full sync required")

	// ErrBadRequest means Graph rejected the request as malformed.
	ErrBadRequest = errors.New("graph: bad request")

	// ErrServerError covers the 5xx range.
	ErrServerError = errors.New("graph: server error")
)

// WrapError maps an HTTP status code to its sentinel error. A 2xx code
// maps to nil.
func WrapError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusGone:
		return ErrDeltaTokenExpired
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// IsDeltaTokenExpired reports whether the status code is Graph's expired
// delta link signal, 410 Gone.
func IsDeltaTokenExpired(statusCode int) bool {
	return statusCode == http.StatusGone
}

// IsRetryable reports whether the status code is transient enough to retry.
func IsRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}
