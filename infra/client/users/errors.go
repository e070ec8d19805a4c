package users

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindValidation   Kind = "validation"
	KindNetwork      Kind = "network"
	KindUnavailable  Kind = "unavailable" // circuit open
	KindUnknown      Kind = "unknown"
)

// APIError is a classified failure of a REST call.
type APIError struct {
	Kind    Kind   `json:"kind"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus is the status the local API answers with for this error.
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindNetwork:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// retryable reports whether the failure says something about backend health.
// Client-side 4xx outcomes do not trip the breaker.
func (e *APIError) retryable() bool {
	return e.Kind == KindNetwork || (e.Kind == KindUnknown && e.Status >= http.StatusInternalServerError)
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindUnknown
	}
}

var messages = map[Kind]string{
	KindUnauthorized: "Unauthorized: invalid or expired token",
	KindForbidden:    "Forbidden: insufficient permissions",
	KindNotFound:     "User not found",
	KindConflict:     "Conflict: user already exists",
	KindValidation:   "Validation error in submitted data",
	KindNetwork:      "Cannot reach the server",
	KindUnavailable:  "Service temporarily unavailable, try again shortly",
}

// Classify turns any client error into the message shown to an operator.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if msg, ok := messages[apiErr.Kind]; ok {
			return msg
		}
		return apiErr.Message
	}
	return err.Error()
}

// IsKind reports whether err is an *APIError of kind k.
func IsKind(err error, k Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == k
}
