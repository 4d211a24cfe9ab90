package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable covers transport failures and 5xx responses.
	ErrServiceUnavailable = errors.New("backend service unavailable")

	// ErrRejected covers 4xx responses.
	ErrRejected = errors.New("backend rejected request")

	// ErrBadResponse is returned when a 2xx body cannot be decoded or lacks
	// the fields the caller needs.
	ErrBadResponse = errors.New("malformed backend response")

	// ErrInvalidRequest is returned before any network call for input the
	// services would reject anyway.
	ErrInvalidRequest = errors.New("invalid backend request")
)

// ServiceError is a failed call to a remote service.
type ServiceError struct {
	Service string
	Status  int // 0 when the request never got a response
	Detail  string
	cause   error
}

func (e *ServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Service, e.Detail)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Detail)
}

func (e *ServiceError) Unwrap() []error {
	kind := ErrServiceUnavailable
	if e.Status >= 400 && e.Status < 500 {
		kind = ErrRejected
	}
	if e.cause != nil {
		return []error{kind, e.cause}
	}
	return []error{kind}
}
