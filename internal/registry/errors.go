package registry

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for classifying registry failures with errors.Is.
var (
	// ErrNetwork indicates the request never produced a response (DNS, refused, offline, cancelled).
	ErrNetwork = errors.New("network error")

	// ErrHTTP indicates the registry answered with a non-2xx status.
	ErrHTTP = errors.New("registry returned an error status")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// ErrInvalidResponse indicates a 2xx response whose body could not be decoded.
	ErrInvalidResponse = errors.New("invalid API response")

	ErrInvalidArtifactType = errors.New("invalid artifact type")
	ErrInvalidArtifactID   = errors.New("invalid artifact id")

	// ErrInvalidPathSegment rejects ids that would leave their place in the request path.
	ErrInvalidPathSegment = errors.New("invalid path segment")
)

// NetworkError is a transport-level failure: no response was received.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// HTTPError is a non-2xx response. Detail carries the server's human-readable message.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Detail     string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Detail)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrHTTP:
		return true
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// DecodeError is a successful response whose body does not have the expected shape.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrInvalidResponse
}
