package redmine

import (
	"errors"
	"fmt"
	"net/http"
)

// Static errors for err113 compliance.
var (
	ErrUnsupportedOperation = errors.New("operation unsupported")
	ErrProtectedField       = errors.New("field is protected")
	ErrNoSuchKey            = errors.New("no such key")
	ErrNoMoreItems          = errors.New("no more items")
	ErrDecode               = errors.New("cannot decode response")
	ErrConfigRequired       = errors.New("config is required")
	ErrBaseURLRequired      = errors.New("base URL is required")
	ErrInvalidID            = errors.New("invalid identifier")
	ErrMissingContainer     = errors.New("response container missing")
)

// ResponseError is returned by the transport for any non-success HTTP status.
type ResponseError struct {
	StatusCode int    `json:"status_code"`
	Status     string `json:"status"`
	Method     string `json:"method,omitempty"`
	Path       string `json:"path,omitempty"`
	Body       []byte `json:"-"`
	// Messages holds the service's {"errors": [...]} payload when present.
	Messages []string `json:"errors,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if len(e.Messages) == 1 {
		return msg + ": " + e.Messages[0]
	}

	if len(e.Messages) > 1 {
		return fmt.Sprintf("%s: %v", msg, e.Messages)
	}

	return msg
}

// Is reports whether target is a ResponseError with the same status code.
func (e *ResponseError) Is(target error) bool {
	var other *ResponseError
	if !errors.As(target, &other) {
		return false
	}

	return other.StatusCode == e.StatusCode
}

// ErrNotFound matches any ResponseError carrying a 404 status via errors.Is.
var ErrNotFound = &ResponseError{StatusCode: http.StatusNotFound}

// DecodeError reports a response body that is not valid JSON of the expected
// shape. Raw often holds a plain-text error message from the service.
type DecodeError struct {
	Raw []byte
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	raw := string(e.Raw)
	if len(raw) > maxRawInError {
		raw = raw[:maxRawInError] + "..."
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %q", ErrDecode, e.Err, raw)
	}

	return fmt.Sprintf("%s: %q", ErrDecode, raw)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrDecode) succeed for any DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

const maxRawInError = 512

// KeyError is returned by keyed lookups for an identifier the service does
// not know. It matches ErrNoSuchKey and still unwraps to the 404 response.
type KeyError struct {
	Kind string
	ID   ID
	Err  error
}

// Error implements the error interface.
func (e *KeyError) Error() string {
	return fmt.Sprintf("%s %q not on server", e.Kind, e.ID)
}

// Unwrap returns the transport error that caused the miss.
func (e *KeyError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNoSuchKey) succeed.
func (e *KeyError) Is(target error) bool {
	return target == ErrNoSuchKey
}

// IsNotFound checks if the error is a 404 from the service.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnsupported checks if the error reports a missing endpoint template.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedOperation)
}

// IsDecodeError checks if the error is a DecodeError.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrDecode)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}

	return 0
}

func unsupported(op, kind string) error {
	return fmt.Errorf("%w: %s is not available for %s", ErrUnsupportedOperation, op, kind)
}
