package imageapi

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a call is rejected before any request is made.
var ErrInvalidArgument = errors.New("invalid argument")

const unknownErrorMessage = "unknown error"

// TransportError reports that no HTTP response was received.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("imageapi transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPError reports a response with a non-success status code.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("imageapi http error: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

// IsNotFound checks if the error indicates a not found response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == 404
}

// DecodeError reports a success response whose body could not be decoded.
type DecodeError struct {
	URL  string
	Body string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("imageapi decode error: %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransport reports whether err is or wraps a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsHTTP reports whether err is or wraps a *HTTPError.
func IsHTTP(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// IsDecode reports whether err is or wraps a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Kind classifies err for logging: "transport", "http", "decode", "invalid_argument" or "other".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTransport(err):
		return "transport"
	case IsHTTP(err):
		return "http"
	case IsDecode(err):
		return "decode"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "other"
	}
}

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func bodySnippet(body []byte) string {
	const maxLen = 512
	if len(body) > maxLen {
		return string(body[:maxLen]) + "..."
	}
	return string(body)
}
