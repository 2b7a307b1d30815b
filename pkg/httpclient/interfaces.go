package httpclient

import (
	"context"
	"io"
	"net/url"
)

// Request describes one buffered HTTP call.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   url.Values
}

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
}

// StreamResponse exposes an unread response body. Callers must close Body.
type StreamResponse interface {
	StatusCode() int
	Body() io.ReadCloser
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
// A non-nil error means no response was received.
type Client interface {
	Do(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, url string, headers map[string]string) (StreamResponse, error)
	Close()
}
