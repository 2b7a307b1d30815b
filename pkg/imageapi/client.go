package imageapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/zjymars/3d-wall-picture/pkg/httpclient"
)

// DefaultBaseURL is the external API root of a local toolkit deployment.
const DefaultBaseURL = "http://127.0.0.1:8001/api/v1/external"

// Config is the immutable client configuration.
type Config struct {
	// BaseURL is the absolute API root. Trailing slashes are stripped.
	BaseURL string
	// Timeout bounds each request including body transfer. Zero means no timeout.
	Timeout time.Duration
}

// Client talks to the image toolkit external API.
type Client struct {
	baseURL string
	headers map[string]string
	http    httpclient.Client
	fs      afero.Fs
	log     Logger
}

// New builds a Client. The base URL must be absolute.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	o := clientOptions{logger: noopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.http == nil {
		o.http = httpclient.NewRestyClient(cfg.Timeout)
	}
	if o.fs == nil {
		o.fs = afero.NewOsFs()
	}

	return &Client{
		baseURL: base,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
		http: o.http,
		fs:   o.fs,
		log:  o.logger,
	}, nil
}

// BaseURL returns the normalized base URL every request is resolved against.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases idle connections held by the transport.
func (c *Client) Close() {
	if c != nil && c.http != nil {
		c.http.Close()
	}
}

// Execute performs one request against BaseURL+path and decodes the JSON body
// into out. out may be nil to only check that the body is JSON.
func (c *Client) Execute(ctx context.Context, method, path string, params Params, out any) error {
	return c.execute(ctx, method, path, params, out, shape{})
}

func (c *Client) execute(ctx context.Context, method, path string, params Params, out any, s shape) error {
	if c == nil || c.http == nil {
		return invalidArgument("client is not initialized")
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return invalidArgument("method is required")
	}
	if path == "" || !strings.HasPrefix(path, "/") {
		return invalidArgument("path %q must start with /", path)
	}
	query, err := params.Values()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	// Literal concatenation: duplicate slashes are sent as given.
	reqURL := c.baseURL + path

	c.log.DebugObj("imageapi request", "imageapi_request", map[string]any{
		"method": method,
		"url":    reqURL,
		"query":  query.Encode(),
	})

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method:  method,
		URL:     reqURL,
		Headers: c.headers,
		Query:   query,
	})
	if err != nil {
		return &TransportError{Method: method, URL: reqURL, Err: err}
	}

	body := resp.Body()
	if status := resp.StatusCode(); status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &HTTPError{
			Method:     method,
			URL:        reqURL,
			StatusCode: status,
			Message:    errorDetail(body),
			Body:       bodySnippet(body),
		}
	}

	if err := decodeBody(body, out, s); err != nil {
		return &DecodeError{URL: reqURL, Body: bodySnippet(body), Err: err}
	}
	return nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", invalidArgument("base url is required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", invalidArgument("parse base url %q: %v", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", invalidArgument("base url %q must be absolute", raw)
	}
	return trimmed, nil
}
