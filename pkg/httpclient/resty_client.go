package httpclient

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RestyClient adapts resty.Client to the httpclient.Client interface.
type RestyClient struct {
	client *resty.Client
}

// NewRestyClient creates a new RestyClient with the specified timeout.
// A zero timeout leaves requests unbounded.
func NewRestyClient(timeout time.Duration) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout, nil)}
}

// NewRestyClientWithLogger is NewRestyClient with resty's internal warnings
// routed to log (a *zap.SugaredLogger satisfies resty.Logger).
func NewRestyClientWithLogger(timeout time.Duration, log resty.Logger) *RestyClient {
	return &RestyClient{client: newRestyBaseClient(timeout, log)}
}

// NewRestyHTTPClient exposes a configured resty.Client for callers needing custom verbs.
func NewRestyHTTPClient(timeout time.Duration) *resty.Client {
	return newRestyBaseClient(timeout, nil)
}

// newRestyBaseClient creates a new resty.Client with the specified timeout.
func newRestyBaseClient(timeout time.Duration, log resty.Logger) *resty.Client {
	c := resty.New()
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	if log != nil {
		c.SetLogger(log)
	}
	return c
}

// Do performs a buffered request and returns the full body.
func (r *RestyClient) Do(ctx context.Context, req Request) (Response, error) {
	rr := r.client.R().SetContext(ctx)
	if len(req.Headers) > 0 {
		rr.SetHeaders(req.Headers)
	}
	if len(req.Query) > 0 {
		rr.SetQueryParamsFromValues(req.Query)
	}
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = resty.MethodGet
	}
	resp, err := rr.Execute(method, req.URL)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Stream performs a GET whose body is handed back unread.
func (r *RestyClient) Stream(ctx context.Context, url string, headers map[string]string) (StreamResponse, error) {
	rr := r.client.R().SetContext(ctx).SetDoNotParseResponse(true)
	if len(headers) > 0 {
		rr.SetHeaders(headers)
	}
	resp, err := rr.Get(url)
	if err != nil {
		if resp != nil && resp.RawBody() != nil {
			_ = resp.RawBody().Close()
		}
		return nil, err
	}
	return &restyStreamAdapter{resp: resp}, nil
}

// Close releases idle pooled connections.
func (r *RestyClient) Close() {
	r.client.GetClient().CloseIdleConnections()
}

// restyResponseAdapter adapts resty.Response to the httpclient.Response interface.
type restyResponseAdapter struct {
	resp *resty.Response
}

func (r *restyResponseAdapter) Body() []byte    { return r.resp.Body() }
func (r *restyResponseAdapter) StatusCode() int { return r.resp.StatusCode() }

// restyStreamAdapter adapts an unparsed resty.Response to StreamResponse.
type restyStreamAdapter struct {
	resp *resty.Response
}

func (r *restyStreamAdapter) StatusCode() int { return r.resp.StatusCode() }

func (r *restyStreamAdapter) Body() io.ReadCloser {
	if body := r.resp.RawBody(); body != nil {
		return body
	}
	return io.NopCloser(strings.NewReader(""))
}
