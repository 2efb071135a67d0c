package transport

import (
	"bytes"
	"context"
	"io/ioutil"
	"net/http"
	"time"

	"golang.org/x/net/context/ctxhttp"
)

// Request is one wire request built by a request builder. Body is nil for
// GET-style requests.
type Request struct {
	Method  string
	URI     string
	Body    []byte
	Headers http.Header
}

// Result is the completion of one Request. Exactly one Result is delivered
// per Send call. Err is non-nil for connection-level failures; HTTP error
// statuses are reported through StatusCode with Err == nil.
type Result struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Sender issues a Request without blocking the caller. The returned channel
// is buffered and receives exactly one Result.
type Sender interface {
	Send(ctx context.Context, req *Request) <-chan Result
}

// Config groups options which control how HTTP requests are made.
type Config struct {
	// See IdleConnTimeout on https://golang.org/pkg/net/http/#Transport
	IdleConnTimeout time.Duration
	// See MaxIdleConns on https://golang.org/pkg/net/http/#Transport
	MaxConns int
	// See MaxIdleConnsPerHost on https://golang.org/pkg/net/http/#Transport
	MaxConnsPerHost int
}

// DefaultConfig is a Config that chooses sensible default values.
var DefaultConfig = &Config{
	MaxConns:        50,
	MaxConnsPerHost: 10,
	IdleConnTimeout: 60 * time.Second,
}

// HTTPSender is the standard net/http-backed Sender.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender creates an HTTPSender which obeys the rules given by the config.
func NewHTTPSender(c *Config) *HTTPSender {
	ts := &http.Transport{
		MaxIdleConns:        c.MaxConns,
		MaxIdleConnsPerHost: c.MaxConnsPerHost,
		IdleConnTimeout:     c.IdleConnTimeout,
	}

	return &HTTPSender{
		client: &http.Client{
			Transport: ts,
		},
	}
}

// NewHTTPSenderWithClient creates an HTTPSender around an existing client.
// Useful for tests which need an httptest client.
func NewHTTPSenderWithClient(client *http.Client) *HTTPSender {
	return &HTTPSender{client: client}
}

func (s *HTTPSender) Send(ctx context.Context, req *Request) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- s.do(ctx, req)
	}()
	return ch
}

func (s *HTTPSender) do(ctx context.Context, req *Request) Result {
	var body *bytes.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	} else {
		body = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequest(req.Method, req.URI, body)
	if err != nil {
		return Result{Err: err}
	}
	if req.Headers != nil {
		httpReq.Header = req.Headers
	}

	httpResp, err := ctxhttp.Do(ctx, s.client, httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := ioutil.ReadAll(httpResp.Body)
	if err != nil {
		return Result{StatusCode: httpResp.StatusCode, Err: err}
	}

	return Result{
		StatusCode: httpResp.StatusCode,
		Body:       respBody,
	}
}
