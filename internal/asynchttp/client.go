// Package asynchttp implements the outbound HTTP client: request execution
// runs on a bounded worker pool rather than blocking the caller, and a
// completion event is posted onto a caller-supplied sink when each request
// finishes — from the sink's point of view this looks exactly like a
// socket-readiness-driven completion, even though net/http has no such
// callback API to integrate with directly.
package asynchttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/netresearch/cweb-go/internal/retry"
)

// transportDefaults groups the connection-pool knobs tuned once at
// construction time.
type transportDefaults struct {
	maxIdleConns        int
	maxIdleConnsPerHost int
	maxConnsPerHost     int
}

var defaultTransport = transportDefaults{
	maxIdleConns:        200,
	maxIdleConnsPerHost: 50,
	maxConnsPerHost:     100,
}

// Config tunes a Client.
type Config struct {
	ConnectTimeout time.Duration
	TotalTimeout   time.Duration
	Workers        int
	Retry          bool
}

// DefaultConfig matches the connect/total timeout contract: connect 10s,
// total 30s, a small worker pool, retry disabled (handlers opt in per call
// via Request.Retry).
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		TotalTimeout:   30 * time.Second,
		Workers:        8,
	}
}

// Request describes one outbound call.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string
	Body    []byte
	Retry   bool
}

// Response is the result of a completed Request. Body is lazily parsed into
// JSON on first access via JSON(), matching the "opaque handle" contract.
type Response struct {
	Status    int
	Headers   http.Header
	Body      []byte
	TotalTime time.Duration
	Err       error
	Cancelled bool
	jsonOnce  sync.Once
	jsonValue any
	jsonErr   error
}

// JSON lazily decodes Body as JSON, caching the result.
func (r *Response) JSON() (any, error) {
	r.jsonOnce.Do(func() {
		r.jsonValue, r.jsonErr = decodeJSON(r.Body)
	})

	return r.jsonValue, r.jsonErr
}

func decodeJSON(body []byte) (any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("asynchttp: decode json body: %w", err)
	}

	return v, nil
}

// Client executes requests on a bounded worker pool and reports completion
// through a caller-supplied sink rather than returning synchronously.
type Client struct {
	http    *http.Client
	cfg     Config
	jobs    chan func()
	wg      sync.WaitGroup
	retryFn func(ctx context.Context, fn func() error) error
}

// New constructs a Client, building a transport the way a pool of
// concurrent sessions would: a dedicated connection pool sized for modest
// fan-out, keep-alives on, TLS handshake and idle-connection timeouts set
// explicitly.
func New(cfg Config) *Client {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		DisableKeepAlives:     false,
		MaxIdleConns:          defaultTransport.maxIdleConns,
		MaxIdleConnsPerHost:   defaultTransport.maxIdleConnsPerHost,
		MaxConnsPerHost:       defaultTransport.maxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.TotalTimeout,
		},
		cfg:  cfg,
		jobs: make(chan func(), cfg.Workers*4),
	}

	for i := 0; i < cfg.Workers; i++ {
		c.wg.Add(1)

		go func() {
			defer c.wg.Done()

			for job := range c.jobs {
				job()
			}
		}()
	}

	return c
}

// Close stops accepting new work and waits for in-flight requests to
// finish.
func (c *Client) Close() {
	close(c.jobs)
	c.wg.Wait()
}

// Do submits req for execution and calls onComplete with the result when
// the request finishes. onComplete is invoked on one of the client's
// worker goroutines, never on the caller's goroutine.
func (c *Client) Do(req Request, onComplete func(*Response)) {
	c.jobs <- func() {
		onComplete(c.execute(req))
	}
}

func (c *Client) execute(req Request) *Response {
	start := time.Now()

	full := req.URL
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(full, "?") {
			sep = "&"
		}

		full = full + sep + req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var do func() (*http.Response, error)

	do = func() (*http.Response, error) {
		var body io.Reader
		if req.Body != nil {
			body = bytes.NewReader(req.Body)
		}

		httpReq, err := http.NewRequest(method, full, body)
		if err != nil {
			return nil, err
		}

		for k, v := range req.Headers {
			httpReq.Header.Set(k, v)
		}

		return c.http.Do(httpReq)
	}

	var httpResp *http.Response
	var err error

	if req.Retry {
		err = retry.DoWithConfig(context.Background(), retry.HTTPConfig(), func() error {
			httpResp, err = do()

			return err
		})
	} else {
		httpResp, err = do()
	}

	resp := &Response{TotalTime: time.Since(start)}

	if err != nil {
		resp.Err = err

		return resp
	}

	defer httpResp.Body.Close()

	data, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil {
		resp.Err = readErr

		return resp
	}

	resp.Status = httpResp.StatusCode
	resp.Headers = httpResp.Header
	resp.Body = data

	return resp
}
