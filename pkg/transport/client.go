package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	// DefaultTimeout bounds a single request, including reading the body.
	DefaultTimeout = 2 * time.Minute

	// DefaultMaxBodySize is the largest response body kept in a Response.
	DefaultMaxBodySize = 1 << 20 // 1MB

	// DefaultUserAgent is sent when Config.UserAgent is empty.
	DefaultUserAgent = "pingpoll/1.0"
)

// connection pooling limits, polling a single host
const (
	defaultMaxIdleConns        = 10
	defaultMaxIdleConnsPerHost = 2
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the terminal state of a Request.
type Response struct {
	// StatusCode is the HTTP status code. Zero if no response was received.
	StatusCode int

	// Body contains the response body, limited to the configured size.
	Body []byte

	// Latency is the time from Send to completion.
	Latency time.Duration

	// Err is set when the request failed before a status was received,
	// or when reading the body failed.
	Err error
}

// Request is a single asynchronous GET.
type Request interface {
	// Send dispatches a GET to url and returns immediately. onDone is called
	// exactly once, from another goroutine, never from inside Send.
	Send(url string, onDone func(Response))

	// Abort cancels the request if it is still in flight. Safe to call at
	// any time, including before Send and more than once.
	Abort()
}

// Transport creates Request objects.
type Transport interface {
	NewRequest() (Request, error)
}

// Config holds client configuration.
type Config struct {
	HTTPClient  *http.Client  // Optional: defaults to a pooled client
	Timeout     time.Duration // Optional: per-request timeout (defaults to DefaultTimeout)
	UserAgent   string        // Optional: User-Agent header
	MaxBodySize int64         // Optional: body size limit (defaults to DefaultMaxBodySize)
}

// Client is the net/http implementation of Transport.
type Client struct {
	httpClient  *http.Client
	timeout     time.Duration
	userAgent   string
	maxBodySize int64
}

// New creates a new HTTP Client.
//
// Timeouts are applied per request through the request context, not as a
// global http.Client timeout.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("transport: negative timeout %s", cfg.Timeout)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	maxBodySize := cfg.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	return &Client{
		httpClient:  httpClient,
		timeout:     timeout,
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
	}, nil
}

// NewRequest returns a fresh, unsent Request.
//
// Returns ErrUnavailable on a nil client.
func (c *Client) NewRequest() (Request, error) {
	if c == nil || c.httpClient == nil {
		return nil, ErrUnavailable
	}
	return &httpRequest{client: c}, nil
}

// Close closes idle connections in the pool. Safe to call multiple times;
// the client remains usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}

type httpRequest struct {
	client *Client

	mu      sync.Mutex
	cancel  context.CancelFunc
	sent    bool
	aborted bool
}

func (r *httpRequest) Send(url string, onDone func(Response)) {
	r.mu.Lock()
	if r.sent {
		r.mu.Unlock()
		go onDone(Response{Err: ErrAlreadySent})
		return
	}
	r.sent = true
	if r.aborted {
		r.mu.Unlock()
		go onDone(Response{Err: ErrAborted})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.client.timeout)
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		resp := r.client.fetch(ctx, url)
		cancel()

		r.mu.Lock()
		if r.aborted && resp.Err != nil {
			resp.Err = fmt.Errorf("%w: %v", ErrAborted, resp.Err)
		}
		r.mu.Unlock()

		onDone(resp)
	}()
}

func (r *httpRequest) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = true
	if r.cancel != nil {
		r.cancel()
	}
}

// fetch performs the GET and always returns a Response; errors are captured
// in the Err field.
func (c *Client) fetch(ctx context.Context, url string) Response {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Err:     fmt.Errorf("failed to create request: %w", err),
		}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.timeout, err)
		}
		return Response{
			Latency: time.Since(start),
			Err:     fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Err:        fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    time.Since(start),
	}
}
