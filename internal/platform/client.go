// Package platform is the session client for the rewards platform API. One
// Client serves one bearer token for the lifetime of one run.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"engageflow/config"
	"engageflow/internal/metrics"
	"engageflow/logger"
)

var (
	ErrEmptyResponse = errors.New("empty response")
	ErrMalformedBody = errors.New("malformed response body")
)

// Response is a completed call: the status code and the raw body.
type Response struct {
	Status int
	Body   []byte
}

func (r *Response) OK() bool {
	return r != nil && r.Status == http.StatusOK
}

// JSON parses the body lazily with gjson.
func (r *Response) JSON() gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.ParseBytes(r.Body)
}

type Client struct {
	cfg     config.PlatformConfig
	token   string
	http    *http.Client
	limiter *rate.Limiter
	headers *headerSet
	log     *logger.Entry
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLimiter replaces the request pacer. A nil limiter disables pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// NewClient opens a session for a bare token (no "Bearer " prefix).
func NewClient(cfg config.PlatformConfig, token string, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		token:   token,
		http:    &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		headers: newHeaderSet(cfg.UserAgent, token),
		log:     logger.GetLogger().WithComponent("platform_client"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections held by the session.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

type call struct {
	endpoint string
	method   string
	path     string
	header   http.Header
	body     any
	timeout  time.Duration
}

func (c *Client) do(ctx context.Context, cl call) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.cfg.RequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", cl.endpoint, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.cfg.BaseURL+cl.path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", cl.endpoint, err)
	}
	req.Header = cl.header

	start := time.Now()
	resp, err := c.http.Do(req)
	logger.IncrementRemoteCall()
	if err != nil {
		metrics.ObserveRemoteRequest(cl.endpoint, 0)
		return nil, fmt.Errorf("%s request: %w", cl.endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.ObserveRemoteRequest(cl.endpoint, resp.StatusCode)
	logger.LogPerformanceEntry(c.log, "platform_client", cl.endpoint, time.Since(start), logger.Fields{
		"status": resp.StatusCode,
	})
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", cl.endpoint, err)
	}

	return &Response{Status: resp.StatusCode, Body: data}, nil
}
