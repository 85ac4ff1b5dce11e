// Package clients provides the shared outbound HTTP client used to reach the CRM
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ajitpratap0/sfbridge/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// HTTPClient wraps a tuned *http.Client whose transport records upstream metrics
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	totalRequests  int64
	failedRequests int64
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host" yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host" yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`

	// HTTP/2 settings
	EnableHTTP2 bool `mapstructure:"enable_http2" yaml:"enable_http2"`

	// Timeouts
	DialTimeout           time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	TLSHandshakeTimeout   time.Duration `mapstructure:"tls_handshake_timeout" yaml:"tls_handshake_timeout"`
	ResponseHeaderTimeout time.Duration `mapstructure:"response_header_timeout" yaml:"response_header_timeout"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	KeepAlive             time.Duration `mapstructure:"keep_alive" yaml:"keep_alive"`

	// TLS settings
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// DefaultHTTPConfig returns the default outbound configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		RequestTimeout:        120 * time.Second,
		KeepAlive:             30 * time.Second,
		UserAgent:             "sfbridge/1.0",
	}
}

type operationKey struct{}

type operation struct {
	target string
	name   string
}

// WithOperation labels requests made under ctx for upstream metrics
func WithOperation(ctx context.Context, target, name string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation{target: target, name: name})
}

func operationFrom(ctx context.Context) operation {
	if op, ok := ctx.Value(operationKey{}).(operation); ok {
		return op
	}
	return operation{target: "unknown", name: "unknown"}
}

// NewHTTPClient creates the shared outbound client
func NewHTTPClient(config *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}

	client := &HTTPClient{
		config: config,
		logger: logger.With(zap.String("component", "http_client")),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify, //nolint:gosec // opt-in for sandbox orgs behind proxies
			MinVersion:         tls.VersionTLS12,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	client.httpClient = &http.Client{
		Transport: &instrumentedTransport{base: client.transport, client: client},
		Timeout:   config.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return client
}

// Client returns the instrumented *http.Client for libraries that accept one
func (c *HTTPClient) Client() *http.Client {
	return c.httpClient
}

// Get performs an HTTP GET request
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, nil, headers)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post performs an HTTP POST request
func (c *HTTPClient) Post(ctx context.Context, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, url, body, headers)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do performs an HTTP request
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// newRequest creates a new HTTP request with default headers applied
func (c *HTTPClient) newRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	return req, nil
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	total := atomic.LoadInt64(&c.totalRequests)
	failed := atomic.LoadInt64(&c.failedRequests)

	stats := HTTPStats{
		TotalRequests:  total,
		FailedRequests: failed,
	}
	if total > 0 {
		stats.SuccessRate = float64(total-failed) / float64(total) * 100
	}
	return stats
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests  int64   `json:"total_requests"`
	FailedRequests int64   `json:"failed_requests"`
	SuccessRate    float64 `json:"success_rate"`
}

// instrumentedTransport records every round trip against the upstream metrics
type instrumentedTransport struct {
	base   http.RoundTripper
	client *HTTPClient
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && t.client.config.UserAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.client.config.UserAgent)
	}

	atomic.AddInt64(&t.client.totalRequests, 1)
	op := operationFrom(req.Context())
	timer := metrics.NewTimer()

	resp, err := t.base.RoundTrip(req)

	metrics.ObserveUpstream(op.target, op.name, metrics.StatusLabel(resp, err), timer.Stop())
	if err != nil || resp.StatusCode >= http.StatusInternalServerError {
		atomic.AddInt64(&t.client.failedRequests, 1)
	}
	if err != nil {
		t.client.logger.Debug("upstream request failed",
			zap.String("target", op.target),
			zap.String("operation", op.name),
			zap.String("host", req.URL.Host),
			zap.Error(err))
	}

	return resp, err
}
