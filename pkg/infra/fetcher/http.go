package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/m-mizutani/goerr/v2"
)

type httpConfig struct {
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	timeout      time.Duration
	logger       *slog.Logger
	transport    http.RoundTripper
}

// HTTPOption is a functional option for the HTTP fetcher
type HTTPOption func(*httpConfig)

// WithRetryMax sets how many times a failed request is retried (0 disables retries)
func WithRetryMax(n int) HTTPOption {
	return func(c *httpConfig) {
		c.retryMax = n
	}
}

// WithRetryWait sets the backoff bounds between retries
func WithRetryWait(min, max time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.retryWaitMin = min
		c.retryWaitMax = max
	}
}

// WithTimeout bounds a single request including reading the body (0 means no timeout)
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.timeout = d
	}
}

// WithLogger routes request/retry logs to logger
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(c *httpConfig) {
		c.logger = logger
	}
}

// WithTransport replaces the underlying round tripper
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(c *httpConfig) {
		c.transport = rt
	}
}

// HTTP fetches media over http and https
type HTTP struct {
	client *retryablehttp.Client
}

// NewHTTP creates an HTTP fetcher
func NewHTTP(opts ...HTTPOption) *HTTP {
	cfg := &httpConfig{
		retryWaitMin: 1 * time.Second,
		retryWaitMax: 30 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.retryMax
	client.RetryWaitMin = cfg.retryWaitMin
	client.RetryWaitMax = cfg.retryWaitMax
	client.Logger = cfg.logger
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.HTTPClient.Timeout = cfg.timeout
	if cfg.transport != nil {
		client.HTTPClient.Transport = cfg.transport
	}

	return &HTTP{client: client}
}

// Fetch issues a GET request for url and returns the response body on 200 OK
func (f *HTTP) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create media request", goerr.V("url", url))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		return nil, goerr.Wrap(err, "failed to download media", goerr.V("url", url))
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, goerr.New("unexpected status code",
			goerr.V("url", url),
			goerr.V("status", resp.StatusCode),
		)
	}

	return resp.Body, nil
}
