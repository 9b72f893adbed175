package export

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/quartz"

	"github.com/wadc/flowsync/internal/metrics"
)

// ErrorSink records jobs that reached the failed terminal state.
type ErrorSink interface {
	RecordFailure(jobID, endTime, message string) error
}

// Client provides access to the export service.
type Client struct {
	baseURL     string
	username    string
	password    string
	contentType string
	httpClient  *http.Client
	logger      *slog.Logger

	maxRetries   int
	retryBackoff time.Duration

	pollInterval time.Duration
	maxPolls     int
	sleep        Sleeper

	resubmitDelay     time.Duration
	maxSubmitAttempts int

	limiter *Limiter
	sink    ErrorSink
	metrics *metrics.Metrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new export service client.
func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
		pollInterval: 15 * time.Second,
		sleep:        ClockSleeper(quartz.NewReal()),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration for idempotent requests.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithContentType sets the Content-Type header sent with submissions.
func WithContentType(ct string) ClientOption {
	return func(c *Client) {
		c.contentType = ct
	}
}

// WithPolling sets the wait between status checks and an optional cap on
// the number of checks. A max of 0 waits for a terminal state indefinitely.
func WithPolling(interval time.Duration, max int) ClientOption {
	return func(c *Client) {
		c.pollInterval = interval
		c.maxPolls = max
	}
}

// WithSleeper replaces the function used to wait between status checks.
func WithSleeper(s Sleeper) ClientOption {
	return func(c *Client) {
		c.sleep = s
	}
}

// WithResubmit configures how placeholder acceptances are retried.
// An attempts value of 0 retries until the service hands out a job id.
func WithResubmit(delay time.Duration, attempts int) ClientOption {
	return func(c *Client) {
		c.resubmitDelay = delay
		c.maxSubmitAttempts = attempts
	}
}

// WithLimiter sets the limiter consulted before each submission by Export.
func WithLimiter(l *Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithErrorSink sets where failed jobs are recorded.
func WithErrorSink(s ErrorSink) ClientOption {
	return func(c *Client) {
		c.sink = s
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) {
		c.metrics = m
	}
}
