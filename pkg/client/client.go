// Package client implements the sending side of AAP: resolving addresses,
// delivering messages with retry and fetching an agent's own inbox.
//
// A Client holds no per-call state and is safe for concurrent use.
package client

import (
	"crypto/tls"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Defaults.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to AAP providers.
type Client struct {
	httpClient Doer
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	insecure   bool
	logger     *slog.Logger
	newKey     func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP transport.
func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

// WithTimeout bounds each individual request attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithMaxRetries sets the total number of attempts per call.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithRetryDelay sets the base of the linear backoff between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

// WithInsecureSkipVerify disables TLS certificate checks on the default
// transport. Ignored when WithHTTPClient is used.
func WithInsecureSkipVerify() Option {
	return func(c *Client) { c.insecure = true }
}

// WithLogger sets the logger for per-attempt diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithKeyGenerator replaces the idempotency key generator used for private sends.
func WithKeyGenerator(fn func() string) Option {
	return func(c *Client) { c.newKey = fn }
}

// New returns a Client with defaults applied.
func New(opts ...Option) *Client {
	c := &Client{
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		newKey:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.maxRetries < 1 {
		c.maxRetries = 1
	}
	if c.retryDelay < 0 {
		c.retryDelay = 0
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.newKey == nil {
		c.newKey = uuid.NewString
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.insecure {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for local providers
		}
		c.httpClient = &http.Client{Transport: transport}
	}
	c.logger = c.logger.With("component", "aap_client")

	return c
}
