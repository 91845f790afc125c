package client

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultHTTPTimeout     = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
	defaultRetryBackoff    = 200 * time.Millisecond
)

// RetryPolicy controls how many times a request is attempted when the server
// answers 502, 503 or 504. MaxAttempts counts the first attempt.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetryPolicy makes a single attempt.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 1,
		Backoff:     LinearBackoff(defaultRetryBackoff),
	}
}

// LinearBackoff waits step multiplied by the attempt number.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

func (p *RetryPolicy) normalise() *RetryPolicy {
	if p == nil {
		return DefaultRetryPolicy()
	}
	np := *p
	if np.MaxAttempts < 1 {
		np.MaxAttempts = 1
	}
	if np.Backoff == nil {
		np.Backoff = LinearBackoff(defaultRetryBackoff)
	}
	return &np
}

// HTTPOption configures the client built by NewHTTPClient and NewManager.
// WithHTTPTimeout and WithHTTPRetryPolicy may also be passed per call.
type HTTPOption func(*httpConfig)

type httpConfig struct {
	timeout     time.Duration
	transport   http.RoundTripper
	retryPolicy *RetryPolicy
	maxBodyLen  int64

	traceRequests       bool
	traceRequestHeaders bool
	traceRequestBody    bool
}

func (c *httpConfig) process(opts ...HTTPOption) {
	for _, opt := range opts {
		opt(c)
	}
	c.retryPolicy = c.retryPolicy.normalise()
}

// WithHTTPTimeout bounds a request, including reading its body.
func WithHTTPTimeout(timeout time.Duration) HTTPOption {
	return func(c *httpConfig) {
		c.timeout = timeout
	}
}

// WithHTTPTransport replaces the base transport. It is still wrapped for tracing.
func WithHTTPTransport(transport http.RoundTripper) HTTPOption {
	return func(c *httpConfig) {
		c.transport = transport
	}
}

// WithHTTPRetryPolicy enables retries on transient gateway errors.
func WithHTTPRetryPolicy(policy *RetryPolicy) HTTPOption {
	return func(c *httpConfig) {
		c.retryPolicy = policy
	}
}

// WithHTTPMaxResponseBodyLen caps how much of a response ToContent will read.
func WithHTTPMaxResponseBodyLen(limit int64) HTTPOption {
	return func(c *httpConfig) {
		c.maxBodyLen = limit
	}
}

// WithHTTPTraceRequests logs every request and response.
func WithHTTPTraceRequests() HTTPOption {
	return func(c *httpConfig) {
		c.traceRequests = true
	}
}

// WithHTTPTraceRequestHeaders adds headers to the trace logs.
func WithHTTPTraceRequestHeaders() HTTPOption {
	return func(c *httpConfig) {
		c.traceRequestHeaders = true
	}
}

// WithHTTPTraceRequestBody adds bodies to the trace logs.
func WithHTTPTraceRequestBody() HTTPOption {
	return func(c *httpConfig) {
		c.traceRequestBody = true
	}
}

// NewHTTPClient returns a client whose transport is instrumented with otelhttp.
// Without WithHTTPTransport it clones http.DefaultTransport.
func NewHTTPClient(opts ...HTTPOption) *http.Client {
	cfg := &httpConfig{timeout: defaultHTTPTimeout}
	cfg.process(opts...)

	base := cfg.transport
	if base == nil {
		base = http.DefaultTransport
		if t, ok := base.(*http.Transport); ok {
			t = t.Clone()
			t.IdleConnTimeout = defaultIdleConnTimeout
			base = t
		}
	}

	transport := http.RoundTripper(otelhttp.NewTransport(base))
	if cfg.traceRequests {
		transport = NewLoggingTransport(transport,
			WithTransportLogRequests(true),
			WithTransportLogResponses(true),
			WithTransportLogHeaders(cfg.traceRequestHeaders),
			WithTransportLogBody(cfg.traceRequestBody))
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.timeout,
	}
}
