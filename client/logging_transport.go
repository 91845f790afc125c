package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pitabwire/util"
)

const (
	defaultMaxBodySize = 1024 // Max body size to log (1KB)
)

// LoggingTransportOption configures the logging HTTP transport.
type LoggingTransportOption func(*loggingTransport)

// loggingTransport is an HTTP transport that logs requests and responses.
type loggingTransport struct {
	transport    http.RoundTripper
	logRequests  bool
	logResponses bool
	logHeaders   bool
	logBody      bool
	maxBodySize  int64
}

// NewLoggingTransport creates a new logging HTTP transport.
// By default, it logs requests and responses but not headers or body.
func NewLoggingTransport(transport http.RoundTripper, opts ...LoggingTransportOption) http.RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}

	t := &loggingTransport{
		transport:    transport,
		logRequests:  true,
		logResponses: true,
		maxBodySize:  defaultMaxBodySize,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// WithTransportLogRequests enables or disables request logging.
func WithTransportLogRequests(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logRequests = enabled
	}
}

// WithTransportLogResponses enables or disables response logging.
func WithTransportLogResponses(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logResponses = enabled
	}
}

// WithTransportLogHeaders enables or disables header logging.
// Headers may carry credentials.
func WithTransportLogHeaders(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logHeaders = enabled
	}
}

// WithTransportLogBody enables or disables body logging.
func WithTransportLogBody(enabled bool) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.logBody = enabled
	}
}

// WithTransportMaxBodySize sets the maximum body size to log.
func WithTransportMaxBodySize(size int64) LoggingTransportOption {
	return func(t *loggingTransport) {
		t.maxBodySize = size
	}
}

// RoundTrip implements http.RoundTripper.
func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	if t.logRequests {
		t.logRequest(ctx, req)
	}

	resp, err := t.transport.RoundTrip(req)

	if t.logResponses {
		t.logResponse(ctx, resp, err, time.Since(start))
	}

	return resp, err
}

func (t *loggingTransport) logRequest(ctx context.Context, req *http.Request) {
	logger := util.Log(ctx).WithFields(map[string]any{
		"method": req.Method,
		"url":    req.URL.String(),
		"host":   req.Host,
	})

	if t.logHeaders {
		logger = logger.WithField("headers", flattenHeaders(req.Header))
	}

	if t.logBody && req.Body != nil && req.Body != http.NoBody {
		prefix, err := io.ReadAll(io.LimitReader(req.Body, t.maxBodySize))
		if err == nil && len(prefix) > 0 {
			logger = logger.WithField("body", string(prefix))
		}
		req.Body = &prefixedReadCloser{
			Reader: io.MultiReader(bytes.NewReader(prefix), req.Body),
			closer: req.Body,
		}
	}

	logger.Info("HTTP request sent")
}

func (t *loggingTransport) logResponse(ctx context.Context, resp *http.Response, err error, duration time.Duration) {
	logger := util.Log(ctx).WithField("duration", duration.String())

	if err != nil {
		logger.WithError(err).Error("HTTP request failed")
		return
	}

	if resp == nil {
		return
	}

	logger = logger.WithFields(map[string]any{
		"status":     resp.StatusCode,
		"statusText": http.StatusText(resp.StatusCode),
	})

	if t.logHeaders {
		logger = logger.WithField("headers", flattenHeaders(resp.Header))
	}

	if t.logBody && resp.Body != nil {
		tee := newTeeReadCloser(resp.Body, t.maxBodySize)
		resp.Body = tee
		tee.onClose = func(logged []byte) {
			logger.WithField("body", string(logged)).Info("HTTP response body read")
		}
	}

	logger.Info("HTTP response received")
}

func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			out[name] = strings.Join(values, " , ")
		}
	}
	return out
}

type prefixedReadCloser struct {
	io.Reader
	closer io.Closer
}

func (p *prefixedReadCloser) Close() error {
	return p.closer.Close()
}

// teeReadCloser hands the full stream to its reader while keeping the first
// limit bytes for logging.
type teeReadCloser struct {
	rc      io.ReadCloser
	limit   int64
	logged  bytes.Buffer
	onClose func([]byte)
}

func newTeeReadCloser(rc io.ReadCloser, limit int64) *teeReadCloser {
	return &teeReadCloser{rc: rc, limit: limit}
}

func (t *teeReadCloser) Read(p []byte) (int, error) {
	n, err := t.rc.Read(p)
	if remaining := t.limit - int64(t.logged.Len()); n > 0 && remaining > 0 {
		take := int64(n)
		if take > remaining {
			take = remaining
		}
		t.logged.Write(p[:take])
	}
	return n, err
}

// LoggedBody returns the captured prefix of the body.
func (t *teeReadCloser) LoggedBody() []byte {
	return t.logged.Bytes()
}

func (t *teeReadCloser) Close() error {
	if t.onClose != nil && t.logged.Len() > 0 {
		t.onClose(t.logged.Bytes())
		t.onClose = nil
	}
	return t.rc.Close()
}
