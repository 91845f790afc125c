package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pitabwire/util"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultMaxResponseBodyLen = 32 << 20

	breakerMaxHalfOpenRequests = 3
	breakerInterval            = 30 * time.Second
	breakerOpenTimeout         = 45 * time.Second
	breakerMinRequests         = 20
	breakerFailureRatio        = 0.5
)

// ErrResponseTooLarge is returned by ToContent when the body passes the size cap.
var ErrResponseTooLarge = errors.New("client: response body exceeds the configured limit")

// Manager sends HTTP requests through one circuit breaker per method and host.
type Manager interface {
	Client(ctx context.Context) *http.Client
	SetClient(ctx context.Context, cl *http.Client)

	// Invoke sends payload as JSON. A nil payload sends no body.
	Invoke(ctx context.Context,
		method string, endpointURL string, payload any,
		headers http.Header, opts ...HTTPOption) (*InvokeResponse, error)
	// InvokeStream sends body as is. The caller owns the response body.
	InvokeStream(
		ctx context.Context,
		method string, endpointURL string,
		body io.Reader,
		headers http.Header,
		opts ...HTTPOption,
	) (*InvokeResponse, error)
}

// InvokeResponse is a response whose body must be read with ToContent or closed.
type InvokeResponse struct {
	StatusCode int
	Headers    http.Header
	Body       io.ReadCloser

	maxBodyLen int64
}

func (r *InvokeResponse) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// ToContent reads and closes the body. Past the size limit it returns the
// first maxBodyLen bytes with ErrResponseTooLarge.
func (r *InvokeResponse) ToContent(ctx context.Context) ([]byte, error) {
	defer util.CloseAndLogOnError(ctx, r)

	if r.maxBodyLen <= 0 {
		return io.ReadAll(r.Body)
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, r.maxBodyLen+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > r.maxBodyLen {
		return content[:r.maxBodyLen], ErrResponseTooLarge
	}
	return content, nil
}

// serverError marks a 5xx answer as a breaker failure. The response is still
// handed to the caller.
type serverError struct {
	statusCode int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("server error: HTTP %d", e.statusCode)
}

// cancelOnCloseBody releases a per-call timeout once the body is closed, so the
// deadline covers reading the stream too.
type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

type invoker struct {
	breakers    sync.Map // "METHOD host" -> *gobreaker.CircuitBreaker[*http.Response]
	client      *http.Client
	maxBodyLen  int64
	retryPolicy *RetryPolicy
}

// NewManager creates an invoker over NewHTTPClient(opts...).
func NewManager(opts ...HTTPOption) Manager {
	cfg := &httpConfig{}
	cfg.process(opts...)

	maxBodyLen := cfg.maxBodyLen
	if maxBodyLen <= 0 {
		maxBodyLen = defaultMaxResponseBodyLen
	}

	return &invoker{
		client:      NewHTTPClient(opts...),
		maxBodyLen:  maxBodyLen,
		retryPolicy: cfg.retryPolicy,
	}
}

func (s *invoker) Client(_ context.Context) *http.Client {
	return s.client
}

func (s *invoker) SetClient(_ context.Context, cl *http.Client) {
	s.client = cl
}

func (s *invoker) breakerFor(key string) *gobreaker.CircuitBreaker[*http.Response] {
	if cb, ok := s.breakers.Load(key); ok {
		//nolint:errcheck // only breakers are stored
		return cb.(*gobreaker.CircuitBreaker[*http.Response])
	}

	//nolint:bodyclose // the response body belongs to the caller
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "http:" + key,
		MaxRequests: breakerMaxHalfOpenRequests,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= breakerMinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= breakerFailureRatio
		},
	})

	actual, _ := s.breakers.LoadOrStore(key, cb)
	//nolint:errcheck // only breakers are stored
	return actual.(*gobreaker.CircuitBreaker[*http.Response])
}

func (s *invoker) Invoke(ctx context.Context,
	method string, endpointURL string, payload any,
	headers http.Header, opts ...HTTPOption) (*InvokeResponse, error) {
	if headers == nil {
		headers = http.Header{
			"Content-Type": {"application/json"},
			"Accept":       {"application/json"},
		}
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	return s.InvokeStream(ctx, method, endpointURL, body, headers, opts...)
}

func (s *invoker) InvokeStream(
	ctx context.Context,
	method string,
	endpointURL string,
	body io.Reader,
	headers http.Header,
	opts ...HTTPOption,
) (*InvokeResponse, error) {
	call := &httpConfig{}
	for _, opt := range opts {
		opt(call)
	}

	retry := s.retryPolicy
	if call.retryPolicy != nil {
		retry = call.retryPolicy.normalise()
	}

	cancel := context.CancelFunc(func() {})
	if call.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, call.timeout)
	}

	req, err := newRequest(ctx, method, endpointURL, body, headers)
	if err != nil {
		cancel()
		return nil, err
	}

	//nolint:bodyclose // the response body belongs to the caller
	resp, err := s.breakerFor(req.Method+" "+req.URL.Host).Execute(func() (*http.Response, error) {
		return s.send(ctx, req, retry)
	})
	var sErr *serverError
	if resp != nil && errors.As(err, &sErr) {
		err = nil
	}
	if err != nil {
		cancel()
		return nil, err
	}

	respBody := resp.Body
	if call.timeout > 0 {
		respBody = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	}

	return &InvokeResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		maxBodyLen: s.maxBodyLen,
	}, nil
}

func newRequest(ctx context.Context, method, endpointURL string, body io.Reader, headers http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpointURL, body)
	if err != nil {
		return nil, err
	}
	req.Header = headers

	// http.NewRequest already sets GetBody for bytes and strings readers.
	if seeker, ok := body.(io.ReadSeeker); ok && req.GetBody == nil {
		req.GetBody = func() (io.ReadCloser, error) {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
			return io.NopCloser(seeker), nil
		}
	}
	return req, nil
}

// send makes up to retry.MaxAttempts attempts. Gateway errors are retried, any
// other 5xx is returned with a serverError so the breaker counts it.
//
//nolint:bodyclose // the returned body belongs to the caller
func (s *invoker) send(ctx context.Context, req *http.Request, retry *RetryPolicy) (*http.Response, error) {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if attempt > 1 && !rewind(req) {
			return nil, lastErr
		}

		resp, err := s.client.Do(req)
		final := attempt >= retry.MaxAttempts

		switch {
		case err != nil:
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			lastErr = err
		case isRetryableStatus(resp.StatusCode) && !final:
			_ = resp.Body.Close()
			lastErr = &serverError{statusCode: resp.StatusCode}
		case resp.StatusCode >= http.StatusInternalServerError:
			return resp, &serverError{statusCode: resp.StatusCode}
		default:
			return resp, nil
		}

		if final {
			return nil, lastErr
		}
		if err = sleep(ctx, retry.Backoff(attempt)); err != nil {
			return nil, err
		}
	}
}

// rewind resets the request body for another attempt. Requests without a body
// always rewind; a body without GetBody cannot be replayed.
func rewind(req *http.Request) bool {
	if req.GetBody == nil {
		return req.Body == nil || req.Body == http.NoBody
	}
	body, err := req.GetBody()
	if err != nil {
		return false
	}
	req.Body = body
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
