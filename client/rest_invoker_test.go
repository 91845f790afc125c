package client //nolint:testpackage // white-box tests for internal circuit breaker and retry logic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/suite"
)

type InvokerSuite struct {
	suite.Suite
}

func TestInvokerSuite(t *testing.T) {
	suite.Run(t, new(InvokerSuite))
}

func fastRetry(maxAttempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		Backoff:     func(int) time.Duration { return time.Millisecond },
	}
}

// newTestInvoker skips the otelhttp wrapper so tests see the raw client.
func newTestInvoker(client *http.Client, retry *RetryPolicy) *invoker {
	return &invoker{
		client:      client,
		maxBodyLen:  defaultMaxResponseBodyLen,
		retryPolicy: retry.normalise(),
	}
}

// loadBreaker installs a breaker that trips after threshold requests.
func loadBreaker(inv *invoker, serverURL string, threshold uint32, cbTimeout time.Duration) {
	u, _ := url.Parse(serverURL)
	key := http.MethodGet + " " + u.Host
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "test:" + key,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cbTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= threshold && c.TotalFailures == c.Requests
		},
	})
	inv.breakers.Store(key, cb)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func (s *InvokerSuite) TestIsRetryableStatus() {
	testCases := []struct {
		code int
		want bool
	}{
		{http.StatusOK, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
	}

	for _, tc := range testCases {
		s.Run(http.StatusText(tc.code), func() {
			s.Equal(tc.want, isRetryableStatus(tc.code))
		})
	}
}

func (s *InvokerSuite) TestBreakerForCachesPerKey() {
	inv := newTestInvoker(http.DefaultClient, nil)
	a := inv.breakerFor("GET distributions.crowdin.net")
	b := inv.breakerFor("GET distributions.crowdin.net")
	c := inv.breakerFor("GET example.com")
	s.Same(a, b)
	s.NotSame(a, c)
}

func (s *InvokerSuite) TestInvokeSuccess() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"timestamp":1700000000}`))
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), nil)
	resp, err := inv.Invoke(context.Background(), http.MethodGet, srv.URL, nil, nil)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)

	var out struct {
		Timestamp int64 `json:"timestamp"`
	}
	content, err := resp.ToContent(context.Background())
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(content, &out))
	s.Equal(int64(1700000000), out.Timestamp)
}

func (s *InvokerSuite) TestInvokeWithPayload() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.JSONEq(`{"locale":"fr"}`, string(body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), nil)
	resp, err := inv.Invoke(context.Background(), http.MethodPost, srv.URL, map[string]string{"locale": "fr"}, nil)
	s.Require().NoError(err)
	defer resp.Close()
	s.Equal(http.StatusCreated, resp.StatusCode)
}

func (s *InvokerSuite) TestSingleAttemptByDefault() {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), nil)
	resp, err := inv.Invoke(context.Background(), http.MethodGet, srv.URL, nil, nil)
	s.Require().NoError(err)
	defer resp.Close()

	s.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	s.Equal(int32(1), hits.Load())
}

func (s *InvokerSuite) TestRetryableStatusSucceedsOnRetry() {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), fastRetry(3))
	resp, err := inv.Invoke(context.Background(), http.MethodGet, srv.URL, nil, nil)
	s.Require().NoError(err)

	content, err := resp.ToContent(context.Background())
	s.Require().NoError(err)
	s.Equal("ok", string(content))
	s.Equal(int32(3), hits.Load())
}

func (s *InvokerSuite) TestPerCallRetryPolicyOverrides() {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), nil)
	resp, err := inv.InvokeStream(context.Background(), http.MethodGet, srv.URL, nil, nil,
		WithHTTPRetryPolicy(fastRetry(2)))
	s.Require().NoError(err)
	defer resp.Close()

	s.Equal(http.StatusGatewayTimeout, resp.StatusCode)
	s.Equal(int32(2), hits.Load())
}

func (s *InvokerSuite) TestNonRetryable5xxReturnsBody() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), fastRetry(3))
	resp, err := inv.Invoke(context.Background(), http.MethodGet, srv.URL, nil, nil)
	s.Require().NoError(err)

	content, err := resp.ToContent(context.Background())
	s.Require().NoError(err)
	s.Equal(http.StatusInternalServerError, resp.StatusCode)
	s.Equal("boom", string(content))
}

func (s *InvokerSuite) TestContextCancelledDuringBackoff() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), &RetryPolicy{
		MaxAttempts: 5,
		Backoff:     func(int) time.Duration { return time.Minute },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := inv.Invoke(ctx, http.MethodGet, srv.URL, nil, nil)
	s.Require().ErrorIs(err, context.DeadlineExceeded)
}

func (s *InvokerSuite) TestCircuitBreakerOpensOnTransportErrors() {
	client := &http.Client{Transport: roundTripFunc(func(_ *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	inv := newTestInvoker(client, nil)

	target := "http://ota.invalid/manifest.json"
	loadBreaker(inv, target, 2, time.Minute)

	for range 2 {
		_, err := inv.Invoke(context.Background(), http.MethodGet, target, nil, nil)
		s.Require().Error(err)
		s.NotErrorIs(err, gobreaker.ErrOpenState)
	}

	_, err := inv.Invoke(context.Background(), http.MethodGet, target, nil, nil)
	s.Require().ErrorIs(err, gobreaker.ErrOpenState)
}

func (s *InvokerSuite) TestTimeoutTiedToBody() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("streaming data"))
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), nil)
	resp, err := inv.InvokeStream(context.Background(), http.MethodGet, srv.URL, nil, nil,
		WithHTTPTimeout(5*time.Second))
	s.Require().NoError(err)

	_, wrapped := resp.Body.(*cancelOnCloseBody)
	s.True(wrapped)

	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal("streaming data", string(data))
	s.NoError(resp.Close())
}

func (s *InvokerSuite) TestSeekableBodyResentOnRetry() {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(raw))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), fastRetry(2))
	resp, err := inv.InvokeStream(context.Background(), http.MethodPost, srv.URL,
		strings.NewReader("payload"), http.Header{})
	s.Require().NoError(err)
	defer resp.Close()

	s.Equal([]string{"payload", "payload"}, bodies)
}

func (s *InvokerSuite) TestToContentLimits() {
	testCases := []struct {
		name    string
		limit   int64
		body    string
		want    string
		wantErr error
	}{
		{name: "under limit", limit: 10, body: "hello", want: "hello"},
		{name: "exact truncation", limit: 5, body: "hello world", want: "hello", wantErr: ErrResponseTooLarge},
		{name: "no limit", limit: 0, body: "hello world", want: "hello world"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			resp := &InvokeResponse{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(tc.body)),
				maxBodyLen: tc.limit,
			}
			data, err := resp.ToContent(context.Background())
			if tc.wantErr != nil {
				s.Require().ErrorIs(err, tc.wantErr)
			} else {
				s.Require().NoError(err)
			}
			s.Equal(tc.want, string(data))
		})
	}
}

func (s *InvokerSuite) TestClientGetSet() {
	mgr := NewManager(WithHTTPTimeout(time.Second))
	s.NotNil(mgr.Client(context.Background()))

	replacement := &http.Client{}
	mgr.SetClient(context.Background(), replacement)
	s.Same(replacement, mgr.Client(context.Background()))
}

func (s *InvokerSuite) TestStreamedBodyIsNotReplayed() {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	inv := newTestInvoker(srv.Client(), fastRetry(3))
	_, err := inv.InvokeStream(context.Background(), http.MethodPost, srv.URL,
		io.MultiReader(strings.NewReader("once")), http.Header{})
	s.Require().Error(err)
	s.Equal(1, calls)
}

func (s *InvokerSuite) TestNewManagerBodyLimit() {
	inv, ok := NewManager().(*invoker)
	s.Require().True(ok)
	s.Equal(int64(defaultMaxResponseBodyLen), inv.maxBodyLen)

	inv, ok = NewManager(WithHTTPMaxResponseBodyLen(64)).(*invoker)
	s.Require().True(ok)
	s.Equal(int64(64), inv.maxBodyLen)
}
