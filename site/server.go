package site

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pitabwire/util"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/polyglot/localization"
	lhttp "github.com/pitabwire/polyglot/localization/interceptors/http"
	"github.com/pitabwire/polyglot/ratelimiter"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRenderer replaces the default renderer.
func WithRenderer(r *Renderer) ServerOption {
	return func(s *Server) {
		s.renderer = r
	}
}

// WithIPRateLimiter limits every route except /healthz per caller IP.
func WithIPRateLimiter(l *ratelimiter.IPRateLimiter) ServerOption {
	return func(s *Server) {
		s.ipLimiter = l
	}
}

// WithBurstLimiter guards the messages API with a token bucket per caller and locale.
func WithBurstLimiter(l *ratelimiter.BurstLimiter) ServerOption {
	return func(s *Server) {
		s.burstLimiter = l
	}
}

// WithServerName names the otelhttp server spans.
func WithServerName(name string) ServerOption {
	return func(s *Server) {
		s.name = name
	}
}

// Server serves the index page of every supported locale.
type Server struct {
	source       BundleSource
	renderer     *Renderer
	ipLimiter    *ratelimiter.IPRateLimiter
	burstLimiter *ratelimiter.BurstLimiter
	name         string
}

// NewServer creates a server over source.
func NewServer(source BundleSource, opts ...ServerOption) (*Server, error) {
	s := &Server{source: source, name: "polyglot"}
	for _, opt := range opts {
		opt(s)
	}

	if s.renderer == nil {
		r, err := NewRenderer(ServerLinks)
		if err != nil {
			return nil, err
		}
		s.renderer = r
	}
	return s, nil
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)

	pages := http.NewServeMux()
	pages.HandleFunc("GET /{$}", s.handleRoot)
	pages.HandleFunc("GET /{locale}", s.handleLocale)
	pages.Handle("GET /api/messages/{locale}",
		ratelimiter.BurstLimitMiddleware(s.burstLimiter)(http.HandlerFunc(s.handleMessages)))

	mux.Handle("/", ratelimiter.RateLimitMiddleware(s.ipLimiter)(lhttp.LanguageHTTPMiddleware(pages)))

	return otelhttp.NewHandler(mux, s.name)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	defaultLocale := s.source.DefaultLocale()

	requested := localization.FromContext(r.Context())
	if preferred := localization.Negotiate(s.source.SupportedLocales(), defaultLocale, requested...); preferred != defaultLocale {
		http.Redirect(w, r, "/"+preferred, http.StatusTemporaryRedirect)
		return
	}

	s.renderPage(w, r, defaultLocale)
}

func (s *Server) handleLocale(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, r.PathValue("locale"))
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, locale string) {
	ctx := r.Context()

	props, err := StaticProps(ctx, s.source, locale)
	if err != nil {
		writeError(ctx, w, locale, err)
		return
	}

	var buf bytes.Buffer
	if err = s.renderer.Index(ctx, &buf, props); err != nil {
		writeError(ctx, w, locale, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Language", locale)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	locale := r.PathValue("locale")

	props, err := StaticProps(ctx, s.source, locale)
	if err != nil {
		writeError(ctx, w, locale, err)
		return
	}

	payload, err := json.Marshal(props)
	if err != nil {
		writeError(ctx, w, locale, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Language", locale)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

// StatusFor maps a page generation error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, localization.ErrUnsupportedLocale):
		return http.StatusNotFound
	case errors.Is(err, localization.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, locale string, err error) {
	status := StatusFor(err)

	log := util.Log(ctx).WithError(err).WithField("locale", locale).WithField("status", status)
	if status == http.StatusNotFound {
		log.Debug("page not found")
	} else {
		log.Error("page generation failed")
	}

	http.Error(w, http.StatusText(status), status)
}

// ListenAndServe serves Handler on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		util.Log(ctx).WithField("addr", addr).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
