package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pitabwire/util"

	"github.com/pitabwire/polyglot/cache"
	_ "github.com/pitabwire/polyglot/cache/redis"
	_ "github.com/pitabwire/polyglot/cache/valkey"
	"github.com/pitabwire/polyglot/client"
	"github.com/pitabwire/polyglot/config"
	"github.com/pitabwire/polyglot/localization"
	"github.com/pitabwire/polyglot/messages"
	"github.com/pitabwire/polyglot/ota"
	"github.com/pitabwire/polyglot/ratelimiter"
	"github.com/pitabwire/polyglot/site"
	"github.com/pitabwire/polyglot/telemetry"
)

const (
	cacheMaxAge            = time.Hour
	maxDistributionFileLen = 8 << 20
	retryStep              = 250 * time.Millisecond
	shutdownTimeout        = 10 * time.Second
)

type app struct {
	cfg       *config.ConfigurationDefault
	telemetry telemetry.Manager
	raw       cache.RawCache
	ota       *ota.Client
	provider  *localization.Provider
	closers   []func() error
}

func loadConfig(path string) (*config.ConfigurationDefault, error) {
	var (
		cfg config.ConfigurationDefault
		err error
	)
	if path != "" {
		cfg, err = config.FromFile[config.ConfigurationDefault](path)
	} else {
		cfg, err = config.FromEnv[config.ConfigurationDefault]()
	}
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newLogger(ctx context.Context, cfg *config.ConfigurationDefault, tm telemetry.Manager) *util.LogEntry {
	var opts []util.Option

	if logLevel, err := util.ParseLevel(cfg.LoggingLevel()); err == nil {
		opts = append(opts, util.WithLogLevel(logLevel))
	}
	opts = append(opts,
		util.WithLogTimeFormat(cfg.LoggingTimeFormat()),
		util.WithLogNoColor(!cfg.LoggingColored()))
	if cfg.LoggingShowStackTrace() {
		opts = append(opts, util.WithLogStackTrace())
	}

	if !tm.Disabled() && tm.LogHandler() != nil {
		opts = append(opts, util.WithLogHandler(tm.LogHandler()))
	}

	return util.NewLogger(ctx, opts...).WithField("service", cfg.Name())
}

// setup wires configuration, telemetry, logging, cache, the OTA client and the provider.
func setup(ctx context.Context, configPath string) (context.Context, *app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return ctx, nil, err
	}

	a := &app{cfg: cfg}

	a.telemetry = telemetry.NewManager(ctx, cfg,
		telemetry.WithServiceName(cfg.Name()),
		telemetry.WithServiceVersion(cfg.Version()),
		telemetry.WithServiceEnvironment(cfg.Environment()),
		telemetry.WithMetricViews(
			"github.com/pitabwire/polyglot/localization",
			"github.com/pitabwire/polyglot/ota",
		),
	)
	if err = a.telemetry.Init(ctx); err != nil {
		return ctx, nil, fmt.Errorf("telemetry: %w", err)
	}

	log := newLogger(ctx, cfg, a.telemetry)
	ctx = util.ContextWithLogger(ctx, log)

	if err = a.wire(ctx); err != nil {
		a.Close(ctx)
		return ctx, nil, err
	}

	log.WithField("default_locale", cfg.DefaultLocale()).
		WithField("locales", cfg.SupportedLocales()).
		WithField("cache", cfg.CacheURI().Redacted()).
		Info("polyglot ready")
	return ctx, a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	raw, err := cache.Open(ctx, cfg.CacheURI(), cache.WithMaxAge(cacheMaxAge))
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	a.raw = raw

	var fetcher localization.Fetcher
	if hash := cfg.OTADistributionHash(); hash != "" {
		a.ota, err = ota.NewClient(hash,
			ota.WithBaseURL(cfg.OTABaseURL()),
			ota.WithInvoker(a.invoker()),
			ota.WithManifestCache(raw, cfg.OTAManifestCacheTTL()),
			ota.WithStringsCache(raw, cfg.OTAStringsCacheTTL()),
			ota.WithLocale(cfg.DefaultLocale()),
		)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, a.ota.Close)
		fetcher = a.ota
	}

	loader := localization.NewFSLoader(messages.FS(), ".")
	if dir := cfg.MessagesDir(); dir != "" {
		loader = localization.NewFSLoader(os.DirFS(dir), ".")
	}

	a.provider, err = localization.NewProvider(cfg.DefaultLocale(), cfg.SupportedLocales(), loader, fetcher)
	return err
}

func (a *app) invoker() client.Manager {
	cfg := a.cfg

	opts := []client.HTTPOption{
		client.WithHTTPTimeout(cfg.OTATimeout()),
		client.WithHTTPMaxResponseBodyLen(maxDistributionFileLen),
		client.WithHTTPRetryPolicy(&client.RetryPolicy{
			MaxAttempts: cfg.OTARetryAttempts(),
			Backoff:     client.LinearBackoff(retryStep),
		}),
	}
	if cfg.TraceReq() {
		opts = append(opts, client.WithHTTPTraceRequests(), client.WithHTTPTraceRequestHeaders())
		if cfg.TraceReqLogBody() {
			opts = append(opts, client.WithHTTPTraceRequestBody())
		}
	}
	return client.NewManager(opts...)
}

func (a *app) server(ctx context.Context) (*site.Server, error) {
	opts := []site.ServerOption{site.WithServerName(a.cfg.Name())}

	if perMinute := a.cfg.RateLimitPerMinuteValue(); perMinute > 0 {
		limiter, err := ratelimiter.NewIPRateLimiter(a.raw, perMinute, time.Minute)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, limiter.Close)
		opts = append(opts, site.WithIPRateLimiter(limiter))
	}

	burst := ratelimiter.NewBurstLimiter(ratelimiter.DefaultBurstRate, ratelimiter.DefaultBurstSize, 0)
	a.closers = append(a.closers, burst.Close)
	opts = append(opts, site.WithBurstLimiter(burst))

	util.Log(ctx).WithField("rate_limit_per_minute", a.cfg.RateLimitPerMinuteValue()).Debug("server configured")
	return site.NewServer(a.provider, opts...)
}

// Close releases everything setup created, in reverse order.
func (a *app) Close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	if a.raw != nil {
		errs = append(errs, a.raw.Close())
	}

	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		errs = append(errs, a.telemetry.Shutdown(shutdownCtx))
		cancel()
	}

	if err := errors.Join(errs...); err != nil {
		util.Log(ctx).WithError(err).Warn("shutdown finished with errors")
	}
}
