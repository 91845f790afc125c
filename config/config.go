package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/data"
)

var (
	ErrInvalidLocale           = errors.New("config: invalid locale tag")
	ErrDefaultLocaleUnlisted   = errors.New("config: default locale is not a supported locale")
	ErrMissingDistributionHash = errors.New("config: OTA_DISTRIBUTION_HASH is required when non-default locales are supported")
)

// FromEnv convenience method to process configs.
func FromEnv[T any]() (T, error) {
	return env.ParseAs[T]()
}

type ConfigurationDefault struct {
	LogLevel      string `envDefault:"info"                      env:"LOG_LEVEL"       yaml:"log_level"       toml:"log_level"`
	LogTimeFormat string `envDefault:"2006-01-02T15:04:05Z07:00" env:"LOG_TIME_FORMAT" yaml:"log_time_format" toml:"log_time_format"`
	LogColored    bool   `envDefault:"true"                      env:"LOG_COLORED"     yaml:"log_colored"     toml:"log_colored"`

	LogShowStackTrace bool `envDefault:"false" env:"LOG_SHOW_STACK_TRACE" yaml:"log_show_stack_trace" toml:"log_show_stack_trace"`

	TraceRequests        bool `envDefault:"false" env:"TRACE_REQUESTS"          yaml:"trace_requests"          toml:"trace_requests"`
	TraceRequestsLogBody bool `envDefault:"false" env:"TRACE_REQUESTS_LOG_BODY" yaml:"trace_requests_log_body" toml:"trace_requests_log_body"`

	OpenTelemetryDisable    bool    `envDefault:"true" env:"OPENTELEMETRY_DISABLE"        yaml:"opentelemetry_disable"        toml:"opentelemetry_disable"`
	OpenTelemetryTraceRatio float64 `envDefault:"0.1"  env:"OPENTELEMETRY_TRACE_ID_RATIO" yaml:"opentelemetry_trace_id_ratio" toml:"opentelemetry_trace_id_ratio"`

	ServiceName        string `envDefault:"polyglot" env:"SERVICE_NAME"        yaml:"service_name"        toml:"service_name"`
	ServiceEnvironment string `envDefault:""         env:"SERVICE_ENVIRONMENT" yaml:"service_environment" toml:"service_environment"`
	ServiceVersion     string `envDefault:""         env:"SERVICE_VERSION"     yaml:"service_version"     toml:"service_version"`

	HTTPServerPort     string `envDefault:":8080" env:"HTTP_PORT"             yaml:"http_server_port"      toml:"http_server_port"`
	RateLimitPerMinute int    `envDefault:"600"   env:"RATE_LIMIT_PER_MINUTE" yaml:"rate_limit_per_minute" toml:"rate_limit_per_minute"`

	DefaultLocaleValue string   `envDefault:"en"       env:"DEFAULT_LOCALE"    yaml:"default_locale"    toml:"default_locale"`
	SupportedLocaleSet []string `envDefault:"en,fr,de" env:"SUPPORTED_LOCALES" yaml:"supported_locales" toml:"supported_locales"`
	MessagesDirectory  string   `envDefault:""         env:"MESSAGES_DIR"      yaml:"messages_dir"      toml:"messages_dir"`

	OTADistribution     string        `envDefault:""                                env:"OTA_DISTRIBUTION_HASH"  yaml:"ota_distribution_hash"  toml:"ota_distribution_hash"`
	OTABaseURLValue     string        `envDefault:"https://distributions.crowdin.net" env:"OTA_BASE_URL"           yaml:"ota_base_url"           toml:"ota_base_url"`
	OTATimeoutValue     time.Duration `envDefault:"10s"                             env:"OTA_TIMEOUT"            yaml:"ota_timeout"            toml:"ota_timeout"`
	OTAManifestCacheAge time.Duration `envDefault:"5m"                              env:"OTA_MANIFEST_CACHE_TTL" yaml:"ota_manifest_cache_ttl" toml:"ota_manifest_cache_ttl"`
	OTAStringsCacheAge  time.Duration `envDefault:"5m"                              env:"OTA_STRINGS_CACHE_TTL"  yaml:"ota_strings_cache_ttl"  toml:"ota_strings_cache_ttl"`
	OTARetryAttempt     int           `envDefault:"1"                               env:"OTA_RETRY_ATTEMPTS"     yaml:"ota_retry_attempts"     toml:"ota_retry_attempts"`

	CacheURIValue string `envDefault:"mem://" env:"CACHE_URI" yaml:"cache_uri" toml:"cache_uri"`
}

// Validate checks the locale settings are coherent.
func (c *ConfigurationDefault) Validate() error {
	supported := c.SupportedLocales()
	for _, locale := range append([]string{c.DefaultLocale()}, supported...) {
		if _, err := language.Parse(locale); err != nil {
			return fmt.Errorf("%w %q: %w", ErrInvalidLocale, locale, err)
		}
	}

	if !slices.Contains(supported, c.DefaultLocale()) {
		return fmt.Errorf("%w: %q not in %v", ErrDefaultLocaleUnlisted, c.DefaultLocale(), supported)
	}

	if len(supported) > 1 && c.OTADistribution == "" {
		return ErrMissingDistributionHash
	}

	return nil
}

type ConfigurationService interface {
	Name() string
	Environment() string
	Version() string
}

var _ ConfigurationService = new(ConfigurationDefault)

func (c *ConfigurationDefault) Name() string {
	return c.ServiceName
}
func (c *ConfigurationDefault) Environment() string {
	return c.ServiceEnvironment
}
func (c *ConfigurationDefault) Version() string {
	return c.ServiceVersion
}

type ConfigurationLogLevel interface {
	LoggingLevel() string
	LoggingTimeFormat() string
	LoggingShowStackTrace() bool
	LoggingColored() bool
	LoggingLevelIsDebug() bool
}

var _ ConfigurationLogLevel = new(ConfigurationDefault)

func (c *ConfigurationDefault) LoggingLevel() string {
	return c.LogLevel
}

func (c *ConfigurationDefault) LoggingTimeFormat() string {
	return c.LogTimeFormat
}

func (c *ConfigurationDefault) LoggingColored() bool {
	return c.LogColored
}

func (c *ConfigurationDefault) LoggingShowStackTrace() bool {
	return c.LogShowStackTrace
}

func (c *ConfigurationDefault) LoggingLevelIsDebug() bool {
	return c.LoggingLevel() == "debug" || c.LoggingLevel() == "trace"
}

type ConfigurationTraceRequests interface {
	TraceReq() bool
	TraceReqLogBody() bool
}

var _ ConfigurationTraceRequests = new(ConfigurationDefault)

func (c *ConfigurationDefault) TraceReq() bool {
	return c.TraceRequests
}

func (c *ConfigurationDefault) TraceReqLogBody() bool {
	return c.TraceRequestsLogBody
}

type ConfigurationPorts interface {
	HTTPPort() string
	RateLimitPerMinuteValue() int
}

var _ ConfigurationPorts = new(ConfigurationDefault)

func (c *ConfigurationDefault) HTTPPort() string {
	if i, err := strconv.Atoi(c.HTTPServerPort); err == nil && i > 0 {
		return fmt.Sprintf(":%s", strings.TrimSpace(c.HTTPServerPort))
	}

	if strings.Contains(c.HTTPServerPort, ":") {
		return c.HTTPServerPort
	}

	return ":8080"
}

func (c *ConfigurationDefault) RateLimitPerMinuteValue() int {
	return c.RateLimitPerMinute
}

type ConfigurationTelemetry interface {
	DisableOpenTelemetry() bool
	SamplingRatio() float64
}

var _ ConfigurationTelemetry = new(ConfigurationDefault)

func (c *ConfigurationDefault) DisableOpenTelemetry() bool {
	return c.OpenTelemetryDisable
}

func (c *ConfigurationDefault) SamplingRatio() float64 {
	return c.OpenTelemetryTraceRatio
}

type ConfigurationLocalization interface {
	DefaultLocale() string
	SupportedLocales() []string
	MessagesDir() string
}

var _ ConfigurationLocalization = new(ConfigurationDefault)

func (c *ConfigurationDefault) DefaultLocale() string {
	return strings.TrimSpace(c.DefaultLocaleValue)
}

// SupportedLocales returns the trimmed, de-duplicated locale list in declared order.
func (c *ConfigurationDefault) SupportedLocales() []string {
	out := make([]string, 0, len(c.SupportedLocaleSet))
	for _, locale := range c.SupportedLocaleSet {
		locale = strings.TrimSpace(locale)
		if locale == "" || slices.Contains(out, locale) {
			continue
		}
		out = append(out, locale)
	}
	return out
}

func (c *ConfigurationDefault) MessagesDir() string {
	return c.MessagesDirectory
}

type ConfigurationOTA interface {
	OTADistributionHash() string
	OTABaseURL() string
	OTATimeout() time.Duration
	OTAManifestCacheTTL() time.Duration
	OTAStringsCacheTTL() time.Duration
	OTARetryAttempts() int
}

var _ ConfigurationOTA = new(ConfigurationDefault)

func (c *ConfigurationDefault) OTADistributionHash() string {
	return c.OTADistribution
}

func (c *ConfigurationDefault) OTABaseURL() string {
	return strings.TrimSuffix(c.OTABaseURLValue, "/")
}

func (c *ConfigurationDefault) OTATimeout() time.Duration {
	return c.OTATimeoutValue
}

func (c *ConfigurationDefault) OTAManifestCacheTTL() time.Duration {
	return c.OTAManifestCacheAge
}

func (c *ConfigurationDefault) OTAStringsCacheTTL() time.Duration {
	return c.OTAStringsCacheAge
}

func (c *ConfigurationDefault) OTARetryAttempts() int {
	if c.OTARetryAttempt < 1 {
		return 1
	}
	return c.OTARetryAttempt
}

type ConfigurationCache interface {
	CacheURI() data.DSN
}

var _ ConfigurationCache = new(ConfigurationDefault)

func (c *ConfigurationDefault) CacheURI() data.DSN {
	return data.DSN(c.CacheURIValue)
}
