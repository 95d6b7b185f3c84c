package togglr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/trace"

	"github.com/rafaeljc/togglr-sdk-go/internal/backoff"
	"github.com/rafaeljc/togglr-sdk-go/internal/cache"
	"github.com/rafaeljc/togglr-sdk-go/internal/config"
	"github.com/rafaeljc/togglr-sdk-go/internal/retry"
	"github.com/rafaeljc/togglr-sdk-go/internal/transport"
	"github.com/rafaeljc/togglr-sdk-go/internal/validation"
)

// Defaults applied by DefaultConfig and LoadConfig.
const (
	DefaultBaseURL        = "http://localhost:8090"
	DefaultTimeout        = 800 * time.Millisecond
	DefaultRetries        = 2
	DefaultMaxConnections = 100
	DefaultCacheMaxSize   = 100
	DefaultCacheTTL       = 5 * time.Second
)

// Cache algorithms.
const (
	CacheLRU    = cache.AlgorithmLRU
	CacheS3FIFO = cache.AlgorithmS3FIFO
)

// Config is the immutable configuration of a Client.
// Build it with DefaultConfig and Options, LoadConfig, or a struct literal.
type Config struct {
	APIKey  string        `validate:"required"`
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"min=1ms"`
	// Retries is the number of additional attempts after the first one.
	Retries        int `validate:"min=0,max=10"`
	MaxConnections int `validate:"min=0"`
	// UserAgent defaults to togglr-sdk-go/<Version>.
	UserAgent string

	Backoff BackoffConfig
	Cache   CacheConfig
	TLS     TLSConfig

	// Logger receives diagnostics on soft-failure paths. Nil disables them.
	Logger Logger `validate:"-"`
	// Metrics defaults to NoopMetrics.
	Metrics Metrics `validate:"-"`
	// TracerProvider defaults to the global OpenTelemetry provider.
	TracerProvider trace.TracerProvider `validate:"-"`
}

// BackoffConfig is the capped exponential pause between retries.
type BackoffConfig struct {
	BaseDelay time.Duration `validate:"min=1ms"`
	MaxDelay  time.Duration `validate:"min=1ms"`
	Factor    float64       `validate:"gte=1"`
}

// CacheConfig configures the local result cache.
type CacheConfig struct {
	Enabled bool
	MaxSize int
	TTL     time.Duration
	// Algorithm is CacheLRU (default) or CacheS3FIFO.
	Algorithm string `validate:"omitempty,oneof=lru s3fifo"`
}

// TLSConfig is the TLS material of the API connection.
type TLSConfig struct {
	CACertPath     string
	CACertData     string
	ClientCertPath string
	ClientKeyPath  string
	// ServerName overrides SNI and the name verified against the certificate.
	ServerName string
	// SkipHostnameVerification keeps chain verification but accepts any host name.
	SkipHostnameVerification bool
	// Insecure disables certificate verification entirely.
	Insecure bool
}

// DefaultConfig returns the recommended settings for apiKey.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		BaseURL:        DefaultBaseURL,
		Timeout:        DefaultTimeout,
		Retries:        DefaultRetries,
		MaxConnections: DefaultMaxConnections,
		Backoff:        DefaultBackoff(),
		Cache: CacheConfig{
			Enabled:   false,
			MaxSize:   DefaultCacheMaxSize,
			TTL:       DefaultCacheTTL,
			Algorithm: CacheLRU,
		},
	}
}

// DefaultBackoff is 100ms doubling up to 2s.
func DefaultBackoff() BackoffConfig {
	p := backoff.Default()
	return BackoffConfig{BaseDelay: p.Base, MaxDelay: p.Max, Factor: p.Factor}
}

// LoadConfig reads TOGGLR_* environment variables (TOGGLR_API_KEY, TOGGLR_BASE_URL,
// TOGGLR_CACHE_ENABLED, TOGGLR_TLS_CA_CERT_PATH, ...) on top of the defaults.
func LoadConfig() (Config, error) {
	env, err := config.Load()
	if err != nil {
		return Config{}, err
	}

	cfg := fromEnv(env)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fromEnv maps the environment configuration onto a Config.
func fromEnv(env *config.Config) Config {
	return Config{
		APIKey:         env.APIKey,
		BaseURL:        env.BaseURL,
		Timeout:        env.Timeout,
		Retries:        env.Retries,
		MaxConnections: env.MaxConnections,
		UserAgent:      env.UserAgent,
		Backoff: BackoffConfig{
			BaseDelay: env.Backoff.BaseDelay,
			MaxDelay:  env.Backoff.MaxDelay,
			Factor:    env.Backoff.Factor,
		},
		Cache: CacheConfig{
			Enabled:   env.Cache.Enabled,
			MaxSize:   env.Cache.MaxSize,
			TTL:       env.Cache.TTL,
			Algorithm: env.Cache.Algorithm,
		},
		TLS: TLSConfig{
			CACertPath:               env.TLS.CACertPath,
			CACertData:               env.TLS.CACertData,
			ClientCertPath:           env.TLS.ClientCertPath,
			ClientKeyPath:            env.TLS.ClientKeyPath,
			ServerName:               env.TLS.ServerName,
			SkipHostnameVerification: env.TLS.SkipHostnameVerification,
			Insecure:                 env.TLS.Insecure,
		},
	}
}

// withDefaults fills zero-valued fields of a struct-literal Config.
// Retries is left alone since zero is a meaningful setting.
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = DefaultBackoff()
	}
	if c.Cache.Algorithm == "" {
		c.Cache.Algorithm = CacheLRU
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = DefaultCacheMaxSize
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("togglr: invalid config: %w", err)
	}

	if c.Backoff.MaxDelay < c.Backoff.BaseDelay {
		return fmt.Errorf("togglr: invalid config: backoff max delay %s is below base delay %s", c.Backoff.MaxDelay, c.Backoff.BaseDelay)
	}

	if c.Cache.Enabled {
		if c.Cache.MaxSize < 1 {
			return fmt.Errorf("togglr: invalid config: cache max size must be at least 1, got %d", c.Cache.MaxSize)
		}
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("togglr: invalid config: cache ttl must be positive, got %s", c.Cache.TTL)
		}
	}

	if (c.TLS.ClientCertPath == "") != (c.TLS.ClientKeyPath == "") {
		return errors.New("togglr: invalid config: tls client certificate and key must be set together")
	}

	return nil
}

// LogValue implements slog.LogValuer. The API key is redacted.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("api_key", redact(c.APIKey)),
		slog.String("base_url", c.BaseURL),
		slog.Duration("timeout", c.Timeout),
		slog.Int("retries", c.Retries),
		slog.Group("backoff",
			slog.Duration("base_delay", c.Backoff.BaseDelay),
			slog.Duration("max_delay", c.Backoff.MaxDelay),
			slog.Float64("factor", c.Backoff.Factor),
		),
		slog.Group("cache",
			slog.Bool("enabled", c.Cache.Enabled),
			slog.Int("max_size", c.Cache.MaxSize),
			slog.Duration("ttl", c.Cache.TTL),
			slog.String("algorithm", c.Cache.Algorithm),
		),
		slog.Group("tls",
			slog.Bool("custom_ca", c.TLS.CACertPath != "" || c.TLS.CACertData != ""),
			slog.Bool("client_cert", c.TLS.ClientCertPath != ""),
			slog.String("server_name", c.TLS.ServerName),
			slog.Bool("skip_hostname_verification", c.TLS.SkipHostnameVerification),
			slog.Bool("insecure", c.TLS.Insecure),
		),
	)
}

func redact(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 8:
		return "****"
	default:
		return secret[:4] + "****"
	}
}

func (c Config) policy() backoff.Policy {
	return backoff.Policy{Base: c.Backoff.BaseDelay, Max: c.Backoff.MaxDelay, Factor: c.Backoff.Factor}
}

func (c Config) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return "togglr-sdk-go/" + Version
}

func (c Config) transportConfig() transport.Config {
	return transport.Config{
		BaseURL:        c.BaseURL,
		APIKey:         c.APIKey,
		UserAgent:      c.userAgent(),
		Timeout:        c.Timeout,
		MaxConnections: c.MaxConnections,
		TLS: transport.TLSConfig{
			CACertPath:               c.TLS.CACertPath,
			CACertData:               c.TLS.CACertData,
			ClientCertPath:           c.TLS.ClientCertPath,
			ClientKeyPath:            c.TLS.ClientKeyPath,
			ServerName:               c.TLS.ServerName,
			SkipHostnameVerification: c.TLS.SkipHostnameVerification,
			Insecure:                 c.TLS.Insecure,
		},
	}
}

// Option adjusts the Config or the wiring of a Client under construction.
type Option func(*settings)

type settings struct {
	cfg        Config
	transport  Transport
	httpClient *http.Client

	// Test seams.
	sleep retry.SleepFunc
	clock cache.Clock
}

func WithBaseURL(url string) Option { return func(s *settings) { s.cfg.BaseURL = url } }

// WithTimeout bounds every single request to the API.
func WithTimeout(d time.Duration) Option { return func(s *settings) { s.cfg.Timeout = d } }

// WithRetries sets the number of retries after the first attempt.
func WithRetries(n int) Option { return func(s *settings) { s.cfg.Retries = n } }

func WithBackoff(baseDelay, maxDelay time.Duration, factor float64) Option {
	return func(s *settings) {
		s.cfg.Backoff = BackoffConfig{BaseDelay: baseDelay, MaxDelay: maxDelay, Factor: factor}
	}
}

// WithCache enables the LRU result cache.
func WithCache(maxSize int, ttl time.Duration) Option {
	return func(s *settings) {
		s.cfg.Cache.Enabled = true
		s.cfg.Cache.MaxSize = maxSize
		s.cfg.Cache.TTL = ttl
	}
}

// WithCacheAlgorithm selects CacheLRU or CacheS3FIFO.
func WithCacheAlgorithm(algorithm string) Option {
	return func(s *settings) { s.cfg.Cache.Algorithm = algorithm }
}

func WithMaxConnections(n int) Option { return func(s *settings) { s.cfg.MaxConnections = n } }

func WithUserAgent(ua string) Option { return func(s *settings) { s.cfg.UserAgent = ua } }

// WithTLS replaces the whole TLS configuration.
func WithTLS(tls TLSConfig) Option { return func(s *settings) { s.cfg.TLS = tls } }

func WithCACert(path string) Option { return func(s *settings) { s.cfg.TLS.CACertPath = path } }

func WithCACertData(pem string) Option { return func(s *settings) { s.cfg.TLS.CACertData = pem } }

func WithClientCert(certPath, keyPath string) Option {
	return func(s *settings) {
		s.cfg.TLS.ClientCertPath = certPath
		s.cfg.TLS.ClientKeyPath = keyPath
	}
}

// WithServerName overrides the TLS server name (SNI).
func WithServerName(name string) Option { return func(s *settings) { s.cfg.TLS.ServerName = name } }

func WithSkipHostnameVerification(skip bool) Option {
	return func(s *settings) { s.cfg.TLS.SkipHostnameVerification = skip }
}

// WithInsecure disables certificate verification. Never use it in production.
func WithInsecure(insecure bool) Option { return func(s *settings) { s.cfg.TLS.Insecure = insecure } }

func WithLogger(l Logger) Option { return func(s *settings) { s.cfg.Logger = l } }

func WithMetrics(m Metrics) Option { return func(s *settings) { s.cfg.Metrics = m } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.cfg.TracerProvider = tp }
}

// WithTransport replaces the HTTP transport. The TLS and connection settings are
// then ignored.
func WithTransport(t Transport) Option {
	validation.AssertNotNilInterface(t, "transport")
	return func(s *settings) { s.transport = t }
}

// WithHTTPClient makes the default transport use hc instead of its own pooled client.
func WithHTTPClient(hc *http.Client) Option {
	validation.AssertNotNil(hc, "http client")
	return func(s *settings) { s.httpClient = hc }
}
