// Package transport is the HTTP client of the Togglr SDK API.
//
// It performs exactly one request per call. Retries, caching and error
// translation belong to the caller.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rafaeljc/togglr-sdk-go/internal/validation"
)

// Paths of the SDK API, relative to the base URL.
const (
	PathHealth        = "/sdk/v1/health"
	pathFeatures      = "/sdk/v1/features/"
	suffixEvaluate    = "/evaluate"
	suffixReportError = "/report-error"
	suffixHealth      = "/health"
	suffixTrack       = "/track"
)

// HeaderRequestID carries the per-attempt request id.
const HeaderRequestID = "X-Request-ID"

// maxResponseBody bounds how much of a response is read.
const maxResponseBody = 1 << 20

// Config describes the connection to the SDK API.
type Config struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	// Timeout bounds each request, from dial to the end of the body.
	Timeout time.Duration
	// MaxConnections caps the pooled connections to the API host.
	MaxConnections int
	TLS            TLSConfig
}

// EvaluateResponse is the body of a successful evaluation.
type EvaluateResponse struct {
	FeatureKey string `json:"feature_key"`
	Enabled    bool   `json:"enabled"`
	Value      string `json:"value"`
}

// HealthResponse is the body of the service health endpoint.
type HealthResponse struct {
	Status     string     `json:"status"`
	ServerTime *time.Time `json:"server_time,omitempty"`
}

// FeatureHealth is the body of the feature health endpoint.
type FeatureHealth struct {
	FeatureKey     string     `json:"feature_key"`
	EnvironmentKey string     `json:"environment_key"`
	Enabled        bool       `json:"enabled"`
	AutoDisabled   bool       `json:"auto_disabled"`
	ErrorRate      *float64   `json:"error_rate,omitempty"`
	Threshold      *float64   `json:"threshold,omitempty"`
	LastErrorAt    *time.Time `json:"last_error_at,omitempty"`
}

// ErrorReport is the body of the report-error endpoint.
type ErrorReport struct {
	ErrorType    string         `json:"error_type"`
	ErrorMessage string         `json:"error_message"`
	Context      map[string]any `json:"context,omitempty"`
}

// Client talks to one Togglr API endpoint. It is safe for concurrent use.
type Client struct {
	baseURL   *url.URL
	apiKey    string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	requestID func() string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled client built from Config. TLS settings and
// MaxConnections are then the caller's responsibility.
func WithHTTPClient(hc *http.Client) Option {
	validation.AssertNotNil(hc, "http client")
	return func(c *Client) {
		c.http = hc
	}
}

// WithRequestIDGenerator overrides the uuid request id generator.
func WithRequestIDGenerator(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

// New validates cfg and prepares the HTTP client.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("transport: parsing base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("transport: base url scheme must be http or https, got %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("transport: base url %q has no host", cfg.BaseURL)
	}

	c := &Client{
		baseURL:   base,
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		timeout:   cfg.Timeout,
		requestID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		hc, err := newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		c.http = hc
	}

	return c, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	rt := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.MaxConnections > 0 {
		rt.MaxConnsPerHost = cfg.MaxConnections
		rt.MaxIdleConnsPerHost = cfg.MaxConnections
		rt.MaxIdleConns = max(rt.MaxIdleConns, cfg.MaxConnections)
	}

	if !cfg.TLS.IsZero() {
		tlsCfg, err := cfg.TLS.Build()
		if err != nil {
			return nil, err
		}
		rt.TLSClientConfig = tlsCfg
	}

	return &http.Client{Transport: rt}, nil
}

// Health calls GET /sdk/v1/health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, PathHealth, nil, &out)
	return out, err
}

// Evaluate posts the canonical context of a feature evaluation.
func (c *Client) Evaluate(ctx context.Context, featureKey string, payload []byte) (EvaluateResponse, error) {
	var out EvaluateResponse
	err := c.do(ctx, http.MethodPost, featurePath(featureKey, suffixEvaluate), payload, &out)
	return out, err
}

// ReportError posts a feature execution error. The API answers 202 Accepted.
func (c *Client) ReportError(ctx context.Context, featureKey string, report ErrorReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("transport: encoding error report: %w", err)
	}
	return c.do(ctx, http.MethodPost, featurePath(featureKey, suffixReportError), body, nil)
}

// FeatureHealth calls GET /sdk/v1/features/{key}/health.
func (c *Client) FeatureHealth(ctx context.Context, featureKey string) (FeatureHealth, error) {
	var out FeatureHealth
	err := c.do(ctx, http.MethodGet, featurePath(featureKey, suffixHealth), nil, &out)
	return out, err
}

// Track posts an analytics event payload. The API answers 202 Accepted.
func (c *Client) Track(ctx context.Context, featureKey string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: encoding track event: %w", err)
	}
	return c.do(ctx, http.MethodPost, featurePath(featureKey, suffixTrack), body, nil)
}

// CloseIdleConnections releases pooled connections.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

func featurePath(featureKey, suffix string) string {
	return pathFeatures + url.PathEscape(featureKey) + suffix
}

// do performs a single request. path must already be escaped.
// A nil body sends no payload; a nil out skips decoding.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("transport: building request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set(HeaderRequestID, c.requestID())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("transport: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("transport: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("transport: decoding response: %w", err)
	}
	return nil
}
