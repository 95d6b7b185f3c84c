package togglr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rafaeljc/togglr-sdk-go/internal/backoff"
	"github.com/rafaeljc/togglr-sdk-go/internal/cache"
	"github.com/rafaeljc/togglr-sdk-go/internal/observability"
	"github.com/rafaeljc/togglr-sdk-go/internal/retry"
)

// Operation names carried by *Error, spans and log fields.
const (
	opEvaluate      = "evaluate"
	opIsEnabled     = "is_enabled"
	opReportError   = "report_error"
	opFeatureHealth = "feature_health"
	opTrackEvent    = "track_event"
	opHealthCheck   = "health_check"
)

// Client evaluates features against the Togglr API.
// It is safe for concurrent use and must be closed when no longer needed.
type Client struct {
	cfg       Config
	transport Transport
	// http is set only when the client owns the default transport.
	http    *httpTransport
	store   cache.Store
	backoff backoff.Policy
	logger  Logger
	metrics Metrics
	tracer  trace.Tracer
	sleep   retry.SleepFunc

	closeOnce sync.Once
	closed    atomic.Bool
}

// NewClient builds a client with DefaultConfig(apiKey) adjusted by opts.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	return New(DefaultConfig(apiKey), opts...)
}

// New builds a client from cfg adjusted by opts. Zero-valued fields of cfg take
// their defaults; the result is validated before anything is allocated.
func New(cfg Config, opts ...Option) (*Client, error) {
	s := settings{cfg: cfg}
	for _, opt := range opts {
		opt(&s)
	}

	cfg = s.cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		backoff: cfg.policy(),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		tracer:  observability.Tracer(cfg.TracerProvider, Version),
		sleep:   s.sleep,
	}
	if c.metrics == nil {
		c.metrics = NoopMetrics{}
	}

	if s.transport != nil {
		c.transport = s.transport
	} else {
		ht, err := newHTTPTransport(cfg, s.httpClient)
		if err != nil {
			return nil, fmt.Errorf("togglr: failed to build transport: %w", err)
		}
		c.http = ht
		c.transport = ht
	}

	if cfg.Cache.Enabled {
		var cacheOpts []cache.Option
		if s.clock != nil {
			cacheOpts = append(cacheOpts, cache.WithClock(s.clock))
		}
		store, err := cache.New(cfg.Cache.Algorithm, cfg.Cache.MaxSize, cfg.Cache.TTL, cacheOpts...)
		if err != nil {
			return nil, fmt.Errorf("togglr: failed to build cache: %w", err)
		}
		c.store = store
	}

	return c, nil
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// CacheLen returns the number of cached outcomes, or 0 when caching is disabled.
func (c *Client) CacheLen() int {
	if c.store == nil || c.closed.Load() {
		return 0
	}
	return c.store.Len()
}

// Evaluate resolves featureKey for rc. A nil rc evaluates the empty context.
//
// An unknown feature is not an error: it yields Outcome{Found: false}. Only
// transport failures that survive the retry budget are returned, as *Error.
func (c *Client) Evaluate(ctx context.Context, featureKey string, rc *RequestContext) (Outcome, error) {
	return c.evaluate(ctx, opEvaluate, featureKey, rc)
}

func (c *Client) evaluate(ctx context.Context, op, featureKey string, rc *RequestContext) (outcome Outcome, err error) {
	if err := c.ensureOpen(op, featureKey); err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	c.metrics.IncEvaluateRequest()
	defer func() {
		c.metrics.ObserveEvaluateLatency(time.Since(start).Seconds())
	}()

	ctx, span := c.startSpan(ctx, op, featureKey)
	defer span.End()

	// The caller may keep mutating rc; work on a snapshot.
	payload := rc.Clone().Canonical()

	var key string
	if c.store != nil {
		key = cache.Key(featureKey, payload)
		if entry, ok := c.store.Get(key); ok {
			c.metrics.IncCacheHit()
			span.SetAttributes(observability.AttrCacheHit.Bool(true))
			outcome = Outcome(entry.Outcome)
			setOutcomeAttrs(span, outcome)
			return outcome, nil
		}
		c.metrics.IncCacheMiss()
		span.SetAttributes(observability.AttrCacheHit.Bool(false))
	}

	outcome, err = run(ctx, c, op, featureKey, func(ctx context.Context) (Outcome, error) {
		o, err := c.transport.Evaluate(ctx, featureKey, payload)
		if status, ok := retry.StatusCode(err); ok && status == http.StatusNotFound {
			return Outcome{}, nil
		}
		return o, err
	})
	if err != nil {
		e := translate(op, featureKey, err)
		c.metrics.IncEvaluateError(e.Kind.String())
		c.fail(span, e)
		return Outcome{}, e
	}

	if c.store != nil {
		c.store.Put(key, cache.Outcome(outcome))
	}
	setOutcomeAttrs(span, outcome)
	return outcome, nil
}

// IsEnabled reports whether featureKey is on for rc. Unlike Evaluate it treats an
// unknown feature as an error matching ErrFeatureNotFound.
func (c *Client) IsEnabled(ctx context.Context, featureKey string, rc *RequestContext) (bool, error) {
	outcome, err := c.evaluate(ctx, opIsEnabled, featureKey, rc)
	if err != nil {
		return false, err
	}
	if !outcome.Found {
		return false, &Error{
			Op:         opIsEnabled,
			FeatureKey: featureKey,
			Kind:       KindFeatureNotFound,
			StatusCode: http.StatusNotFound,
			Message:    ErrFeatureNotFound.Message,
		}
	}
	return outcome.Enabled, nil
}

// IsEnabledOrDefault is IsEnabled that never fails: any error is logged through
// the configured Logger and def is returned instead.
func (c *Client) IsEnabledOrDefault(ctx context.Context, featureKey string, rc *RequestContext, def bool) bool {
	enabled, err := c.IsEnabled(ctx, featureKey, rc)
	if err != nil {
		c.log("togglr: feature evaluation failed, using default", map[string]any{
			"feature_key": featureKey,
			"default":     def,
			"error_kind":  KindOf(err).String(),
			"error":       err.Error(),
		})
		return def
	}
	return enabled
}

// ReportError records a failure observed while executing featureKey. Reports feed
// the server's auto-disable logic.
func (c *Client) ReportError(ctx context.Context, featureKey string, report ErrorReport) error {
	if err := c.ensureOpen(opReportError, featureKey); err != nil {
		return err
	}

	ctx, span := c.startSpan(ctx, opReportError, featureKey)
	defer span.End()

	_, err := run(ctx, c, opReportError, featureKey, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.transport.ReportError(ctx, featureKey, report)
	})
	if err != nil {
		e := translate(opReportError, featureKey, err)
		c.fail(span, e)
		return e
	}
	return nil
}

// GetFeatureHealth returns the server's health view of featureKey.
func (c *Client) GetFeatureHealth(ctx context.Context, featureKey string) (FeatureHealth, error) {
	if err := c.ensureOpen(opFeatureHealth, featureKey); err != nil {
		return FeatureHealth{}, err
	}

	ctx, span := c.startSpan(ctx, opFeatureHealth, featureKey)
	defer span.End()

	health, err := run(ctx, c, opFeatureHealth, featureKey, func(ctx context.Context) (FeatureHealth, error) {
		return c.transport.GetFeatureHealth(ctx, featureKey)
	})
	if err != nil {
		e := translate(opFeatureHealth, featureKey, err)
		c.fail(span, e)
		return FeatureHealth{}, e
	}
	span.SetAttributes(observability.AttrEnabled.Bool(health.Enabled))
	return health, nil
}

// IsFeatureHealthy reports whether featureKey is enabled and not auto-disabled.
func (c *Client) IsFeatureHealthy(ctx context.Context, featureKey string) (bool, error) {
	health, err := c.GetFeatureHealth(ctx, featureKey)
	if err != nil {
		return false, err
	}
	return health.Healthy(), nil
}

// TrackEvent sends an analytics event for featureKey.
func (c *Client) TrackEvent(ctx context.Context, featureKey string, event *TrackEvent) error {
	if err := c.ensureOpen(opTrackEvent, featureKey); err != nil {
		return err
	}
	if err := event.Validate(); err != nil {
		return &Error{
			Op:         opTrackEvent,
			FeatureKey: featureKey,
			Kind:       KindGeneric,
			Message:    "invalid event",
			Err:        err,
		}
	}

	ctx, span := c.startSpan(ctx, opTrackEvent, featureKey)
	defer span.End()

	payload := event.Payload()
	_, err := run(ctx, c, opTrackEvent, featureKey, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.transport.TrackEvent(ctx, featureKey, payload)
	})
	if err != nil {
		e := translate(opTrackEvent, featureKey, err)
		c.fail(span, e)
		return e
	}
	return nil
}

// HealthCheck reports whether the API answers with status "ok". It makes a single
// attempt and never fails: any error yields false.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if c.closed.Load() {
		return false
	}

	ctx, span := c.startSpan(ctx, opHealthCheck, "")
	defer span.End()

	ok, err := c.transport.HealthCheck(ctx)
	if err != nil {
		observability.RecordError(span, err)
		c.log("togglr: health check failed", map[string]any{"error": err.Error()})
		return false
	}
	return ok
}

// Close drops every cached outcome and releases idle connections. It is
// idempotent; operations on a closed client fail with ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.store != nil {
			c.store.Clear()
			c.store.Close()
		}
		if c.http != nil {
			c.http.close()
		}
	})
	return nil
}

func (c *Client) ensureOpen(op, featureKey string) error {
	if !c.closed.Load() {
		return nil
	}
	return &Error{Op: op, FeatureKey: featureKey, Kind: KindGeneric, Message: "client is closed", Err: ErrClientClosed}
}

func (c *Client) startSpan(ctx context.Context, op, featureKey string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{observability.AttrOperation.String(op)}
	if featureKey != "" {
		attrs = append(attrs, observability.AttrFeatureKey.String(featureKey))
	}
	return c.tracer.Start(ctx, "togglr."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (c *Client) fail(span trace.Span, e *Error) {
	attrs := []attribute.KeyValue{observability.AttrErrorKind.String(e.Kind.String())}
	if e.StatusCode != 0 {
		attrs = append(attrs, observability.AttrStatusCode.Int(e.StatusCode))
	}
	observability.RecordError(span, e, attrs...)
}

func (c *Client) log(msg string, fields map[string]any) {
	if c.logger != nil {
		c.logger.Log(msg, fields)
	}
}

func setOutcomeAttrs(span trace.Span, o Outcome) {
	span.SetAttributes(
		observability.AttrFound.Bool(o.Found),
		observability.AttrEnabled.Bool(o.Enabled),
	)
}

// run drives fn through the retry loop with per-attempt spans. Every retry is
// logged, counted and recorded as an event on the operation span.
func run[T any](ctx context.Context, c *Client, op, featureKey string, fn func(ctx context.Context) (T, error)) (T, error) {
	opSpan := trace.SpanFromContext(ctx)

	opts := retry.Options{
		Retries: c.cfg.Retries,
		Backoff: c.backoff,
		Sleep:   c.sleep,
		OnRetry: func(n int, delay time.Duration, lastErr error) {
			c.log("togglr: request failed, retrying", map[string]any{
				"operation":   op,
				"feature_key": featureKey,
				"retry":       n,
				"delay_ms":    delay.Milliseconds(),
				"error":       lastErr.Error(),
			})
			if ro, ok := c.metrics.(retryObserver); ok {
				ro.IncRetry(op)
			}
			opSpan.AddEvent("retry", trace.WithAttributes(
				observability.AttrAttempt.Int(n),
				observability.AttrRetryDelay.Int64(delay.Milliseconds()),
			))
		},
	}

	return retry.Do(ctx, opts, func(ctx context.Context, attempt int) (T, error) {
		ctx, span := c.tracer.Start(ctx, "togglr."+op+".attempt",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(observability.AttrAttempt.Int(attempt)),
		)
		defer span.End()

		v, err := fn(ctx)
		if err != nil {
			var attrs []attribute.KeyValue
			if status, ok := retry.StatusCode(err); ok {
				attrs = append(attrs, observability.AttrStatusCode.Int(status))
			}
			if errors.Is(err, context.DeadlineExceeded) {
				attrs = append(attrs, attribute.Bool("togglr.timeout", true))
			}
			observability.RecordError(span, err, attrs...)
		}
		return v, err
	})
}
