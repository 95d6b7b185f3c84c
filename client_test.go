package togglr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers with per-method hooks and counts calls.
type fakeTransport struct {
	evaluate      func(call int, featureKey string, payload []byte) (Outcome, error)
	health        func() (bool, error)
	reportError   func(call int, featureKey string, report ErrorReport) error
	featureHealth func(call int, featureKey string) (FeatureHealth, error)
	track         func(call int, featureKey string, payload map[string]any) error

	evaluateCalls atomic.Int32
	reportCalls   atomic.Int32
	healthCalls   atomic.Int32
	trackCalls    atomic.Int32

	mu       sync.Mutex
	payloads []string
	tracked  []map[string]any
}

func (f *fakeTransport) HealthCheck(context.Context) (bool, error) {
	if f.health == nil {
		return true, nil
	}
	return f.health()
}

func (f *fakeTransport) Evaluate(_ context.Context, featureKey string, payload []byte) (Outcome, error) {
	call := int(f.evaluateCalls.Add(1))
	f.mu.Lock()
	f.payloads = append(f.payloads, string(payload))
	f.mu.Unlock()
	if f.evaluate == nil {
		return Outcome{Value: "on", Enabled: true, Found: true}, nil
	}
	return f.evaluate(call, featureKey, payload)
}

func (f *fakeTransport) ReportError(_ context.Context, featureKey string, report ErrorReport) error {
	call := int(f.reportCalls.Add(1))
	if f.reportError == nil {
		return nil
	}
	return f.reportError(call, featureKey, report)
}

func (f *fakeTransport) GetFeatureHealth(_ context.Context, featureKey string) (FeatureHealth, error) {
	call := int(f.healthCalls.Add(1))
	if f.featureHealth == nil {
		return FeatureHealth{FeatureKey: featureKey, Enabled: true}, nil
	}
	return f.featureHealth(call, featureKey)
}

func (f *fakeTransport) TrackEvent(_ context.Context, featureKey string, payload map[string]any) error {
	call := int(f.trackCalls.Add(1))
	f.mu.Lock()
	f.tracked = append(f.tracked, payload)
	f.mu.Unlock()
	if f.track == nil {
		return nil
	}
	return f.track(call, featureKey, payload)
}

func status(code int) error {
	return &TransportError{StatusCode: code, Err: errors.New(http.StatusText(code))}
}

// recordingSleep captures requested delays without sleeping.
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type recordingMetrics struct {
	mu        sync.Mutex
	requests  int
	hits      int
	misses    int
	errors    []string
	latencies int
	retries   map[string]int
}

func (m *recordingMetrics) IncEvaluateRequest() { m.mu.Lock(); m.requests++; m.mu.Unlock() }
func (m *recordingMetrics) IncCacheHit()        { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *recordingMetrics) IncCacheMiss()       { m.mu.Lock(); m.misses++; m.mu.Unlock() }

func (m *recordingMetrics) IncEvaluateError(code string) {
	m.mu.Lock()
	m.errors = append(m.errors, code)
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveEvaluateLatency(float64) {
	m.mu.Lock()
	m.latencies++
	m.mu.Unlock()
}

func (m *recordingMetrics) IncRetry(op string) {
	m.mu.Lock()
	if m.retries == nil {
		m.retries = make(map[string]int)
	}
	m.retries[op]++
	m.mu.Unlock()
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func withSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *settings) { s.sleep = fn }
}

func withClock(fn func() time.Time) Option {
	return func(s *settings) { s.clock = fn }
}

func newTestClient(t *testing.T, ft *fakeTransport, opts ...Option) (*Client, *recordingSleep) {
	t.Helper()
	rs := &recordingSleep{}
	opts = append([]Option{WithTransport(ft), withSleep(rs.sleep)}, opts...)
	c, err := NewClient("test-key", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, rs
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("Should apply defaults to a struct literal", func(t *testing.T) {
		t.Parallel()
		c, err := New(Config{APIKey: "k"}, WithTransport(&fakeTransport{}))
		require.NoError(t, err)
		defer c.Close()

		cfg := c.Config()
		assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
		assert.Equal(t, DefaultTimeout, cfg.Timeout)
		assert.Equal(t, DefaultBackoff(), cfg.Backoff)
		assert.Equal(t, CacheLRU, cfg.Cache.Algorithm)
		assert.Zero(t, cfg.Retries)
	})

	t.Run("Should reject invalid configuration", func(t *testing.T) {
		t.Parallel()
		_, err := NewClient("", WithTransport(&fakeTransport{}))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid config")
	})

	t.Run("Should reject an unknown cache algorithm", func(t *testing.T) {
		t.Parallel()
		_, err := NewClient("k", WithTransport(&fakeTransport{}), WithCache(10, time.Second), WithCacheAlgorithm("arc"))
		require.Error(t, err)
	})

	t.Run("Should build the HTTP transport by default", func(t *testing.T) {
		t.Parallel()
		c, err := NewClient("k")
		require.NoError(t, err)
		defer c.Close()
		assert.NotNil(t, c.http)
	})

	t.Run("Should panic on a nil transport", func(t *testing.T) {
		t.Parallel()
		var ft *fakeTransport
		assert.Panics(t, func() { WithTransport(ft) })
		assert.Panics(t, func() { WithHTTPClient(nil) })
	})
}

func TestClient_Evaluate_CacheKeyIgnoresAttributeOrder(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	c, _ := newTestClient(t, ft, WithCache(10, time.Minute))

	a := NewContext().WithUserID("42").WithCountry("BR").WithAge(30)
	b := NewContext().WithAge(30).WithCountry("BR").WithUserID("42")

	_, err := c.Evaluate(context.Background(), "checkout", a)
	require.NoError(t, err)
	_, err = c.Evaluate(context.Background(), "checkout", b)
	require.NoError(t, err)

	assert.EqualValues(t, 1, ft.evaluateCalls.Load())
	assert.Equal(t, 1, c.CacheLen())
	assert.Equal(t, `{"age":30,"country_code":"BR","user.id":"42"}`, ft.payloads[0])
}

func TestClient_Evaluate_CacheRoundTrip(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	ft := &fakeTransport{
		evaluate: func(int, string, []byte) (Outcome, error) {
			return Outcome{Value: "blue", Enabled: true, Found: true}, nil
		},
	}
	c, _ := newTestClient(t, ft, WithCache(10, time.Minute), WithMetrics(metrics))
	rc := NewContext().WithUserID("u1")

	first, err := c.Evaluate(context.Background(), "theme", rc)
	require.NoError(t, err)
	second, err := c.Evaluate(context.Background(), "theme", rc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Outcome{Value: "blue", Enabled: true, Found: true}, second)
	assert.EqualValues(t, 1, ft.evaluateCalls.Load())
	assert.Equal(t, 2, metrics.requests)
	assert.Equal(t, 1, metrics.misses)
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 2, metrics.latencies)
	assert.Empty(t, metrics.errors)
}

func TestClient_Evaluate_CacheExpiry(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ft := &fakeTransport{}
	c, _ := newTestClient(t, ft, WithCache(10, 5*time.Second), withClock(clock.Now))

	_, err := c.Evaluate(context.Background(), "f", nil)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	_, err = c.Evaluate(context.Background(), "f", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, ft.evaluateCalls.Load(), "entry is still live at exactly ttl")

	clock.Advance(time.Millisecond)
	_, err = c.Evaluate(context.Background(), "f", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, ft.evaluateCalls.Load(), "expired entry must be refetched")
}

func TestClient_Evaluate_CacheEviction(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	c, _ := newTestClient(t, ft, WithCache(2, time.Minute))
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		_, err := c.Evaluate(ctx, key, nil)
		require.NoError(t, err)
	}
	// Touch "a" so that "b" becomes the least recently used entry.
	_, err := c.Evaluate(ctx, "a", nil)
	require.NoError(t, err)
	_, err = c.Evaluate(ctx, "c", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.CacheLen())
	assert.EqualValues(t, 3, ft.evaluateCalls.Load())

	_, err = c.Evaluate(ctx, "a", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, ft.evaluateCalls.Load(), "a must survive")

	_, err = c.Evaluate(ctx, "b", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, ft.evaluateCalls.Load(), "b must have been evicted")
}

func TestClient_Evaluate_CacheDisabled(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	ft := &fakeTransport{}
	c, _ := newTestClient(t, ft, WithMetrics(metrics))

	for range 3 {
		_, err := c.Evaluate(context.Background(), "f", nil)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 3, ft.evaluateCalls.Load())
	assert.Zero(t, metrics.hits+metrics.misses)
	assert.Zero(t, c.CacheLen())
}

func TestClient_Evaluate_Retries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		retries    int
		failure    error
		wantCalls  int32
		wantKind   ErrorKind
		wantTarget error
		wantStatus int
		wantDelays []time.Duration
	}{
		{
			name:       "Should retry 500 until the budget is exhausted",
			retries:    2,
			failure:    status(http.StatusInternalServerError),
			wantCalls:  3,
			wantKind:   KindInternalServerError,
			wantTarget: ErrInternalServerError,
			wantStatus: 500,
			wantDelays: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:       "Should retry 503 and map it to internal server error",
			retries:    1,
			failure:    status(http.StatusServiceUnavailable),
			wantCalls:  2,
			wantKind:   KindInternalServerError,
			wantTarget: ErrInternalServerError,
			wantStatus: 503,
			wantDelays: []time.Duration{100 * time.Millisecond},
		},
		{
			name:       "Should not retry 400",
			retries:    2,
			failure:    status(http.StatusBadRequest),
			wantCalls:  1,
			wantKind:   KindBadRequest,
			wantTarget: ErrBadRequest,
			wantStatus: 400,
		},
		{
			name:       "Should not retry 401",
			retries:    2,
			failure:    status(http.StatusUnauthorized),
			wantCalls:  1,
			wantKind:   KindUnauthorized,
			wantTarget: ErrUnauthorized,
			wantStatus: 401,
		},
		{
			name:       "Should not retry 429",
			retries:    2,
			failure:    status(http.StatusTooManyRequests),
			wantCalls:  1,
			wantKind:   KindTooManyRequests,
			wantTarget: ErrTooManyRequests,
			wantStatus: 429,
		},
		{
			name:       "Should retry network failures and report them as generic",
			retries:    2,
			failure:    errors.New("connection refused"),
			wantCalls:  3,
			wantKind:   KindGeneric,
			wantTarget: ErrGeneric,
			wantDelays: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:       "Should make a single attempt with zero retries",
			retries:    0,
			failure:    status(http.StatusBadGateway),
			wantCalls:  1,
			wantKind:   KindInternalServerError,
			wantTarget: ErrInternalServerError,
			wantStatus: 502,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			metrics := &recordingMetrics{}
			ft := &fakeTransport{
				evaluate: func(int, string, []byte) (Outcome, error) { return Outcome{}, tt.failure },
			}
			c, rs := newTestClient(t, ft, WithRetries(tt.retries), WithMetrics(metrics), WithCache(10, time.Minute))

			outcome, err := c.Evaluate(context.Background(), "f", nil)
			require.Error(t, err)
			assert.Equal(t, Outcome{}, outcome)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantStatus, e.StatusCode)
			assert.Equal(t, opEvaluate, e.Op)
			assert.Equal(t, "f", e.FeatureKey)
			assert.ErrorIs(t, err, tt.wantTarget)

			assert.Equal(t, tt.wantCalls, ft.evaluateCalls.Load())
			assert.Equal(t, tt.wantDelays, rs.recorded())
			assert.Equal(t, []string{tt.wantKind.String()}, metrics.errors)
			assert.Equal(t, 1, metrics.latencies)
			assert.Equal(t, int(tt.wantCalls)-1, metrics.retries[opEvaluate])
			assert.Zero(t, c.CacheLen(), "failures are never cached")
		})
	}
}

func TestClient_Evaluate_BackoffSchedule(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		evaluate: func(int, string, []byte) (Outcome, error) { return Outcome{}, status(500) },
	}
	c, rs := newTestClient(t, ft,
		WithRetries(6),
		WithBackoff(100*time.Millisecond, time.Second, 2),
	)

	_, err := c.Evaluate(context.Background(), "f", nil)
	require.ErrorIs(t, err, ErrInternalServerError)

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}, rs.recorded())
	assert.EqualValues(t, 7, ft.evaluateCalls.Load())
}

func TestClient_Evaluate_RecoversAfterRetry(t *testing.T) {
	t.Parallel()

	var logged []map[string]any
	var mu sync.Mutex
	logger := LoggerFunc(func(_ string, fields map[string]any) {
		mu.Lock()
		logged = append(logged, fields)
		mu.Unlock()
	})

	ft := &fakeTransport{
		evaluate: func(call int, _ string, _ []byte) (Outcome, error) {
			if call == 1 {
				return Outcome{}, status(500)
			}
			return Outcome{Value: "v2", Enabled: true, Found: true}, nil
		},
	}
	c, rs := newTestClient(t, ft, WithLogger(logger))

	outcome, err := c.Evaluate(context.Background(), "f", nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", outcome.Value)
	assert.Len(t, rs.recorded(), 1)

	require.Len(t, logged, 1)
	assert.Equal(t, opEvaluate, logged[0]["operation"])
	assert.Equal(t, 1, logged[0]["retry"])
}

func TestClient_Evaluate_NotFoundIsAnOutcome(t *testing.T) {
	t.Parallel()

	metrics := &recordingMetrics{}
	ft := &fakeTransport{
		evaluate: func(int, string, []byte) (Outcome, error) { return Outcome{}, status(http.StatusNotFound) },
	}
	c, rs := newTestClient(t, ft, WithCache(10, time.Minute), WithMetrics(metrics))

	outcome, err := c.Evaluate(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, Outcome{Value: "", Enabled: false, Found: false}, outcome)
	assert.Empty(t, rs.recorded(), "404 is not retried")
	assert.Empty(t, metrics.errors)

	outcome, err = c.Evaluate(context.Background(), "missing", nil)
	require.NoError(t, err)
	assert.False(t, outcome.Found)
	assert.EqualValues(t, 1, ft.evaluateCalls.Load(), "not-found outcomes are cached")
}

func TestClient_Evaluate_SnapshotsContext(t *testing.T) {
	t.Parallel()

	rc := NewContext().WithUserID("before")
	started := make(chan struct{})
	release := make(chan struct{})
	ft := &fakeTransport{
		evaluate: func(int, string, []byte) (Outcome, error) {
			close(started)
			<-release
			return Outcome{Found: true}, nil
		},
	}
	c, _ := newTestClient(t, ft)

	done := make(chan error, 1)
	go func() {
		_, err := c.Evaluate(context.Background(), "f", rc)
		done <- err
	}()

	<-started
	rc.WithUserID("after")
	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, `{"user.id":"before"}`, ft.payloads[0])
}

func TestClient_Evaluate_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ft := &fakeTransport{
		evaluate: func(int, string, []byte) (Outcome, error) {
			cancel()
			return Outcome{}, status(500)
		},
	}
	c, _ := newTestClient(t, ft, WithRetries(5))

	_, err := c.Evaluate(ctx, "f", nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, ft.evaluateCalls.Load(), "a cancelled caller stops the loop")
}

func TestClient_Evaluate_CancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	ft := &fakeTransport{
		evaluate: func(int, string, []byte) (Outcome, error) { return Outcome{}, errors.New("reset") },
	}
	c, _ := newTestClient(t, ft,
		WithRetries(3),
		withSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	_, err := c.Evaluate(ctx, "f", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindGeneric, KindOf(err))
	assert.Contains(t, err.Error(), "request canceled")
	assert.EqualValues(t, 1, ft.evaluateCalls.Load())
}

func TestClient_IsEnabled(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		evaluate: func(_ int, key string, _ []byte) (Outcome, error) {
			switch key {
			case "on":
				return Outcome{Value: "on", Enabled: true, Found: true}, nil
			case "off":
				return Outcome{Value: "off", Enabled: false, Found: true}, nil
			case "missing":
				return Outcome{}, status(404)
			default:
				return Outcome{}, status(500)
			}
		},
	}
	c, _ := newTestClient(t, ft, WithRetries(0))
	ctx := context.Background()

	t.Run("Should report enabled features", func(t *testing.T) {
		enabled, err := c.IsEnabled(ctx, "on", nil)
		require.NoError(t, err)
		assert.True(t, enabled)

		enabled, err = c.IsEnabled(ctx, "off", nil)
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("Should fail with feature not found", func(t *testing.T) {
		_, err := c.IsEnabled(ctx, "missing", nil)
		require.ErrorIs(t, err, ErrFeatureNotFound)
		assert.NotErrorIs(t, err, ErrNotFound)
		assert.Equal(t, KindFeatureNotFound, KindOf(err))
	})

	t.Run("Should propagate transport failures", func(t *testing.T) {
		_, err := c.IsEnabled(ctx, "broken", nil)
		require.ErrorIs(t, err, ErrInternalServerError)
	})
}

func TestClient_IsEnabledOrDefault(t *testing.T) {
	t.Parallel()

	var messages []string
	var mu sync.Mutex
	logger := LoggerFunc(func(msg string, fields map[string]any) {
		mu.Lock()
		messages = append(messages, fmt.Sprintf("%s %v", msg, fields["feature_key"]))
		mu.Unlock()
	})

	ft := &fakeTransport{
		evaluate: func(_ int, key string, _ []byte) (Outcome, error) {
			switch key {
			case "on":
				return Outcome{Enabled: true, Found: true}, nil
			case "missing":
				return Outcome{}, status(404)
			default:
				return Outcome{}, status(400)
			}
		},
	}
	c, _ := newTestClient(t, ft, WithLogger(logger))
	ctx := context.Background()

	assert.True(t, c.IsEnabledOrDefault(ctx, "on", nil, false))
	assert.True(t, c.IsEnabledOrDefault(ctx, "missing", nil, true))
	assert.False(t, c.IsEnabledOrDefault(ctx, "missing", nil, false))
	assert.True(t, c.IsEnabledOrDefault(ctx, "bad", nil, true))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, messages, 3)
	assert.Contains(t, messages[2], "bad")
}

func TestClient_IsEnabledOrDefault_WithoutLogger(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{
		evaluate: func(int, string, []byte) (Outcome, error) { return Outcome{}, status(401) },
	}
	c, _ := newTestClient(t, ft)

	assert.True(t, c.IsEnabledOrDefault(context.Background(), "f", nil, true))
}

func TestClient_ReportError(t *testing.T) {
	t.Parallel()

	t.Run("Should send the report", func(t *testing.T) {
		t.Parallel()
		var got ErrorReport
		ft := &fakeTransport{
			reportError: func(_ int, _ string, r ErrorReport) error { got = r; return nil },
		}
		c, _ := newTestClient(t, ft)

		report := ErrorReport{ErrorType: ErrorTypeTimeout, ErrorMessage: "took 3s", Context: map[string]any{"region": "eu"}}
		require.NoError(t, c.ReportError(context.Background(), "f", report))
		assert.Equal(t, report, got)
	})

	t.Run("Should fail with not found without retrying", func(t *testing.T) {
		t.Parallel()
		ft := &fakeTransport{
			reportError: func(int, string, ErrorReport) error { return status(404) },
		}
		c, rs := newTestClient(t, ft)

		err := c.ReportError(context.Background(), "f", ErrorReport{ErrorType: "x"})
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, opReportError, err.(*Error).Op)
		assert.Empty(t, rs.recorded())
	})

	t.Run("Should retry server errors", func(t *testing.T) {
		t.Parallel()
		ft := &fakeTransport{
			reportError: func(call int, _ string, _ ErrorReport) error {
				if call < 3 {
					return status(502)
				}
				return nil
			},
		}
		c, rs := newTestClient(t, ft)

		require.NoError(t, c.ReportError(context.Background(), "f", ErrorReport{ErrorType: "x"}))
		assert.EqualValues(t, 3, ft.reportCalls.Load())
		assert.Len(t, rs.recorded(), 2)
	})
}

func TestClient_FeatureHealth(t *testing.T) {
	t.Parallel()

	rate := 0.3
	tests := []struct {
		name        string
		health      FeatureHealth
		err         error
		wantHealthy bool
		wantErr     error
	}{
		{name: "Should be healthy when enabled", health: FeatureHealth{Enabled: true}, wantHealthy: true},
		{name: "Should be unhealthy when auto-disabled", health: FeatureHealth{Enabled: true, AutoDisabled: true, ErrorRate: &rate}},
		{name: "Should be unhealthy when disabled", health: FeatureHealth{Enabled: false}},
		{name: "Should propagate not found", err: status(404), wantErr: ErrNotFound},
		{name: "Should propagate unauthorized", err: status(401), wantErr: ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ft := &fakeTransport{
				featureHealth: func(int, string) (FeatureHealth, error) { return tt.health, tt.err },
			}
			c, _ := newTestClient(t, ft)

			healthy, err := c.IsFeatureHealthy(context.Background(), "f")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, healthy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHealthy, healthy)

			health, err := c.GetFeatureHealth(context.Background(), "f")
			require.NoError(t, err)
			assert.Equal(t, tt.health, health)
		})
	}
}

func TestClient_TrackEvent(t *testing.T) {
	t.Parallel()

	t.Run("Should send the event payload", func(t *testing.T) {
		t.Parallel()
		ft := &fakeTransport{}
		c, _ := newTestClient(t, ft)

		event := NewTrackEvent("variant-a", EventSuccess).
			WithReward(1.5).
			WithContext(AttrUserID, "u1").
			WithDedupKey("once")
		require.NoError(t, c.TrackEvent(context.Background(), "f", event))

		require.Len(t, ft.tracked, 1)
		assert.Equal(t, "variant-a", ft.tracked[0]["variant_key"])
		assert.Equal(t, "success", ft.tracked[0]["event_type"])
		assert.Equal(t, 1.5, ft.tracked[0]["reward"])
		assert.Equal(t, "once", ft.tracked[0]["dedup_key"])
	})

	t.Run("Should reject invalid events without calling the transport", func(t *testing.T) {
		t.Parallel()
		ft := &fakeTransport{}
		c, _ := newTestClient(t, ft)

		err := c.TrackEvent(context.Background(), "f", NewTrackEvent("", EventSuccess))
		require.ErrorIs(t, err, ErrGeneric)
		assert.Zero(t, ft.trackCalls.Load())

		err = c.TrackEvent(context.Background(), "f", nil)
		require.Error(t, err)
	})

	t.Run("Should fail with not found", func(t *testing.T) {
		t.Parallel()
		ft := &fakeTransport{
			track: func(int, string, map[string]any) error { return status(404) },
		}
		c, _ := newTestClient(t, ft)

		err := c.TrackEvent(context.Background(), "f", NewTrackEvent("v", EventFailure))
		require.ErrorIs(t, err, ErrNotFound)
		assert.EqualValues(t, 1, ft.trackCalls.Load())
	})
}

func TestClient_HealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ok   bool
		err  error
		want bool
	}{
		{name: "Should be true when the API is ok", ok: true, want: true},
		{name: "Should be false when the API is degraded", ok: false, want: false},
		{name: "Should swallow transport errors", err: status(500), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ft := &fakeTransport{health: func() (bool, error) { return tt.ok, tt.err }}
			c, rs := newTestClient(t, ft)

			assert.Equal(t, tt.want, c.HealthCheck(context.Background()))
			assert.Empty(t, rs.recorded(), "health checks are not retried")
		})
	}
}

func TestClient_Close(t *testing.T) {
	t.Parallel()

	ft := &fakeTransport{}
	c, _ := newTestClient(t, ft, WithCache(10, time.Minute))

	_, err := c.Evaluate(context.Background(), "f", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.CacheLen())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Zero(t, c.CacheLen())

	_, err = c.Evaluate(context.Background(), "f", nil)
	require.ErrorIs(t, err, ErrClientClosed)
	require.ErrorIs(t, c.ReportError(context.Background(), "f", ErrorReport{}), ErrClientClosed)
	assert.False(t, c.HealthCheck(context.Background()))
	assert.EqualValues(t, 1, ft.evaluateCalls.Load())
}

func TestClient_ConcurrentEvaluationsRespectCacheBound(t *testing.T) {
	t.Parallel()

	const maxSize = 16
	ft := &fakeTransport{}
	c, _ := newTestClient(t, ft, WithCache(maxSize, time.Minute))

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				rc := NewContext().WithUserID(fmt.Sprintf("u-%d-%d", w, i%40))
				_, err := c.Evaluate(context.Background(), "f", rc)
				assert.NoError(t, err)
				assert.LessOrEqual(t, c.CacheLen(), maxSize)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.CacheLen(), maxSize)
}
