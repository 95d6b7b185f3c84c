package togglr

import (
	"context"
	"net/http"

	"github.com/rafaeljc/togglr-sdk-go/internal/transport"
)

// Transport performs single calls against the Togglr SDK API. The Client adds
// caching, retries and error translation on top.
//
// Failures should carry the HTTP status through an HTTPStatus() int method, as
// TransportError does; errors without a status are treated as network failures
// and retried.
type Transport interface {
	HealthCheck(ctx context.Context) (bool, error)
	// Evaluate receives the canonical JSON of the request context.
	Evaluate(ctx context.Context, featureKey string, payload []byte) (Outcome, error)
	ReportError(ctx context.Context, featureKey string, report ErrorReport) error
	GetFeatureHealth(ctx context.Context, featureKey string) (FeatureHealth, error)
	TrackEvent(ctx context.Context, featureKey string, payload map[string]any) error
}

// httpTransport adapts the REST client to Transport.
type httpTransport struct {
	api *transport.Client
}

func newHTTPTransport(cfg Config, hc *http.Client) (*httpTransport, error) {
	var opts []transport.Option
	if hc != nil {
		opts = append(opts, transport.WithHTTPClient(hc))
	}

	api, err := transport.New(cfg.transportConfig(), opts...)
	if err != nil {
		return nil, err
	}
	return &httpTransport{api: api}, nil
}

func (t *httpTransport) HealthCheck(ctx context.Context) (bool, error) {
	resp, err := t.api.Health(ctx)
	if err != nil {
		return false, err
	}
	return resp.Status == "ok", nil
}

func (t *httpTransport) Evaluate(ctx context.Context, featureKey string, payload []byte) (Outcome, error) {
	resp, err := t.api.Evaluate(ctx, featureKey, payload)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Value: resp.Value, Enabled: resp.Enabled, Found: true}, nil
}

func (t *httpTransport) ReportError(ctx context.Context, featureKey string, report ErrorReport) error {
	return t.api.ReportError(ctx, featureKey, transport.ErrorReport{
		ErrorType:    report.ErrorType,
		ErrorMessage: report.ErrorMessage,
		Context:      report.Context,
	})
}

func (t *httpTransport) GetFeatureHealth(ctx context.Context, featureKey string) (FeatureHealth, error) {
	resp, err := t.api.FeatureHealth(ctx, featureKey)
	if err != nil {
		return FeatureHealth{}, err
	}
	return FeatureHealth{
		FeatureKey:     resp.FeatureKey,
		EnvironmentKey: resp.EnvironmentKey,
		Enabled:        resp.Enabled,
		AutoDisabled:   resp.AutoDisabled,
		ErrorRate:      resp.ErrorRate,
		Threshold:      resp.Threshold,
		LastErrorAt:    resp.LastErrorAt,
	}, nil
}

func (t *httpTransport) TrackEvent(ctx context.Context, featureKey string, payload map[string]any) error {
	return t.api.Track(ctx, featureKey, payload)
}

func (t *httpTransport) close() {
	t.api.CloseIdleConnections()
}
