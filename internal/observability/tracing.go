package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rafaeljc/togglr-sdk-go"

// Span attribute keys.
var (
	AttrOperation  = attribute.Key("togglr.operation")
	AttrFeatureKey = attribute.Key("togglr.feature.key")
	AttrAttempt    = attribute.Key("togglr.attempt")
	AttrCacheHit   = attribute.Key("togglr.cache.hit")
	AttrFound      = attribute.Key("togglr.feature.found")
	AttrEnabled    = attribute.Key("togglr.feature.enabled")
	AttrErrorKind  = attribute.Key("togglr.error.kind")
	AttrStatusCode = attribute.Key("http.response.status_code")
	AttrRetryDelay = attribute.Key("togglr.retry.delay_ms")
)

// Tracer returns the SDK tracer from tp, or from the global provider when tp is nil.
func Tracer(tp trace.TracerProvider, version string) trace.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(tracerName, trace.WithInstrumentationVersion(version))
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
}
