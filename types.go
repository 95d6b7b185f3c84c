package togglr

import "time"

// Outcome is the result of evaluating a feature.
type Outcome struct {
	// Value is the variant selected by the server. Empty when the feature was not found.
	Value string
	// Enabled reports whether the feature is on for the evaluated context.
	Enabled bool
	// Found is false when the server does not know the feature key.
	// This is a regular outcome, not an error.
	Found bool
}

// FeatureHealth is the server's view of a feature's error budget.
type FeatureHealth struct {
	FeatureKey     string
	EnvironmentKey string
	Enabled        bool
	// AutoDisabled is set when reported errors exceeded the threshold and the
	// server switched the feature off.
	AutoDisabled bool
	ErrorRate    *float64
	Threshold    *float64
	LastErrorAt  *time.Time
}

// Healthy reports whether the feature is enabled and was not auto-disabled.
func (h FeatureHealth) Healthy() bool {
	return h.Enabled && !h.AutoDisabled
}

// Common error types for ErrorReport. The server accepts any string.
const (
	ErrorTypeTimeout            = "timeout"
	ErrorTypeValidation         = "validation"
	ErrorTypeServiceUnavailable = "service_unavailable"
)

// ErrorReport describes a failure observed while executing a feature.
// Reports feed the server's auto-disable logic.
type ErrorReport struct {
	ErrorType    string
	ErrorMessage string
	// Context is optional free-form data attached to the report.
	Context map[string]any
}
