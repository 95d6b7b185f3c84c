package config

import "time"

// ObservabilityConfig configures the probe server of `togglr watch`.
type ObservabilityConfig struct {
	// Host is the interface the server binds to.
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port defines where the observability server listens.
	Port string `envconfig:"PORT" default:"9090"`

	// Timeout is the unified safety valve for Read/Write/Idle operations.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s" validate:"min=1s"`

	LivenessPath  string `envconfig:"LIVENESS_PATH" default:"/healthz"`
	ReadinessPath string `envconfig:"READINESS_PATH" default:"/readyz"`
	MetricsPath   string `envconfig:"METRICS_PATH" default:"/metrics"`
}

// Validate checks ObservabilityConfig fields for correctness.
func (o *ObservabilityConfig) Validate() error {
	if err := validatePort(o.Port, "observability"); err != nil {
		return err
	}
	for _, p := range []struct{ path, name string }{
		{o.LivenessPath, "liveness"},
		{o.ReadinessPath, "readiness"},
		{o.MetricsPath, "metrics"},
	} {
		if err := validatePath(p.path, p.name); err != nil {
			return err
		}
	}
	return nil
}
