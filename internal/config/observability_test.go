package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservabilityConfigEnvValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should use default probe settings",
			envVars: minimalConfig(),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.Observability.Host)
				assert.Equal(t, "9090", cfg.Observability.Port)
				assert.Equal(t, 5*time.Second, cfg.Observability.Timeout)
				assert.Equal(t, "/healthz", cfg.Observability.LivenessPath)
				assert.Equal(t, "/readyz", cfg.Observability.ReadinessPath)
				assert.Equal(t, "/metrics", cfg.Observability.MetricsPath)
			},
		},
		{
			name: "Should load valid observability port and timeout",
			envVars: mergeEnvVars(map[string]string{
				"TOGGLR_OBSERVABILITY_PORT":    "9191",
				"TOGGLR_OBSERVABILITY_TIMEOUT": "1s",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "9191", cfg.Observability.Port)
				assert.Equal(t, 1*time.Second, cfg.Observability.Timeout)
			},
		},
		{
			name: "Should accept port zero for an ephemeral port",
			envVars: mergeEnvVars(map[string]string{
				"TOGGLR_OBSERVABILITY_PORT": "0",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0", cfg.Observability.Port)
			},
		},
		{
			name: "Should fail validation on port too high",
			envVars: mergeEnvVars(map[string]string{
				"TOGGLR_OBSERVABILITY_PORT": "65536",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on timeout too short",
			envVars: mergeEnvVars(map[string]string{
				"TOGGLR_OBSERVABILITY_TIMEOUT": "999ms",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on a relative metrics path",
			envVars: mergeEnvVars(map[string]string{
				"TOGGLR_OBSERVABILITY_METRICS_PATH": "metrics",
			}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}
			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}
