package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Delay(t *testing.T) {
	t.Parallel()

	p := Policy{Base: 100 * time.Millisecond, Max: time.Second, Factor: 2.0}

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "Should return base delay for attempt 0", attempt: 0, want: 100 * time.Millisecond},
		{name: "Should double for attempt 1", attempt: 1, want: 200 * time.Millisecond},
		{name: "Should double again for attempt 2", attempt: 2, want: 400 * time.Millisecond},
		{name: "Should reach 800ms for attempt 3", attempt: 3, want: 800 * time.Millisecond},
		{name: "Should saturate at max for attempt 4", attempt: 4, want: time.Second},
		{name: "Should stay at max for attempt 5", attempt: 5, want: time.Second},
		{name: "Should stay at max for very large attempts", attempt: 10_000, want: time.Second},
		{name: "Should treat negative attempts as attempt 0", attempt: -3, want: 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.Delay(tt.attempt))
		})
	}
}

func TestPolicy_Delay_Monotonic(t *testing.T) {
	t.Parallel()

	policies := []Policy{
		Default(),
		{Base: 200 * time.Millisecond, Max: 5 * time.Second, Factor: 1.5},
		{Base: 10 * time.Millisecond, Max: 10 * time.Millisecond, Factor: 3},
		{Base: time.Millisecond, Max: time.Hour, Factor: 1},
		{Base: time.Millisecond, Max: time.Second, Factor: 0.5}, // clamped to 1
	}

	for _, p := range policies {
		prev := time.Duration(0)
		for attempt := range 64 {
			d := p.Delay(attempt)
			assert.GreaterOrEqual(t, d, prev, "policy %+v attempt %d", p, attempt)
			assert.LessOrEqual(t, d, p.Max, "policy %+v attempt %d", p, attempt)
			prev = d
		}
	}
}

func TestPolicy_Delay_EdgeCases(t *testing.T) {
	t.Parallel()

	t.Run("Should return zero when base is zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Policy{Max: time.Second, Factor: 2}.Delay(3))
	})

	t.Run("Should return max when base exceeds max", func(t *testing.T) {
		assert.Equal(t, time.Second, Policy{Base: 5 * time.Second, Max: time.Second, Factor: 2}.Delay(0))
	})

	t.Run("Should not overflow without a cap", func(t *testing.T) {
		d := Policy{Base: time.Second, Factor: 10}.Delay(100)
		assert.Greater(t, d, time.Duration(0))
	})
}
