package observability

import "context"

// Checker is a dependency verified by the readiness probe, such as the Togglr API.
// Implementations must be safe for concurrent use and respect ctx.
type Checker interface {
	// Name identifies the component in the readiness body (e.g., "togglr-api").
	Name() string
	// Check returns nil when the component is usable.
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	ComponentName string
	Fn            func(ctx context.Context) error
}

func (c CheckerFunc) Name() string { return c.ComponentName }

func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }
