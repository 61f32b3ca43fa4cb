package observability

import "context"

// Checker defines the contract for any component that needs to report its readiness.
// Implementations must be thread-safe and non-blocking (respecting the context).
type Checker interface {
	// Name returns the unique identifier of the component (e.g., "rules", "redis").
	Name() string
	// Check returns nil if the component can serve, or the reason it cannot.
	// The provided context must be used to respect timeouts.
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to a named Checker.
func CheckerFunc(name string, fn func(ctx context.Context) error) Checker {
	return checkerFunc{name: name, fn: fn}
}

type checkerFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (c checkerFunc) Name() string                    { return c.name }
func (c checkerFunc) Check(ctx context.Context) error { return c.fn(ctx) }
