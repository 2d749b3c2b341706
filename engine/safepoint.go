package engine

import "context"

// Safepoint is polled by running guest code between steps. A non-nil error
// aborts the evaluation and surfaces as an *Exception.
type Safepoint func(ctx context.Context) error

type safepointKey struct{}

// WithSafepoint returns a context whose evaluations poll sp.
func WithSafepoint(ctx context.Context, sp Safepoint) context.Context {
	return context.WithValue(ctx, safepointKey{}, sp)
}

// Poll runs the installed safepoint, then reports context cancellation.
func Poll(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	if sp, ok := ctx.Value(safepointKey{}).(Safepoint); ok && sp != nil {
		if err := sp(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}
