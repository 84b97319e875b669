package config

import (
	"context"
	"time"
)

// Runtime holds the per-request settings the conversion pipeline and
// orchestrator read. It is installed on the request context at the HTTP
// boundary; outside a live request RuntimeFrom falls back to an explicitly
// constructed default, never to hidden global state.
type Runtime struct {
	MinTokensLimit    int
	MaxTokensLimit    int
	LogRequestMetrics bool
	RequestTimeout    time.Duration
}

// DefaultRuntime returns the settings used when no request scope is active.
func DefaultRuntime() *Runtime {
	return &Runtime{
		MinTokensLimit:    DefaultMinTokensLimit,
		MaxTokensLimit:    DefaultMaxTokensLimit,
		LogRequestMetrics: false,
		RequestTimeout:    DefaultRequestTimeout,
	}
}

type runtimeKey struct{}

// WithRuntime returns a context carrying rt as the active request scope.
// A nil rt clears the slot, restoring default-fallback behavior.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	if rt == nil {
		return context.WithValue(ctx, runtimeKey{}, (*Runtime)(nil))
	}
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// RuntimeFrom returns the active request-scoped runtime, or the process
// default when no scope is active. Callers must treat the result as
// read-only.
func RuntimeFrom(ctx context.Context) *Runtime {
	if rt, ok := ctx.Value(runtimeKey{}).(*Runtime); ok && rt != nil {
		return rt
	}
	return DefaultRuntime()
}
