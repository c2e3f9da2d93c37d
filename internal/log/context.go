// SPDX-License-Identifier: MIT

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// ContextWithExecutionID stores a pipeline execution ID so downstream log
// lines can be correlated to one guard decision.
func ContextWithExecutionID(ctx context.Context, executionID string) context.Context {
	if executionID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, executionID)
}

// ExecutionIDFromContext returns the execution ID or "" when absent.
func ExecutionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// WithContext annotates the given logger with the execution ID from ctx.
func WithContext(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if id := ExecutionIDFromContext(ctx); id != "" {
		return l.With().Str("execution_id", id).Logger()
	}
	return l
}
