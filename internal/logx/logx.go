// Package logx is a thin log/slog wrapper used for structured logging
// across Silk, in the shape github.com/bjaus/dispatch's own doc
// comments sketch (dispatch.WithOnParse's example calls a hypothetical
// "logx.WithCtx(ctx, slog.String(...))" — this package is that sketch,
// actually built).
package logx

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

// New returns a slog.Logger writing structured JSON to os.Stderr,
// matching the ambient-logging convention observed across the
// retrieval pack (cklxx-elephant.ai imports log/slog directly in two
// dozen files; Silk centralizes construction here instead of repeating
// slog.New at every call site).
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

// WithCtx attaches logger to ctx for retrieval by From.
func WithCtx(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// From returns the logger attached to ctx, or a default logger if none
// was attached.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return defaultLogger
}

var defaultLogger = New()
