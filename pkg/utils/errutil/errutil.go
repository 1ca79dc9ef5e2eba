package errutil

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err at error level with its goerr values and forwards it to Sentry when
// a Sentry client is configured. It is a no-op for nil errors.
func Handle(ctx context.Context, err error, msg string) {
	if err == nil {
		return
	}

	values := errValues(err)
	ctxlog.From(ctx).Error(msg, attrs(err, values)...)

	hub := sentry.CurrentHub()
	if hub.Client() == nil {
		return
	}
	hub = hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", msg)
		if len(values) > 0 {
			scope.SetContext("values", sentry.Context(values))
		}
		hub.CaptureException(err)
	})
}

// Warn logs err at warn level. Used for failures that are tolerated by design, such as
// the best-effort remote flag mirror.
func Warn(ctx context.Context, err error, msg string) {
	if err == nil {
		return
	}
	ctxlog.From(ctx).Warn(msg, attrs(err, errValues(err))...)
}

func errValues(err error) map[string]any {
	if ge := goerr.Unwrap(err); ge != nil {
		return ge.Values()
	}
	return nil
}

func attrs(err error, values map[string]any) []any {
	out := make([]any, 0, len(values)+1)
	out = append(out, slog.Any("error", err))
	for k, v := range values {
		out = append(out, slog.Any(k, v))
	}
	return out
}
