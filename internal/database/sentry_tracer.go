package database

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
)

// SentryQueryTracer reports failed queries to Sentry. Successful queries are
// not traced; the statement text is attached as breadcrumb data only on error.
type SentryQueryTracer struct{}

type sentryTraceKey struct{}

func (t *SentryQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, sentryTraceKey{}, data.SQL)
}

func (t *SentryQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if data.Err == nil {
		return
	}
	if data.Err == pgx.ErrNoRows {
		return
	}

	sql, _ := ctx.Value(sentryTraceKey{}).(string)
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "postgres")
		if sql != "" {
			scope.AddBreadcrumb(&sentry.Breadcrumb{
				Category: "db.query",
				Message:  sql,
				Level:    sentry.LevelError,
			}, 10)
		}
		sentry.CaptureException(data.Err)
	})
}
