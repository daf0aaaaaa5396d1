package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultProcessingTimeout is how long a PROCESSING claim is honored before
// another worker may take the row over.
const DefaultProcessingTimeout = 5 * time.Minute

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: entry not found")
	// ErrClaimLost is returned when an outcome is written by a worker that no
	// longer owns the claim.
	ErrClaimLost = errors.New("store: processing claim lost")
)

const tracerName = "reviewbot/store"

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

func addDBStatsToSpan(span trace.Span, statement string, rowsCount int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("rowsCount", rowsCount),
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", statement),
		attribute.Float64("db.execution_time_ms", float64(duration.Milliseconds())),
	)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
