package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zoff-tech/reviewbot/schema"
)

// postgresQueue holds the statements shared by the inbox and outbox tables.
type postgresQueue struct {
	tx    *TxManager
	table string
}

func (q *postgresQueue) withSpan(ctx context.Context, spanName string, fn func(ctx context.Context, exec Executor) (int, error)) error {
	ctx, span := startSpan(ctx, spanName)
	defer span.End()

	start := time.Now()
	n, err := fn(ctx, q.tx.Executor(ctx))
	if err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, spanName, n, time.Since(start))
	return nil
}

func (q *postgresQueue) insert(ctx context.Context, spanName, query string, args ...any) (bool, error) {
	var inserted bool
	err := q.withSpan(ctx, spanName, func(ctx context.Context, exec Executor) (int, error) {
		res, err := exec.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", q.table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted = n == 1
		return int(n), nil
	})
	return inserted, err
}

func (q *postgresQueue) claim(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	var claimed bool
	err := q.withSpan(ctx, "Claim", func(ctx context.Context, exec Executor) (int, error) {
		claimable := schema.ClaimableStatuses()
		res, err := exec.ExecContext(ctx,
			`UPDATE `+q.table+` SET status=$1, processing_attempt = processing_attempt + 1, processing_started_at=$2, updated_at=$2
             WHERE id=$3 AND (status IN ($4, $5) OR (status=$1 AND processing_started_at < $6))`,
			schema.StatusProcessing, now, id, claimable[0], claimable[1], staleBefore)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		claimed = n == 1
		return int(n), nil
	})
	return claimed, err
}

func (q *postgresQueue) save(ctx context.Context, d *schema.Delivery) error {
	return q.withSpan(ctx, "Save", func(ctx context.Context, exec Executor) (int, error) {
		res, err := exec.ExecContext(ctx,
			`UPDATE `+q.table+` SET status=$1, failure_type=$2, failure_reason=$3, completed_at=$4, updated_at=$5
             WHERE id=$6 AND status=$7 AND processing_attempt=$8`,
			d.Status, nullString(string(d.FailureType)), nullString(d.FailureReason), nullTime(d.CompletedAt), d.UpdatedAt,
			d.ID, schema.StatusProcessing, d.ProcessingAttempt)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrClaimLost
		}
		return int(n), nil
	})
}

func (q *postgresQueue) recoverStale(ctx context.Context, staleBefore, now time.Time) (int64, error) {
	var recovered int64
	err := q.withSpan(ctx, "RecoverStale", func(ctx context.Context, exec Executor) (int, error) {
		res, err := exec.ExecContext(ctx,
			`UPDATE `+q.table+` SET status=$1, updated_at=$2 WHERE status=$3 AND processing_started_at < $4`,
			schema.StatusRetryPending, now, schema.StatusProcessing, staleBefore)
		if err != nil {
			return 0, err
		}
		recovered, err = res.RowsAffected()
		return int(recovered), err
	})
	return recovered, err
}

// deliveryColumns is the select list matching scanDelivery.
const deliveryColumns = `id, idempotency_key, status, processing_attempt, failure_type, failure_reason, created_at, updated_at, processing_started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry scans deliveryColumns into d followed by the entity specific columns.
func scanEntry(row rowScanner, d *schema.Delivery, extra ...any) error {
	var (
		failureType   sql.NullString
		failureReason sql.NullString
		startedAt     sql.NullTime
		completedAt   sql.NullTime
	)
	dest := []any{
		&d.ID, &d.IdempotencyKey, &d.Status, &d.ProcessingAttempt,
		&failureType, &failureReason, &d.CreatedAt, &d.UpdatedAt, &startedAt, &completedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	d.FailureType = schema.FailureType(failureType.String)
	d.FailureReason = failureReason.String
	d.ProcessingStartedAt = timePtr(startedAt)
	d.CompletedAt = timePtr(completedAt)
	return nil
}
