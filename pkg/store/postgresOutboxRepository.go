package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zoff-tech/reviewbot/schema"
)

const outboxTable = "outbox_entries"

const outboxColumns = `message_type, team_id, channel_id, user_id, text, blocks, fallback_text, source_key`

// PostgresOutboxRepository stores outbound Slack notifications.
type PostgresOutboxRepository struct {
	q postgresQueue
}

var _ QueueRepository[*schema.OutboxEntry] = (*PostgresOutboxRepository)(nil)

func NewPostgresOutboxRepository(tx *TxManager) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{q: postgresQueue{tx: tx, table: outboxTable}}
}

func (r *PostgresOutboxRepository) Insert(ctx context.Context, entry *schema.OutboxEntry) (bool, error) {
	d := entry.Delivery
	return r.q.insert(ctx, "InsertOutbox",
		`INSERT INTO outbox_entries (id, idempotency_key, status, processing_attempt, created_at, updated_at, `+outboxColumns+`)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) ON CONFLICT (idempotency_key) DO NOTHING`,
		d.ID, d.IdempotencyKey, d.Status, d.ProcessingAttempt, d.CreatedAt, d.UpdatedAt,
		entry.MessageType, entry.TeamID, entry.ChannelID, nullString(entry.UserID),
		nullString(entry.Text), nullString(entry.Blocks), nullString(entry.FallbackText), entry.SourceKey)
}

func (r *PostgresOutboxRepository) FindClaimable(ctx context.Context, limit int, staleBefore time.Time) ([]*schema.OutboxEntry, error) {
	var entries []*schema.OutboxEntry
	err := r.q.withSpan(ctx, "FindClaimableOutbox", func(ctx context.Context, exec Executor) (int, error) {
		claimable := schema.ClaimableStatuses()
		rows, err := exec.QueryContext(ctx,
			`SELECT `+deliveryColumns+`, `+outboxColumns+` FROM outbox_entries
             WHERE status IN ($1, $2) OR (status=$3 AND processing_started_at < $4)
             ORDER BY created_at ASC LIMIT $5`,
			claimable[0], claimable[1], schema.StatusProcessing, staleBefore, limit)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanOutbox(rows)
			if err != nil {
				return 0, err
			}
			entries = append(entries, entry)
		}
		return len(entries), rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *PostgresOutboxRepository) Claim(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	return r.q.claim(ctx, id, now, staleBefore)
}

func (r *PostgresOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*schema.OutboxEntry, error) {
	var entry *schema.OutboxEntry
	err := r.q.withSpan(ctx, "FindOutboxByID", func(ctx context.Context, exec Executor) (int, error) {
		row := exec.QueryRowContext(ctx,
			`SELECT `+deliveryColumns+`, `+outboxColumns+` FROM outbox_entries WHERE id=$1`, id)
		var err error
		entry, err = scanOutbox(row)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		if err != nil {
			return 0, err
		}
		return 1, nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *PostgresOutboxRepository) Save(ctx context.Context, entry *schema.OutboxEntry) error {
	return r.q.save(ctx, &entry.Delivery)
}

func (r *PostgresOutboxRepository) RecoverStale(ctx context.Context, staleBefore, now time.Time) (int64, error) {
	return r.q.recoverStale(ctx, staleBefore, now)
}

func scanOutbox(row rowScanner) (*schema.OutboxEntry, error) {
	var (
		entry                      = &schema.OutboxEntry{}
		userID, text, blocks, fall sql.NullString
	)
	if err := scanEntry(row, &entry.Delivery,
		&entry.MessageType, &entry.TeamID, &entry.ChannelID, &userID,
		&text, &blocks, &fall, &entry.SourceKey); err != nil {
		return nil, err
	}
	entry.UserID = userID.String
	entry.Text = text.String
	entry.Blocks = blocks.String
	entry.FallbackText = fall.String
	return entry, nil
}
