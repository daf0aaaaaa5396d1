package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zoff-tech/reviewbot/schema"
)

const inboxTable = "inbox_entries"

// PostgresInboxRepository stores inbound Slack interactions in one table shared
// by every interaction type.
type PostgresInboxRepository struct {
	q postgresQueue
}

func NewPostgresInboxRepository(tx *TxManager) *PostgresInboxRepository {
	return &PostgresInboxRepository{q: postgresQueue{tx: tx, table: inboxTable}}
}

var _ QueueRepository[*schema.InboxEntry] = (*inboxQueue)(nil)

// Queue returns the view of the inbox holding only interactions of type t.
func (r *PostgresInboxRepository) Queue(t schema.InteractionType) QueueRepository[*schema.InboxEntry] {
	return &inboxQueue{repo: r, interactionType: t}
}

func (r *PostgresInboxRepository) Insert(ctx context.Context, entry *schema.InboxEntry) (bool, error) {
	d := entry.Delivery
	return r.q.insert(ctx, "InsertInbox",
		`INSERT INTO inbox_entries (id, interaction_type, idempotency_key, payload, status, processing_attempt, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8) ON CONFLICT (idempotency_key) DO NOTHING`,
		d.ID, entry.InteractionType, d.IdempotencyKey, entry.Payload, d.Status, d.ProcessingAttempt, d.CreatedAt, d.UpdatedAt)
}

func (r *PostgresInboxRepository) FindClaimable(ctx context.Context, t schema.InteractionType, limit int, staleBefore time.Time) ([]*schema.InboxEntry, error) {
	var entries []*schema.InboxEntry
	err := r.q.withSpan(ctx, "FindClaimableInbox", func(ctx context.Context, exec Executor) (int, error) {
		claimable := schema.ClaimableStatuses()
		rows, err := exec.QueryContext(ctx,
			`SELECT `+deliveryColumns+`, interaction_type, payload FROM inbox_entries
             WHERE interaction_type=$1 AND (status IN ($2, $3) OR (status=$4 AND processing_started_at < $5))
             ORDER BY created_at ASC LIMIT $6`,
			t, claimable[0], claimable[1], schema.StatusProcessing, staleBefore, limit)
		if err != nil {
			return 0, err
		}
		defer rows.Close()

		for rows.Next() {
			entry, err := scanInbox(rows)
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

func (r *PostgresInboxRepository) Claim(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	return r.q.claim(ctx, id, now, staleBefore)
}

func (r *PostgresInboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*schema.InboxEntry, error) {
	var entry *schema.InboxEntry
	err := r.q.withSpan(ctx, "FindInboxByID", func(ctx context.Context, exec Executor) (int, error) {
		row := exec.QueryRowContext(ctx,
			`SELECT `+deliveryColumns+`, interaction_type, payload FROM inbox_entries WHERE id=$1`, id)
		var err error
		entry, err = scanInbox(row)
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

func (r *PostgresInboxRepository) Save(ctx context.Context, entry *schema.InboxEntry) error {
	return r.q.save(ctx, &entry.Delivery)
}

func (r *PostgresInboxRepository) RecoverStale(ctx context.Context, staleBefore, now time.Time) (int64, error) {
	return r.q.recoverStale(ctx, staleBefore, now)
}

func scanInbox(row rowScanner) (*schema.InboxEntry, error) {
	entry := &schema.InboxEntry{}
	if err := scanEntry(row, &entry.Delivery, &entry.InteractionType, &entry.Payload); err != nil {
		return nil, err
	}
	return entry, nil
}

type inboxQueue struct {
	repo            *PostgresInboxRepository
	interactionType schema.InteractionType
}

func (q *inboxQueue) Insert(ctx context.Context, entry *schema.InboxEntry) (bool, error) {
	return q.repo.Insert(ctx, entry)
}

func (q *inboxQueue) FindClaimable(ctx context.Context, limit int, staleBefore time.Time) ([]*schema.InboxEntry, error) {
	return q.repo.FindClaimable(ctx, q.interactionType, limit, staleBefore)
}

func (q *inboxQueue) Claim(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error) {
	return q.repo.Claim(ctx, id, now, staleBefore)
}

func (q *inboxQueue) FindByID(ctx context.Context, id uuid.UUID) (*schema.InboxEntry, error) {
	return q.repo.FindByID(ctx, id)
}

func (q *inboxQueue) Save(ctx context.Context, entry *schema.InboxEntry) error {
	return q.repo.Save(ctx, entry)
}

func (q *inboxQueue) RecoverStale(ctx context.Context, staleBefore, now time.Time) (int64, error) {
	return q.repo.RecoverStale(ctx, staleBefore, now)
}
