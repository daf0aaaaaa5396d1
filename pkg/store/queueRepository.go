package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zoff-tech/reviewbot/schema"
)

// QueueRepository defines the persistence operations of one delivery queue.
type QueueRepository[E schema.Entry] interface {
	// Insert stores a new PENDING entry. It returns false when an entry with the
	// same idempotency key already exists.
	Insert(ctx context.Context, entry E) (bool, error)
	// FindClaimable returns up to limit entries that are PENDING, RETRY_PENDING, or
	// PROCESSING with a claim older than staleBefore, oldest first.
	FindClaimable(ctx context.Context, limit int, staleBefore time.Time) ([]E, error)
	// Claim atomically moves the entry to PROCESSING and bumps its attempt.
	// It returns false without side effects when the entry is not claimable.
	Claim(ctx context.Context, id uuid.UUID, now, staleBefore time.Time) (bool, error)
	// FindByID returns ErrNotFound when the entry does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (E, error)
	// Save persists the outcome of a claimed entry. It returns ErrClaimLost when
	// the entry is no longer PROCESSING under the same attempt.
	Save(ctx context.Context, entry E) error
	// RecoverStale moves PROCESSING entries claimed before staleBefore to RETRY_PENDING.
	RecoverStale(ctx context.Context, staleBefore, now time.Time) (int64, error)
}
